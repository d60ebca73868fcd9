// Package reconciler binds push-channel events to the notification inbox,
// the highlight set and the ticket query cache. It is the only writer of
// those stores on the event path, and it processes one event at a time in
// arrival order, so no two events ever interleave their mutations.
package reconciler

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/supportdesk/ticketsync/internal/domain"
	"github.com/supportdesk/ticketsync/internal/highlight"
	"github.com/supportdesk/ticketsync/internal/inbox"
	"github.com/supportdesk/ticketsync/internal/observability"
	"github.com/supportdesk/ticketsync/internal/push"
	"github.com/supportdesk/ticketsync/internal/querycache"
	"github.com/supportdesk/ticketsync/internal/session"
)

const (
	EventReceiveNotification = "ReceiveNotification"
	EventTicketListUpdated   = "TicketListUpdated"
	EventNewTicketAdded      = "NewTicketAdded"

	MethodJoinTicketGroup  = "JoinTicketGroup"
	MethodLeaveTicketGroup = "LeaveTicketGroup"

	// Cache key namespaces. List queries live under tickets:, single
	// ticket queries under ticket:.
	NamespaceTicketLists   = "tickets:"
	NamespaceTicketDetails = "ticket:"

	// DefaultInvokeTimeout bounds replayed group joins on reconnect.
	DefaultInvokeTimeout = 10 * time.Second
)

// TicketTopic is the server-side group name for one ticket's events.
func TicketTopic(id string) string { return "ticket:" + id }

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// EventChannel is the slice of the push channel the reconciler drives.
type EventChannel interface {
	Start()
	Stop()
	On(event string, h push.Handler) push.Subscription
	Off(sub push.Subscription)
	OnConnect(fn func()) string
	OnDisconnect(fn func()) string
	Invoke(ctx context.Context, target string, args ...string) error
	IsConnected() bool
}

type Reconciler struct {
	sessions   *session.Manager
	channel    EventChannel
	inbox      *inbox.Inbox
	highlights *highlight.Set
	tickets    *querycache.Cache[domain.PagedResult]
	alerter    Alerter
	logger     *slog.Logger

	// InvokeTimeout bounds each replayed topic join; set before Start.
	InvokeTimeout time.Duration

	ctx context.Context

	mu            sync.Mutex
	state         State
	everConnected bool
	topics        map[string]int
	subs          []push.Subscription
	sessionSub    string
}

func New(
	sessions *session.Manager,
	channel EventChannel,
	box *inbox.Inbox,
	highlights *highlight.Set,
	tickets *querycache.Cache[domain.PagedResult],
	alerter Alerter,
	logger *slog.Logger,
) *Reconciler {
	if alerter == nil {
		alerter = &LogAlerter{Logger: logger}
	}
	return &Reconciler{
		sessions:      sessions,
		channel:       channel,
		inbox:         box,
		highlights:    highlights,
		tickets:       tickets,
		alerter:       alerter,
		logger:        logger,
		InvokeTimeout: DefaultInvokeTimeout,
		ctx:           context.Background(),
		state:         StateDisconnected,
		topics:        make(map[string]int),
	}
}

// Start registers event handlers and binds the channel lifecycle to the
// session: login opens it, logout tears it down.
func (r *Reconciler) Start(ctx context.Context) {
	r.ctx = ctx
	r.subs = append(r.subs,
		r.channel.On(EventReceiveNotification, r.handleReceiveNotification),
		r.channel.On(EventTicketListUpdated, r.handleTicketListUpdated),
		r.channel.On(EventNewTicketAdded, r.handleNewTicketAdded),
	)
	r.channel.OnConnect(r.handleConnected)
	r.channel.OnDisconnect(r.handleDisconnected)
	r.sessionSub = r.sessions.Subscribe(r.handleSessionEvent)

	if r.sessions.Authenticated() {
		r.openChannel()
	}
}

func (r *Reconciler) Stop() {
	r.sessions.Unsubscribe(r.sessionSub)
	for _, sub := range r.subs {
		r.channel.Off(sub)
	}
	r.subs = nil
	r.channel.Stop()
	r.mu.Lock()
	r.state = StateDisconnected
	r.mu.Unlock()
}

func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// JoinTopic records a view's interest in one ticket's events and forwards
// the group join while connected. Interest is refcounted across views.
func (r *Reconciler) JoinTopic(ctx context.Context, ticketID string) error {
	r.mu.Lock()
	r.topics[ticketID]++
	first := r.topics[ticketID] == 1
	r.mu.Unlock()

	if !first || !r.channel.IsConnected() {
		return nil
	}
	if err := r.channel.Invoke(ctx, MethodJoinTicketGroup, ticketID); err != nil {
		r.logger.Warn("join ticket group", "topic", TicketTopic(ticketID), "error", err)
		return err
	}
	return nil
}

// LeaveTopic releases one view's interest; the group is left once no view
// wants it anymore.
func (r *Reconciler) LeaveTopic(ctx context.Context, ticketID string) error {
	r.mu.Lock()
	if r.topics[ticketID] > 0 {
		r.topics[ticketID]--
	}
	last := r.topics[ticketID] == 0
	if last {
		delete(r.topics, ticketID)
	}
	r.mu.Unlock()

	if !last || !r.channel.IsConnected() {
		return nil
	}
	if err := r.channel.Invoke(ctx, MethodLeaveTicketGroup, ticketID); err != nil {
		r.logger.Warn("leave ticket group", "topic", TicketTopic(ticketID), "error", err)
		return err
	}
	return nil
}

func (r *Reconciler) handleSessionEvent(ev session.Event) {
	switch ev.Type {
	case session.EventLoggedIn:
		r.openChannel()
	case session.EventLoggedOut:
		r.closeChannel()
	}
}

func (r *Reconciler) openChannel() {
	r.mu.Lock()
	if r.everConnected {
		r.state = StateReconnecting
	} else {
		r.state = StateConnecting
	}
	r.mu.Unlock()
	r.channel.Start()
}

func (r *Reconciler) closeChannel() {
	r.channel.Stop()
	r.mu.Lock()
	r.state = StateDisconnected
	// A fresh session starts over as connecting, not reconnecting.
	r.everConnected = false
	// Pending topic interest survives: views are still mounted, and their
	// joins replay if a new session connects.
	r.mu.Unlock()
}

// handleConnected replays every wanted topic join. It runs on initial
// connect and after every reconnect; the server holds no memory of group
// membership across connections.
func (r *Reconciler) handleConnected() {
	r.mu.Lock()
	r.state = StateConnected
	r.everConnected = true
	wanted := make([]string, 0, len(r.topics))
	for id, count := range r.topics {
		if count > 0 {
			wanted = append(wanted, id)
		}
	}
	r.mu.Unlock()

	// The hook runs on the connection goroutine, before the read loop is
	// serving acks; replay must happen off it.
	go func() {
		for _, id := range wanted {
			ctx, cancel := context.WithTimeout(r.ctx, r.InvokeTimeout)
			if err := r.channel.Invoke(ctx, MethodJoinTicketGroup, id); err != nil {
				r.logger.Warn("replay ticket group join", "topic", TicketTopic(id), "error", err)
			}
			cancel()
		}
	}()
}

func (r *Reconciler) handleDisconnected() {
	r.mu.Lock()
	if r.sessions.Authenticated() {
		r.state = StateReconnecting
	} else {
		r.state = StateDisconnected
	}
	r.mu.Unlock()
}

type notificationPayload struct {
	ID          string    `json:"id"`
	Message     string    `json:"message"`
	Link        string    `json:"link"`
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
	IsHighlight bool      `json:"isHighlight"`
}

func (r *Reconciler) handleReceiveNotification(payload json.RawMessage) {
	var p notificationPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.ID == "" {
		observability.RecordSyncEvent(EventReceiveNotification, "malformed")
		r.logger.Warn("skipping malformed notification event", "error", err)
		return
	}

	// The hub delivers at least once; inbox membership is the dedup check
	// that keeps a redelivered id from double-counting unread.
	if r.inbox.Contains(p.ID) {
		observability.RecordSyncEvent(EventReceiveNotification, "skipped_duplicate")
		return
	}

	r.inbox.Add(r.ctx, domain.Notification{
		ID:        p.ID,
		Message:   p.Message,
		Link:      p.Link,
		Timestamp: p.Timestamp,
	})
	r.alerter.Present(Alert{
		Message: p.Message,
		Link:    p.Link,
		Type:    domain.NormalizeAlertType(p.Type),
		Persist: p.IsHighlight,
	})
	observability.RecordSyncEvent(EventReceiveNotification, "handled")
}

// handleTicketListUpdated invalidates broadly: the signal carries no hint
// of which lists changed, so guessing would risk serving stale pages.
func (r *Reconciler) handleTicketListUpdated(json.RawMessage) {
	lists := r.tickets.Invalidate(NamespaceTicketLists)
	details := r.tickets.Invalidate(NamespaceTicketDetails)
	observability.RecordSyncEvent(EventTicketListUpdated, "handled")
	r.logger.Debug("ticket queries invalidated", "lists", lists, "details", details)
}

func (r *Reconciler) handleNewTicketAdded(payload json.RawMessage) {
	var t domain.Ticket
	if err := json.Unmarshal(payload, &t); err != nil || t.TicketID == 0 {
		observability.RecordSyncEvent(EventNewTicketAdded, "malformed")
		r.logger.Warn("skipping malformed new-ticket event", "error", err)
		return
	}

	r.highlights.Add(strconv.Itoa(t.TicketID))
	patched := r.tickets.Patch(NamespaceTicketLists, func(p domain.PagedResult) domain.PagedResult {
		return p.Prepend(t)
	})
	observability.RecordSyncEvent(EventNewTicketAdded, "handled")
	r.logger.Debug("new ticket reconciled", "ticket_id", t.TicketID, "patched_queries", patched)
}
