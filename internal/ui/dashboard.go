// Package ui is a small terminal dashboard over the read-model API. It
// polls status and notifications and renders the inbox with its unread
// badge; it holds no sync state of its own.
package ui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/supportdesk/ticketsync/internal/domain"
)

const pollInterval = 2 * time.Second

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62")).Padding(0, 1)
	connectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	degradedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	offlineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	unreadStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	readStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	hintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

type statusData struct {
	Authenticated   bool     `json:"authenticated"`
	DisplayName     string   `json:"displayName"`
	ConnectionState string   `json:"connectionState"`
	UnreadCount     int      `json:"unreadCount"`
	Highlighted     []string `json:"highlighted"`
}

type notificationsData struct {
	Items       []domain.Notification `json:"items"`
	UnreadCount int                   `json:"unreadCount"`
}

type statusMsg statusData
type notificationsMsg notificationsData
type fetchErrMsg struct{ err error }
type tickMsg time.Time
type actionDoneMsg struct{}

// Model is the root Bubble Tea model for the dashboard.
type Model struct {
	baseURL string
	client  *http.Client

	status        statusData
	notifications []domain.Notification
	unread        int
	lastErr       string
	ready         bool
}

func New(baseURL string) Model {
	return Model{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Run starts the dashboard program and blocks until the user quits.
func Run(baseURL string) error {
	_, err := tea.NewProgram(New(baseURL), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchStatus(), m.fetchNotifications(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tea.Batch(m.fetchStatus(), m.fetchNotifications(), tick())

	case statusMsg:
		m.status = statusData(msg)
		m.ready = true
		m.lastErr = ""
		return m, nil

	case notificationsMsg:
		m.notifications = msg.Items
		m.unread = msg.UnreadCount
		return m, nil

	case fetchErrMsg:
		m.lastErr = msg.err.Error()
		return m, nil

	case actionDoneMsg:
		return m, m.fetchNotifications()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "a":
			return m, m.markAllRead()
		case "r":
			return m, tea.Batch(m.fetchStatus(), m.fetchNotifications())
		}
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Connecting to ticketsync..."
	}

	header := titleStyle.Render(fmt.Sprintf("ticketsync [%d unread]", m.unread)) + "  " + m.renderConnection()
	body := m.renderInbox()
	hints := hintStyle.Render("q quit | a mark all read | r refresh")
	if m.lastErr != "" {
		hints = errorStyle.Render(m.lastErr)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", hints)
}

func (m Model) renderConnection() string {
	label := m.status.ConnectionState
	if m.status.Authenticated {
		label += " as " + m.status.DisplayName
	}
	switch m.status.ConnectionState {
	case "connected":
		return connectedStyle.Render(label)
	case "connecting", "reconnecting":
		return degradedStyle.Render(label)
	default:
		return offlineStyle.Render(label)
	}
}

func (m Model) renderInbox() string {
	if len(m.notifications) == 0 {
		return readStyle.Render("inbox empty")
	}
	lines := make([]string, 0, len(m.notifications))
	for _, n := range m.notifications {
		line := fmt.Sprintf("%s  %s", n.Timestamp.Local().Format("15:04:05"), n.Message)
		if n.IsRead {
			lines = append(lines, readStyle.Render("  "+line))
		} else {
			lines = append(lines, unreadStyle.Render("● "+line))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		var data statusData
		if err := m.getJSON("/api/v1/status", &data); err != nil {
			return fetchErrMsg{err: err}
		}
		return statusMsg(data)
	}
}

func (m Model) fetchNotifications() tea.Cmd {
	return func() tea.Msg {
		var data notificationsData
		if err := m.getJSON("/api/v1/notifications", &data); err != nil {
			return fetchErrMsg{err: err}
		}
		return notificationsMsg(data)
	}
}

func (m Model) markAllRead() tea.Cmd {
	return func() tea.Msg {
		resp, err := m.client.Post(m.baseURL+"/api/v1/notifications/read-all", "application/json", nil)
		if err != nil {
			return fetchErrMsg{err: err}
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode >= 400 {
			return fetchErrMsg{err: fmt.Errorf("mark all read: %s", resp.Status)}
		}
		return actionDoneMsg{}
	}
}

// getJSON unwraps the API envelope into out.
func (m Model) getJSON(path string, out any) error {
	resp, err := m.client.Get(m.baseURL + path)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return json.Unmarshal(env.Data, out)
}
