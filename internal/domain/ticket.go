package domain

import "time"

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

type Status struct {
	StatusID int    `json:"statusId"`
	Name     string `json:"name"`
}

type UserRef struct {
	UserID      int    `json:"userId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
}

type GroupRef struct {
	GroupID int    `json:"groupId"`
	Name    string `json:"name"`
}

type Ticket struct {
	TicketID    int        `json:"ticketId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	Customer    UserRef    `json:"customer"`
	Assignee    *UserRef   `json:"assignee,omitempty"`
	Group       *GroupRef  `json:"group,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ClosedAt    *time.Time `json:"closedAt,omitempty"`
}

// PagedResult is one page of a server-side ticket query, as cached locally.
type PagedResult struct {
	Items      []Ticket `json:"items"`
	PageNumber int      `json:"pageNumber"`
	PageSize   int      `json:"pageSize"`
	TotalPages int      `json:"totalPages"`
	TotalCount int      `json:"totalCount"`
}

// Prepend returns a copy of the page with t at the head, trimmed to the
// page's own size, with TotalCount incremented and TotalPages recomputed.
func (p PagedResult) Prepend(t Ticket) PagedResult {
	items := make([]Ticket, 0, len(p.Items)+1)
	items = append(items, t)
	items = append(items, p.Items...)
	if p.PageSize > 0 && len(items) > p.PageSize {
		items = items[:p.PageSize]
	}
	out := p
	out.Items = items
	out.TotalCount = p.TotalCount + 1
	if p.PageSize > 0 {
		out.TotalPages = (out.TotalCount + p.PageSize - 1) / p.PageSize
	}
	return out
}
