package notifications

import (
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/pagination"
)

// Type classifies a notification
type Type string

const (
	TypeTaskAssigned     Type = "task_assigned"
	TypeExpenseApproved  Type = "expense_approved"
	TypeExpenseRejected  Type = "expense_rejected"
	TypeProjectMessage   Type = "project_message"
	TypeMilestoneDueSoon Type = "milestone_due_soon"
)

// Notification is a message addressed to one user
type Notification struct {
	ID               uuid.UUID              `json:"id"`
	OrganizationID   uuid.UUID              `json:"organization_id"`
	UserID           uuid.UUID              `json:"user_id"`
	ProjectID        *uuid.UUID             `json:"project_id"`
	NotificationType Type                   `json:"notification_type"`
	Title            string                 `json:"title"`
	Body             string                 `json:"body"`
	Data             map[string]interface{} `json:"data"`
	IsRead           bool                   `json:"is_read"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// Draft is a notification to be created
type Draft struct {
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	ProjectID      *uuid.UUID
	Type           Type
	Title          string
	Body           string
	Data           map[string]interface{}
}

// ListFilter narrows GET /notifications
type ListFilter struct {
	UnreadOnly bool
	ProjectID  *uuid.UUID
	Page       pagination.Params
}

// ListResponse is a page of notifications plus the caller's unread total
type ListResponse struct {
	Items       []*Notification `json:"items"`
	Total       int             `json:"total"`
	UnreadCount int             `json:"unread_count"`
	Page        int             `json:"page"`
	PageSize    int             `json:"page_size"`
	TotalPages  int             `json:"total_pages"`
}
