package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/pagination"
)

// Action is the kind of change an entry records
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Entry is one audit_logs row
type Entry struct {
	ID             uuid.UUID       `json:"id"`
	OrganizationID *uuid.UUID      `json:"organization_id"`
	UserID         *uuid.UUID      `json:"user_id"`
	UserName       *string         `json:"user_name"`
	Action         Action          `json:"action"`
	EntityType     string          `json:"entity_type"`
	EntityID       *uuid.UUID      `json:"entity_id"`
	Details        json.RawMessage `json:"details"`
	Description    *string         `json:"description"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Details describes the request that produced an entry
type Details struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	StatusCode int    `json:"status_code"`
	IPAddress  string `json:"ip_address"`
	UserAgent  string `json:"user_agent"`
}

// ListFilter narrows GET /audit-logs
type ListFilter struct {
	EntityType string
	Action     Action
	UserID     *uuid.UUID
	Page       pagination.Params
}
