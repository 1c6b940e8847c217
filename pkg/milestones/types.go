// Package milestones tracks dated project checkpoints.
package milestones

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/dates"
	"github.com/platinummonkey/buildpro/pkg/pagination"
)

// Status is the state of a milestone
type Status string

const (
	StatusPending   Status = "Pending"
	StatusOnTrack   Status = "On Track"
	StatusAtRisk    Status = "At Risk"
	StatusDelayed   Status = "Delayed"
	StatusCompleted Status = "Completed"
)

// statusSpellings maps normalized input to a status. Keys are lower case
// with underscores and hyphens folded to spaces.
var statusSpellings = map[string]Status{
	"pending":     StatusPending,
	"not started": StatusPending,
	"on track":    StatusOnTrack,
	"ontrack":     StatusOnTrack,
	"in progress": StatusOnTrack,
	"at risk":     StatusAtRisk,
	"atrisk":      StatusAtRisk,
	"delayed":     StatusDelayed,
	"overdue":     StatusDelayed,
	"completed":   StatusCompleted,
	"complete":    StatusCompleted,
	"done":        StatusCompleted,
}

// ParseMilestoneStatus normalizes s to a Status. It accepts the canonical
// values in any casing, underscore and hyphen forms such as "On_Track" or
// "at-risk", and the legacy spellings "In Progress" (On Track), "Not
// Started" (Pending), "Overdue" (Delayed), "Complete" and "Done"
// (Completed).
func ParseMilestoneStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	norm = strings.Join(strings.Fields(norm), " ")
	if st, ok := statusSpellings[norm]; ok {
		return st, nil
	}
	return "", apperrors.BadRequest(fmt.Sprintf("invalid milestone status %q", s))
}

// Milestone is a dated checkpoint within a project
type Milestone struct {
	ID                   uuid.UUID   `json:"id"`
	OrganizationID       uuid.UUID   `json:"organization_id"`
	ProjectID            uuid.UUID   `json:"project_id"`
	Name                 string      `json:"name"`
	Description          *string     `json:"description"`
	TargetDate           dates.Date  `json:"target_date"`
	ActualDate           *dates.Date `json:"actual_date"`
	Status               Status      `json:"status"`
	CompletionPercentage int         `json:"completion_percentage"`
	Dependencies         []uuid.UUID `json:"dependencies"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// ListFilter narrows GET /projects/{id}/milestones
type ListFilter struct {
	Status *Status
	Page   pagination.Params
}

// CreateRequest is the body of POST /projects/{id}/milestones. due_date is
// accepted for target_date.
type CreateRequest struct {
	Name         string      `json:"name"`
	Description  *string     `json:"description"`
	TargetDate   *dates.Date `json:"target_date"`
	Status       string      `json:"status"`
	Dependencies []uuid.UUID `json:"dependencies"`
}

// UnmarshalJSON applies the due_date alias
func (r *CreateRequest) UnmarshalJSON(b []byte) error {
	type plain CreateRequest
	var aux struct {
		plain
		DueDate *dates.Date `json:"due_date"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = CreateRequest(aux.plain)
	if r.TargetDate == nil {
		r.TargetDate = aux.DueDate
	}
	return nil
}

// UpdateRequest is the body of PUT /projects/{id}/milestones/{milestone_id};
// nil fields are unchanged. due_date and completion_date are accepted for
// target_date and actual_date.
type UpdateRequest struct {
	Name                 *string      `json:"name"`
	Description          *string      `json:"description"`
	TargetDate           *dates.Date  `json:"target_date"`
	ActualDate           *dates.Date  `json:"actual_date"`
	Status               *string      `json:"status"`
	CompletionPercentage *int         `json:"completion_percentage"`
	Dependencies         *[]uuid.UUID `json:"dependencies"`
}

// UnmarshalJSON applies the due_date and completion_date aliases
func (r *UpdateRequest) UnmarshalJSON(b []byte) error {
	type plain UpdateRequest
	var aux struct {
		plain
		DueDate        *dates.Date `json:"due_date"`
		CompletionDate *dates.Date `json:"completion_date"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = UpdateRequest(aux.plain)
	if r.TargetDate == nil {
		r.TargetDate = aux.DueDate
	}
	if r.ActualDate == nil {
		r.ActualDate = aux.CompletionDate
	}
	return nil
}

func validateName(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 255 {
		return "", apperrors.Validation("name must be between 1 and 255 characters")
	}
	return s, nil
}
