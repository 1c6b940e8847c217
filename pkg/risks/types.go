// Package risks tracks project risks scored by probability and impact.
package risks

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

// Level rates probability or impact from 1 to 5
type Level string

const (
	LevelVeryLow  Level = "Very_Low"
	LevelLow      Level = "Low"
	LevelMedium   Level = "Medium"
	LevelHigh     Level = "High"
	LevelVeryHigh Level = "Very_High"
)

var levels = []Level{LevelVeryLow, LevelLow, LevelMedium, LevelHigh, LevelVeryHigh}

// Value returns the numeric weight of l, 1 for Very_Low through 5 for
// Very_High
func (l Level) Value() int {
	for i, candidate := range levels {
		if candidate == l {
			return i + 1
		}
	}
	return 0
}

// ParseLevel accepts any casing, with spaces or underscores
func ParseLevel(field, s string) (Level, error) {
	norm := strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
	for _, l := range levels {
		if strings.EqualFold(string(l), norm) {
			return l, nil
		}
	}
	return "", apperrors.BadRequest(fmt.Sprintf("invalid %s %q", field, s))
}

// Score is probability times impact, 1..25
func Score(probability, impact Level) int {
	return probability.Value() * impact.Value()
}

// Status is the lifecycle state of a risk
type Status string

const (
	StatusIdentified Status = "Identified"
	StatusActive     Status = "Active"
	StatusMonitoring Status = "Monitoring"
	StatusMitigated  Status = "Mitigated"
	StatusClosed     Status = "Closed"
)

// ParseStatus accepts any casing; the legacy "Open" maps to Identified
func ParseStatus(s string) (Status, error) {
	norm := strings.TrimSpace(s)
	if strings.EqualFold(norm, "Open") {
		return StatusIdentified, nil
	}
	for _, st := range []Status{StatusIdentified, StatusActive, StatusMonitoring, StatusMitigated, StatusClosed} {
		if strings.EqualFold(string(st), norm) {
			return st, nil
		}
	}
	return "", apperrors.BadRequest(fmt.Sprintf("invalid risk status %q", s))
}

// Risk is a threat to a project's schedule, budget or safety
type Risk struct {
	ID             uuid.UUID   `json:"id"`
	OrganizationID uuid.UUID   `json:"organization_id"`
	ProjectID      uuid.UUID   `json:"project_id"`
	Description    string      `json:"description"`
	Category       *string     `json:"category"`
	Probability    Level       `json:"probability"`
	Impact         Level       `json:"impact"`
	RiskScore      int         `json:"risk_score"`
	Status         Status      `json:"status"`
	MitigationPlan *string     `json:"mitigation_plan"`
	OwnerID        *uuid.UUID  `json:"owner_id"`
	OwnerName      *string     `json:"owner_name"`
	IdentifiedDate dates.Date  `json:"identified_date"`
	ReviewDate     *dates.Date `json:"review_date"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// ListFilter narrows GET /projects/{id}/risks
type ListFilter struct {
	Status   *Status
	Category string
	Page     pagination.Params
}

// CreateRequest is the body of POST /projects/{id}/risks
type CreateRequest struct {
	Description    string      `json:"description"`
	Category       *string     `json:"category"`
	Probability    string      `json:"probability"`
	Impact         string      `json:"impact"`
	Status         string      `json:"status"`
	MitigationPlan *string     `json:"mitigation_plan"`
	OwnerID        *uuid.UUID  `json:"owner_id"`
	IdentifiedDate *dates.Date `json:"identified_date"`
	ReviewDate     *dates.Date `json:"review_date"`
}

// UpdateRequest is the body of PUT /projects/{id}/risks/{risk_id}; nil
// fields are unchanged
type UpdateRequest struct {
	Description    *string     `json:"description"`
	Category       *string     `json:"category"`
	Probability    *string     `json:"probability"`
	Impact         *string     `json:"impact"`
	Status         *string     `json:"status"`
	MitigationPlan *string     `json:"mitigation_plan"`
	OwnerID        *uuid.UUID  `json:"owner_id"`
	ReviewDate     *dates.Date `json:"review_date"`

	descriptionNull bool
}

// UnmarshalJSON records an explicit "description": null, which is rejected
func (r *UpdateRequest) UnmarshalJSON(b []byte) error {
	type plain UpdateRequest
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	if raw, ok := fields["description"]; ok && string(raw) == "null" {
		r.descriptionNull = true
	}
	return json.Unmarshal(b, (*plain)(r))
}

func validateDescription(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperrors.Validation("description is required")
	}
	return s, nil
}
