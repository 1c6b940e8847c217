// Package tasks manages the work items of a project.
package tasks

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/dates"
	"github.com/platinummonkey/buildpro/pkg/pagination"
	"github.com/platinummonkey/buildpro/pkg/projects"
)

// Status is the state of a task
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusBlocked    Status = "Blocked"
	StatusCancelled  Status = "Cancelled"
)

var statuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusBlocked, StatusCancelled}

// ParseStatus accepts any casing, with spaces or underscores
func ParseStatus(s string) (Status, error) {
	norm := strings.ReplaceAll(strings.TrimSpace(s), "_", " ")
	for _, st := range statuses {
		if strings.EqualFold(string(st), norm) {
			return st, nil
		}
	}
	return "", apperrors.BadRequest(fmt.Sprintf("invalid task status %q", s))
}

// Task is a unit of work inside a project
type Task struct {
	ID             uuid.UUID         `json:"id"`
	OrganizationID uuid.UUID         `json:"organization_id"`
	ProjectID      uuid.UUID         `json:"project_id"`
	Name           string            `json:"name"`
	Description    *string           `json:"description"`
	Status         Status            `json:"status"`
	Priority       projects.Priority `json:"priority"`
	AssigneeID     *uuid.UUID        `json:"assignee_id"`
	AssigneeName   *string           `json:"assignee_name"`
	ReporterID     *uuid.UUID        `json:"reporter_id"`
	ReporterName   *string           `json:"reporter_name"`
	StartDate      *dates.Date       `json:"start_date"`
	DueDate        dates.Date        `json:"due_date"`
	EstimatedHours *float64          `json:"estimated_hours"`
	ActualHours    *float64          `json:"actual_hours"`
	Progress       int               `json:"progress"`
	Dependencies   []uuid.UUID       `json:"dependencies"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ListFilter narrows GET /projects/{id}/tasks
type ListFilter struct {
	Status     *Status
	Priority   *projects.Priority
	AssigneeID *uuid.UUID
	Search     string
	Page       pagination.Params
}

// CreateRequest is the body of POST /projects/{id}/tasks
type CreateRequest struct {
	Name           string      `json:"name"`
	Description    *string     `json:"description"`
	Status         string      `json:"status"`
	Priority       string      `json:"priority"`
	AssigneeID     *uuid.UUID  `json:"assignee_id"`
	ReporterID     *uuid.UUID  `json:"reporter_id"`
	StartDate      *dates.Date `json:"start_date"`
	DueDate        dates.Date  `json:"due_date"`
	EstimatedHours *float64    `json:"estimated_hours"`
	Dependencies   []uuid.UUID `json:"dependencies"`
}

// UpdateRequest is the body of PUT /projects/{id}/tasks/{task_id}; nil
// fields are unchanged. An all-zero assignee_id unassigns the task.
type UpdateRequest struct {
	Name           *string      `json:"name"`
	Description    *string      `json:"description"`
	Status         *string      `json:"status"`
	Priority       *string      `json:"priority"`
	AssigneeID     *uuid.UUID   `json:"assignee_id"`
	StartDate      *dates.Date  `json:"start_date"`
	DueDate        *dates.Date  `json:"due_date"`
	EstimatedHours *float64     `json:"estimated_hours"`
	ActualHours    *float64     `json:"actual_hours"`
	Progress       *int         `json:"progress"`
	Dependencies   *[]uuid.UUID `json:"dependencies"`
}

// StatusRequest is the body of PATCH .../status
type StatusRequest struct {
	Status string `json:"status"`
}

// ProgressRequest is the body of PATCH .../progress
type ProgressRequest struct {
	Progress *int `json:"progress"`
}

// SetStatus moves the task to st, pinning progress at the ends of the
// lifecycle
func (t *Task) SetStatus(st Status) {
	t.Status = st
	switch st {
	case StatusCompleted:
		t.Progress = 100
	case StatusPending:
		t.Progress = 0
	}
}

// SetProgress records progress, completing the task at 100 and starting a
// pending task above 0
func (t *Task) SetProgress(progress int) {
	t.Progress = progress
	if progress == 100 {
		t.Status = StatusCompleted
	} else if progress > 0 && t.Status == StatusPending {
		t.Status = StatusInProgress
	}
}

func validateProgress(progress int) error {
	if progress < 0 || progress > 100 {
		return apperrors.Validation("progress must be between 0 and 100")
	}
	return nil
}

func validateHours(field string, hours *float64) error {
	if hours != nil && *hours < 0 {
		return apperrors.Validation(field + " must be non-negative")
	}
	return nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 255 {
		return "", apperrors.Validation("name must be between 1 and 255 characters")
	}
	return name, nil
}
