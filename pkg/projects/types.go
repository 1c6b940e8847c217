package projects

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/dates"
	"github.com/platinummonkey/buildpro/pkg/tenancy"
)

// Status is the lifecycle state of a project
type Status string

const (
	StatusPlanning   Status = "Planning"
	StatusInProgress Status = "In_Progress"
	StatusOnHold     Status = "On_Hold"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

var statuses = []Status{StatusPlanning, StatusInProgress, StatusOnHold, StatusCompleted, StatusCancelled}

// ParseStatus accepts any casing, with spaces or underscores
func ParseStatus(s string) (Status, error) {
	norm := strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
	for _, st := range statuses {
		if strings.EqualFold(string(st), norm) {
			return st, nil
		}
	}
	return "", apperrors.BadRequest(fmt.Sprintf("invalid project status %q", s))
}

// Priority is shared by projects and tasks
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// ParsePriority accepts any casing
func ParsePriority(s string) (Priority, error) {
	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical} {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return "", apperrors.BadRequest(fmt.Sprintf("invalid priority %q", s))
}

// Project is a construction project owned by one organization
type Project struct {
	ID              uuid.UUID       `json:"id"`
	OrganizationID  uuid.UUID       `json:"organization_id"`
	ParentProjectID *uuid.UUID      `json:"parent_project_id"`
	ProjectName     string          `json:"project_name"`
	Description     *string         `json:"description"`
	Status          Status          `json:"status"`
	Priority        Priority        `json:"priority"`
	ManagerID       uuid.UUID       `json:"manager_id"`
	ManagerName     *string         `json:"manager_name"`
	StartDate       dates.Date      `json:"start_date"`
	EndDate         dates.Date      `json:"end_date"`
	TotalBudget     decimal.Decimal `json:"total_budget"`
	Location        *string         `json:"location"`
	ClientName      *string         `json:"client_name"`
	ContractType    *string         `json:"contract_type"`
	CreatedBy       uuid.UUID       `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	tenancy.SoftDelete
}

// IsOwner reports whether userID is the project's manager or creator
func (p *Project) IsOwner(userID uuid.UUID) bool {
	return p != nil && (p.ManagerID == userID || p.CreatedBy == userID)
}

// Member is a user's membership in a project with its capability flags
type Member struct {
	ID                  uuid.UUID  `json:"id"`
	ProjectID           uuid.UUID  `json:"project_id"`
	UserID              uuid.UUID  `json:"user_id"`
	UserName            string     `json:"user_name,omitempty"`
	UserEmail           string     `json:"user_email,omitempty"`
	RoleInProject       *string    `json:"role_in_project"`
	JoinedAt            dates.Date `json:"joined_at"`
	CanViewProject      bool       `json:"can_view_project"`
	CanPostMessages     bool       `json:"can_post_messages"`
	CanUploadDocuments  bool       `json:"can_upload_documents"`
	CanEditTasks        bool       `json:"can_edit_tasks"`
	CanManageMilestones bool       `json:"can_manage_milestones"`
	CanManageRisks      bool       `json:"can_manage_risks"`
	CanManageExpenses   bool       `json:"can_manage_expenses"`
	CanApproveExpenses  bool       `json:"can_approve_expenses"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
