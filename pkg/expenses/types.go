// Package expenses records project spending and its approval workflow.
//
// An expense is created Pending and changes state only through a
// conditional UPDATE on its current status:
//
//	Pending  -> Approved | Rejected
//	Approved -> Paid
//
// Two concurrent approvals race on that UPDATE; the loser sees zero rows
// affected and fails with BadRequest.
package expenses

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/dates"
	"github.com/platinummonkey/buildpro/pkg/pagination"
)

// Status is the approval state of an expense
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
	StatusPaid     Status = "Paid"
)

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusPaid},
}

// CanTransition reports whether an expense may move from s to next
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseStatus accepts any casing
func ParseStatus(s string) (Status, error) {
	for _, st := range []Status{StatusPending, StatusApproved, StatusRejected, StatusPaid} {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", apperrors.BadRequest(fmt.Sprintf("invalid expense status %q", s))
}

// Expense is a cost logged against a project
type Expense struct {
	ID                uuid.UUID       `json:"id"`
	OrganizationID    uuid.UUID       `json:"organization_id"`
	ProjectID         uuid.UUID       `json:"project_id"`
	Description       string          `json:"description"`
	Category          string          `json:"category"`
	Amount            decimal.Decimal `json:"amount"`
	Vendor            *string         `json:"vendor"`
	ExpenseDate       dates.Date      `json:"expense_date"`
	Status            Status          `json:"status"`
	SubmittedByID     *uuid.UUID      `json:"submitted_by_id"`
	SubmittedByName   *string         `json:"submitted_by_name"`
	ApprovedByID      *uuid.UUID      `json:"approved_by_id"`
	ApprovedByName    *string         `json:"approved_by_name"`
	ReceiptDocumentID *uuid.UUID      `json:"receipt_document_id"`
	Notes             *string         `json:"notes"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ListFilter narrows GET /projects/{id}/expenses
type ListFilter struct {
	Status   *Status
	Category string
	FromDate *dates.Date
	ToDate   *dates.Date
	Page     pagination.Params
}

// CreateRequest is the body of POST /projects/{id}/expenses
type CreateRequest struct {
	Description       string          `json:"description"`
	Category          string          `json:"category"`
	Amount            decimal.Decimal `json:"amount"`
	Vendor            *string         `json:"vendor"`
	ExpenseDate       dates.Date      `json:"expense_date"`
	ReceiptDocumentID *uuid.UUID      `json:"receipt_document_id"`
	Notes             *string         `json:"notes"`
}

// UpdateRequest is the body of PUT /projects/{id}/expenses/{expense_id};
// nil fields are unchanged
type UpdateRequest struct {
	Description       *string          `json:"description"`
	Category          *string          `json:"category"`
	Amount            *decimal.Decimal `json:"amount"`
	Vendor            *string          `json:"vendor"`
	ExpenseDate       *dates.Date      `json:"expense_date"`
	ReceiptDocumentID *uuid.UUID       `json:"receipt_document_id"`
	Notes             *string          `json:"notes"`
}

// DecisionRequest is the body of the approve, reject and pay endpoints
type DecisionRequest struct {
	Notes string `json:"notes"`
}

func validateDescription(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 255 {
		return "", apperrors.Validation("description must be between 1 and 255 characters")
	}
	return s, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.Validation("amount must be greater than 0")
	}
	return nil
}

func validateCategory(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperrors.Validation("category is required")
	}
	return s, nil
}

// appendNote returns notes with "\n<label>: <text>" appended
func appendNote(notes *string, label, text string) *string {
	prefix := ""
	if notes != nil {
		prefix = *notes
	}
	out := prefix + "\n" + label + ": " + text
	return &out
}
