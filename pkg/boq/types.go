// Package boq implements a project's bill of quantities: one header per
// project holding a tree of priced, weighted line items.
package boq

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/platinummonkey/buildpro/pkg/dates"
)

// Header is the bill of quantities of one project
type Header struct {
	ID             uuid.UUID   `json:"id"`
	OrganizationID uuid.UUID   `json:"organization_id"`
	ProjectID      uuid.UUID   `json:"project_id"`
	Title          string      `json:"title"`
	StartDate      *dates.Date `json:"start_date"`
	EndDate        *dates.Date `json:"end_date"`
	Currency       string      `json:"currency"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Item is one line of a bill of quantities
type Item struct {
	ID              uuid.UUID       `json:"id"`
	HeaderID        uuid.UUID       `json:"header_id"`
	OrganizationID  uuid.UUID       `json:"organization_id"`
	ProjectID       uuid.UUID       `json:"project_id"`
	ParentItemID    *uuid.UUID      `json:"parent_item_id"`
	ItemCode        *string         `json:"item_code"`
	Description     string          `json:"description"`
	Unit            *string         `json:"unit"`
	Quantity        decimal.Decimal `json:"quantity"`
	Rate            decimal.Decimal `json:"rate"`
	BudgetCost      decimal.Decimal `json:"budget_cost"`
	WeightOutOf10   int             `json:"weight_out_of_10"`
	PercentComplete int             `json:"percent_complete"`
	ActualCost      decimal.Decimal `json:"actual_cost"`
	Variance        decimal.Decimal `json:"variance"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Children        []*Item         `json:"children"`
}

// Summary rolls up the items of a header
type Summary struct {
	HeaderID           uuid.UUID       `json:"header_id"`
	ProjectID          uuid.UUID       `json:"project_id"`
	TotalItems         int             `json:"total_items"`
	TotalBudgetCost    decimal.Decimal `json:"total_budget_cost"`
	TotalActualCost    decimal.Decimal `json:"total_actual_cost"`
	TotalVariance      decimal.Decimal `json:"total_variance"`
	WeightedCompletion float64         `json:"weighted_completion"`
}

// BOQ is the body of GET /projects/{id}/boq
type BOQ struct {
	*Header
	Items   []*Item `json:"items"`
	Summary Summary `json:"summary"`
}

// HeaderRequest is the body of PUT /projects/{id}/boq; nil fields are
// unchanged
type HeaderRequest struct {
	Title     *string     `json:"title"`
	StartDate *dates.Date `json:"start_date"`
	EndDate   *dates.Date `json:"end_date"`
	Currency  *string     `json:"currency"`
}

// ItemRequest is the body of POST /boq/items and PUT or PATCH
// /boq/items/{item_id}. On update nil fields are unchanged; on create they
// take their defaults.
type ItemRequest struct {
	ParentItemID    *uuid.UUID       `json:"parent_item_id"`
	ItemCode        *string          `json:"item_code"`
	Description     *string          `json:"description"`
	Unit            *string          `json:"unit"`
	Quantity        *decimal.Decimal `json:"quantity"`
	Rate            *decimal.Decimal `json:"rate"`
	WeightOutOf10   *int             `json:"weight_out_of_10"`
	PercentComplete *int             `json:"percent_complete"`
	ActualCost      *decimal.Decimal `json:"actual_cost"`
}
