// Package messages carries organization-wide and project conversation
// threads, optionally pinned to a task.
package messages

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/pagination"
)

// Type classifies a message
type Type string

const (
	TypeText         Type = "text"
	TypeAnnouncement Type = "announcement"
	TypeSystem       Type = "system"
)

// ParseType accepts any casing; empty means text
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case "", TypeText:
		return TypeText, nil
	case TypeAnnouncement:
		return TypeAnnouncement, nil
	case TypeSystem:
		return TypeSystem, nil
	}
	return "", apperrors.BadRequest(fmt.Sprintf("invalid message_type %q", s))
}

// previewLength bounds the message excerpt placed in notifications
const previewLength = 140

// Message is a post visible to an organization or one of its projects
type Message struct {
	ID             uuid.UUID   `json:"id"`
	OrganizationID uuid.UUID   `json:"organization_id"`
	ProjectID      *uuid.UUID  `json:"project_id"`
	TaskID         *uuid.UUID  `json:"task_id"`
	SenderID       *uuid.UUID  `json:"sender_id"`
	SenderName     *string     `json:"sender_name"`
	Content        string      `json:"content"`
	MessageType    Type        `json:"message_type"`
	IsRead         bool        `json:"is_read"`
	Attachments    []uuid.UUID `json:"attachments"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// ListFilter narrows GET /messages
type ListFilter struct {
	ProjectID   *uuid.UUID
	TaskID      *uuid.UUID
	MessageType *Type
	UnreadOnly  bool
	Page        pagination.Params
}

// CreateRequest is the body of POST /messages
type CreateRequest struct {
	ProjectID   *uuid.UUID  `json:"project_id"`
	TaskID      *uuid.UUID  `json:"task_id"`
	Content     string      `json:"content"`
	MessageType string      `json:"message_type"`
	Attachments []uuid.UUID `json:"attachments"`
}

// preview cuts s to at most n runes
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
