package notifications

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/buildpro/pkg/dates"
	"github.com/platinummonkey/buildpro/pkg/storage/postgres"
)

// DueSoonWindow is how many days ahead a milestone counts as due soon
const DueSoonWindow = 7

type dueMilestone struct {
	id         uuid.UUID
	projectID  uuid.UUID
	name       string
	targetDate dates.Date
}

func dueLabel(days int) string {
	switch days {
	case 0:
		return "today"
	case 1:
		return "in 1 day"
	default:
		return fmt.Sprintf("in %d days", days)
	}
}

// GenerateDueSoon creates one milestone_due_soon notification per
// (milestone, user) for non-completed milestones of projectIDs whose target
// date falls within the next DueSoonWindow days. It returns the number of
// notifications created; reminders another request already wrote are not
// counted.
func (s *Service) GenerateDueSoon(ctx context.Context, orgID, userID uuid.UUID, projectIDs []uuid.UUID) (int, error) {
	if len(projectIDs) == 0 {
		return 0, nil
	}
	today := dates.New(s.now())
	horizon := today.AddDays(DueSoonWindow)

	var (
		due      []dueMilestone
		notified = map[string]bool{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.db.QueryContext(gctx, `
			SELECT id, project_id, name, target_date
			FROM milestones
			WHERE organization_id = $1 AND project_id = ANY($2) AND is_deleted = false
			  AND status <> 'Completed' AND target_date >= $3 AND target_date <= $4
			ORDER BY target_date`, orgID, pq.Array(projectIDs), today, horizon)
		if err != nil {
			return fmt.Errorf("failed to list due milestones: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var m dueMilestone
			if err := rows.Scan(&m.id, &m.projectID, &m.name, &m.targetDate); err != nil {
				return fmt.Errorf("failed to scan milestone: %w", err)
			}
			due = append(due, m)
		}
		return rows.Err()
	})
	g.Go(func() error {
		rows, err := s.db.QueryContext(gctx, `
			SELECT data->>'milestone_id'
			FROM notifications
			WHERE organization_id = $1 AND user_id = $2 AND notification_type = 'milestone_due_soon'
			  AND data ? 'milestone_id'`, orgID, userID)
		if err != nil {
			return fmt.Errorf("failed to list milestone reminders: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("failed to scan milestone reminder: %w", err)
			}
			notified[id] = true
		}
		return rows.Err()
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var drafts []Draft
	for _, m := range due {
		if notified[m.id.String()] {
			continue
		}
		projectID := m.projectID
		drafts = append(drafts, Draft{
			OrganizationID: orgID,
			UserID:         userID,
			ProjectID:      &projectID,
			Type:           TypeMilestoneDueSoon,
			Title:          "Milestone due soon",
			Body:           fmt.Sprintf("%s is due %s.", m.name, dueLabel(today.DaysUntil(m.targetDate))),
			Data: map[string]interface{}{
				"milestone_id": m.id.String(),
				"target_date":  m.targetDate.String(),
			},
		})
	}
	if len(drafts) == 0 {
		return 0, nil
	}

	// a concurrent request may have written some of these since the lookup;
	// uq_notifications_milestone_due_soon drops the duplicates
	created := 0
	err := postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, d := range drafts {
			ok, err := s.notifier.NotifyOnce(ctx, tx, d)
			if err != nil {
				return err
			}
			if ok {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
