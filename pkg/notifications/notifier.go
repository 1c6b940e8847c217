package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/buildpro/pkg/observability"
	"github.com/platinummonkey/buildpro/pkg/storage/postgres"
)

// Notifier writes notifications on the caller's connection or transaction
type Notifier struct {
	metrics *observability.Metrics
}

// NewNotifier creates a notifier
func NewNotifier(metrics *observability.Metrics) *Notifier {
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &Notifier{metrics: metrics}
}

// Notify inserts one notification
func (n *Notifier) Notify(ctx context.Context, q postgres.Querier, d Draft) error {
	_, err := n.insert(ctx, q, d, "")
	return err
}

// NotifyOnce inserts d unless a unique index already holds an equivalent
// notification, and reports whether a row was written
func (n *Notifier) NotifyOnce(ctx context.Context, q postgres.Querier, d Draft) (bool, error) {
	return n.insert(ctx, q, d, " ON CONFLICT DO NOTHING")
}

func (n *Notifier) insert(ctx context.Context, q postgres.Querier, d Draft, conflict string) (bool, error) {
	data := d.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return false, fmt.Errorf("failed to encode notification data: %w", err)
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO notifications (organization_id, user_id, project_id, notification_type, title, body, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`+conflict,
		d.OrganizationID, d.UserID, d.ProjectID, string(d.Type), d.Title, d.Body, string(payload))
	if err != nil {
		return false, fmt.Errorf("failed to create notification: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return false, nil
	}
	n.metrics.NotificationsCreated.WithLabelValues(string(d.Type)).Inc()
	return true, nil
}

// NotifyAll inserts every draft, stopping at the first failure
func (n *Notifier) NotifyAll(ctx context.Context, q postgres.Querier, drafts []Draft) error {
	for _, d := range drafts {
		if err := n.Notify(ctx, q, d); err != nil {
			return err
		}
	}
	return nil
}
