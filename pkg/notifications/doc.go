// Package notifications stores per-user, per-organization notifications.
//
// Other services create notifications through a Notifier inside their own
// transaction, so a notification exists only if the change that caused it
// committed. Listing also materializes "milestone due soon" reminders for
// the caller's accessible projects.
package notifications
