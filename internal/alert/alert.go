// Package alert delivers critical-failure notifications to the configured
// operator and persists an alert record for each.
package alert

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/wa-concierge/internal/models"
	"github.com/example/wa-concierge/internal/storage"
	"github.com/example/wa-concierge/internal/wa"
)

type Notifier struct {
	Sender   wa.Sender
	Store    storage.AlertStore
	Operator string // configured operator identity; empty disables sends
	Log      *slog.Logger
}

// IsOperator is the hard identity check guarding every operator-only
// surface. An empty configured operator matches nobody.
func (n *Notifier) IsOperator(sender string) bool {
	return n.Operator != "" && sender == n.Operator
}

// Critical persists an alert record and notifies the operator. Either half
// failing is logged, not propagated: alerting must never take down the
// path that raised the alert.
func (n *Notifier) Critical(ctx context.Context, code, message string) {
	rec := &models.Alert{
		ID:        uuid.NewString(),
		Code:      code,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := n.Store.SaveAlert(ctx, rec); err != nil {
		n.Log.Error("failed to persist alert", "code", code, "error", err)
	}
	if n.Operator == "" {
		return
	}
	if _, err := n.Sender.SendText(ctx, n.Operator, "[ALERT "+code+"] "+message); err != nil {
		n.Log.Error("failed to notify operator", "code", code, "error", err)
	}
}
