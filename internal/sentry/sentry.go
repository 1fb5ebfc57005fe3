// Package sentry defines the interface the self-monitoring layer exposes to
// the core: consult it before risky operations, report faults to it. The
// diagnostic layer itself lives outside this service.
package sentry

import (
	"context"
	"log/slog"
)

type Advisor interface {
	// Consult reports whether the named operation should proceed.
	Consult(ctx context.Context, operation string) bool
	// ReportFault records a component failure for the diagnostic layer.
	ReportFault(ctx context.Context, component string, err error)
}

// AllowAll is the default Advisor: every operation proceeds, faults are
// only logged.
type AllowAll struct {
	Log *slog.Logger
}

func (a AllowAll) Consult(ctx context.Context, operation string) bool { return true }

func (a AllowAll) ReportFault(ctx context.Context, component string, err error) {
	if a.Log != nil {
		a.Log.Error("component fault", "component", component, "error", err)
	}
}
