// Package notify delivers report completion notices to messaging channels.
package notify

import (
	"context"

	"github.com/krxlab/stock-insight/internal/models"
)

// Notifier announces a finished report. reportURL may be empty when the
// report is not reachable over HTTP.
type Notifier interface {
	Enabled() bool
	NotifyReport(ctx context.Context, report *models.StockReport, reportURL string) error
}

// Noop discards notifications; used when no channel is configured
type Noop struct{}

func (Noop) Enabled() bool { return false }

func (Noop) NotifyReport(context.Context, *models.StockReport, string) error { return nil }
