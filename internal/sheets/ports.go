package sheets

import (
	"context"

	"doordashboard/internal/aggregate"
)

// Ports for outbound adapters.
type (
	// WeeklyExporter replaces the exported weekly rollup with weeks.
	WeeklyExporter interface {
		ExportWeekly(ctx context.Context, weeks []aggregate.Week) (rangeRef string, err error)
	}

	// WeeklyReader reads back what was last exported.
	WeeklyReader interface {
		ReadWeekly(ctx context.Context) ([]aggregate.Week, error)
	}
)

// WeeklyHeader is the column layout of an exported weekly rollup.
var WeeklyHeader = []string{
	"Week",
	"Year",
	"Start",
	"End",
	"Earnings",
	"Deliveries",
	"Dash Minutes",
	"Active Minutes",
	"Challenge Bonus",
	"Per Delivery",
}
