package aggregate

import "doordashboard/internal/core"

// Views bundles every derived view, rounded for presentation.
type Views struct {
	Summary    Summary         `json:"summary"`
	Weekly     []Week          `json:"weekly"`
	Merchants  []Merchant      `json:"merchants"`
	TimeSeries Columns         `json:"timeseries"`
	Locations  []LocationCount `json:"locations"`
}

// Compute builds all views with their default orderings.
func Compute(sessions []core.Session) Views {
	weeks := Weekly(sessions)
	for i := range weeks {
		weeks[i] = weeks[i].Rounded()
	}
	merchants := ByMerchant(sessions, SortByEarnings)
	for i := range merchants {
		merchants[i] = merchants[i].Rounded()
	}
	return Views{
		Summary:    Summarize(sessions).Rounded(),
		Weekly:     weeks,
		Merchants:  merchants,
		TimeSeries: ToColumns(TimeSeries(sessions)),
		Locations:  Locations(sessions, ByDropoff),
	}
}
