package services

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"doordashboard/internal/aggregate"
	"doordashboard/internal/cache"
	"doordashboard/internal/core"
	"doordashboard/internal/log"
)

const (
	DefaultListLimit = 1000
	memoSize         = 64
	sampleDeliveries = 2
)

// SnapshotSource hands out the current normalized snapshot.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*cache.Snapshot, error)
}

// SessionFilter narrows List. Zero values match everything.
type SessionFilter struct {
	StartDate    string
	EndDate      string
	Merchant     string
	MerchantType string
	Limit        int
	Offset       int
}

// SessionPage is one page of filtered sessions.
type SessionPage struct {
	Sessions []core.Session `json:"sessions"`
	Total    int            `json:"total"`
	Limit    int            `json:"limit"`
	Offset   int            `json:"offset"`
}

// DebugInfo describes the loaded store for troubleshooting.
type DebugInfo struct {
	TotalSessions          int            `json:"total_sessions"`
	SessionsWithDeliveries int            `json:"sessions_with_deliveries"`
	BonusSessions          int            `json:"bonus_sessions"`
	DataFile               string         `json:"data_file"`
	SnapshotVersion        uint64         `json:"snapshot_version"`
	LoadError              string         `json:"load_error,omitempty"`
	SampleSession          map[string]any `json:"sample_session"`
}

// SessionBreakdown is the per-session line of DebugSummary.
type SessionBreakdown struct {
	Index            int     `json:"index"`
	Date             string  `json:"date"`
	Kind             string  `json:"kind"`
	DeliveriesCount  int     `json:"deliveries_count"`
	DeliveryEarnings float64 `json:"delivery_earnings"`
	ChallengeBonus   float64 `json:"challenge_bonus"`
	Earnings         float64 `json:"earnings"`
}

// DashboardService is the read API over the current snapshot. Derived views
// are memoized per snapshot version for at most memoTTL.
type DashboardService struct {
	source   SnapshotSource
	dataFile string
	logger   *log.Logger

	memo        *cache.LRUCache[any]
	memoVersion atomic.Uint64
}

func NewDashboardService(source SnapshotSource, dataFile string, memoTTL time.Duration, logger *log.Logger) *DashboardService {
	if logger == nil {
		logger = log.Discard()
	}
	return &DashboardService{
		source:   source,
		dataFile: dataFile,
		logger:   logger.WithComponent(log.ComponentDashboard),
		memo:     cache.NewLRUCache[any](memoSize, memoTTL),
	}
}

// Memo exposes the view cache so it can be registered for cleanup.
func (d *DashboardService) Memo() *cache.LRUCache[any] {
	return d.memo
}

func (d *DashboardService) Summary(ctx context.Context) (aggregate.Summary, error) {
	return view(ctx, d, "summary", func(s []core.Session) aggregate.Summary {
		return aggregate.Summarize(s).Rounded()
	})
}

func (d *DashboardService) Weekly(ctx context.Context) ([]aggregate.Week, error) {
	return view(ctx, d, "weekly", func(s []core.Session) []aggregate.Week {
		weeks := aggregate.Weekly(s)
		for i := range weeks {
			weeks[i] = weeks[i].Rounded()
		}
		return weeks
	})
}

func (d *DashboardService) ByMerchant(ctx context.Context, order aggregate.MerchantSort) ([]aggregate.Merchant, error) {
	return view(ctx, d, "merchants:"+string(order), func(s []core.Session) []aggregate.Merchant {
		merchants := aggregate.ByMerchant(s, order)
		for i := range merchants {
			merchants[i] = merchants[i].Rounded()
		}
		return merchants
	})
}

func (d *DashboardService) TimeSeries(ctx context.Context) (aggregate.Columns, error) {
	return view(ctx, d, "timeseries", func(s []core.Session) aggregate.Columns {
		return aggregate.ToColumns(aggregate.TimeSeries(s))
	})
}

func (d *DashboardService) Locations(ctx context.Context, key aggregate.LocationKey) ([]aggregate.LocationCount, error) {
	return view(ctx, d, "locations:"+string(key), func(s []core.Session) []aggregate.LocationCount {
		return aggregate.Locations(s, key)
	})
}

// Views computes every view at once; the precompute worker and exports use it.
func (d *DashboardService) Views(ctx context.Context) (aggregate.Views, uint64, error) {
	snap, err := d.source.Snapshot(ctx)
	if err != nil {
		return aggregate.Views{}, 0, err
	}
	return viewAt(ctx, d, snap, "all", aggregate.Compute), snap.Version, nil
}

// List filters sessions by date range and merchant, then pages the result.
// Dates compare as YYYY-MM-DD strings, inclusive at both ends.
func (d *DashboardService) List(ctx context.Context, f SessionFilter) (SessionPage, error) {
	snap, err := d.source.Snapshot(ctx)
	if err != nil {
		return SessionPage{}, err
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	matched := make([]core.Session, 0, len(snap.Sessions))
	for _, s := range snap.Sessions {
		if f.matches(s) {
			matched = append(matched, s)
		}
	}

	page := SessionPage{Total: len(matched), Limit: f.Limit, Offset: f.Offset}
	start := min(f.Offset, len(matched))
	end := min(start+f.Limit, len(matched))
	page.Sessions = matched[start:end]
	return page, nil
}

func (f SessionFilter) matches(s core.Session) bool {
	if f.StartDate != "" && s.Date < f.StartDate {
		return false
	}
	if f.EndDate != "" && s.Date > f.EndDate {
		return false
	}
	if f.Merchant == "" && f.MerchantType == "" {
		return true
	}
	if s.IsBonusOnly() {
		return false
	}
	for _, dl := range s.Deliveries {
		if f.Merchant != "" && !strings.EqualFold(strings.TrimSpace(dl.Restaurant), strings.TrimSpace(f.Merchant)) {
			continue
		}
		if f.MerchantType != "" && !strings.EqualFold(string(dl.MerchantType), f.MerchantType) {
			continue
		}
		return true
	}
	return false
}

// Debug reports store shape and a sample session with at most two deliveries.
func (d *DashboardService) Debug(ctx context.Context) (DebugInfo, error) {
	snap, err := d.source.Snapshot(ctx)
	if err != nil {
		return DebugInfo{}, err
	}
	info := DebugInfo{
		TotalSessions:   len(snap.Sessions),
		DataFile:        d.dataFile,
		SnapshotVersion: snap.Version,
		SampleSession:   map[string]any{},
	}
	if snap.LoadErr != nil {
		info.LoadError = snap.LoadErr.Error()
	}
	for _, s := range snap.Sessions {
		switch {
		case s.HasBonus:
			info.BonusSessions++
		case len(s.Deliveries) > 0:
			info.SessionsWithDeliveries++
		}
	}
	if len(snap.Sessions) > 0 {
		info.SampleSession = sample(snap.Sessions[0])
	}
	return info, nil
}

// DebugSummary breaks total earnings down per session.
func (d *DashboardService) DebugSummary(ctx context.Context) ([]SessionBreakdown, error) {
	snap, err := d.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SessionBreakdown, 0, len(snap.Sessions))
	for _, s := range snap.Sessions {
		b := SessionBreakdown{
			Index:           s.Index,
			Date:            s.Date,
			Kind:            s.Kind.String(),
			DeliveriesCount: s.CountedDeliveries(),
			ChallengeBonus:  s.ChallengeBonus,
			Earnings:        aggregate.Round2(s.Earnings),
		}
		if !s.IsBonusOnly() {
			for _, dl := range s.Deliveries {
				b.DeliveryEarnings += dl.Total
			}
			b.DeliveryEarnings = aggregate.Round2(b.DeliveryEarnings)
		}
		out = append(out, b)
	}
	return out, nil
}

func sample(s core.Session) map[string]any {
	out := map[string]any{
		"index":                   s.Index,
		core.FieldDate:            s.Date,
		core.FieldDeliveriesCount: s.DeliveriesCount,
		core.FieldEarnings:        s.Earnings,
	}
	if s.ID != "" {
		out[core.FieldID] = s.ID
	}
	if s.IsBonusOnly() {
		out[core.FieldChallengeBonus] = s.ChallengeBonus
		return out
	}
	deliveries := make([]any, 0, sampleDeliveries+1)
	for i, dl := range s.Deliveries {
		if i == sampleDeliveries {
			deliveries = append(deliveries, map[string]any{"note": "... (truncated)"})
			break
		}
		deliveries = append(deliveries, dl)
	}
	out[core.FieldDeliveries] = deliveries
	return out
}

// view returns the memoized result of compute for the current snapshot.
func view[T any](ctx context.Context, d *DashboardService, name string, compute func([]core.Session) T) (T, error) {
	snap, err := d.source.Snapshot(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return viewAt(ctx, d, snap, name, compute), nil
}

func viewAt[T any](ctx context.Context, d *DashboardService, snap *cache.Snapshot, name string, compute func([]core.Session) T) T {
	d.prune(snap.Version)
	key := fmt.Sprintf("%d:%s", snap.Version, name)
	if v, ok := d.memo.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed
		}
	}

	result := compute(snap.Sessions)
	d.memo.Set(key, result)
	d.logger.DebugContext(ctx, "View computed",
		log.FieldOperation, log.OpAggregate,
		"view", name,
		log.FieldVersion, snap.Version)
	return result
}

// prune drops memo entries of older snapshot versions once a newer one is seen.
func (d *DashboardService) prune(version uint64) {
	for {
		seen := d.memoVersion.Load()
		if version <= seen {
			return
		}
		if d.memoVersion.CompareAndSwap(seen, version) {
			break
		}
	}
	prefix := fmt.Sprintf("%d:", version)
	d.memo.DeleteIf(func(key string) bool {
		return !strings.HasPrefix(key, prefix)
	})
}
