package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"doordashboard/internal/amqp"
	"doordashboard/internal/core"
	"doordashboard/internal/log"
	"doordashboard/internal/observability"
	"doordashboard/internal/storage"
)

// RepairChange is one fix applied to the stored document.
type RepairChange struct {
	Index    int    `json:"index"`
	Delivery int    `json:"delivery,omitempty"`
	Field    string `json:"field"`
	Action   string `json:"action"`
}

// RepairReport summarizes a repair run.
type RepairReport struct {
	Fixed      int            `json:"fixed"`
	Changes    []RepairChange `json:"changes"`
	BackupPath string         `json:"backup_path,omitempty"`
	DryRun     bool           `json:"dry_run"`
}

const (
	actionReversedDate = "reversed_date"
	actionCoerced      = "coerced_numeric"
	actionClassified   = "classified_merchant"
	actionRecounted    = "recounted_deliveries"
)

// RepairDocument rewrites the stored records in place so they need no
// defaulting at load time: reversed DD-MM-YYYY dates are flipped, numeric
// fields stored as strings become numbers, missing merchant types are
// classified and deliveries_count matches the delivery list. Sessions
// without a delivery list are not given one, since that would turn a
// bonus-only session into a delivery-bearing one.
func RepairDocument(doc *storage.Document) RepairReport {
	report := RepairReport{Changes: []RepairChange{}}
	fix := func(c RepairChange) {
		report.Changes = append(report.Changes, c)
		report.Fixed++
	}
	if doc.Sessions == nil {
		doc.Sessions = []core.RawSession{}
	}

	for i, rec := range doc.Sessions {
		if rec == nil {
			continue
		}
		if date, ok := rec[core.FieldDate].(string); ok {
			if fixed, changed := unreverseDate(date); changed {
				rec[core.FieldDate] = fixed
				fix(RepairChange{Index: i, Field: core.FieldDate, Action: actionReversedDate})
			}
		}

		for _, field := range []string{core.FieldDashMinutes, core.FieldActiveMinutes, core.FieldChallengeBonus, core.FieldEarnings} {
			if coerceField(rec, field) {
				fix(RepairChange{Index: i, Field: field, Action: actionCoerced})
			}
		}
		if v, ok := rec[core.FieldDeliveriesCount]; ok && !isNumber(v) {
			rec[core.FieldDeliveriesCount] = int(math.Round(core.NormalizeNumeric(v)))
			fix(RepairChange{Index: i, Field: core.FieldDeliveriesCount, Action: actionCoerced})
		}

		list, ok := rec[core.FieldDeliveries].([]any)
		if !ok {
			continue
		}
		for j, item := range list {
			d, ok := item.(map[string]any)
			if !ok {
				continue
			}
			for _, field := range []string{core.FieldDoordashPay, core.FieldTip, core.FieldTotal} {
				if coerceField(d, field) {
					fix(RepairChange{Index: i, Delivery: j, Field: field, Action: actionCoerced})
				}
			}
			if mt, _ := d[core.FieldMerchantType].(string); mt == "" {
				name, _ := d[core.FieldRestaurant].(string)
				d[core.FieldMerchantType] = string(core.Classify(name))
				fix(RepairChange{Index: i, Delivery: j, Field: core.FieldMerchantType, Action: actionClassified})
			}
		}
		if n, ok := storedCount(rec); !ok || n != len(list) {
			rec[core.FieldDeliveriesCount] = len(list)
			fix(RepairChange{Index: i, Field: core.FieldDeliveriesCount, Action: actionRecounted})
		}
	}
	return report
}

// unreverseDate turns "02-01-2024" into "2024-01-02". Anything that is not a
// DD-MM-YYYY calendar date is left alone.
func unreverseDate(date string) (string, bool) {
	parts := strings.Split(date, "-")
	if len(parts) != 3 || len(parts[0]) != 2 || len(parts[1]) != 2 || len(parts[2]) != 4 {
		return date, false
	}
	flipped := parts[2] + "-" + parts[1] + "-" + parts[0]
	if _, err := time.Parse(core.DateLayout, flipped); err != nil {
		return date, false
	}
	return flipped, true
}

func coerceField(m map[string]any, field string) bool {
	v, ok := m[field]
	if !ok || isNumber(v) {
		return false
	}
	m[field] = core.NormalizeNumeric(v)
	return true
}

func isNumber(v any) bool {
	switch v.(type) {
	case json.Number, float64, float32, int, int64, int32:
		return true
	}
	return false
}

func storedCount(rec core.RawSession) (int, bool) {
	v, ok := rec[core.FieldDeliveriesCount]
	if !ok || !isNumber(v) {
		return 0, false
	}
	f, err := core.ParseNumeric(v)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// RepairOptions controls a repair run.
type RepairOptions struct {
	Backup bool
	DryRun bool
}

// BackupStore is a Store that can snapshot its file before a rewrite.
type BackupStore interface {
	Store
	Backup(ctx context.Context) (string, error)
}

// RepairService applies RepairDocument to the session store.
type RepairService struct {
	store     BackupStore
	cache     Invalidator
	publisher EventPublisher
	logger    *log.Logger
}

func NewRepairService(store BackupStore, cache Invalidator, publisher EventPublisher, logger *log.Logger) *RepairService {
	if logger == nil {
		logger = log.Discard()
	}
	return &RepairService{
		store:     store,
		cache:     cache,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentSession),
	}
}

// Run repairs the store. With DryRun the report is computed and nothing is
// written; a run that finds nothing to fix leaves the file untouched.
func (r *RepairService) Run(ctx context.Context, opts RepairOptions) (RepairReport, error) {
	var report RepairReport
	if opts.Backup && !opts.DryRun {
		path, err := r.store.Backup(ctx)
		if err != nil {
			return RepairReport{}, fmt.Errorf("backup before repair: %w", err)
		}
		report.BackupPath = path
	}

	err := r.store.Update(ctx, func(doc *storage.Document) error {
		rep := RepairDocument(doc)
		rep.BackupPath = report.BackupPath
		rep.DryRun = opts.DryRun
		report = rep
		if opts.DryRun || rep.Fixed == 0 {
			return storage.ErrSkipWrite
		}
		return nil
	})
	if err != nil {
		observability.RecordWrite(log.OpRepair, errorOutcome(err))
		return RepairReport{}, fmt.Errorf("repair sessions: %w", err)
	}

	r.logger.InfoContext(ctx, "Repair complete",
		log.FieldOperation, log.OpRepair,
		"fixed", report.Fixed,
		"dry_run", opts.DryRun)
	if opts.DryRun || report.Fixed == 0 {
		return report, nil
	}

	if r.cache != nil {
		r.cache.Invalidate()
	}
	observability.RecordWrite(log.OpRepair, "ok")
	if r.publisher != nil {
		if err := r.publisher.PublishSessionChanged(ctx, amqp.NewSessionChangedMessage(amqp.OpRepaired, -1, "", "")); err != nil {
			r.logger.WarnContext(ctx, "Failed to publish repair event", log.FieldError, err)
		}
	}
	return report, nil
}
