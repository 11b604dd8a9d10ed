package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"doordashboard/internal/aggregate"
	"doordashboard/internal/amqp"
	"doordashboard/internal/log"
	"doordashboard/internal/observability"
	"doordashboard/internal/sheets"
	"doordashboard/internal/storage"
)

// Precompute triggers.
const (
	TriggerStartup = "startup"
	TriggerTick    = "tick"
	TriggerEvent   = "event"
	TriggerManual  = "manual"
)

// ViewSource computes every derived view over the current snapshot.
type ViewSource interface {
	Views(ctx context.Context) (aggregate.Views, uint64, error)
}

// Invalidator forces the next snapshot read to reload.
type Invalidator interface {
	Invalidate()
}

// CacheFile is the precomputed aggregation document.
type CacheFile struct {
	Timestamp    time.Time       `json:"timestamp"`
	Version      uint64          `json:"version"`
	Aggregations aggregate.Views `json:"aggregations"`
}

// Precomputer recomputes all views and persists them to the cache file,
// exporting the weekly rollup alongside when an exporter is configured.
type Precomputer struct {
	views     ViewSource
	snapshots Invalidator
	cacheFile string
	exporter  sheets.WeeklyExporter
	logger    *log.Logger
	now       func() time.Time

	mu sync.Mutex
}

func NewPrecomputer(views ViewSource, snapshots Invalidator, cacheFile string, exporter sheets.WeeklyExporter, logger *log.Logger) *Precomputer {
	if logger == nil {
		logger = log.Discard()
	}
	return &Precomputer{
		views:     views,
		snapshots: snapshots,
		cacheFile: cacheFile,
		exporter:  exporter,
		logger:    logger.WithComponent(log.ComponentWorker),
		now:       time.Now,
	}
}

// Run performs one precompute pass. Runs are serialized.
func (p *Precomputer) Run(ctx context.Context, trigger string) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() { observability.RecordPrecompute(trigger, err) }()

	start := p.now()
	views, version, err := p.views.Views(ctx)
	if err != nil {
		return fmt.Errorf("compute views: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return WriteCacheFile(p.cacheFile, CacheFile{
			Timestamp:    start.UTC(),
			Version:      version,
			Aggregations: views,
		})
	})
	if p.exporter != nil {
		g.Go(func() error {
			if _, err := p.exporter.ExportWeekly(gctx, views.Weekly); err != nil {
				return fmt.Errorf("export weekly: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.ErrorContext(ctx, "Precompute failed",
			log.FieldOperation, log.OpPrecompute,
			"trigger", trigger,
			log.FieldError, err)
		return err
	}

	p.logger.InfoContext(ctx, "Precompute complete",
		log.FieldOperation, log.OpPrecompute,
		"trigger", trigger,
		log.FieldVersion, version,
		log.FieldSessionCount, views.Summary.SessionCount,
		"took", p.now().Sub(start).String())
	return nil
}

// HandleSessionChanged reloads the snapshot and recomputes after a mutation
// made by another process.
func (p *Precomputer) HandleSessionChanged(ctx context.Context, msg *amqp.SessionChangedMessage) error {
	p.logger.DebugContext(ctx, "Processing session event",
		log.FieldOperation, msg.Op,
		log.FieldSessionIndex, msg.Index,
		log.FieldSessionID, msg.ID)
	if p.snapshots != nil {
		p.snapshots.Invalidate()
	}
	return p.Run(ctx, TriggerEvent)
}

// WriteCacheFile atomically replaces path with the encoded cache document.
func WriteCacheFile(path string, cf CacheFile) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cf); err != nil {
		return fmt.Errorf("encode cache file: %w", err)
	}
	if err := storage.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	return nil
}

// ReadCacheFile loads a cache document written by WriteCacheFile.
func ReadCacheFile(path string) (CacheFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CacheFile{}, fmt.Errorf("read cache file: %w", err)
	}
	var cf CacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return CacheFile{}, fmt.Errorf("decode cache file: %w", err)
	}
	return cf, nil
}
