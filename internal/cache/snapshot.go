package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"doordashboard/internal/core"
	"doordashboard/internal/log"
	"doordashboard/internal/normalize"
	"doordashboard/internal/storage"
)

// ErrReloadTimeout is returned when a reload does not finish in time. It is
// transient; the previous snapshot stays in place.
var ErrReloadTimeout = errors.New("snapshot reload timed out")

// Source is the backing store as seen by the controller.
type Source interface {
	Marker() (storage.Marker, error)
	Load(ctx context.Context) (storage.Document, storage.Marker, error)
}

// Snapshot is an immutable, normalized view of the whole store. Callers must
// not modify Sessions.
type Snapshot struct {
	Sessions   []core.Session
	Marker     storage.Marker
	Version    uint64
	Generation uint64
	LoadedAt   time.Time
	// LoadErr is set when the store could not be read and Sessions is empty.
	LoadErr error
}

// ReloadObserver is told about every completed reload attempt.
type ReloadObserver func(snap *Snapshot, took time.Duration, err error)

type Options struct {
	ReloadTimeout time.Duration
	Logger        *log.Logger
	Observer      ReloadObserver
}

// Controller hands out the current snapshot and reloads it lazily when the
// backing file changes or after Invalidate. Readers never block each other;
// concurrent reloads collapse into one.
type Controller struct {
	source     Source
	normalizer *normalize.Normalizer
	timeout    time.Duration
	logger     *log.Logger
	observer   ReloadObserver

	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
	version    atomic.Uint64
	group      singleflight.Group
}

func NewController(source Source, normalizer *normalize.Normalizer, opts Options) *Controller {
	if opts.ReloadTimeout <= 0 {
		opts.ReloadTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if normalizer == nil {
		normalizer = normalize.New(nil)
	}
	return &Controller{
		source:     source,
		normalizer: normalizer,
		timeout:    opts.ReloadTimeout,
		logger:     opts.Logger.WithComponent(log.ComponentCache),
		observer:   opts.Observer,
	}
}

// Snapshot returns the current snapshot, reloading first if it is stale.
func (c *Controller) Snapshot(ctx context.Context) (*Snapshot, error) {
	if cur := c.current.Load(); cur != nil && c.fresh(cur) {
		return cur, nil
	}
	return c.reload(ctx)
}

// Invalidate marks the current snapshot stale; the next read reloads.
func (c *Controller) Invalidate() {
	c.generation.Add(1)
}

func (c *Controller) fresh(s *Snapshot) bool {
	if s.Generation != c.generation.Load() {
		return false
	}
	m, err := c.source.Marker()
	if err != nil {
		return false
	}
	return m.Equal(s.Marker)
}

func (c *Controller) reload(ctx context.Context) (*Snapshot, error) {
	ch := c.group.DoChan("reload", func() (any, error) {
		// Detached so one caller giving up does not fail the others.
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		if cur := c.current.Load(); cur != nil && c.fresh(cur) {
			return cur, nil
		}
		return c.load(lctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrReloadTimeout, ctx.Err())
	}
}

func (c *Controller) load(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	gen := c.generation.Load()

	doc, marker, err := c.source.Load(ctx)
	if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("%w: %v", ErrReloadTimeout, err)
		c.observe(nil, time.Since(start), err)
		c.logger.WarnContext(ctx, "Snapshot reload timed out", log.FieldError, err)
		return nil, err
	}

	snap := &Snapshot{Marker: marker, Generation: gen, LoadedAt: time.Now()}
	if err != nil {
		snap.Sessions = []core.Session{}
		snap.LoadErr = err
		c.logger.WarnContext(ctx, "Session store unavailable, serving empty snapshot",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeStoreUnavailable)
	} else {
		snap.Sessions = c.normalizer.Normalize(doc.Sessions)
	}
	snap.Version = c.version.Add(1)
	c.current.Store(snap)

	c.observe(snap, time.Since(start), snap.LoadErr)
	c.logger.DebugContext(ctx, "Snapshot reloaded",
		log.FieldVersion, snap.Version,
		log.FieldSessionCount, len(snap.Sessions))
	return snap, nil
}

func (c *Controller) observe(snap *Snapshot, took time.Duration, err error) {
	if c.observer != nil {
		c.observer(snap, took, err)
	}
}
