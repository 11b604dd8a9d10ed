package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doordashboard/internal/aggregate"
	"doordashboard/internal/amqp"
	"doordashboard/internal/sheets/memory"
)

type fakeViews struct {
	calls   atomic.Int32
	version uint64
	err     error
}

func (f *fakeViews) Views(context.Context) (aggregate.Views, uint64, error) {
	f.calls.Add(1)
	if f.err != nil {
		return aggregate.Views{}, 0, f.err
	}
	return aggregate.Views{
		Summary: aggregate.Summary{TotalEarnings: 16.5, TotalDeliveries: 1, SessionCount: 2},
		Weekly:  []aggregate.Week{{WeekNumber: 1, Year: 2024, StartDate: "2024-01-01", EndDate: "2024-01-07", Earnings: 16.5}},
	}, f.version, nil
}

type countingInvalidator struct{ n atomic.Int32 }

func (c *countingInvalidator) Invalidate() { c.n.Add(1) }

type failingExporter struct{}

func (failingExporter) ExportWeekly(context.Context, []aggregate.Week) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestPrecomputer_RunWritesCacheAndExports(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "cache.json")
	exporter := memory.New()
	p := NewPrecomputer(&fakeViews{version: 7}, nil, path, exporter, nil)
	fixed := time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	require.NoError(t, p.Run(context.Background(), TriggerManual))

	cf, err := ReadCacheFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), cf.Version)
	assert.True(t, cf.Timestamp.Equal(fixed))
	assert.Equal(t, 16.5, cf.Aggregations.Summary.TotalEarnings)

	weeks, err := exporter.ReadWeekly(context.Background())
	require.NoError(t, err)
	require.Len(t, weeks, 1)
	assert.Equal(t, "2024-01-01", weeks[0].StartDate)
}

func TestPrecomputer_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	p := NewPrecomputer(&fakeViews{err: errors.New("boom")}, nil, path, nil, nil)
	assert.Error(t, p.Run(context.Background(), TriggerTick))

	p = NewPrecomputer(&fakeViews{}, nil, path, failingExporter{}, nil)
	err := p.Run(context.Background(), TriggerTick)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestPrecomputer_HandleSessionChangedInvalidates(t *testing.T) {
	views := &fakeViews{}
	inv := &countingInvalidator{}
	p := NewPrecomputer(views, inv, filepath.Join(t.TempDir(), "cache.json"), nil, nil)

	msg := amqp.NewSessionChangedMessage(amqp.OpAppended, 3, "abc", "2024-01-02")
	require.NoError(t, p.HandleSessionChanged(context.Background(), msg))
	assert.Equal(t, int32(1), inv.n.Load())
	assert.Equal(t, int32(1), views.calls.Load())
}

type fakeConsumer struct {
	delivered chan struct{}
}

func (f *fakeConsumer) ConsumeSessionChanged(ctx context.Context, handler func(context.Context, *amqp.SessionChangedMessage) error) error {
	if err := handler(ctx, amqp.NewSessionChangedMessage(amqp.OpDeleted, 0, "", "")); err != nil {
		return err
	}
	close(f.delivered)
	<-ctx.Done()
	return ctx.Err()
}

func TestRunner_StartStop(t *testing.T) {
	views := &fakeViews{}
	consumer := &fakeConsumer{delivered: make(chan struct{})}
	p := NewPrecomputer(views, nil, filepath.Join(t.TempDir(), "cache.json"), nil, nil)
	r := NewRunner(p, consumer, RunnerConfig{Interval: time.Hour}, nil)

	ctx := context.Background()
	require.NoError(t, r.Start(ctx))
	assert.True(t, r.IsRunning())
	assert.Error(t, r.Start(ctx))

	select {
	case <-consumer.delivered:
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, r.Stop(stopCtx))
	assert.False(t, r.IsRunning())
	// startup run plus the event
	assert.Equal(t, int32(2), views.calls.Load())
}
