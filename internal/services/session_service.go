package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"doordashboard/internal/amqp"
	"doordashboard/internal/core"
	"doordashboard/internal/log"
	"doordashboard/internal/observability"
	"doordashboard/internal/storage"
)

// Store is the serialized read-modify-write the session service writes through.
type Store interface {
	Update(ctx context.Context, fn func(doc *storage.Document) error) error
}

// Invalidator forces the next snapshot read to reload.
type Invalidator interface {
	Invalidate()
}

// EventPublisher announces store mutations to other processes.
type EventPublisher interface {
	PublishSessionChanged(ctx context.Context, msg *amqp.SessionChangedMessage) error
}

// Appended identifies a freshly written session.
type Appended struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
}

// SessionService owns every mutation of the session store. Each mutation is
// written through under the store lock, then the snapshot is invalidated and
// an event is published. A failed publish never fails the mutation.
type SessionService struct {
	store     Store
	cache     Invalidator
	publisher EventPublisher
	logger    *log.Logger
	events    *log.StructuredLogger
	newID     func() string
}

func NewSessionService(store Store, cache Invalidator, publisher EventPublisher, logger *log.Logger) *SessionService {
	if logger == nil {
		logger = log.Discard()
	}
	return &SessionService{
		store:     store,
		cache:     cache,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentSession),
		events:    log.NewStructuredLogger(logger),
		newID:     uuid.NewString,
	}
}

// Append validates raw and adds it at the end of the store. The caller's map
// is never modified; a copy stamped with an id is what gets written.
func (s *SessionService) Append(ctx context.Context, raw core.RawSession) (Appended, error) {
	if err := core.ValidateRecord(raw); err != nil {
		observability.RecordWrite(log.OpAppend, log.ErrorTypeMalformedRecord)
		return Appended{}, err
	}

	rec := raw.Clone()
	if rec.ID() == "" {
		rec[core.FieldID] = s.newID()
	}

	var index int
	err := s.store.Update(ctx, func(doc *storage.Document) error {
		doc.Sessions = append(doc.Sessions, rec)
		index = len(doc.Sessions) - 1
		return nil
	})
	if err != nil {
		observability.RecordWrite(log.OpAppend, errorOutcome(err))
		return Appended{}, fmt.Errorf("append session: %w", err)
	}

	out := Appended{Index: index, ID: rec.ID()}
	date, _ := rec[core.FieldDate].(string)
	s.committed(ctx, amqp.OpAppended, log.OpAppend, out.Index, out.ID, date)
	return out, nil
}

// Delete removes the session at index. Later sessions shift down by one.
func (s *SessionService) Delete(ctx context.Context, index int) error {
	var removed core.RawSession
	err := s.store.Update(ctx, func(doc *storage.Document) error {
		if index < 0 || index >= len(doc.Sessions) {
			return fmt.Errorf("%w: session index %d (have %d)", core.ErrNotFound, index, len(doc.Sessions))
		}
		removed = doc.Remove(index)
		return nil
	})
	if err != nil {
		observability.RecordWrite(log.OpDelete, errorOutcome(err))
		return fmt.Errorf("delete session: %w", err)
	}

	date, _ := removed[core.FieldDate].(string)
	s.committed(ctx, amqp.OpDeleted, log.OpDelete, index, removed.ID(), date)
	return nil
}

// DeleteByID removes the session carrying id, wherever it currently sits.
func (s *SessionService) DeleteByID(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty session id", core.ErrNotFound)
	}
	var (
		removed core.RawSession
		index   = -1
	)
	err := s.store.Update(ctx, func(doc *storage.Document) error {
		for i, r := range doc.Sessions {
			if r.ID() == id {
				index = i
				break
			}
		}
		if index < 0 {
			return fmt.Errorf("%w: session id %q", core.ErrNotFound, id)
		}
		removed = doc.Remove(index)
		return nil
	})
	if err != nil {
		observability.RecordWrite(log.OpDelete, errorOutcome(err))
		return fmt.Errorf("delete session: %w", err)
	}

	date, _ := removed[core.FieldDate].(string)
	s.committed(ctx, amqp.OpDeleted, log.OpDelete, index, id, date)
	return nil
}

func (s *SessionService) committed(ctx context.Context, event, op string, index int, id, date string) {
	if s.cache != nil {
		s.cache.Invalidate()
	}
	observability.RecordWrite(op, "ok")
	s.events.LogSessionMutation(ctx, op, index, id, date)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSessionChanged(ctx, amqp.NewSessionChangedMessage(event, index, id, date)); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish session event",
			log.FieldError, err,
			log.FieldOperation, op,
			log.FieldSessionIndex, index)
	}
}

// errorOutcome maps an error onto the metric and log vocabulary.
func errorOutcome(err error) string {
	switch {
	case errors.Is(err, core.ErrMalformedRecord):
		return log.ErrorTypeMalformedRecord
	case errors.Is(err, core.ErrNotFound):
		return log.ErrorTypeNotFound
	case errors.Is(err, storage.ErrWriteConflict):
		return log.ErrorTypeConflict
	case errors.Is(err, storage.ErrStoreUnavailable):
		return log.ErrorTypeStoreUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return log.ErrorTypeTimeout
	default:
		return log.ErrorTypeInternal
	}
}
