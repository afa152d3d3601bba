// Package ledger is the append-only transaction store and the service
// that normalizes candidate records into it.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"sumal/internal/core"
	"sumal/internal/rates"
)

// Store persists records. Append is all-or-nothing; Records returns
// insertion order, oldest first, filtered to userID when non-empty.
// There is no update or delete.
type Store interface {
	Append(ctx context.Context, r core.Record) (ref string, err error)
	Records(ctx context.Context, userID string) ([]core.Record, error)
}

// Publisher emits a record-appended event for the mirror worker.
type Publisher interface {
	PublishRecordAppended(ctx context.Context, id int64) error
}

// Service validates candidates, fixes their canonical amount using the
// rate in effect at append time, and writes them through the store.
type Service struct {
	store Store
	table *rates.Table
	pub   Publisher
}

func NewService(store Store, table *rates.Table, pub Publisher) *Service {
	return &Service{store: store, table: table, pub: pub}
}

// Append normalizes and durably appends one transaction. The stored
// canonical amount is never recomputed when rates change later.
func (s *Service) Append(ctx context.Context, c core.Candidate) (core.Record, error) {
	if err := c.Validate(); err != nil {
		return core.Record{}, err
	}

	canonical, err := s.table.Convert(c.InputAmount, c.InputCurrency, rates.Canonical)
	if err != nil {
		return core.Record{}, err
	}

	rec := core.Record{
		Date:            c.Date,
		UserID:          c.UserID,
		Type:            c.Type,
		Category:        c.Category,
		AmountCanonical: canonical,
		Note:            c.Note,
		InputCurrency:   c.InputCurrency,
		InputAmount:     c.InputAmount,
	}

	ref, err := s.store.Append(ctx, rec)
	if err != nil {
		return core.Record{}, fmt.Errorf("append record: %w", err)
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"ref", ref,
		"user", rec.UserID,
		"type", rec.Type,
		"category", rec.Category,
		"amount_canonical", rec.AmountCanonical.String(),
		"input_currency", rec.InputCurrency)

	s.publishAppended(ctx, ref)
	return rec, nil
}

// Records lists stored records, scoped to userID when non-empty.
func (s *Service) Records(ctx context.Context, userID string) ([]core.Record, error) {
	return s.store.Records(ctx, userID)
}

func (s *Service) publishAppended(ctx context.Context, ref string) {
	if s.pub == nil {
		return
	}
	// Only numeric refs identify rows the mirror worker can fetch.
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return
	}
	if err := s.pub.PublishRecordAppended(ctx, id); err != nil {
		// The record is durably stored; the periodic sweep covers
		// missed events.
		slog.ErrorContext(ctx, "Failed to publish record-appended event", "id", id, "error", err)
	}
}
