package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"sumal/internal/core"
)

const dateLayout = "2006-01-02"

// Header is the column layout of the ledger interchange file.
var Header = []string{"date", "user", "type", "category", "amount_mmk", "note", "input_currency", "input_amount"}

// FileStore is the CSV-backed ledger: one record per row under a fixed
// header, append-only. Writes are serialized by a mutex and fsync'd;
// readers see complete rows only.
type FileStore struct {
	mu    sync.Mutex
	path  string
	count int
}

// NewFileStore opens (or creates header-only) the ledger file.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	s := &FileStore{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.writeHeader(); err != nil {
			return nil, err
		}
		return s, nil
	}

	recs, err := s.readAll()
	if err != nil {
		return nil, err
	}
	s.count = len(recs)
	return s, nil
}

func (s *FileStore) writeHeader() error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create ledger file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		return fmt.Errorf("write ledger header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush ledger header: %w", err)
	}
	return f.Sync()
}

// Append writes one record as a single row. The row is flushed and
// synced before the call returns.
func (s *FileStore) Append(_ context.Context, r core.Record) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(encodeRecord(r)); err != nil {
		return "", fmt.Errorf("write record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("sync ledger file: %w", err)
	}

	s.count++
	return "csv:" + strconv.Itoa(s.count), nil
}

// Records reads the full file back in row order.
func (s *FileStore) Records(_ context.Context, userID string) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return all, nil
	}
	out := make([]core.Record, 0, len(all))
	for _, r := range all {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *FileStore) readAll() ([]core.Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = len(Header)

	if _, err := rd.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger header: %w", err)
	}

	var out []core.Record
	for line := 2; ; line++ {
		row, err := rd.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ledger row: %w", err)
		}
		rec, err := decodeRecord(row)
		if err != nil {
			return nil, fmt.Errorf("ledger line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func encodeRecord(r core.Record) []string {
	return []string{
		r.Date.Format(dateLayout),
		r.UserID,
		string(r.Type),
		r.Category,
		r.AmountCanonical.String(),
		r.Note,
		r.InputCurrency,
		r.InputAmount.String(),
	}
}

func decodeRecord(row []string) (core.Record, error) {
	date, err := time.Parse(dateLayout, row[0])
	if err != nil {
		return core.Record{}, fmt.Errorf("parse date %q: %w", row[0], err)
	}
	typ, err := core.ParseType(row[2])
	if err != nil {
		return core.Record{}, fmt.Errorf("row type %q: %w", row[2], err)
	}
	canonical, err := decimal.NewFromString(row[4])
	if err != nil {
		return core.Record{}, fmt.Errorf("parse canonical amount %q: %w", row[4], err)
	}
	input, err := decimal.NewFromString(row[7])
	if err != nil {
		return core.Record{}, fmt.Errorf("parse input amount %q: %w", row[7], err)
	}
	return core.Record{
		Date:            date,
		UserID:          row[1],
		Type:            typ,
		Category:        row[3],
		AmountCanonical: canonical,
		Note:            row[5],
		InputCurrency:   row[6],
		InputAmount:     input,
	}, nil
}
