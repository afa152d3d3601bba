// Package storage is the SQLite persistence layer for ledger records
// and accounts.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"sumal/internal/core"
)

const dateLayout = "2006-01-02"

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Append implements ledger.Store. The insert is a single statement, so
// either the full row lands or nothing does.
func (r *Repository) Append(ctx context.Context, rec core.Record) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO records (date, user_id, type, category, amount_canonical, note, input_currency, input_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Date.Format(dateLayout),
		rec.UserID,
		string(rec.Type),
		rec.Category,
		rec.AmountCanonical.String(),
		rec.Note,
		rec.InputCurrency,
		rec.InputAmount.String(),
	)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("record id: %w", err)
	}

	slog.InfoContext(ctx, "Record saved to SQLite",
		"id", id,
		"user", rec.UserID,
		"type", rec.Type,
		"amount_canonical", rec.AmountCanonical.String())

	return strconv.FormatInt(id, 10), nil
}

// Records implements ledger.Store; rows come back in insertion order.
func (r *Repository) Records(ctx context.Context, userID string) ([]core.Record, error) {
	query := `
		SELECT date, user_id, type, category, amount_canonical, note, input_currency, input_amount
		FROM records`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// GetRecord fetches one row by id, for the mirror worker.
func (r *Repository) GetRecord(ctx context.Context, id int64) (core.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT date, user_id, type, category, amount_canonical, note, input_currency, input_amount
		FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		return core.Record{}, fmt.Errorf("get record %d: %w", id, err)
	}
	return rec, nil
}

// PendingMirrorRecord is the minimal row the mirror sweep needs.
type PendingMirrorRecord struct {
	ID        int64
	CreatedAt time.Time
}

// PendingMirror lists rows not yet copied to the interchange file.
func (r *Repository) PendingMirror(ctx context.Context, limit int) ([]PendingMirrorRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, created_at FROM records
		WHERE mirrored = 0
		ORDER BY id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending mirror records: %w", err)
	}
	defer rows.Close()

	var out []PendingMirrorRecord
	for rows.Next() {
		var p PendingMirrorRecord
		if err := rows.Scan(&p.ID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending mirror record: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending mirror records: %w", err)
	}
	return out, nil
}

func (r *Repository) MarkMirrored(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE records SET mirrored = 1, mirror_error = 0 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark mirrored: %w", err)
	}
	slog.InfoContext(ctx, "Record marked as mirrored", "id", id)
	return nil
}

func (r *Repository) MarkMirrorError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE records SET mirror_error = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark mirror error: %w", err)
	}
	slog.WarnContext(ctx, "Record marked with mirror error", "id", id)
	return nil
}

// CreateAccount stores a username with its password hash. The caller
// hashes; storage only enforces uniqueness.
func (r *Repository) CreateAccount(ctx context.Context, username, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (username, password_hash) VALUES (?, ?)`, username, passwordHash)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("account %q: %w", username, ErrAccountExists)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// AccountHash returns the stored hash, or ErrAccountNotFound.
func (r *Repository) AccountHash(ctx context.Context, username string) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx,
		`SELECT password_hash FROM accounts WHERE username = ?`, username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrAccountNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query account: %w", err)
	}
	return hash, nil
}

var (
	ErrAccountExists   = errors.New("account already exists")
	ErrAccountNotFound = errors.New("account not found")
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (core.Record, error) {
	var (
		dateStr, userID, typStr, category string
		canonicalStr, note                string
		inputCurrency, inputStr           string
	)
	if err := row.Scan(&dateStr, &userID, &typStr, &category, &canonicalStr, &note, &inputCurrency, &inputStr); err != nil {
		return core.Record{}, fmt.Errorf("scan record: %w", err)
	}

	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return core.Record{}, fmt.Errorf("parse stored date %q: %w", dateStr, err)
	}
	typ, err := core.ParseType(typStr)
	if err != nil {
		return core.Record{}, fmt.Errorf("stored type %q: %w", typStr, err)
	}
	canonical, err := decimal.NewFromString(canonicalStr)
	if err != nil {
		return core.Record{}, fmt.Errorf("parse stored canonical amount %q: %w", canonicalStr, err)
	}
	input, err := decimal.NewFromString(inputStr)
	if err != nil {
		return core.Record{}, fmt.Errorf("parse stored input amount %q: %w", inputStr, err)
	}

	return core.Record{
		Date:            date,
		UserID:          userID,
		Type:            typ,
		Category:        category,
		AmountCanonical: canonical,
		Note:            note,
		InputCurrency:   inputCurrency,
		InputAmount:     input,
	}, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "UNIQUE constraint") || strings.Contains(s, "unique constraint")
}
