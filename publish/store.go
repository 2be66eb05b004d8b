// Package publish stores published sites in SQLite and renders them as
// standalone pages.
package publish

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/adammathes/sitedeck/theme"
)

var (
	ErrNotFound    = errors.New("publish: site not found")
	ErrNameTaken   = errors.New("publish: site name is taken")
	ErrInvalidName = errors.New("publish: invalid site name")
	ErrInvalidPlan = errors.New("publish: unknown plan")
	ErrEmptySite   = errors.New("publish: site has no content")
)

// Plan is the billing period chosen at publish time.
type Plan string

const (
	Monthly Plan = "monthly"
	Annual  Plan = "annual"
)

// ParsePlan accepts a known plan; empty means monthly.
func ParsePlan(s string) (Plan, error) {
	switch Plan(strings.ToLower(strings.TrimSpace(s))) {
	case "", Monthly:
		return Monthly, nil
	case Annual:
		return Annual, nil
	}
	return "", fmt.Errorf("%w %q", ErrInvalidPlan, s)
}

var nameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$`)

// NormalizeName lowercases and trims a site name and checks it is a valid
// DNS label.
func NormalizeName(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if !nameRe.MatchString(n) {
		return "", fmt.Errorf("%w %q: use lowercase letters, digits and hyphens", ErrInvalidName, name)
	}
	return n, nil
}

// Site is what a user publishes.
type Site struct {
	Name    string
	HTML    string
	Plan    Plan
	Owner   string
	Palette theme.Palette
}

// Record is a stored site.
type Record struct {
	Site
	Title     string
	Excerpt   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS published_sites (
	name       TEXT PRIMARY KEY,
	html       TEXT NOT NULL,
	plan       TEXT NOT NULL,
	palette    TEXT NOT NULL DEFAULT '{}',
	owner      TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT '',
	excerpt    TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_published_sites_owner ON published_sites(owner, updated_at);
`

// Store is the published-site table.
type Store struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

// StoreOption configures Open.
type StoreOption func(*Store)

func WithLogger(l *zap.Logger) StoreOption { return func(s *Store) { s.log = l } }

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) StoreOption { return func(s *Store) { s.now = now } }

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory store.
func Open(path string, opts ...StoreOption) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("publish: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("publish: open: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		schema,
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("publish: init: %w", err)
		}
	}

	s := &Store{db: db, log: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Exists reports whether a site with the name is published.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	n, err := NormalizeName(name)
	if err != nil {
		return false, err
	}
	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM published_sites WHERE name = ?`, n).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("publish: exists: %w", err)
	}
	return true, nil
}

// Publish stores a site under its name. A name held by another owner is
// refused with ErrNameTaken; the same owner replaces the content and plan
// and keeps the original creation time.
func (s *Store) Publish(ctx context.Context, site Site) (*Record, error) {
	name, err := NormalizeName(site.Name)
	if err != nil {
		return nil, err
	}
	plan, err := ParsePlan(string(site.Plan))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(site.HTML) == "" {
		return nil, ErrEmptySite
	}
	meta := ExtractMeta(site.HTML)
	palette, err := json.Marshal(site.Palette.WithDefaults())
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("publish: begin: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC().Truncate(time.Millisecond)
	created := now
	var owner string
	var createdMs int64
	err = tx.QueryRowContext(ctx, `SELECT owner, created_at FROM published_sites WHERE name = ?`, name).Scan(&owner, &createdMs)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO published_sites (name, html, plan, palette, owner, title, excerpt, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			name, site.HTML, string(plan), string(palette), site.Owner, meta.Title, meta.Excerpt, now.UnixMilli(), now.UnixMilli())
	case err != nil:
		return nil, fmt.Errorf("publish: lookup: %w", err)
	case owner != site.Owner:
		return nil, fmt.Errorf("%w: %s", ErrNameTaken, name)
	default:
		created = time.UnixMilli(createdMs).UTC()
		_, err = tx.ExecContext(ctx,
			`UPDATE published_sites SET html = ?, plan = ?, palette = ?, title = ?, excerpt = ?, updated_at = ? WHERE name = ?`,
			site.HTML, string(plan), string(palette), meta.Title, meta.Excerpt, now.UnixMilli(), name)
	}
	if err != nil {
		return nil, fmt.Errorf("publish: write: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("publish: commit: %w", err)
	}

	s.log.Info("published site", zap.String("name", name), zap.String("plan", string(plan)), zap.String("title", meta.Title))
	return &Record{
		Site:      Site{Name: name, HTML: site.HTML, Plan: plan, Owner: site.Owner, Palette: site.Palette.WithDefaults()},
		Title:     meta.Title,
		Excerpt:   meta.Excerpt,
		CreatedAt: created,
		UpdatedAt: now,
	}, nil
}

const selectRecord = `SELECT name, html, plan, palette, owner, title, excerpt, created_at, updated_at FROM published_sites`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var r Record
	var plan, palette string
	var created, updated int64
	if err := row.Scan(&r.Name, &r.HTML, &plan, &palette, &r.Owner, &r.Title, &r.Excerpt, &created, &updated); err != nil {
		return nil, err
	}
	r.Plan = Plan(plan)
	if err := json.Unmarshal([]byte(palette), &r.Palette); err != nil {
		return nil, fmt.Errorf("palette of %s: %w", r.Name, err)
	}
	r.Palette = r.Palette.WithDefaults()
	r.CreatedAt = time.UnixMilli(created).UTC()
	r.UpdatedAt = time.UnixMilli(updated).UTC()
	return &r, nil
}

// Get loads a published site.
func (s *Store) Get(ctx context.Context, name string) (*Record, error) {
	n, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	r, err := scanRecord(s.db.QueryRowContext(ctx, selectRecord+` WHERE name = ?`, n))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, n)
	}
	if err != nil {
		return nil, fmt.Errorf("publish: get: %w", err)
	}
	return r, nil
}

// ListByOwner returns an owner's sites, most recently updated first.
func (s *Store) ListByOwner(ctx context.Context, owner string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, selectRecord+` WHERE owner = ? ORDER BY updated_at DESC, name`, owner)
	if err != nil {
		return nil, fmt.Errorf("publish: list: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("publish: list: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Unpublish removes an owner's site.
func (s *Store) Unpublish(ctx context.Context, name, owner string) error {
	n, err := NormalizeName(name)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM published_sites WHERE name = ? AND owner = ?`, n, owner)
	if err != nil {
		return fmt.Errorf("publish: unpublish: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		if ok, _ := s.Exists(ctx, n); ok {
			return fmt.Errorf("%w: %s", ErrNameTaken, n)
		}
		return fmt.Errorf("%w: %s", ErrNotFound, n)
	}
	s.log.Info("unpublished site", zap.String("name", n))
	return nil
}
