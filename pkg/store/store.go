package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	errs "picharvest/pkg/errors"
	"picharvest/pkg/retry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDuplicate is returned by StoreImage when the fingerprint is already stored
var ErrDuplicate = errors.New("fingerprint already stored")

// ErrNotFound is returned when a session or URL does not exist
var ErrNotFound = errors.New("not found")

// Store is the durable record of sessions, referrer URLs and saved images
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies pending
// migrations. Pass ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// one connection: ":memory:" is per connection, and SQLite has one writer anyway
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)", version, now()); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

// parseMigrationVersion reads the numeric prefix of 001_init.sql
func parseMigrationVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("migration %s has no version prefix", name)
	}
	v, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, fmt.Errorf("migration %s: bad version: %w", name, err)
	}
	return v, nil
}

// AppliedMigrations lists applied schema versions in ascending order
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// IsBusy reports whether err is SQLite lock contention
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// write runs fn, retrying while the database is locked
func (s *Store) write(ctx context.Context, fn func() error) error {
	return retry.Do(fn, &retry.Config{
		MaxAttempts: 4,
		Backoff:     &retry.ExponentialBackoff{BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2},
		RetryIf:     IsBusy,
		Context:     ctx,
	})
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// DomainOf returns the lower-cased host of rawURL, or "" when it does not parse
func DomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// --- Sessions ---

// CreateSession records a new harvest invocation
func (s *Store) CreateSession(ctx context.Context, query string) (int64, error) {
	var id int64
	err := s.write(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			"INSERT INTO search_sessions (query, total_urls, created_at) VALUES (?, 0, ?)", query, now())
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, errs.NewStorage("creating session", err)
	}
	return id, nil
}

// SetSessionTotal records how many URLs the session admitted
func (s *Store) SetSessionTotal(ctx context.Context, sessionID int64, total int) error {
	err := s.write(ctx, func() error {
		_, err := s.db.ExecContext(ctx, "UPDATE search_sessions SET total_urls = ? WHERE id = ?", total, sessionID)
		return err
	})
	if err != nil {
		return errs.NewStorage("updating session total", err)
	}
	return nil
}

// GetSession loads one session
func (s *Store) GetSession(ctx context.Context, id int64) (Session, error) {
	var sess Session
	var created string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, query, total_urls, created_at FROM search_sessions WHERE id = ?", id,
	).Scan(&sess.ID, &sess.Query, &sess.TotalURLs, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	sess.CreatedAt = parseTime(created)
	return sess, nil
}

// --- Source URLs ---

// StoreURLs admits urls into the session. URLs the session already knows
// are not inserted again. It returns the admitted rows that are still
// unvisited, in the order given.
func (s *Store) StoreURLs(ctx context.Context, sessionID int64, urls []string) ([]SourceURL, error) {
	err := s.write(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx,
			"INSERT OR IGNORE INTO source_urls (session_id, url, domain, created_at) VALUES (?, ?, ?, ?)")
		if err != nil {
			tx.Rollback()
			return err
		}
		defer stmt.Close()

		ts := now()
		for _, u := range urls {
			if _, err := stmt.ExecContext(ctx, sessionID, u, DomainOf(u), ts); err != nil {
				tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, errs.NewStorage("storing urls", err)
	}

	out := make([]SourceURL, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true

		su, err := s.urlByText(ctx, sessionID, u)
		if err != nil {
			return nil, err
		}
		if !su.Visited {
			out = append(out, su)
		}
	}
	return out, nil
}

func (s *Store) urlByText(ctx context.Context, sessionID int64, u string) (SourceURL, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, url, domain, visited, images_found, COALESCE(error_message, '')
		FROM source_urls WHERE session_id = ? AND url = ?`, sessionID, u)
	su, err := scanURL(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SourceURL{}, ErrNotFound
	}
	return su, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanURL(row scanner) (SourceURL, error) {
	var su SourceURL
	var visited int
	err := row.Scan(&su.ID, &su.SessionID, &su.URL, &su.Domain, &visited, &su.ImagesFound, &su.Error)
	su.Visited = visited != 0
	return su, err
}

// GetURL loads one source URL by id
func (s *Store) GetURL(ctx context.Context, id int64) (SourceURL, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, url, domain, visited, images_found, COALESCE(error_message, '')
		FROM source_urls WHERE id = ?`, id)
	su, err := scanURL(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SourceURL{}, ErrNotFound
	}
	return su, err
}

// UnvisitedURLs returns up to limit unvisited URLs of the session in discovery order
func (s *Store) UnvisitedURLs(ctx context.Context, sessionID int64, limit int) ([]SourceURL, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, url, domain, visited, images_found, COALESCE(error_message, '')
		FROM source_urls WHERE session_id = ? AND visited = 0
		ORDER BY id LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SourceURL
	for rows.Next() {
		su, err := scanURL(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, su)
	}
	return out, rows.Err()
}

// MarkVisited moves a URL to visited, recording how many images it yielded
// and the failure if there was one. It reports false when the URL was
// already visited; the flag never changes twice.
func (s *Store) MarkVisited(ctx context.Context, id int64, imagesFound int, errMsg string) (bool, error) {
	var changed bool
	err := s.write(ctx, func() error {
		var msg any
		if errMsg != "" {
			msg = errMsg
		}
		res, err := s.db.ExecContext(ctx, `
			UPDATE source_urls SET visited = 1, images_found = ?, error_message = ?, visited_at = ?
			WHERE id = ? AND visited = 0`, imagesFound, msg, now(), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		changed = n == 1
		return err
	})
	if err != nil {
		return false, errs.NewStorage("marking url visited", err)
	}
	return changed, nil
}

// --- Images ---

// StoreImage records a saved image. A fingerprint that is already stored
// yields ErrDuplicate and no row.
func (s *Store) StoreImage(ctx context.Context, img *Image) (int64, error) {
	if img.DownloadedAt.IsZero() {
		img.DownloadedAt = time.Now().UTC()
	}
	var id int64
	err := s.write(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO downloaded_images
			(source_url_id, image_url, fingerprint, perceptual_hash, file_path, file_size,
			 width, height, is_relevant, relevance_score, content_type, downloaded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			img.SourceURLID, img.ImageURL, img.Fingerprint, img.PerceptualHash, img.FilePath, img.FileSize,
			img.Width, img.Height, img.IsRelevant, img.RelevanceScore, img.ContentType,
			img.DownloadedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if isUniqueViolation(err) {
		return 0, ErrDuplicate
	}
	if err != nil {
		return 0, errs.NewStorage("storing image", err)
	}
	img.ID = id
	return id, nil
}

// HasFingerprint reports whether any stored image carries fp
func (s *Store) HasFingerprint(ctx context.Context, fp string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM downloaded_images WHERE fingerprint = ?", fp).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Fingerprints returns every stored fingerprint
func (s *Store) Fingerprints(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT fingerprint FROM downloaded_images")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, err
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

// PerceptualHashes returns every stored image that has a perceptual hash
func (s *Store) PerceptualHashes(ctx context.Context) ([]HashedImage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_path, image_url, perceptual_hash FROM downloaded_images
		WHERE perceptual_hash != '' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HashedImage
	for rows.Next() {
		var h HashedImage
		if err := rows.Scan(&h.ID, &h.FilePath, &h.ImageURL, &h.Hash); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ImagesForURL returns the images saved from one source URL
func (s *Store) ImagesForURL(ctx context.Context, sourceURLID int64) ([]Image, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_url_id, image_url, fingerprint, perceptual_hash, file_path, file_size,
		       width, height, is_relevant, relevance_score, content_type, downloaded_at
		FROM downloaded_images WHERE source_url_id = ? ORDER BY id`, sourceURLID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Image
	for rows.Next() {
		var img Image
		var relevant int
		var ts string
		if err := rows.Scan(&img.ID, &img.SourceURLID, &img.ImageURL, &img.Fingerprint, &img.PerceptualHash,
			&img.FilePath, &img.FileSize, &img.Width, &img.Height, &relevant, &img.RelevanceScore,
			&img.ContentType, &ts); err != nil {
			return nil, err
		}
		img.IsRelevant = relevant != 0
		img.DownloadedAt = parseTime(ts)
		out = append(out, img)
	}
	return out, rows.Err()
}

// --- Reporting ---

// Stats summarises the store. topDomains bounds the per-domain list.
func (s *Store) Stats(ctx context.Context, topDomains int) (*Stats, error) {
	st := &Stats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM search_sessions),
			(SELECT COUNT(*) FROM source_urls),
			(SELECT COUNT(*) FROM source_urls WHERE visited = 1),
			(SELECT COUNT(*) FROM source_urls WHERE error_message IS NOT NULL),
			(SELECT COUNT(*) FROM downloaded_images),
			(SELECT COALESCE(SUM(file_size), 0) FROM downloaded_images)`,
	).Scan(&st.Sessions, &st.URLs, &st.Visited, &st.Errored, &st.Images, &st.Bytes)
	if err != nil {
		return nil, fmt.Errorf("counting rows: %w", err)
	}

	if topDomains <= 0 {
		return st, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.domain, COUNT(DISTINCT u.id), COUNT(i.id)
		FROM source_urls u LEFT JOIN downloaded_images i ON i.source_url_id = u.id
		GROUP BY u.domain
		ORDER BY COUNT(i.id) DESC, u.domain
		LIMIT ?`, topDomains)
	if err != nil {
		return nil, fmt.Errorf("grouping domains: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d DomainYield
		if err := rows.Scan(&d.Domain, &d.URLs, &d.Images); err != nil {
			return nil, err
		}
		st.TopDomains = append(st.TopDomains, d)
	}
	return st, rows.Err()
}

// RecentSessions returns the latest sessions, newest first
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.query, s.total_urls, s.created_at,
			(SELECT COUNT(*) FROM source_urls u WHERE u.session_id = s.id AND u.visited = 1),
			(SELECT COUNT(*) FROM downloaded_images i JOIN source_urls u ON i.source_url_id = u.id
			 WHERE u.session_id = s.id)
		FROM search_sessions s
		ORDER BY s.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var ss SessionSummary
		var created string
		if err := rows.Scan(&ss.ID, &ss.Query, &ss.TotalURLs, &created, &ss.Visited, &ss.Images); err != nil {
			return nil, err
		}
		ss.CreatedAt = parseTime(created)
		out = append(out, ss)
	}
	return out, rows.Err()
}

// DeleteSession removes a session with its URLs and images
func (s *Store) DeleteSession(ctx context.Context, id int64) error {
	return s.write(ctx, func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM search_sessions WHERE id = ?", id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}
