package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/Pranay-a-1/telegram-persona-bot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// --- Settings ---

// GetSetting returns the raw stored value for (userID, key) and whether a row
// exists. Missing rows are reported, not defaulted, so the scheduler can tell
// "never configured" apart from "configured to the default".
func (r *SQLiteRepo) GetSetting(ctx context.Context, userID int64, key SettingKey) (string, bool, error) {
	if !validKey(key) {
		return "", false, fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}
	var value string
	err := r.db.QueryRowContext(ctx, `
		SELECT value FROM settings WHERE user_id = ? AND key = ?`,
		userID, string(key),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetSetting upserts one setting for a user.
func (r *SQLiteRepo) SetSetting(ctx context.Context, userID int64, key SettingKey, value string) error {
	if !validKey(key) {
		return fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (user_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value`,
		userID, string(key), value,
	)
	return err
}

// --- Conversation history ---

// AppendTurn inserts a turn and evicts everything older than the newest 50,
// inside one transaction so an interleaved reader never sees an over-cap log.
func (r *SQLiteRepo) AppendTurn(ctx context.Context, userID int64, role, content string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (user_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		userID, role, content, time.Now().UTC().Unix(),
	); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM messages WHERE user_id = ? AND id IN (
			SELECT id FROM messages WHERE user_id = ?
			ORDER BY id DESC LIMIT -1 OFFSET ?
		)`,
		userID, userID, domain.HistoryCap,
	); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// LastTurns returns up to n most recent turns in chronological order.
func (r *SQLiteRepo) LastTurns(ctx context.Context, userID int64, n int) ([]domain.Turn, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT role, content, created_at FROM messages
		WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var (
			t       domain.Turn
			created int64
		)
		if err := rows.Scan(&t.Role, &t.Content, &created); err != nil {
			return nil, err
		}
		t.CreatedAt = time.Unix(created, 0).UTC()
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Query is newest-first; callers want oldest-first.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// ClearTurns deletes all history for a user.
func (r *SQLiteRepo) ClearTurns(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE user_id = ?`, userID)
	return err
}

// --- Jobs ---

const jobColumns = `id, user_id, minute, hour, tz, credential_ref, misfire_grace_sec, next_fire_at, created_at`

// ListJobs returns every persisted job.
func (r *SQLiteRepo) ListJobs(ctx context.Context) ([]domain.Job, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// JobsForUser returns every persisted job whose payload targets userID.
// Normally 0 or 1 rows, but prior inconsistent state may have left more.
func (r *SQLiteRepo) JobsForUser(ctx context.Context, userID int64) ([]domain.Job, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]domain.Job, error) {
	var jobs []domain.Job
	for rows.Next() {
		var (
			j       domain.Job
			nextNS  sql.NullInt64
			created int64
		)
		if err := rows.Scan(
			&j.ID, &j.UserID, &j.Minute, &j.Hour, &j.TZ,
			&j.CredentialRef, &j.MisfireGraceSec, &nextNS, &created,
		); err != nil {
			return nil, err
		}
		j.NextFireAt = fromNullInt64(nextNS)
		j.CreatedAt = time.Unix(created, 0).UTC()
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ReplaceJob removes every job for job.UserID and inserts the given one inside
// a single transaction, so durable state never holds zero or two jobs for a
// user once the call returns.
func (r *SQLiteRepo) ReplaceJob(ctx context.Context, job *domain.Job) error {
	if job == nil {
		return errors.New("nil job")
	}
	created := job.CreatedAt.UTC().Unix()
	if job.CreatedAt.IsZero() {
		created = time.Now().UTC().Unix()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE user_id = ?`, job.UserID); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.UserID, job.Minute, job.Hour, job.TZ,
		job.CredentialRef, job.MisfireGraceSec, toNullInt64(job.NextFireAt), created,
	); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// DeleteJobsForUser removes all jobs for a user and reports how many existed.
func (r *SQLiteRepo) DeleteJobsForUser(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetJobNextFire records the next planned fire time for misfire accounting.
func (r *SQLiteRepo) SetJobNextFire(ctx context.Context, jobID string, next time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET next_fire_at = ? WHERE id = ?`,
		next.UTC().Unix(), jobID,
	)
	return err
}
