package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"check-orchestrator/core/models"
)

// Archive persists terminal results for offline inspection: an append-only
// log line per result, plus a Postgres row when a database is configured.
// Both writes are best effort; the archive never reloads jobs and never
// influences scheduling.
type Archive struct {
	logPath string
	db      *sql.DB
	log     zerolog.Logger
}

// NewArchive creates an archive. databaseURL may be empty to run file-only.
func NewArchive(logPath, databaseURL string, log zerolog.Logger) (*Archive, error) {
	a := &Archive{
		logPath: logPath,
		log:     log.With().Str("component", "archive").Logger(),
	}

	if databaseURL != "" {
		db, err := sql.Open("postgres", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("ping database: %w", err)
		}
		if err := ensureSchema(db); err != nil {
			return nil, err
		}
		a.db = db
	}
	return a, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS check_results (
			job_id      TEXT PRIMARY KEY,
			batch_id    TEXT,
			website     TEXT NOT NULL,
			card_masked TEXT NOT NULL,
			outcome     TEXT NOT NULL,
			message     TEXT,
			attempts    INT NOT NULL,
			duration_ms BIGINT NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

// Close closes the database handle, if any
func (a *Archive) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Record archives one terminal result
func (a *Archive) Record(res models.CheckResult) {
	if err := a.appendLine(res); err != nil {
		a.log.Warn().Err(err).Str("job_id", res.JobID).Msg("result log append failed")
	}
	if a.db == nil {
		return
	}
	if err := a.insert(res); err != nil {
		a.log.Warn().Err(err).Str("job_id", res.JobID).Msg("result insert failed")
	}
}

// FormatLine renders the archive line for one result
func FormatLine(res models.CheckResult) string {
	return fmt.Sprintf("[%s] %s | %s | %s | %s\n",
		res.FinishedAt.Format("2006-01-02 15:04:05"),
		strings.ToUpper(res.Site),
		res.MaskedCard,
		strings.ToUpper(string(res.Outcome)),
		res.Message,
	)
}

func (a *Archive) appendLine(res models.CheckResult) error {
	if a.logPath == "" {
		return nil
	}
	if dir := filepath.Dir(a.logPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(a.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(FormatLine(res))
	return err
}

func (a *Archive) insert(res models.CheckResult) error {
	query := `
		INSERT INTO check_results (
			job_id, batch_id, website, card_masked, outcome,
			message, attempts, duration_ms, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (job_id) DO NOTHING
	`
	_, err := a.db.Exec(query,
		res.JobID,
		res.BatchID,
		res.Site,
		res.MaskedCard,
		string(res.Outcome),
		res.Message,
		res.Attempts,
		res.Duration/time.Millisecond,
		res.FinishedAt,
	)
	return err
}
