package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pario-ai/narrator/pkg/models"
	_ "modernc.org/sqlite"
)

// timeLayout sorts lexically and is understood by SQLite's date().
const timeLayout = "2006-01-02 15:04:05.000"

// Logger writes and queries audit entries in a dedicated SQLite database.
type Logger struct {
	db      *sql.DB
	cfg     models.AuditConfig
	done    chan struct{}
	wg      sync.WaitGroup
	include map[string]bool
	exclude map[models.Source]bool
}

// New opens the audit SQLite database and creates the schema.
func New(cfg models.AuditConfig) (*Logger, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	inc := make(map[string]bool)
	for _, v := range cfg.Include {
		inc[v] = true
	}
	exc := make(map[models.Source]bool)
	for _, v := range cfg.ExcludeSources {
		exc[models.Source(v)] = true
	}

	l := &Logger{
		db:      db,
		cfg:     cfg,
		done:    make(chan struct{}),
		include: inc,
		exclude: exc,
	}

	l.wg.Add(1)
	go l.retentionLoop()

	return l, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS audit_log (
		request_id  TEXT PRIMARY KEY,
		endpoint    TEXT NOT NULL,
		session_id  TEXT,
		input       TEXT,
		response    TEXT,
		source      TEXT NOT NULL,
		reason      TEXT,
		attempts    INTEGER,
		latency_ms  INTEGER,
		created_at  TEXT NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_endpoint ON audit_log(endpoint)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_session ON audit_log(session_id)`)
	return err
}

// Log inserts an audit entry, respecting include/exclude configuration.
func (l *Logger) Log(ctx context.Context, entry models.AuditEntry) error {
	if l == nil || l.db == nil {
		return nil
	}
	if l.exclude[entry.Source] {
		return nil
	}

	input := entry.Input
	response := entry.Response
	if !l.include["inputs"] {
		input = ""
	}
	if !l.include["responses"] {
		response = ""
	}
	if l.cfg.MaxBodySize > 0 {
		input = truncate(input, l.cfg.MaxBodySize)
		response = truncate(response, l.cfg.MaxBodySize)
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO audit_log
		(request_id, endpoint, session_id, input, response, source, reason,
		 attempts, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID, entry.Endpoint, entry.SessionID,
		input, response, string(entry.Source), entry.Reason,
		entry.Attempts, entry.LatencyMs, formatTime(entry.CreatedAt),
	)
	return err
}

// Query returns audit entries matching the given options, newest first.
func (l *Logger) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error) {
	q := `SELECT request_id, endpoint, session_id, input, response, source, reason,
		attempts, latency_ms, created_at
		FROM audit_log WHERE 1=1`
	var args []any

	if opts.RequestID != "" {
		q += " AND request_id = ?"
		args = append(args, opts.RequestID)
	}
	if opts.Endpoint != "" {
		q += " AND endpoint = ?"
		args = append(args, opts.Endpoint)
	}
	if opts.Source != "" {
		q += " AND source = ?"
		args = append(args, string(opts.Source))
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, formatTime(opts.Since))
	}
	if opts.SessionID != "" {
		q += " AND session_id = ?"
		args = append(args, opts.SessionID)
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var sessionID, input, response, reason sql.NullString
		var source, createdAt string
		if err := rows.Scan(
			&e.RequestID, &e.Endpoint, &sessionID, &input, &response,
			&source, &reason, &e.Attempts, &e.LatencyMs, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		e.SessionID = sessionID.String
		e.Input = input.String
		e.Response = response.String
		e.Reason = reason.String
		e.Source = models.Source(source)
		e.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns aggregate counts grouped by source and day.
func (l *Logger) Stats(ctx context.Context) ([]models.AuditStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT source, date(created_at) as day, count(*) as cnt
		 FROM audit_log GROUP BY source, day ORDER BY day DESC, source`)
	if err != nil {
		return nil, fmt.Errorf("audit stats: %w", err)
	}
	defer rows.Close()

	var stats []models.AuditStat
	for rows.Next() {
		var s models.AuditStat
		var source string
		var day sql.NullString
		if err := rows.Scan(&source, &day, &s.Count); err != nil {
			return nil, fmt.Errorf("scan audit stat: %w", err)
		}
		s.Source = models.Source(source)
		s.Day = day.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes entries older than the configured retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -l.cfg.RetentionDays)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM audit_log WHERE created_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("audit cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			n, err := l.Cleanup(context.Background())
			if err != nil {
				log.Printf("audit: %v", err)
			} else if n > 0 {
				log.Printf("audit: removed %d entries past retention", n)
			}
		}
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
