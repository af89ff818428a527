package store

import (
	"context"
	"embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/BatmanBruc/any2any-bot/types"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresJournal keeps who used the bot and how each operation ended. It
// never stores session state.
type PostgresJournal struct {
	pool *pgxpool.Pool
}

var _ types.Journal = (*PostgresJournal)(nil)

// NewPostgresJournal connects and applies migrations. An empty dsn is built
// from POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER and
// POSTGRES_PASSWORD.
func NewPostgresJournal(ctx context.Context, dsn string) (*PostgresJournal, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = buildPostgresDSNFromEnv()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &PostgresJournal{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresJournal) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func buildPostgresDSNFromEnv() string {
	host := strings.TrimSpace(os.Getenv("POSTGRES_HOST"))
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(os.Getenv("POSTGRES_PORT"))
	if port == "" {
		port = "5432"
	}
	db := strings.TrimSpace(os.Getenv("POSTGRES_DB"))
	if db == "" {
		db = "any2any"
	}
	user := strings.TrimSpace(os.Getenv("POSTGRES_USER"))
	if user == "" {
		user = "any2any"
	}
	pass := os.Getenv("POSTGRES_PASSWORD")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", urlEscape(user), urlEscape(pass), host, port, db)
}

func urlEscape(s string) string {
	r := strings.NewReplacer(
		"%", "%25",
		":", "%3A",
		"/", "%2F",
		"@", "%40",
		"?", "%3F",
		"#", "%23",
		"[", "%5B",
		"]", "%5D",
	)
	return r.Replace(s)
}

func (s *PostgresJournal) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDB(*s.pool.Config().ConnConfig)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

func (s *PostgresJournal) Record(ctx context.Context, rec types.OperationRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
INSERT INTO users (user_id, chat_id, last_seen_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET
  chat_id = EXCLUDED.chat_id,
  last_seen_at = GREATEST(users.last_seen_at, EXCLUDED.last_seen_at),
  updated_at = NOW();
`, rec.UserID, rec.ChatID, at)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO operations (user_id, operation, outcome, error, duration_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6);
`, rec.UserID, rec.Operation, string(rec.Outcome), truncate(rec.Error, 1000), rec.Duration.Milliseconds(), at)
	if err != nil {
		return fmt.Errorf("insert operation: %w", err)
	}
	return tx.Commit(ctx)
}

// OperationCounts returns how often each operation ended with each outcome
// since the given time, keyed "operation/outcome".
func (s *PostgresJournal) OperationCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
SELECT operation, outcome, COUNT(*)
FROM operations
WHERE created_at >= $1
GROUP BY operation, outcome
`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var op, outcome string
		var n int
		if err := rows.Scan(&op, &outcome, &n); err != nil {
			return nil, err
		}
		counts[op+"/"+outcome] = n
	}
	return counts, rows.Err()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// NopJournal discards records; used when no database is configured.
type NopJournal struct{}

func (NopJournal) Record(context.Context, types.OperationRecord) error { return nil }
