package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/booklookup/pkg/logger"
	"github.com/okian/booklookup/pkg/metrics"
)

// Pool settings for the catalog workload. The catalog is read-mostly and
// every request issues at most two short queries.
const (
	pgMaxConns         = 16
	pgMinConns         = 2
	pgMaxConnLifetime  = 60 * time.Minute
	pgMaxConnIdleTime  = 10 * time.Minute
	pgConnectTimeout   = 5 * time.Second
	pgPingTimeout      = 2 * time.Second
	pgStatementTimeout = 5 * time.Second
)

const bookColumns = `id, title, authors, ratings_count, average_rating, coalesce(publisher, ''), coalesce(publication_date, '')`

const createBooksTable = `
CREATE TABLE IF NOT EXISTS books (
	seq              BIGSERIAL PRIMARY KEY,
	id               TEXT NOT NULL UNIQUE,
	title            TEXT NOT NULL DEFAULT '',
	authors          TEXT NOT NULL DEFAULT '',
	ratings_count    INTEGER NOT NULL DEFAULT 0 CHECK (ratings_count >= 0),
	average_rating   DOUBLE PRECISION NOT NULL DEFAULT 0,
	publisher        TEXT,
	publication_date TEXT
)`

// pgQuerier is the subset of *pgxpool.Pool used by PostgresStore.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is a catalog backed by a PostgreSQL "books" table. Natural
// order is insertion order (the seq column).
type PostgresStore struct {
	db pgQuerier
}

// NewPool creates and pings a PostgreSQL connection pool.
func NewPool(ctx context.Context, dsn string, log logger.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid DSN: %w", err)
	}

	poolConfig.MaxConns = pgMaxConns
	poolConfig.MinConns = pgMinConns
	poolConfig.MaxConnLifetime = pgMaxConnLifetime
	poolConfig.MaxConnIdleTime = pgMaxConnIdleTime
	poolConfig.ConnConfig.ConnectTimeout = pgConnectTimeout
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("SET statement_timeout = '%dms'", pgStatementTimeout.Milliseconds()))
		return err
	}

	connectCtx, cancel := context.WithTimeout(ctx, pgConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, pgPingTimeout)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping failed: %w", err)
	}

	log.Info(ctx, "postgres pool ready",
		logger.Int("max_conns", int(poolConfig.MaxConns)),
		logger.String("host", poolConfig.ConnConfig.Host),
	)
	return pool, nil
}

// NewPostgresStore wraps a pool (or any compatible querier).
func NewPostgresStore(db pgQuerier) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the books table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createBooksTable); err != nil {
		return fmt.Errorf("create books table: %w", err)
	}
	return nil
}

// Put inserts an entry, assigning an ID when it has none.
func (s *PostgresStore) Put(ctx context.Context, e Entry) (Entry, error) { //nolint:gocritic // hugeParam: entries are values
	if err := validate(e); err != nil {
		return Entry{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO books (id, title, authors, ratings_count, average_rating, publisher, publication_date)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''))`,
		e.ID, e.Title, e.Authors, e.RatingsCount, e.AverageRating, e.Publisher, e.PublishedDate,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Entry{}, fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
		}
		return Entry{}, fmt.Errorf("insert book: %w", err)
	}
	return e, nil
}

// FindFirstByTitle returns the first entry whose title equals title.
func (s *PostgresStore) FindFirstByTitle(ctx context.Context, title string) (Entry, bool, error) {
	defer observeQuery(time.Now())
	return s.first(ctx, `SELECT `+bookColumns+` FROM books WHERE title = $1 ORDER BY seq LIMIT 1`, title)
}

// FindAllByTitleContaining returns entries whose title contains title, ignoring case.
func (s *PostgresStore) FindAllByTitleContaining(ctx context.Context, title string) ([]Entry, error) {
	defer observeQuery(time.Now())
	return s.all(ctx, `SELECT `+bookColumns+` FROM books WHERE title ILIKE $1 ORDER BY seq`, containsPattern(title))
}

// FindFirstByAuthors returns the first entry whose authors equal authors.
func (s *PostgresStore) FindFirstByAuthors(ctx context.Context, authors string) (Entry, bool, error) {
	defer observeQuery(time.Now())
	return s.first(ctx, `SELECT `+bookColumns+` FROM books WHERE authors = $1 ORDER BY seq LIMIT 1`, authors)
}

// FindAllByAuthorsContaining returns entries whose authors contain author, ignoring case.
func (s *PostgresStore) FindAllByAuthorsContaining(ctx context.Context, author string) ([]Entry, error) {
	defer observeQuery(time.Now())
	return s.all(ctx, `SELECT `+bookColumns+` FROM books WHERE authors ILIKE $1 ORDER BY seq`, containsPattern(author))
}

// Count returns the number of rows in the books table, or 0 on error.
func (s *PostgresStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM books`).Scan(&n); err != nil {
		metrics.RecordErrorByComponent("repository", "count_failed")
		return 0
	}
	return n
}

func (s *PostgresStore) first(ctx context.Context, query string, arg string) (Entry, bool, error) {
	var e Entry
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&e.ID, &e.Title, &e.Authors, &e.RatingsCount, &e.AverageRating, &e.Publisher, &e.PublishedDate,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("query book: %w", err)
	}
	return e, true, nil
}

func (s *PostgresStore) all(ctx context.Context, query string, arg string) ([]Entry, error) {
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Title, &e.Authors, &e.RatingsCount, &e.AverageRating, &e.Publisher, &e.PublishedDate); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern that matches s literally anywhere.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
