package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore is a database/sql-backed Store. The DSN's scheme picks the
// driver: "postgres://..." uses lib/pq and stores Output as a native
// text array; anything else is opened with the sqlite3 driver and
// Output is newline-joined into one TEXT column.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQLStore opens dsn and ensures the run_history table exists.
func OpenSQLStore(dsn string) (*SQLStore, error) {
	driver := "sqlite3"
	open := dsn
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "postgres"
	}

	db, err := sql.Open(driver, open)
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to history store: %w", err)
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	outputType := "TEXT"
	if s.driver == "postgres" {
		outputType = "TEXT[]"
	}
	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS run_history (
			id         %s,
			source     TEXT NOT NULL,
			selector   TEXT NOT NULL,
			success    BOOLEAN NOT NULL,
			error      TEXT NOT NULL DEFAULT '',
			output     %s NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`, s.idColumn(), outputType))
	return err
}

func (s *SQLStore) idColumn() string {
	if s.driver == "postgres" {
		return "SERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (s *SQLStore) Record(ctx context.Context, rec RunRecord) (int64, error) {
	rec.CreatedAt = time.Now()

	if s.driver == "postgres" {
		var id int64
		err := s.db.QueryRowContext(ctx,
			`INSERT INTO run_history (source, selector, success, error, output, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			rec.Source, rec.Selector, rec.Success, rec.Error, pq.Array(rec.Output), rec.CreatedAt,
		).Scan(&id)
		return id, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO run_history (source, selector, success, error, output, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Source, rec.Selector, rec.Success, rec.Error, strings.Join(rec.Output, "\n"), rec.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLStore) List(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		rebind(s.driver, `SELECT id, source, selector, success, error, output, created_at
		                   FROM run_history ORDER BY id DESC LIMIT ?`),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var joined string
		var output interface{} = &joined
		if s.driver == "postgres" {
			output = pq.Array(&rec.Output)
		}
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Selector, &rec.Success, &rec.Error, output, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if s.driver != "postgres" && joined != "" {
			rec.Output = strings.Split(joined, "\n")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying *sql.DB.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind swaps ? placeholders for $N when talking to postgres.
func rebind(driver, query string) string {
	if driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
