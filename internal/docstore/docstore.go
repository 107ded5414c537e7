// Package docstore reads corpus papers from and writes paper scores to a SQL
// database. Postgres (lib/pq) is used in production and SQLite (go-sqlite3)
// for local runs and tests; both accept the same $n placeholders.
package docstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/novelty/internal/corpus"
)

//go:embed schema.sql
var schemaSQL string

// Filter selects papers by publication year, both bounds inclusive.
type Filter struct {
	YearFrom int
	YearTo   int
}

// Store is the document store used by the pipeline.
type Store interface {
	FindPapers(ctx context.Context, f Filter) ([]corpus.Paper, error)
	UpsertScore(ctx context.Context, s corpus.PaperScore) error
	UpsertScores(ctx context.Context, scores []corpus.PaperScore) error
}

type SQLStore struct {
	DB     *sql.DB
	driver string
}

// Open connects to the database and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", driver, err)
	}
	if driver == "sqlite3" {
		// a second connection to :memory: would see an empty database
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging %s: %w", driver, err)
	}

	s := &SQLStore{DB: db, driver: driver}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug().Str("driver", driver).Msg("document store ready")
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.DB.Close()
}

// Migrate runs the embedded schema statements.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
	}
	return nil
}

// InTx runs fn in a transaction, rolling back when fn fails.
func (s *SQLStore) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// PutPapers inserts or replaces papers.
func (s *SQLStore) PutPapers(ctx context.Context, papers []corpus.Paper) error {
	return s.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO papers (id, year, items) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET year = excluded.year, items = excluded.items`)
		if err != nil {
			return fmt.Errorf("preparing paper insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range papers {
			items, err := sonic.MarshalString(p.Items)
			if err != nil {
				return fmt.Errorf("encoding items of paper %s: %w", p.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, p.ID, p.Year, items); err != nil {
				return fmt.Errorf("inserting paper %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

// FindPapers returns the papers published within f, ordered by year then id.
func (s *SQLStore) FindPapers(ctx context.Context, f Filter) ([]corpus.Paper, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, year, items FROM papers WHERE year >= $1 AND year <= $2 ORDER BY year, id`,
		f.YearFrom, f.YearTo)
	if err != nil {
		return nil, fmt.Errorf("querying papers: %w", err)
	}
	defer rows.Close()

	var papers []corpus.Paper
	for rows.Next() {
		var (
			p     corpus.Paper
			items string
		)
		if err := rows.Scan(&p.ID, &p.Year, &items); err != nil {
			return nil, fmt.Errorf("scanning paper: %w", err)
		}
		if err := sonic.UnmarshalString(items, &p.Items); err != nil {
			log.Warn().Err(err).Str("paper", p.ID).Msg("skipping paper with malformed items")
			continue
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

const upsertScore = `INSERT INTO paper_scores (paper_id, indicator, variable, year, headline, raw)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (paper_id, indicator, variable)
	DO UPDATE SET year = excluded.year, headline = excluded.headline, raw = excluded.raw`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeScore(ctx context.Context, db execer, sc corpus.PaperScore) error {
	headline, err := sonic.MarshalString(sc.Headline)
	if err != nil {
		return fmt.Errorf("encoding headline of %s: %w", sc.PaperID, err)
	}
	raw, err := sonic.MarshalString(sc.Raw)
	if err != nil {
		return fmt.Errorf("encoding raw scores of %s: %w", sc.PaperID, err)
	}
	if _, err := db.ExecContext(ctx, upsertScore,
		sc.PaperID, string(sc.Indicator), sc.Variable, sc.Year, headline, raw); err != nil {
		return fmt.Errorf("upserting score %s/%s: %w", sc.PaperID, sc.Key(), err)
	}
	return nil
}

// UpsertScore writes one score, replacing a previous score of the same
// paper, indicator and variable.
func (s *SQLStore) UpsertScore(ctx context.Context, sc corpus.PaperScore) error {
	return writeScore(ctx, s.DB, sc)
}

// UpsertScores writes scores in a single transaction.
func (s *SQLStore) UpsertScores(ctx context.Context, scores []corpus.PaperScore) error {
	return s.InTx(ctx, func(tx *sql.Tx) error {
		for _, sc := range scores {
			if err := writeScore(ctx, tx, sc); err != nil {
				return err
			}
		}
		return nil
	})
}

// Scores returns the stored scores of one indicator configuration.
func (s *SQLStore) Scores(ctx context.Context, indicator corpus.Indicator, variable string) ([]corpus.PaperScore, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT paper_id, year, headline, raw FROM paper_scores
		 WHERE indicator = $1 AND variable = $2 ORDER BY year, paper_id`,
		string(indicator), variable)
	if err != nil {
		return nil, fmt.Errorf("querying scores: %w", err)
	}
	defer rows.Close()

	var scores []corpus.PaperScore
	for rows.Next() {
		sc := corpus.PaperScore{Indicator: indicator, Variable: variable}
		var headline, raw string
		if err := rows.Scan(&sc.PaperID, &sc.Year, &headline, &raw); err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		if err := sonic.UnmarshalString(headline, &sc.Headline); err != nil {
			return nil, fmt.Errorf("decoding headline of %s: %w", sc.PaperID, err)
		}
		if err := sonic.UnmarshalString(raw, &sc.Raw); err != nil {
			return nil, fmt.Errorf("decoding raw scores of %s: %w", sc.PaperID, err)
		}
		scores = append(scores, sc)
	}
	return scores, rows.Err()
}
