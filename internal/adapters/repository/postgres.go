package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/poyrazK/dnsdiff/internal/core/domain"
)

//go:embed schema.sql
var Schema string

// PostgresRepository implements ports.DifferenceRepository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates and returns a new PostgresRepository instance.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate applies the embedded schema. It is idempotent.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

// SaveDifferences replaces the stored differences of a test. An empty slice
// removes them.
func (r *PostgresRepository) SaveDifferences(ctx context.Context, testID string, diffs []domain.DifferenceReport) error {
	tx, errTx := r.db.BeginTx(ctx, nil)
	if errTx != nil {
		return errTx
	}
	defer func() {
		if errRollback := tx.Rollback(); errRollback != nil && !errors.Is(errRollback, sql.ErrTxDone) {
			log.Printf("failed to rollback transaction: %v", errRollback)
		}
	}()

	if _, errDel := tx.ExecContext(ctx, `DELETE FROM differences WHERE test_id = $1`, testID); errDel != nil {
		return errDel
	}

	insert := `INSERT INTO differences (id, test_id, position, query_name, query_type, groups, created_at)
			   VALUES ($1, $2, $3, $4, $5, $6, $7)`
	now := time.Now().UTC()
	for i, d := range diffs {
		groups, errJSON := json.Marshal(d.Groups)
		if errJSON != nil {
			return fmt.Errorf("encode groups of %s: %w", d.QueryName, errJSON)
		}
		if _, errExec := tx.ExecContext(ctx, insert, uuid.New().String(), testID, i, d.QueryName, d.QueryType, groups, now); errExec != nil {
			return errExec
		}
	}

	return tx.Commit()
}

func (r *PostgresRepository) GetDifferences(ctx context.Context, testID string) ([]domain.DifferenceReport, error) {
	query := `SELECT test_id, query_name, query_type, groups FROM differences WHERE test_id = $1 ORDER BY position`
	rows, errQuery := r.db.QueryContext(ctx, query, testID)
	if errQuery != nil {
		return nil, errQuery
	}
	defer func() {
		if errClose := rows.Close(); errClose != nil {
			log.Printf("failed to close rows: %v", errClose)
		}
	}()

	corpus, errScan := scanDifferences(rows)
	if errScan != nil {
		return nil, errScan
	}
	if len(corpus) == 0 {
		return nil, nil
	}
	return corpus[0].Differences, nil
}

func (r *PostgresRepository) ListDifferences(ctx context.Context) ([]domain.TestDifferences, error) {
	query := `SELECT test_id, query_name, query_type, groups FROM differences ORDER BY test_id, position`
	rows, errQuery := r.db.QueryContext(ctx, query)
	if errQuery != nil {
		return nil, errQuery
	}
	defer func() {
		if errClose := rows.Close(); errClose != nil {
			log.Printf("failed to close rows: %v", errClose)
		}
	}()
	return scanDifferences(rows)
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// scanDifferences folds rows ordered by test_id into one entry per test.
func scanDifferences(rows *sql.Rows) ([]domain.TestDifferences, error) {
	var out []domain.TestDifferences
	for rows.Next() {
		var testID string
		var d domain.DifferenceReport
		var groups []byte
		if errScan := rows.Scan(&testID, &d.QueryName, &d.QueryType, &groups); errScan != nil {
			return nil, errScan
		}
		if errJSON := json.Unmarshal(groups, &d.Groups); errJSON != nil {
			return nil, fmt.Errorf("decode groups of test %s: %w", testID, errJSON)
		}
		if n := len(out); n == 0 || out[n-1].TestID != testID {
			out = append(out, domain.TestDifferences{TestID: testID})
		}
		last := &out[len(out)-1]
		last.Differences = append(last.Differences, d)
	}
	return out, rows.Err()
}
