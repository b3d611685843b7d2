// Package store persists detection outcomes to PostgreSQL so repeated runs
// can be compared over time.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stackscope/internal/detection"
)

// DBPool abstracts pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store provides a PostgreSQL implementation of outcome persistence.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

var outcomeColumns = []string{
	"id", "run_id", "technology", "confidence", "version",
	"original_url", "final_url", "redirect_count", "protocol_upgraded",
	"methods_used", "execution_time_ms", "error", "observed_at",
}

// SaveOutcomes bulk-inserts one batch run's outcomes under a shared run ID,
// which it returns.
func (s *Store) SaveOutcomes(ctx context.Context, outcomes []detection.Outcome) (string, error) {
	runID := uuid.New().String()
	if len(outcomes) == 0 {
		return runID, nil
	}

	observedAt := time.Now().UTC()
	rows := make([][]interface{}, len(outcomes))
	for i, o := range outcomes {
		rows[i] = []interface{}{
			uuid.New().String(), runID,
			string(o.Technology), o.Confidence, o.Version,
			o.OriginalURL, o.FinalURL, o.RedirectCount, o.ProtocolUpgraded,
			o.MethodsUsed, o.ExecutionTimeMs, o.Error,
			observedAt,
		}
	}

	copyCount, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"outcomes"},
		outcomeColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return "", fmt.Errorf("failed to copy outcomes: %w", err)
	}
	if int(copyCount) != len(outcomes) {
		return "", fmt.Errorf("mismatch in copied outcome count: expected %d, got %d", len(outcomes), copyCount)
	}

	s.log.Info("Persisted batch outcomes.",
		zap.String("run_id", runID),
		zap.Int("count", len(outcomes)),
	)
	return runID, nil
}

// GetOutcomesByRunID returns the persisted outcomes of one run in insertion
// order.
func (s *Store) GetOutcomesByRunID(ctx context.Context, runID string) ([]detection.Outcome, error) {
	query := `
        SELECT technology, confidence, version, original_url, final_url,
               redirect_count, protocol_upgraded, methods_used,
               execution_time_ms, error
        FROM outcomes
        WHERE run_id = $1
        ORDER BY observed_at ASC, original_url ASC;
    `
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []detection.Outcome
	for rows.Next() {
		var o detection.Outcome
		var tech string

		err := rows.Scan(
			&tech, &o.Confidence, &o.Version, &o.OriginalURL, &o.FinalURL,
			&o.RedirectCount, &o.ProtocolUpgraded, &o.MethodsUsed,
			&o.ExecutionTimeMs, &o.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome row: %w", err)
		}

		o.Technology = detection.Technology(tech)
		outcomes = append(outcomes, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return outcomes, nil
}
