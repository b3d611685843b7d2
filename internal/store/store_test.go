// internal/store/store_test.go
package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stackscope/internal/detection"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mock.ExpectPing()
	st, err := New(context.Background(), mock, zap.NewNop())
	require.NoError(t, err)
	return st, mock
}

func sampleOutcomes() []detection.Outcome {
	return []detection.Outcome{
		{
			Technology:      detection.TechWordPress,
			Confidence:      0.95,
			Version:         "6.1",
			OriginalURL:     "http://example.com/",
			FinalURL:        "https://example.com/",
			RedirectCount:   1,
			MethodsUsed:     []string{"meta-generator"},
			ExecutionTimeMs: 812,
		},
		{
			Technology:  detection.TechUnknown,
			OriginalURL: "https://down.example/",
			FinalURL:    "https://down.example/",
			Error:       "network error: no such host",
		},
	}
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	_, err = New(context.Background(), mock, zap.NewNop())
	assert.ErrorContains(t, err, "failed to ping database")
}

func TestSaveOutcomes(t *testing.T) {
	t.Run("should bulk insert all outcomes under one run id", func(t *testing.T) {
		st, mock := newMockStore(t)
		outcomes := sampleOutcomes()

		mock.ExpectCopyFrom(pgx.Identifier{"outcomes"}, outcomeColumns).
			WillReturnResult(int64(len(outcomes)))

		runID, err := st.SaveOutcomes(context.Background(), outcomes)
		require.NoError(t, err)
		assert.NotEmpty(t, runID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should fail on a copy count mismatch", func(t *testing.T) {
		st, mock := newMockStore(t)

		mock.ExpectCopyFrom(pgx.Identifier{"outcomes"}, outcomeColumns).
			WillReturnResult(1)

		_, err := st.SaveOutcomes(context.Background(), sampleOutcomes())
		assert.ErrorContains(t, err, "mismatch in copied outcome count")
	})

	t.Run("should skip the insert for an empty batch", func(t *testing.T) {
		st, mock := newMockStore(t)

		runID, err := st.SaveOutcomes(context.Background(), nil)
		require.NoError(t, err)
		assert.NotEmpty(t, runID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetOutcomesByRunID(t *testing.T) {
	st, mock := newMockStore(t)

	rows := pgxmock.NewRows([]string{
		"technology", "confidence", "version", "original_url", "final_url",
		"redirect_count", "protocol_upgraded", "methods_used",
		"execution_time_ms", "error",
	}).AddRow(
		"WordPress", 0.95, "6.1", "http://example.com/", "https://example.com/",
		1, true, []string{"meta-generator"},
		int64(812), "",
	)

	mock.ExpectQuery("SELECT technology, confidence, version").
		WithArgs("run-1").
		WillReturnRows(rows)

	outcomes, err := st.GetOutcomesByRunID(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	assert.Equal(t, detection.TechWordPress, outcomes[0].Technology)
	assert.Equal(t, "6.1", outcomes[0].Version)
	assert.Equal(t, []string{"meta-generator"}, outcomes[0].MethodsUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
