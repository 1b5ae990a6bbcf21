package executor

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketing-analyst/internal/common/config"
	"marketing-analyst/internal/common/database"
	apperrors "marketing-analyst/internal/common/errors"
	"marketing-analyst/internal/common/logger"
	"marketing-analyst/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestExecutor(t *testing.T, timeoutMs int) (*Executor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	exec := New(
		database.NewDataset(db, database.DialectPostgres),
		config.DatabaseConfig{QueryTimeout: timeoutMs},
		logger.NewTestLogger(t),
	)
	return exec, mock
}

func defaultFilters() models.Filters {
	return models.Filters{DateFrom: "2025-08-01", DateTo: "2025-09-18"}
}

// ==========================
// Template execution
// ==========================

func TestRunTemplate_KPISummary(t *testing.T) {
	exec, mock := newTestExecutor(t, 5000)

	rows := sqlmock.NewRows([]string{"month", "marketing_spend", "revenue", "applications",
		"funded_loans", "funded_amount", "funding_rate", "roas", "cost_per_funded_loan"}).
		AddRow(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), []byte("1200.50"), []byte("3601.50"), 40, 10, 250000.0, 25.0, 3.0, 120.05).
		AddRow(time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC), []byte("800"), []byte("0"), 10, 0, 0.0, 0.0, 0.0, 0.0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE snapshot_date BETWEEN $1 AND $2")).
		WithArgs("2025-08-01", "2025-09-18").
		WillReturnRows(rows)
	mock.ExpectRollback()

	result, err := exec.RunTemplate(context.Background(), "KPI_SUMMARY", defaultFilters())
	require.NoError(t, err)

	assert.Equal(t, 2, result.RowCount)
	assert.Equal(t, "month", result.Columns[0])
	assert.Equal(t, "2025-08-01", result.Rows[0]["month"])
	assert.Equal(t, 1200.50, result.Rows[0]["marketing_spend"])
	assert.Equal(t, int64(40), result.Rows[0]["applications"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunTemplate_BindsActiveFilters(t *testing.T) {
	exec, mock := newTestExecutor(t, 5000)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("AND segment_name = $3 AND first_touch_channel = $4")).
		WithArgs("2025-08-01", "2025-09-18", "Prime", "Email").
		WillReturnRows(sqlmock.NewRows([]string{"channel", "marketing_spend"}))
	mock.ExpectRollback()

	filters := defaultFilters()
	filters.Segment = "Prime"
	filters.Channel = "Email"

	result, err := exec.RunTemplate(context.Background(), "CHANNEL_PERFORMANCE", filters)
	require.NoError(t, err)
	assert.Equal(t, 0, result.RowCount)
	assert.NotNil(t, result.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunTemplate_UnknownNeverQueries(t *testing.T) {
	exec, mock := newTestExecutor(t, 5000)

	_, err := exec.RunTemplate(context.Background(), "DROP_EVERYTHING", defaultFilters())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnknownTemplate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunTemplate_BackendError(t *testing.T) {
	exec, mock := newTestExecutor(t, 5000)

	mock.ExpectBegin()
	mock.ExpectQuery("curated_pl_marketing_wide_synth").
		WillReturnError(errors.New("relation does not exist"))
	mock.ExpectRollback()

	_, err := exec.RunTemplate(context.Background(), "TOP_CAMPAIGNS", defaultFilters())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "relation does not exist")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunTemplate_Timeout(t *testing.T) {
	exec, mock := newTestExecutor(t, 20)

	mock.ExpectBegin()
	mock.ExpectQuery("curated_pl_marketing_wide_synth").
		WillDelayFor(500 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows([]string{"segment"}))
	mock.ExpectRollback()

	_, err := exec.RunTemplate(context.Background(), "SEGMENT_ANALYSIS", defaultFilters())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeTimeout, apperrors.CodeOf(err))
}

// ==========================
// Raw SQL execution
// ==========================

func TestRunSQL_Success(t *testing.T) {
	exec, mock := newTestExecutor(t, 5000)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT campaign_name AS campaign, SUM(revenue_daily) AS revenue FROM curated_pl_marketing_wide_synth WHERE snapshot_date BETWEEN $1 AND $2")).
		WithArgs("2025-08-01", "2025-09-18").
		WillReturnRows(sqlmock.NewRows([]string{"campaign", "revenue"}).AddRow("Spring", 10.0))
	mock.ExpectRollback()

	result, err := exec.RunSQL(context.Background(),
		"SELECT campaign_name AS campaign, SUM(revenue_daily) AS revenue FROM curated_pl_marketing_wide_synth WHERE snapshot_date BETWEEN :date_from AND :date_to GROUP BY campaign_name;",
		map[string]interface{}{"date_from": "2025-08-01", "date_to": "2025-09-18"})
	require.NoError(t, err)
	assert.Equal(t, []string{"campaign", "revenue"}, result.Columns)
	assert.Equal(t, "Spring", result.Rows[0]["campaign"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSQL_RejectedNeverQueries(t *testing.T) {
	exec, mock := newTestExecutor(t, 5000)

	for _, query := range []string{
		"DELETE FROM curated_pl_marketing_wide_synth",
		"SELECT 1; DROP TABLE curated_pl_marketing_wide_synth",
		"WITH x AS (DELETE FROM t RETURNING *) SELECT * FROM x",
	} {
		_, err := exec.RunSQL(context.Background(), query, nil)
		require.Error(t, err, query)
		assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, apperrors.CodeOf(err))
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSQL_MissingParameter(t *testing.T) {
	exec, mock := newTestExecutor(t, 5000)

	_, err := exec.RunSQL(context.Background(), "SELECT * FROM t WHERE segment_name = :segment", map[string]interface{}{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), ":segment")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Guard
// ==========================

func TestCheckReadOnly(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    string
		wantErr bool
	}{
		{"select", "SELECT 1", "SELECT 1", false},
		{"trailing semicolon", "SELECT 1;  ", "SELECT 1", false},
		{"with", "WITH a AS (SELECT 1) SELECT * FROM a", "WITH a AS (SELECT 1) SELECT * FROM a", false},
		{"keyword inside literal", "SELECT 'DELETE me; now' AS note", "SELECT 'DELETE me; now' AS note", false},
		{"keyword inside comment", "SELECT 1 -- drop table later\n", "SELECT 1 -- drop table later", false},
		{"update", "UPDATE t SET a = 1", "", true},
		{"select into", "SELECT * INTO backup FROM t", "", true},
		{"stacked", "SELECT 1; SELECT 2", "", true},
		{"pragma", "PRAGMA table_info(t)", "", true},
		{"replace function", "SELECT REPLACE(campaign_name, '_', ' ') AS c FROM t", "SELECT REPLACE(campaign_name, '_', ' ') AS c FROM t", false},
		{"replace into", "REPLACE INTO t VALUES (1)", "", true},
		{"with replace into", "WITH a AS (SELECT 1) REPLACE INTO t SELECT * FROM a", "", true},
		{"empty", "  ;", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckReadOnly(tt.query)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, apperrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMask_PreservesOffsets(t *testing.T) {
	q := "SELECT 'a;b' /* c */ FROM t"
	m := Mask(q)
	assert.Len(t, m, len(q))
	assert.NotContains(t, m, ";")
	assert.Contains(t, m, "FROM t")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, 12.5, normalize([]byte("12.5")))
	assert.Equal(t, "abc", normalize([]byte("abc")))
	assert.Equal(t, "2025-08-01", normalize(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-08-01T10:30:00Z", normalize(time.Date(2025, 8, 1, 10, 30, 0, 0, time.UTC)))
	assert.Nil(t, normalize(nil))
}
