package synthesizer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketing-analyst/internal/analytics/executor"
	"marketing-analyst/internal/common/config"
	"marketing-analyst/internal/common/database"
	apperrors "marketing-analyst/internal/common/errors"
	"marketing-analyst/internal/common/logger"
	"marketing-analyst/internal/llm"
	"marketing-analyst/internal/llm/llmtest"
	"marketing-analyst/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type staticSchema string

func (s staticSchema) Describe() string { return string(s) }

func newTestSynthesizer(t *testing.T, model llm.ChatModel, cache DraftCache) (*Synthesizer, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	exec := executor.New(database.NewDataset(db, database.DialectPostgres),
		config.DatabaseConfig{QueryTimeout: 5000}, logger.NewTestLogger(t))
	return New(model, exec, staticSchema("Table: curated_pl_marketing_wide_synth"), cache, logger.NewTestLogger(t)), mock
}

// ==========================
// SynthesizeAndRun
// ==========================

func TestSynthesizeAndRun_InjectsWhereAndExecutes(t *testing.T) {
	model := llmtest.NewScriptedModel(llmtest.Text(
		"```sql\nSELECT first_touch_channel AS channel, COUNT(DISTINCT application_id) AS applications FROM curated_pl_marketing_wide_synth GROUP BY first_touch_channel;\n```"))
	s, mock := newTestSynthesizer(t, model, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM curated_pl_marketing_wide_synth WHERE snapshot_date BETWEEN $1 AND $2 GROUP BY first_touch_channel")).
		WithArgs("2025-08-01", "2025-08-31").
		WillReturnRows(sqlmock.NewRows([]string{"channel", "applications"}).AddRow("Email", 12))
	mock.ExpectRollback()

	res, err := s.SynthesizeAndRun(context.Background(), "applications by channel", baseFilters())
	require.NoError(t, err)
	assert.Equal(t, 1, CountWhere(res.GeneratedSQL))
	assert.Equal(t, 1, res.QueryResult.RowCount)
	assert.Equal(t, map[string]interface{}{"date_from": "2025-08-01", "date_to": "2025-08-31"}, res.Params)
	assert.NoError(t, mock.ExpectationsWereMet())

	// prompt carries the question, the schema, the concrete dates and the closing instruction
	calls := model.Calls()
	require.Len(t, calls, 1)
	prompt := calls[0].Messages[0].Content
	assert.Contains(t, prompt, "QUESTION: applications by channel")
	assert.Contains(t, prompt, "Table: curated_pl_marketing_wide_synth")
	assert.Contains(t, prompt, "BETWEEN '2025-08-01' AND '2025-08-31'")
	assert.True(t, strings.HasSuffix(prompt, "Generate ONLY the SQL query, nothing else:"))
}

func TestSynthesizeAndRun_ModelFailure(t *testing.T) {
	s, mock := newTestSynthesizer(t, llmtest.NewScriptedModel(llmtest.Fail(errors.New("provider down"))), nil)

	res, err := s.SynthesizeAndRun(context.Background(), "q", baseFilters())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSynthesisFailed, apperrors.CodeOf(err))
	assert.Equal(t, "q", res.Question)
	assert.Empty(t, res.GeneratedSQL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSynthesizeAndRun_ModelDeadline(t *testing.T) {
	s, _ := newTestSynthesizer(t, llmtest.NewScriptedModel(llmtest.Fail(context.DeadlineExceeded)), nil)

	_, err := s.SynthesizeAndRun(context.Background(), "q", baseFilters())
	assert.Equal(t, apperrors.ErrCodeTimeout, apperrors.CodeOf(err))
}

func TestSynthesizeAndRun_ProseIsSynthesisFailure(t *testing.T) {
	s, mock := newTestSynthesizer(t, llmtest.NewScriptedModel(llmtest.Text("I cannot answer that.")), nil)

	res, err := s.SynthesizeAndRun(context.Background(), "q", baseFilters())
	assert.Equal(t, apperrors.ErrCodeSynthesisFailed, apperrors.CodeOf(err))
	assert.Equal(t, "I cannot answer that.", res.GeneratedSQL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSynthesizeAndRun_NonSelectNeverExecutes(t *testing.T) {
	for _, draft := range []string{
		"DELETE FROM curated_pl_marketing_wide_synth",
		"UPDATE curated_pl_marketing_wide_synth SET fico = 0",
		"SELECT 1 FROM curated_pl_marketing_wide_synth; DROP TABLE curated_pl_marketing_wide_synth",
	} {
		s, mock := newTestSynthesizer(t, llmtest.NewScriptedModel(llmtest.Text(draft)), nil)
		_, err := s.SynthesizeAndRun(context.Background(), "q", baseFilters())
		require.Error(t, err, draft)
		assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, apperrors.CodeOf(err), draft)
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestSynthesizeAndRun_BackendErrorKeepsProvenance(t *testing.T) {
	s, mock := newTestSynthesizer(t, llmtest.NewScriptedModel(llmtest.Text(
		"SELECT bogus FROM curated_pl_marketing_wide_synth WHERE snapshot_date BETWEEN :date_from AND :date_to")), nil)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT bogus").WillReturnError(errors.New(`column "bogus" does not exist`))
	mock.ExpectRollback()

	res, err := s.SynthesizeAndRun(context.Background(), "q", baseFilters())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, apperrors.CodeOf(err))
	assert.Contains(t, res.GeneratedSQL, "SELECT bogus")
	assert.Nil(t, res.QueryResult)
}

func TestSynthesizeAndRun_NoModel(t *testing.T) {
	s, _ := newTestSynthesizer(t, nil, nil)
	_, err := s.SynthesizeAndRun(context.Background(), "q", baseFilters())
	assert.Equal(t, apperrors.ErrCodeConfiguration, apperrors.CodeOf(err))
}

// ==========================
// Draft cache
// ==========================

func TestSynthesizeAndRun_CachedDraftSkipsModel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cache := NewRedisDraftCache(client, time.Hour)

	model := llmtest.NewScriptedModel(llmtest.Text(
		"SELECT COUNT(*) AS loans FROM curated_pl_marketing_wide_synth WHERE snapshot_date BETWEEN :date_from AND :date_to"))
	s, mock := newTestSynthesizer(t, model, cache)

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT COUNT").
			WillReturnRows(sqlmock.NewRows([]string{"loans"}).AddRow(3))
		mock.ExpectRollback()
	}

	first, err := s.SynthesizeAndRun(context.Background(), "How many loans?", baseFilters())
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := s.SynthesizeAndRun(context.Background(), "how many   loans?", baseFilters())
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.GeneratedSQL, second.GeneratedSQL)

	assert.Len(t, model.Calls(), 1)
	assert.NoError(t, mock.ExpectationsWereMet())

	ttl := mr.TTL(DraftKey("how many loans?", baseFilters()))
	assert.Equal(t, time.Hour, ttl)
}

func TestSynthesizeAndRun_CacheErrorsAreMisses(t *testing.T) {
	const draft = "SELECT 1 AS one FROM curated_pl_marketing_wide_synth WHERE snapshot_date BETWEEN :date_from AND :date_to"

	client, rmock := redismock.NewClientMock()
	key := DraftKey("q", baseFilters())
	rmock.ExpectGet(key).SetErr(errors.New("connection refused"))
	rmock.ExpectSet(key, draft, time.Minute).SetErr(errors.New("connection refused"))

	model := llmtest.NewScriptedModel(llmtest.Text(draft))
	s, mock := newTestSynthesizer(t, model, NewRedisDraftCache(client, time.Minute))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectRollback()

	res, err := s.SynthesizeAndRun(context.Background(), "q", baseFilters())
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestRedisDraftCache_Miss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	_, ok, err := NewRedisDraftCache(client, time.Minute).Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

// ==========================
// Schema source
// ==========================

func TestSchemaSource_FileAndFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marketing.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"table":"curated_pl_marketing_wide_synth","description":"Daily rows","columns":[{"name":"fico","type":"INT","description":"FICO score"}]}]`), 0o600))

	src := NewSchemaSource(path, time.Minute, logger.NewTestLogger(t))
	text := src.Describe()
	assert.Contains(t, text, "Table: curated_pl_marketing_wide_synth")
	assert.Contains(t, text, "- fico (INT): FICO score")

	// cached: removing the file does not change the answer within the TTL
	require.NoError(t, os.Remove(path))
	assert.Equal(t, text, src.Describe())

	missing := NewSchemaSource(filepath.Join(dir, "nope.json"), time.Minute, logger.NewTestLogger(t))
	assert.Equal(t, fallbackSchema, missing.Describe())
}

func TestLoadSchemaFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"table":1}`), 0o600))
	_, err := LoadSchemaFile(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o600))
	_, err = LoadSchemaFile(path)
	assert.Error(t, err)
}

func TestBuildPrompt_ActiveFilters(t *testing.T) {
	f := models.Filters{DateFrom: "2025-08-01", DateTo: "2025-08-31", Segment: "Prime", Channel: "All"}
	p := BuildPrompt("q", "schema", f)
	assert.Contains(t, p, "- Customer segment: Prime (use :segment)")
	assert.NotContains(t, p, "Marketing channel")
	assert.Contains(t, p, "15. For financial metrics")
}
