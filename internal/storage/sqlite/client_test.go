package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golf-qa/backend/internal/storage/models"
	"github.com/golf-qa/backend/pkg/apperrors"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(filepath.Join(t.TempDir(), "golf.db"))
	require.NoError(t, err)
	require.NoError(t, client.InitSchema())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func samplePassage(id, ruleID, text string) *models.Passage {
	return &models.Passage{
		ID:             id,
		RuleID:         ruleID,
		Section:        "Rules of Golf",
		Title:          "Rule " + ruleID,
		Text:           text,
		EffectiveDate:  "January 1, 2023",
		SourceURL:      "https://www.usga.org/rules.html",
		ContentHash:    "hash-" + id,
		Embedding:      []float32{0.25, -0.5, 1},
		EmbeddingModel: "local",
		LastRefreshed:  time.Unix(1700000000, 0),
	}
}

func insertQuery(t *testing.T, client *Client, id string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, client.InsertQueryRecord(context.Background(), &models.QueryRecord{
		ID:           id,
		Question:     "How long do I have to search for a lost ball?",
		PassageIDs:   []string{"18_chunk_0"},
		Answer:       "Three minutes (Rule 18.2a).",
		Model:        "claude-sonnet-4-5-20250929",
		InputTokens:  100,
		OutputTokens: 20,
		TotalTokens:  120,
		CostUSD:      0.0006,
		LatencyMS:    850,
		CreatedAt:    createdAt,
	}))
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.InitSchema())

	exists, err := client.hasColumn("passages", "embedding_model")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = client.hasColumn("query_history", "query_type")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPassageUpsertPreservesOrder(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	require.NoError(t, client.UpsertPassage(ctx, samplePassage("1_chunk_0", "1", "first")))
	require.NoError(t, client.UpsertPassage(ctx, samplePassage("2_chunk_0", "2", "second")))
	require.NoError(t, client.UpsertPassage(ctx, samplePassage("13_chunk_0", "13", "third")))

	updated := samplePassage("1_chunk_0", "1", "first, revised")
	updated.Embedding = []float32{1, 0, 0}
	require.NoError(t, client.UpsertPassage(ctx, updated))

	passages, err := client.ListPassages(ctx)
	require.NoError(t, err)
	require.Len(t, passages, 3)

	assert.Equal(t, []string{"1_chunk_0", "2_chunk_0", "13_chunk_0"},
		[]string{passages[0].ID, passages[1].ID, passages[2].ID})
	assert.Equal(t, "first, revised", passages[0].Text)
	assert.Equal(t, []float32{1, 0, 0}, passages[0].Embedding)
	assert.Equal(t, "local", passages[0].EmbeddingModel)
	assert.Equal(t, int64(1700000000), passages[0].LastRefreshed.Unix())
}

func TestMissingAndStalePassages(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	require.NoError(t, client.UpsertPassage(ctx, samplePassage("1_chunk_0", "1", "a")))
	require.NoError(t, client.UpsertPassage(ctx, samplePassage("2_chunk_0", "2", "b")))

	missing, err := client.MissingPassages(ctx, []string{"1_chunk_0", "99_chunk_0"})
	require.NoError(t, err)
	assert.Equal(t, []string{"99_chunk_0"}, missing)

	removed, err := client.DeletePassagesExcept(ctx, []string{"2_chunk_0"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	count, err := client.CountPassages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = client.GetPassage(ctx, "1_chunk_0")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestFeedback(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	insertQuery(t, client, "q-1", time.Now())

	tests := []struct {
		name    string
		id      string
		value   int
		wantErr error
	}{
		{name: "thumbs up", id: "q-1", value: 1},
		{name: "same value again", id: "q-1", value: 1},
		{name: "thumbs down", id: "q-1", value: -1},
		{name: "reset", id: "q-1", value: 0},
		{name: "out of range", id: "q-1", value: 2, wantErr: apperrors.ErrInvalidFeedback},
		{name: "negative out of range", id: "q-1", value: -5, wantErr: apperrors.ErrInvalidFeedback},
		{name: "unknown id", id: "nope", value: 1, wantErr: apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.UpdateFeedback(ctx, tt.id, tt.value)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			record, err := client.GetQueryRecord(ctx, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.value, record.Feedback)
		})
	}

	record, err := client.GetQueryRecord(ctx, "q-1")
	require.NoError(t, err)
	assert.Equal(t, 0, record.Feedback)
}

func TestMetricRecordRequiresQuery(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	err := client.InsertMetricRecord(ctx, &models.MetricRecord{QueryID: "missing", Faithfulness: 1})
	assert.Error(t, err)

	insertQuery(t, client, "q-1", time.Now())
	metric := &models.MetricRecord{QueryID: "q-1", ContextRelevancy: 0.8, Faithfulness: 0.5}
	require.NoError(t, client.InsertMetricRecord(ctx, metric))
	assert.NotZero(t, metric.ID)

	metrics, err := client.GetMetricsForQuery(ctx, "q-1")
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.InDelta(t, 0.8, metrics[0].ContextRelevancy, 1e-9)
}

func TestQueryHistoryAndStats(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	now := time.Now()

	insertQuery(t, client, "old", now.Add(-40*24*time.Hour))
	insertQuery(t, client, "recent", now.Add(-time.Hour))
	insertQuery(t, client, "newest", now)
	require.NoError(t, client.UpdateFeedback(ctx, "recent", 1))
	require.NoError(t, client.InsertAPIUsage(ctx, &models.APIUsage{
		APIName: "anthropic", Operation: "answer", TokensInput: 100, TokensOutput: 20, CostUSD: 0.0006,
	}))
	require.NoError(t, client.InsertMetricRecord(ctx, &models.MetricRecord{QueryID: "recent", Faithfulness: 0.6}))
	require.NoError(t, client.InsertMetricRecord(ctx, &models.MetricRecord{QueryID: "newest", Faithfulness: 0.8}))

	history, err := client.ListQueryHistory(ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "newest", history[0].ID)
	assert.Equal(t, []string{"18_chunk_0"}, history[0].PassageIDs)
	assert.Equal(t, "rules", history[0].QueryType)

	stats, err := client.GetQueryStats(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalQueries)
	assert.Equal(t, 1, stats.PositiveCount)
	assert.Equal(t, 2, stats.QueriesByType["rules"])
	assert.InDelta(t, 0.0012, stats.TotalCostUSD, 1e-9)

	avg, err := client.GetAvgRAGMetrics(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, avg.Count)
	assert.InDelta(t, 0.7, avg.Faithfulness, 1e-9)

	costs, err := client.GetAPICosts(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, costs, 1)
	assert.Equal(t, "anthropic", costs[0].APIName)
	assert.Equal(t, 1, costs[0].Calls)
}

func TestCourses(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	pebble := &models.Course{
		Name: "Pebble Beach Golf Links", City: "Pebble Beach", State: "CA", ZipCode: "93953",
		SlopeMin: 142, SlopeMax: 145, RatingMin: 73.9, RatingMax: 75.5,
		Tees: map[string]models.TeeDetail{
			"Championship": {Yardage: 7075, Par: 72, CourseRating: 75.5, SlopeRating: 145, Color: "Black"},
		},
		LastUpdated: time.Now(),
	}
	bethpage := &models.Course{
		Name: "Bethpage Black", City: "Farmingdale", State: "NY", ZipCode: "11735",
		SlopeMin: 148, SlopeMax: 155, RatingMin: 76.6, RatingMax: 78.1,
	}
	require.NoError(t, client.UpsertCourse(ctx, pebble))
	require.NoError(t, client.UpsertCourse(ctx, bethpage))

	pebble.Phone = "(831) 622-8723"
	require.NoError(t, client.UpsertCourse(ctx, pebble))

	count, err := client.CountCourses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	courses, err := client.SearchCourses(ctx, models.CourseFilter{State: "ca"})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "(831) 622-8723", courses[0].Phone)
	assert.Equal(t, "USA", courses[0].Country)
	assert.Equal(t, 7075, courses[0].Tees["Championship"].Yardage)

	courses, err = client.SearchCourses(ctx, models.CourseFilter{MinSlope: 150})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Bethpage Black", courses[0].Name)

	courses, err = client.SearchCourses(ctx, models.CourseFilter{City: "pebble"})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Pebble Beach", courses[0].City)

	courses, err = client.SearchCourses(ctx, models.CourseFilter{City: "Pebble", State: "NY"})
	require.NoError(t, err)
	assert.Empty(t, courses)
}

func TestFreshnessRecords(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	_, err := client.GetFreshness(ctx, models.DataTypeRules)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	now := time.Unix(1700000000, 0)
	require.NoError(t, client.UpsertFreshness(ctx, &models.FreshnessRecord{
		DataType:    models.DataTypeRules,
		LastAttempt: now,
		Status:      models.StatusInProgress,
	}))
	require.NoError(t, client.UpsertFreshness(ctx, &models.FreshnessRecord{
		DataType:       models.DataTypeRules,
		LastAttempt:    now,
		LastSuccess:    now,
		NextScheduled:  now.Add(30 * 24 * time.Hour),
		Status:         models.StatusSuccess,
		RecordsUpdated: 3,
	}))

	record, err := client.GetFreshness(ctx, models.DataTypeRules)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, record.Status)
	assert.Equal(t, 3, record.RecordsUpdated)
	assert.Equal(t, now.Unix(), record.LastSuccess.Unix())
}

func TestGetQueryRecordDatabaseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	client := NewClientWithDB(db)
	mock.ExpectQuery("SELECT (.+) FROM query_history WHERE id = ?").
		WithArgs("q-1").
		WillReturnError(errors.New("disk I/O error"))

	_, err = client.GetQueryRecord(context.Background(), "q-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateFeedbackWithMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	client := NewClientWithDB(db)

	require.ErrorIs(t, client.UpdateFeedback(context.Background(), "q-1", 3), apperrors.ErrInvalidFeedback)

	mock.ExpectExec("UPDATE query_history SET feedback").
		WithArgs(1, "q-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = client.UpdateFeedback(context.Background(), "q-2", 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddingEncoding(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.125}
	assert.Equal(t, in, decodeEmbedding(encodeEmbedding(in)))
	assert.Nil(t, encodeEmbedding(nil))
	assert.Nil(t, decodeEmbedding([]byte{1, 2}))
}

func TestPragmasApplyToEveryConnection(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	// Without idle connections every statement runs on a freshly opened one.
	client.db.SetMaxIdleConns(0)

	for i := 0; i < 2; i++ {
		var foreignKeys, busyTimeout int
		require.NoError(t, client.db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&foreignKeys))
		require.NoError(t, client.db.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busyTimeout))
		assert.Equal(t, 1, foreignKeys)
		assert.Equal(t, 5000, busyTimeout)

		var journalMode string
		require.NoError(t, client.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode))
		assert.Equal(t, "wal", journalMode)
	}

	err := client.InsertMetricRecord(ctx, &models.MetricRecord{QueryID: "missing", Faithfulness: 1})
	assert.Error(t, err)
}

func TestNewClientUnreachablePath(t *testing.T) {
	_, err := NewClient(filepath.Join(t.TempDir(), "no", "such", "dir", "golf.db"))
	assert.ErrorContains(t, err, "failed to connect to database")
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "golf.db?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", dsn("golf.db"))
	assert.Equal(t, "file:golf.db?cache=shared&_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", dsn("file:golf.db?cache=shared"))
}
