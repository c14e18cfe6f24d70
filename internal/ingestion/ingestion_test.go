package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golf-qa/backend/internal/storage/models"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name      string
		words     int
		size      int
		overlap   int
		wantCount int
		wantFirst int
		wantLast  int
	}{
		{name: "empty", words: 0, size: 512, overlap: 50, wantCount: 0},
		{name: "single chunk", words: 100, size: 512, overlap: 50, wantCount: 1, wantFirst: 100, wantLast: 100},
		{name: "two chunks", words: 600, size: 512, overlap: 50, wantCount: 2, wantFirst: 512, wantLast: 138},
		{name: "no overlap", words: 10, size: 5, overlap: 0, wantCount: 2, wantFirst: 5, wantLast: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Chunk(words(tt.words), tt.size, tt.overlap)
			require.Len(t, chunks, tt.wantCount)
			if tt.wantCount == 0 {
				return
			}
			assert.Len(t, strings.Fields(chunks[0]), tt.wantFirst)
			assert.Len(t, strings.Fields(chunks[len(chunks)-1]), tt.wantLast)
		})
	}
}

func TestChunkOverlapSharesWords(t *testing.T) {
	chunks := Chunk(words(20), 10, 3)
	require.GreaterOrEqual(t, len(chunks), 2)

	first := strings.Fields(chunks[0])
	second := strings.Fields(chunks[1])
	assert.Equal(t, first[7:], second[:3])
}

func TestProcessorPassages(t *testing.T) {
	p := NewProcessor(512, 50)
	rules, err := NewSampleSource().FetchRules(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 3)

	passages := p.Passages(rules[2])
	require.Len(t, passages, 1)
	assert.Equal(t, "13_chunk_0", passages[0].ID)
	assert.Equal(t, "Putting Greens", passages[0].Section)
	assert.True(t, strings.HasPrefix(passages[0].Text, "Rule 13: Putting Greens"))
	assert.Equal(t, "January 1, 2023", passages[0].EffectiveDate)
	assert.NotEmpty(t, passages[0].ContentHash)

	again := p.Passages(rules[2])
	assert.Equal(t, passages[0].ContentHash, again[0].ContentHash)

	changed := rules[2]
	changed.Content += " Additional clarification."
	assert.NotEqual(t, passages[0].ContentHash, p.Passages(changed)[0].ContentHash)
}

func TestSampleCourses(t *testing.T) {
	courses, err := NewSampleSource().FetchCourses(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 10)

	pebble := courses[0]
	assert.Equal(t, "Pebble Beach Golf Links", pebble.Name)
	assert.Equal(t, "93953", pebble.ZipCode)
	assert.Equal(t, 145, pebble.SlopeMax)
	assert.Equal(t, 6828, pebble.Tees["Championship"].Yardage)

	courses[0].Name = "mutated"
	assert.Equal(t, "Pebble Beach Golf Links", SampleCourses()[0].Name)
}

const rulesPage = `<html><head><title>Rules</title><script>var x = 1;</script></head>
<body data-effective-date="January 1, 2023">
<nav><h2>Rule 99: Navigation</h2><p>ignored</p></nav>
<h2>Rule 18: Stroke-and-Distance Relief, Ball Lost or Out of Bounds</h2>
<p>A ball is lost if not found in three minutes after you begin to search for it.</p>
<ul><li>You may take stroke-and-distance relief at any time.</li><li>Provisional ball allowed.</li></ul>
<h3>Rule 19: Unplayable Ball</h3>
<p>You are the only person who may decide to treat your ball as unplayable.</p>
<h2>About the Rules</h2>
<p>Background text.</p>
<h2>Rule 20</h2>
</body></html>`

func TestParseRules(t *testing.T) {
	rules, err := ParseRules(strings.NewReader(rulesPage), "https://example.test/rules")
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "18", rules[0].RuleID)
	assert.Equal(t, "Stroke-and-Distance Relief, Ball Lost or Out of Bounds", rules[0].Section)
	assert.Contains(t, rules[0].Content, "three minutes")
	assert.Contains(t, rules[0].Content, "- Provisional ball allowed.")
	assert.Equal(t, "https://example.test/rules", rules[0].SourceURL)
	assert.Equal(t, "January 1, 2023", rules[0].EffectiveDate)

	assert.Equal(t, "19", rules[1].RuleID)
	assert.Equal(t, "Unplayable Ball", rules[1].Section)
}

func TestHTMLSourceRetriesServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(rulesPage))
	}))
	defer server.Close()

	source := NewHTMLSource(server.URL, 5*time.Second)
	source.retryConfig.InitialDelay = time.Millisecond

	rules, err := source.FetchRules(context.Background())
	require.NoError(t, err)
	assert.Len(t, rules, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	courses, err := source.FetchCourses(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, courses)
}

func TestHTMLSourceNotFoundIsNotRetried(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	source := NewHTMLSource(server.URL, 5*time.Second)
	_, err := source.FetchRules(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

var _ Source = (*SampleSource)(nil)
var _ Source = (*HTMLSource)(nil)

func TestSampleSourceHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSampleSource().FetchRules(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewSampleSource().FetchCourses(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPassagesCarryRuleMetadata(t *testing.T) {
	rule := models.Rule{RuleID: "7", Section: "Ball Search", Content: words(30), SourceURL: "https://example.test"}
	passages := NewProcessor(20, 5).Passages(rule)

	require.Len(t, passages, 2)
	assert.Equal(t, "7_chunk_1", passages[1].ID)
	for _, p := range passages {
		assert.Equal(t, "7", p.RuleID)
		assert.Equal(t, "Ball Search", p.Section)
		assert.Equal(t, "https://example.test", p.SourceURL)
		assert.Empty(t, p.Embedding)
	}
}
