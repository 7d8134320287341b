package translator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/types"
)

func TestFormatParseRoundTrip(t *testing.T) {
	units := map[string]string{
		"P1_0":     "first paragraph",
		"P1_1":     "two\nlines",
		"T1_0_2_1": "cell",
	}

	wire := FormatUnits(units)
	// Deterministic address ordering
	lines := strings.Split(strings.TrimSpace(wire), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "<<P1_0>>"))
	assert.True(t, strings.HasPrefix(lines[2], "<<T1_0_2_1>>"))
	assert.NotContains(t, lines[1], "\n")

	assert.Equal(t, units, ParseUnits(wire))
}

func TestParseUnitsJoinsContinuationLines(t *testing.T) {
	got := ParseUnits("<<P1_0>> start\nreflowed rest\n<<P1_1>> next\n")
	assert.Equal(t, map[string]string{
		"P1_0": "start\nreflowed rest",
		"P1_1": "next",
	}, got)
}

func TestBatchesRespectSizeCap(t *testing.T) {
	units := map[string]string{
		"P1_0": strings.Repeat("a", 30),
		"P1_1": strings.Repeat("b", 30),
		"P1_2": strings.Repeat("c", 30),
	}

	groups := batches(units, 80)
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"P1_0", "P1_1"}, groups[0])
	assert.Equal(t, []string{"P1_2"}, groups[1])

	// A single oversized unit still forms a batch of its own
	groups = batches(map[string]string{"P1_0": strings.Repeat("x", 500)}, 80)
	require.Len(t, groups, 1)
}

// echoServer answers every chat request by upper-casing the tagged text
func echoServer(t *testing.T, fail *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail != nil && atomic.AddInt32(fail, -1) >= 0 {
			http.Error(w, "upstream overloaded", http.StatusInternalServerError)
			return
		}
		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)

		var reply strings.Builder
		for _, line := range strings.Split(req.Messages[0].Content, "\n") {
			if strings.HasPrefix(line, "<<") {
				reply.WriteString(strings.ToUpper(line[:strings.Index(line, ">>")+2]) +
					strings.ToUpper(line[strings.Index(line, ">>")+2:]) + "\n")
			}
		}
		resp := ChatCompletionResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message Message `json:"message"`
		}{Message: Message{Role: "assistant", Content: reply.String()}})
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAIClientTranslate(t *testing.T) {
	srv := echoServer(t, nil)
	defer srv.Close()

	c := NewOpenAIClient("key", "test-model", srv.URL, 5*time.Second, 2)
	got, err := c.Translate(context.Background(),
		map[string]string{"P1_0": "hello", "P1_1": "world"},
		types.LangEnglish, types.LangJapanese)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"P1_0": "HELLO", "P1_1": "WORLD"}, got)
}

func TestOpenAIClientRetriesOnServerError(t *testing.T) {
	fails := int32(1)
	srv := echoServer(t, &fails)
	defer srv.Close()

	c := NewOpenAIClient("key", "", srv.URL, 5*time.Second, 1)
	got, err := c.Translate(context.Background(),
		map[string]string{"P1_0": "hello"}, types.LangEnglish, types.LangJapanese)
	require.NoError(t, err)
	assert.Contains(t, got, "P1_0")
}

func TestOpenAIClientRequiresAPIKey(t *testing.T) {
	c := NewOpenAIClient("", "", "http://localhost:0", time.Second, 1)
	_, err := c.Translate(context.Background(),
		map[string]string{"P1_0": "x"}, types.LangEnglish, types.LangJapanese)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrConfig))
}

func TestOpenAIClientEmptyInput(t *testing.T) {
	c := NewOpenAIClient("key", "", "http://localhost:0", time.Second, 1)
	got, err := c.Translate(context.Background(), nil, types.LangEnglish, types.LangJapanese)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNormalizeAPIURL(t *testing.T) {
	assert.Equal(t, "https://api.example.com/v1/chat/completions",
		normalizeAPIURL("https://api.example.com/v1/"))
	assert.Equal(t, "https://api.example.com/v1/chat/completions",
		normalizeAPIURL("https://api.example.com/v1/chat/completions"))
}
