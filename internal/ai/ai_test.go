package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"spx-studio/internal/config"

	"github.com/stretchr/testify/require"
)

func newTestGenerator(t *testing.T, handler http.HandlerFunc) *Generator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGenerator(config.AIConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "gpt-4o",
		Timeout: 5 * time.Second,
	})
}

func completion(content string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(completion(content))
}

func TestGenerateWebsiteUsesModelOutput(t *testing.T) {
	var body chatRequest
	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		content, _ := json.Marshal(map[string]string{"html": "<h1>Bakery</h1>", "css": "h1{}", "js": "1;"})
		writeCompletion(w, string(content))
	})

	result := gen.GenerateWebsite(context.Background(), "a bakery in Lisbon")
	require.Equal(t, SourceAI, result.Source)
	require.Equal(t, "<h1>Bakery</h1>", result.HTML)
	require.Equal(t, "h1{}", result.CSS)
	require.Equal(t, "1;", result.JS)

	require.Equal(t, "gpt-4o", body.Model)
	require.Equal(t, "json_object", body.ResponseFormat["type"])
	require.Len(t, body.Messages, 2)
	require.Equal(t, "Create a website for: a bakery in Lisbon", body.Messages[1].Content)
}

func TestGenerateWebsiteReadsUntypedResponse(t *testing.T) {
	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		content, _ := json.Marshal(map[string]string{"html": "<h1>Plain</h1>"})
		_ = json.NewEncoder(w).Encode(completion(string(content)))
	})

	result := gen.GenerateWebsite(context.Background(), "plain")
	require.Equal(t, SourceAI, result.Source)
	require.Equal(t, "<h1>Plain</h1>", result.HTML)
}

func TestGenerateWebsiteFallsBackOnError(t *testing.T) {
	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model"}}`))
	})

	result := gen.GenerateWebsite(context.Background(), "portfolio for a jazz pianist")
	require.Equal(t, SourceFallback, result.Source)
	require.Contains(t, result.HTML, "<title>portfolio for a</title>")
	require.NotEmpty(t, result.CSS)
	require.NotEmpty(t, result.JS)
}

func TestGenerateWebsiteWithoutKeySkipsNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	gen := NewGenerator(config.AIConfig{BaseURL: srv.URL})
	result := gen.GenerateWebsite(context.Background(), "shop")
	require.Equal(t, SourceFallback, result.Source)
	require.Zero(t, atomic.LoadInt32(&calls))
}

func TestFallbackTitleIsEscaped(t *testing.T) {
	result := FallbackWebsite("<b>Bold</b> & co")
	require.NotContains(t, result.HTML, "<b>Bold</b>")
	require.Contains(t, result.HTML, "&lt;b&gt;Bold&lt;/b&gt; &amp; co")
	require.Equal(t, "My Website", fallbackTitle("   "))
}

func TestAnalyzeDesignSendsImagePart(t *testing.T) {
	var raw map[string]interface{}
	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		content, _ := json.Marshal(map[string]string{"html": "<main></main>"})
		writeCompletion(w, string(content))
	})

	result := gen.AnalyzeDesign(context.Background(), "data:image/png;base64,AAAA")
	require.Equal(t, SourceAI, result.Source)

	messages := raw["messages"].([]interface{})
	user := messages[1].(map[string]interface{})
	parts := user["content"].([]interface{})
	require.Len(t, parts, 2)
	image := parts[1].(map[string]interface{})["image_url"].(map[string]interface{})
	require.Equal(t, "data:image/jpeg;base64,AAAA", image["url"])
}

func TestAnalyzeDesignFallsBack(t *testing.T) {
	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, "")
	})

	result := gen.AnalyzeDesign(context.Background(), "AAAA")
	require.Equal(t, SourceFallback, result.Source)
	require.Contains(t, result.HTML, "Canva Design Import")
}

func TestParseContentSplitsInlineAssets(t *testing.T) {
	doc := "```html\n<!DOCTYPE html><html><head><style>body{color:red}</style></head>" +
		"<body><p>hi</p><script>console.log(1)</script><script src=\"/x.js\"></script></body></html>\n```"

	result, err := parseContent(doc)
	require.NoError(t, err)
	require.Equal(t, "body{color:red}", result.CSS)
	require.Equal(t, "console.log(1)", result.JS)
	require.NotContains(t, result.HTML, "<style>")
	require.Contains(t, result.HTML, "<p>hi</p>")
	require.Contains(t, result.HTML, `src="/x.js"`)
}

func TestParseContentRejectsGarbage(t *testing.T) {
	_, err := parseContent("sorry, I can't help with that")
	require.Error(t, err)

	_, err = parseContent(`{"html":""}`)
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestStripDataURL(t *testing.T) {
	require.Equal(t, "QUJD", StripDataURL("data:image/png;base64,QUJD"))
	require.Equal(t, "QUJD", StripDataURL("QUJD"))
}

func TestLimiterPerUser(t *testing.T) {
	l := NewLimiter(2)
	require.True(t, l.Allow(1))
	require.True(t, l.Allow(1))
	require.False(t, l.Allow(1))
	require.True(t, l.Allow(2))

	disabled := NewLimiter(0)
	for i := 0; i < 10; i++ {
		require.True(t, disabled.Allow(1))
	}
}

func TestLimiterDropsIdleUsers(t *testing.T) {
	l := NewLimiter(1)
	start := time.Now()

	require.True(t, l.allowAt(1, start))
	require.True(t, l.allowAt(2, start.Add(30*time.Second)))
	require.False(t, l.allowAt(2, start.Add(31*time.Second)))
	require.Len(t, l.limiters, 2, "no sweep within a minute of the last one")

	// User 1 refilled after a minute and is dropped, user 2 is still throttled.
	require.False(t, l.allowAt(2, start.Add(61*time.Second)))
	require.Len(t, l.limiters, 1)
	require.Contains(t, l.limiters, int64(2))
}
