package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blueprint-api/internal/model"
)

const validDocument = `{
  "title": "Pet Store",
  "description": "Sell pets online",
  "modules": [
    {
      "name": "Pet Catalog",
      "purpose": "Browse pets",
      "entities": [{"name": "Pet", "fields": [{"name": "price", "type": "number", "required": true}]}],
      "apis": [{"method": "GET", "path": "/pets", "entity": "Pet"}],
      "ui": [{"type": "Table", "entity": "Pet", "columns": ["price"]}]
    }
  ],
  "kpis": ["monthly sales"]
}`

type fakeCompletions struct {
	t *testing.T

	mu       sync.Mutex
	requests []map[string]any

	status  int
	content string
	delay   time.Duration
}

func (f *fakeCompletions) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, "/chat/completions", r.URL.Path)
	assert.Equal(f.t, "Bearer test-key", r.Header.Get("Authorization"))

	var body map[string]any
	assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
	f.mu.Lock()
	f.requests = append(f.requests, body)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 && f.status != http.StatusOK {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": f.content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
	})
}

func (f *fakeCompletions) lastRequest() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestGateway(t *testing.T, fake *fakeCompletions, timeout time.Duration) *Gateway {
	t.Helper()

	fake.t = t
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	return New(Options{APIKey: "test-key", BaseURL: server.URL, Timeout: timeout})
}

func messageContent(t *testing.T, req map[string]any, index int) string {
	t.Helper()

	messages, ok := req["messages"].([]any)
	require.True(t, ok)
	require.Greater(t, len(messages), index)
	msg, ok := messages[index].(map[string]any)
	require.True(t, ok)
	content, _ := msg["content"].(string)
	return content
}

func TestGatewayWithoutKeyIsNotConfigured(t *testing.T) {
	g := New(Options{})
	assert.False(t, g.Configured())

	_, err := g.GenerateSpec(context.Background(), "pet store app")
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = g.GenerateImplementation(context.Background(), model.Document{}, "api_module")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestGenerateSpecSendsFixedParameters(t *testing.T) {
	fake := &fakeCompletions{content: validDocument}
	g := newTestGateway(t, fake, time.Second)

	doc, err := g.GenerateSpec(context.Background(), "pet store app")
	require.NoError(t, err)
	assert.Equal(t, "Pet Store", doc.Title)
	require.Len(t, doc.Modules, 1)
	assert.Equal(t, "Pet Catalog", doc.Modules[0].Name)
	assert.Equal(t, []string{"monthly sales"}, doc.KPIs)

	req := fake.lastRequest()
	assert.Equal(t, "gpt-4o-mini", req["model"])
	assert.InDelta(t, 0.2, req["temperature"], 0.0001)
	assert.EqualValues(t, 4000, req["max_tokens"])
	format, ok := req["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
	assert.Equal(t, specSystemPrompt, messageContent(t, req, 0))
	assert.Equal(t, "Generate a technical specification for: pet store app", messageContent(t, req, 1))
}

func TestRefineSpecCarriesCurrentDocument(t *testing.T) {
	fake := &fakeCompletions{content: validDocument}
	g := newTestGateway(t, fake, time.Second)

	current := model.Document{Title: "Old Title", Modules: []model.Module{}, KPIs: []string{}}
	_, err := g.RefineSpec(context.Background(), current, "add a payments module")
	require.NoError(t, err)

	prompt := messageContent(t, fake.lastRequest(), 1)
	assert.Contains(t, prompt, `"title": "Old Title"`)
	assert.Contains(t, prompt, "add a payments module")
}

func TestRefineKeepsUnknownDocumentKeys(t *testing.T) {
	withExtra := strings.Replace(validDocument, `"kpis"`, `"personas": ["breeder"], "kpis"`, 1)
	fake := &fakeCompletions{content: withExtra}
	g := newTestGateway(t, fake, time.Second)

	doc, err := g.GenerateSpec(context.Background(), "pet store app")
	require.NoError(t, err)
	assert.JSONEq(t, `["breeder"]`, string(doc.Extra["personas"]))

	_, err = g.RefineSpec(context.Background(), doc, "add a payments module")
	require.NoError(t, err)
	assert.Contains(t, messageContent(t, fake.lastRequest(), 1), `"personas"`)
}

func TestGenerateImplementationSendsTypeMapping(t *testing.T) {
	fake := &fakeCompletions{content: `{"models_py":"m","serializers_py":"s","views_py":"v","urls_py":"u"}`}
	g := newTestGateway(t, fake, time.Second)

	impl, err := g.GenerateImplementation(context.Background(), model.Document{Title: "Pets"}, "pet_catalog")
	require.NoError(t, err)
	assert.Equal(t, model.Implementation{ModelsPy: "m", SerializersPy: "s", ViewsPy: "v", URLsPy: "u"}, impl)

	req := fake.lastRequest()
	assert.Equal(t, codeSystemPrompt, messageContent(t, req, 0))
	prompt := messageContent(t, req, 1)
	assert.Contains(t, prompt, "module 'pet_catalog'")
	for _, m := range TypeMappings {
		assert.Contains(t, prompt, "- "+m.FieldType+" -> "+m.Declaration)
	}
}

func TestTypeMappingsCoverEveryFieldType(t *testing.T) {
	mapped := map[string]bool{}
	for _, m := range TypeMappings {
		mapped[m.FieldType] = true
	}
	for _, fieldType := range model.FieldTypes {
		assert.True(t, mapped[fieldType], fieldType)
	}
}

func TestGatewayParseFailures(t *testing.T) {
	cases := map[string]string{
		"not json":        "here is your spec!",
		"missing title":   `{"description":"d","modules":[],"kpis":[]}`,
		"missing modules": `{"title":"t","description":"d","kpis":[]}`,
		"unnamed module":  `{"title":"t","description":"d","modules":[{"purpose":"p"}],"kpis":[]}`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			g := newTestGateway(t, &fakeCompletions{content: content}, time.Second)

			_, err := g.GenerateSpec(context.Background(), "idea")
			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
		})
	}

	t.Run("implementation missing keys", func(t *testing.T) {
		g := newTestGateway(t, &fakeCompletions{content: `{"models_py":"m"}`}, time.Second)

		_, err := g.GenerateImplementation(context.Background(), model.Document{}, "api_module")
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Contains(t, parseErr.Error(), "serializers_py, views_py, urls_py")
	})
}

func TestGatewayAcceptsFencedJSON(t *testing.T) {
	g := newTestGateway(t, &fakeCompletions{content: "```json\n" + validDocument + "\n```"}, time.Second)

	doc, err := g.GenerateSpec(context.Background(), "idea")
	require.NoError(t, err)
	assert.Equal(t, "Pet Store", doc.Title)
}

func TestGatewayServiceFailures(t *testing.T) {
	t.Run("upstream error status", func(t *testing.T) {
		g := newTestGateway(t, &fakeCompletions{status: http.StatusInternalServerError}, time.Second)

		_, err := g.GenerateSpec(context.Background(), "idea")
		var serviceErr *ServiceError
		require.ErrorAs(t, err, &serviceErr)
		assert.True(t, strings.HasPrefix(err.Error(), "AI service error: "))
		assert.Contains(t, err.Error(), "500")
	})

	t.Run("timeout", func(t *testing.T) {
		g := newTestGateway(t, &fakeCompletions{content: validDocument, delay: 2 * time.Second}, 50*time.Millisecond)

		started := time.Now()
		_, err := g.GenerateSpec(context.Background(), "idea")
		var serviceErr *ServiceError
		require.ErrorAs(t, err, &serviceErr)
		assert.Less(t, time.Since(started), time.Second)
	})

	t.Run("parse error is not a service error", func(t *testing.T) {
		g := newTestGateway(t, &fakeCompletions{content: "nope"}, time.Second)

		_, err := g.GenerateSpec(context.Background(), "idea")
		var serviceErr *ServiceError
		assert.False(t, errors.As(err, &serviceErr))
	})
}
