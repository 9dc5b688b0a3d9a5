package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tourscan/internal/model"
)

func newOllamaServer(t *testing.T, handler func(req GenerateRequest) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"models":[]}`))
		case "/api/generate":
			var req GenerateRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			status, text := handler(req)
			w.WriteHeader(status)
			if status == http.StatusOK {
				_ = json.NewEncoder(w).Encode(GenerateResponse{Response: text})
			} else {
				_, _ = w.Write([]byte(text))
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAnalyzer(baseURL string, timeout time.Duration) *Analyzer {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Timeout = timeout
	return NewAnalyzer(NewOllamaClient(cfg, zap.NewNop()), nil, AnalyzerConfig{MaxChars: 100, MinConfidence: 50}, zap.NewNop())
}

func TestParseAnalysis(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantKind  ParseKind
		wantTours int
	}{
		{
			name:      "fenced JSON with prose",
			raw:       "Sure! ```json\n{\"found_tours\":[],\"best_candidate\":null,\"analysis\":\"none\"}\n```",
			wantKind:  ParseParsed,
			wantTours: 0,
		},
		{
			name:      "plain object",
			raw:       `{"found_tours":[{"provider":"google","url":"https://maps.google.com/@1,2","confidence":90,"reason":"x"}],"analysis":"ok"}`,
			wantKind:  ParseParsed,
			wantTours: 1,
		},
		{
			name:      "braces inside strings",
			raw:       `Ответ: {"found_tours":[],"analysis":"скобка } внутри \"строки\""} и хвост {`,
			wantKind:  ParseParsed,
			wantTours: 0,
		},
		{
			name:     "no object",
			raw:      "Я не нашел туров",
			wantKind: ParseMalformed,
		},
		{
			name:     "broken JSON",
			raw:      `{"found_tours": [}`,
			wantKind: ParseMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAnalysis(tt.raw)
			assert.Equal(t, tt.wantKind, got.Kind, got.Reason)
			if tt.wantKind == ParseParsed {
				assert.Len(t, got.Value.FoundTours, tt.wantTours)
			} else {
				assert.Equal(t, tt.raw, got.Raw)
				assert.NotEmpty(t, got.Reason)
			}
		})
	}
}

func TestAnalyzer_FencedEmptyResponse(t *testing.T) {
	srv := newOllamaServer(t, func(req GenerateRequest) (int, string) {
		return http.StatusOK, "Sure! ```json\n{\"found_tours\":[],\"best_candidate\":null,\"analysis\":\"none\"}\n```"
	})
	a := newTestAnalyzer(srv.URL, 5*time.Second)

	result := a.Analyze(context.Background(), "<html></html>", "КазНУ")
	assert.NotNil(t, result.FoundTours)
	assert.Empty(t, result.FoundTours)
	assert.Nil(t, result.BestCandidate)
	assert.Equal(t, "none", result.Analysis)
}

func TestAnalyzer_RequestContract(t *testing.T) {
	var got GenerateRequest
	srv := newOllamaServer(t, func(req GenerateRequest) (int, string) {
		got = req
		return http.StatusOK, `{"found_tours":[],"analysis":""}`
	})
	a := newTestAnalyzer(srv.URL, 5*time.Second)

	long := strings.Repeat("я", 500)
	a.Analyze(context.Background(), long, "ЕНУ")

	assert.Equal(t, "llama3.1", got.Model)
	assert.False(t, got.Stream)
	assert.InDelta(t, 0.1, got.Options.Temperature, 1e-9)
	assert.Equal(t, 2000, got.Options.MaxTokens)
	assert.Contains(t, got.Prompt, "ЕНУ")
	assert.Contains(t, got.Prompt, strings.Repeat("я", 100))
	assert.NotContains(t, got.Prompt, strings.Repeat("я", 101), "выдержка обрезается до бюджета")
}

func TestAnalyzer_NormalizesCandidates(t *testing.T) {
	srv := newOllamaServer(t, func(req GenerateRequest) (int, string) {
		return http.StatusOK, `{
			"found_tours": [
				{"provider": "yandex_panorama", "url": "https://yandex.kz/maps/?ll=71.43,51.09&l=pano", "confidence": 70, "reason": "ссылка"},
				{"provider": "google", "url": "https://2gis.kz/astana?m=71.40,51.12", "confidence": 95, "reason": "карта"},
				{"provider": "google", "url": "https://www.google.com/maps/@51.1,71.4,3a", "confidence": 20, "reason": "слабый"},
				{"provider": "bing", "url": "https://bing.com/maps", "confidence": 99, "reason": "чужой"},
				{"provider": "google", "url": "https://maps.google.com/x", "confidence": 150, "reason": "мусор"}
			],
			"best_candidate": {"provider": "twogis", "url": "https://2gis.kz/astana?m=71.40,51.12", "confidence": 95, "reason": "карта"},
			"analysis": "два тура"
		}`
	})
	a := newTestAnalyzer(srv.URL, 5*time.Second)

	result := a.Analyze(context.Background(), "<html></html>", "ЕНУ")
	require.Len(t, result.FoundTours, 2)

	// Лучший кандидат первым, провайдер определен по домену
	first := result.FoundTours[0]
	assert.Equal(t, model.ProviderTwoGIS, first.Provider)
	require.NotNil(t, first.Latitude)
	assert.InDelta(t, 51.12, *first.Latitude, 1e-9)
	assert.InDelta(t, 71.40, *first.Longitude, 1e-9)

	second := result.FoundTours[1]
	assert.Equal(t, model.ProviderYandex, second.Provider)
	require.NotNil(t, second.Latitude)
	assert.InDelta(t, 51.09, *second.Latitude, 1e-9)

	require.NotNil(t, result.BestCandidate)
	assert.Equal(t, model.ProviderTwoGIS, result.BestCandidate.Provider)
}

func TestAnalyzer_Degrades(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		srv := newOllamaServer(t, func(req GenerateRequest) (int, string) {
			return http.StatusServiceUnavailable, "overloaded"
		})
		result := newTestAnalyzer(srv.URL, 5*time.Second).Analyze(context.Background(), "<p/>", "X")
		assert.Empty(t, result.FoundTours)
		assert.Contains(t, result.Analysis, "503")
	})

	t.Run("malformed", func(t *testing.T) {
		srv := newOllamaServer(t, func(req GenerateRequest) (int, string) {
			return http.StatusOK, "Туров не найдено."
		})
		result := newTestAnalyzer(srv.URL, 5*time.Second).Analyze(context.Background(), "<p/>", "X")
		assert.Empty(t, result.FoundTours)
		assert.Contains(t, result.Analysis, "malformed")
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()

		result := newTestAnalyzer(srv.URL, 100*time.Millisecond).Analyze(context.Background(), "<p/>", "X")
		assert.Empty(t, result.FoundTours)
		assert.Contains(t, result.Analysis, "AI request failed")
	})
}

func TestAnalyzer_ExtractCoordinatesFromURL(t *testing.T) {
	a := NewAnalyzer(nil, nil, AnalyzerConfig{}, zap.NewNop())

	point, ok := a.ExtractCoordinatesFromURL("https://yandex.ru/maps/?panorama%5Bpoint%5D=76.95,43.24")
	require.True(t, ok)
	assert.InDelta(t, 43.24, point.Lat, 1e-9)
	assert.InDelta(t, 76.95, point.Lng, 1e-9)
}

func TestOllamaClient_Ping(t *testing.T) {
	srv := newOllamaServer(t, func(req GenerateRequest) (int, string) { return http.StatusOK, "" })
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	assert.NoError(t, NewOllamaClient(cfg, zap.NewNop()).Ping(context.Background()))

	cfg.BaseURL = "http://127.0.0.1:1"
	assert.Error(t, NewOllamaClient(cfg, zap.NewNop()).Ping(context.Background()))
}

func TestClient_Generate(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Response{Choices: []Choice{{Message: Message{Role: "assistant", Content: `{"found_tours":[]}`}}}})
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Backend = BackendOpenAI
	cfg.BaseURL = srv.URL + "/v1"
	cfg.APIKey = "secret"

	gen, err := NewGenerator(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "openai", gen.Name())

	text, err := gen.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"found_tours":[]}`, text)
	assert.Equal(t, "Bearer secret", auth)

	metrics := NewAnalyzer(gen, nil, AnalyzerConfig{}, zap.NewNop()).GetMetrics()
	assert.Equal(t, "openai", metrics["backend"])
	assert.Equal(t, int64(1), metrics["total_requests"])
	assert.Equal(t, int64(1), metrics["successful_requests"])
	assert.Equal(t, int64(0), metrics["failed_requests"])
}

func TestNewGenerator_Unknown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "claude"
	_, err := NewGenerator(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)

	cfg.Backend = BackendGemini
	_, err = NewGenerator(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err, "gemini требует API ключ")
}
