package openrouter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	openaisdk "github.com/openai/openai-go"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if client := NewClient(Config{BaseURL: "http://localhost"}); client != nil {
		t.Fatal("expected nil client without api key")
	}
}

func TestNewClientSendsAttributionHeaders(t *testing.T) {
	t.Parallel()

	var referer, title string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer = r.Header.Get("HTTP-Referer")
		title = r.Header.Get("X-Title")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c","object":"chat.completion","created":1,"model":"m",` +
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL:  server.URL + "/",
		APIKey:   "k",
		SiteURL:  "https://ops-desk.local",
		SiteName: "ops-desk",
	})
	if client == nil {
		t.Fatal("expected client")
	}

	_, err := client.Chat.Completions.New(context.Background(), openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel("m"),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{openaisdk.UserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("chat completion error: %v", err)
	}
	if referer != "https://ops-desk.local" || title != "ops-desk" {
		t.Fatalf("headers = %q %q", referer, title)
	}
}

func TestNewChatModelRequiresModel(t *testing.T) {
	t.Parallel()

	cfg := &Config{APIKey: "k"}
	if _, err := cfg.New(context.Background()); err == nil {
		t.Fatal("expected error for missing model")
	}
}

func TestConfigEndpointDefaultsToOpenRouter(t *testing.T) {
	t.Parallel()

	if got := (Config{}).endpoint(); got != DefaultBaseURL {
		t.Fatalf("endpoint() = %q, want %q", got, DefaultBaseURL)
	}
	if got := (Config{BaseURL: " http://localhost:8080/v1/ "}).endpoint(); got != "http://localhost:8080/v1" {
		t.Fatalf("endpoint() = %q", got)
	}
}

func TestExcludesReasoning(t *testing.T) {
	t.Parallel()

	if !ExcludesReasoning(" x-ai/grok-4.1-fast ") {
		t.Fatal("expected reasoning to be excluded for grok")
	}
	if ExcludesReasoning("openai/gpt-4o-mini") {
		t.Fatal("unexpected reasoning exclusion")
	}
}
