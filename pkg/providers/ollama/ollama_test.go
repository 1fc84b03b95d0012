package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nerdneilsfield/notebook-translator/pkg/providers"
	"github.com/nerdneilsfield/notebook-translator/pkg/translation"
)

func TestProvider_Translate(t *testing.T) {
	// 创建模拟服务器
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Errorf("local backend should not send auth header, got: %s", auth)
		}

		var chatReq ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&chatReq); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if chatReq.Stream {
			t.Error("stream must be disabled")
		}
		if len(chatReq.Messages) != 2 {
			t.Errorf("expected 2 messages, got %d", len(chatReq.Messages))
		}

		resp := ChatResponse{
			Model:   chatReq.Model,
			Message: Message{Role: "assistant", Content: "你好，世界！"},
			Done:    true,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	config := DefaultConfig()
	config.APIEndpoint = server.URL

	provider := New(config)

	resp, err := provider.Translate(context.Background(), &providers.Request{Text: "Hello, world!"})
	if err != nil {
		t.Fatalf("translation failed: %v", err)
	}
	if resp.Text != "你好，世界！" {
		t.Errorf("unexpected translation: %s", resp.Text)
	}
}

func TestProvider_ConnectionRefused(t *testing.T) {
	// 指向一个没有监听的端口
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	config := DefaultConfig()
	config.APIEndpoint = endpoint
	config.RetryConfig.InitialDelay = time.Millisecond
	config.RetryConfig.MaxDelay = time.Millisecond

	provider := New(config)

	_, err := provider.Translate(context.Background(), &providers.Request{Text: "Hello"})
	if err == nil {
		t.Fatal("expected error but got none")
	}
	if !errors.Is(err, translation.ErrConnectivity) {
		t.Errorf("expected ErrConnectivity, got: %v", err)
	}
	if !strings.Contains(err.Error(), "ollama serve") {
		t.Errorf("error should tell the user to start the server, got: %v", err)
	}
}

func TestProvider_ModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(APIError{ErrorMsg: `model "qwen2.5" not found, try pulling it first`})
	}))
	defer server.Close()

	config := DefaultConfig()
	config.APIEndpoint = server.URL

	provider := New(config)

	_, err := provider.Translate(context.Background(), &providers.Request{Text: "Hello"})
	if err == nil {
		t.Fatal("expected error but got none")
	}
	if !errors.Is(err, translation.ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound, got: %v", err)
	}
	if !strings.Contains(err.Error(), "ollama pull") {
		t.Errorf("error should tell the user to fetch the model, got: %v", err)
	}
}

func TestProvider_ReasoningOnlyOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := ChatResponse{
			Model:   "qwen2.5",
			Message: Message{Role: "assistant", Content: "<think>no answer</think>"},
			Done:    true,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	config := DefaultConfig()
	config.APIEndpoint = server.URL

	provider := New(config)

	_, err := provider.Translate(context.Background(), &providers.Request{Text: "Hello"})
	if !errors.Is(err, translation.ErrReasoningOnly) {
		t.Errorf("expected ErrReasoningOnly, got: %v", err)
	}
}

func TestProvider_GetCapabilities(t *testing.T) {
	provider := New(DefaultConfig())
	caps := provider.GetCapabilities()

	if caps.RequiresAPIKey {
		t.Error("local backend should not require API key")
	}
	if !caps.Local {
		t.Error("should be local")
	}
}
