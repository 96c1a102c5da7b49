package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/upb/minichat-gateway/services/providers"
)

func TestNewOpenAIAdapter(t *testing.T) {
	adapter := NewOpenAIAdapter(providers.ProviderConfig{APIKey: "test-key"})

	if adapter.Name() != "openai" {
		t.Errorf("Name() = %s, want openai", adapter.Name())
	}
	if adapter.config.BaseURL != defaultBaseURL {
		t.Errorf("BaseURL = %s, want %s", adapter.config.BaseURL, defaultBaseURL)
	}
	if adapter.config.Model != defaultModel {
		t.Errorf("Model = %s, want %s", adapter.config.Model, defaultModel)
	}
}

func TestOpenAIAdapter_Complete(t *testing.T) {
	var got OpenAIChatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization = %s", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)

		json.NewEncoder(w).Encode(OpenAIChatResponse{
			ID:    "chatcmpl-1",
			Model: "gpt-4o-mini",
			Choices: []OpenAIChoice{
				{Message: OpenAIMessage{Role: "assistant", Content: "hi"}, FinishReason: "stop"},
			},
		})
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter(providers.ProviderConfig{APIKey: "test-key", BaseURL: server.URL})

	t.Run("new conversation gets an id", func(t *testing.T) {
		resp, err := adapter.Complete(context.Background(), &providers.CompletionRequest{UserRef: "user_1", Message: "hello"})
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if resp.Reply != "hi" {
			t.Errorf("Reply = %s, want hi", resp.Reply)
		}
		if !strings.HasPrefix(resp.ConversationID, "conv_") {
			t.Errorf("ConversationID = %s, want conv_ prefix", resp.ConversationID)
		}
		if got.User == nil || *got.User != "user_1" {
			t.Errorf("user not forwarded: %+v", got)
		}
		if len(got.Messages) != 1 || got.Messages[0].Content != "hello" {
			t.Errorf("unexpected messages %+v", got.Messages)
		}
	})

	t.Run("existing conversation id is kept", func(t *testing.T) {
		resp, err := adapter.Complete(context.Background(), &providers.CompletionRequest{Message: "again", ConversationID: "conv_x"})
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if resp.ConversationID != "conv_x" {
			t.Errorf("ConversationID = %s, want conv_x", resp.ConversationID)
		}
	})
}

func TestOpenAIAdapter_CompleteErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit_error"}}`, providers.CodeUpstream},
		{"unparseable error", http.StatusInternalServerError, `oops`, providers.CodeUpstream},
		{"no choices", http.StatusOK, `{"id":"x","choices":[]}`, providers.CodeMalformed},
		{"broken json", http.StatusOK, `{"id":`, providers.CodeMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			adapter := NewOpenAIAdapter(providers.ProviderConfig{BaseURL: server.URL})
			_, err := adapter.Complete(context.Background(), &providers.CompletionRequest{Message: "hello"})
			if code := providers.ErrorCode(err); code != tt.wantCode {
				t.Errorf("ErrorCode() = %s, want %s (%v)", code, tt.wantCode, err)
			}
		})
	}
}
