// Package dify adapts the Dify chat-messages API to providers.ChatCompletionProvider.
package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/upb/minichat-gateway/services/providers"
)

const (
	defaultBaseURL = "https://api.dify.ai/v1"

	// maxResponseBytes caps how much of an upstream body is read
	maxResponseBytes = 1 << 20
)

// DifyAdapter implements providers.ChatCompletionProvider in blocking response mode
type DifyAdapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
}

// NewDifyAdapter creates a new Dify adapter
func NewDifyAdapter(config providers.ProviderConfig) *DifyAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &DifyAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider name
func (a *DifyAdapter) Name() string {
	return "dify"
}

// Complete posts one message to /chat-messages and waits for the answer
func (a *DifyAdapter) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	startTime := time.Now()

	body, err := json.Marshal(&ChatMessageRequest{
		Inputs:         map[string]interface{}{},
		Query:          req.Message,
		ResponseMode:   "blocking",
		ConversationID: req.ConversationID,
		User:           req.UserRef,
	})
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeUpstream, "failed to marshal request", 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/chat-messages", bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeUpstream, "failed to create request", 0, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewTransportError(a.Name(), err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, providers.NewTransportError(a.Name(), err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, a.handleErrorResponse(httpResp.StatusCode, respBody)
	}

	var difyResp ChatMessageResponse
	if err := json.Unmarshal(respBody, &difyResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeMalformed, "failed to unmarshal response", httpResp.StatusCode, err)
	}
	if difyResp.Answer == "" {
		return nil, providers.NewProviderError(a.Name(), providers.CodeMalformed, "response has no answer", httpResp.StatusCode, nil)
	}

	conversationID := difyResp.ConversationID
	if conversationID == "" {
		conversationID = req.ConversationID
	}

	return &providers.CompletionResponse{
		Reply:          difyResp.Answer,
		ConversationID: conversationID,
		MessageID:      difyResp.MessageID,
		Provider:       a.Name(),
		Latency:        time.Since(startTime),
	}, nil
}

// handleErrorResponse turns a non-200 reply into an upstream error
func (a *DifyAdapter) handleErrorResponse(statusCode int, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Message == "" {
		return providers.NewProviderError(a.Name(), providers.CodeUpstream,
			fmt.Sprintf("unexpected status %d", statusCode), statusCode, nil)
	}

	return providers.NewProviderError(a.Name(), providers.CodeUpstream,
		fmt.Sprintf("%s: %s", errResp.Code, errResp.Message), statusCode, nil)
}

// Dify-specific request/response types

type ChatMessageRequest struct {
	Inputs         map[string]interface{} `json:"inputs"`
	Query          string                 `json:"query"`
	ResponseMode   string                 `json:"response_mode"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	User           string                 `json:"user"`
}

type ChatMessageResponse struct {
	Event          string `json:"event"`
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	Mode           string `json:"mode"`
	Answer         string `json:"answer"`
	CreatedAt      int64  `json:"created_at"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}
