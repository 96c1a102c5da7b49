// Package identity exchanges mini-program login codes for stable user identities.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/upb/minichat-gateway/services"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.weixin.qq.com"

// Identity is the result of a successful code exchange
type Identity struct {
	OpenID     string
	SessionKey string
	UnionID    string
}

// Exchanger turns a one-time login code into an Identity
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// Config holds the mini-program credentials
type Config struct {
	AppID     string
	AppSecret string
	BaseURL   string
	Timeout   time.Duration
}

// WeChatExchanger calls the jscode2session endpoint
type WeChatExchanger struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWeChatExchanger creates a new exchanger
func NewWeChatExchanger(cfg Config, logger *zap.Logger) *WeChatExchanger {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &WeChatExchanger{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// code2SessionResponse is the jscode2session payload. Errors arrive with HTTP 200 and a non-zero errcode.
type code2SessionResponse struct {
	OpenID     string `json:"openid"`
	SessionKey string `json:"session_key"`
	UnionID    string `json:"unionid"`
	ErrCode    int    `json:"errcode"`
	ErrMsg     string `json:"errmsg"`
}

// Exchange resolves code to the caller's openid and session key
func (e *WeChatExchanger) Exchange(ctx context.Context, code string) (*Identity, error) {
	if strings.TrimSpace(code) == "" {
		return nil, services.NewValidationError("code is required")
	}

	query := url.Values{}
	query.Set("appid", e.cfg.AppID)
	query.Set("secret", e.cfg.AppSecret)
	query.Set("js_code", code)
	query.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.BaseURL+"/sns/jscode2session?"+query.Encode(), nil)
	if err != nil {
		return nil, exchangeFailed("failed to build request", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.logger.Warn("wechat code exchange request failed", zap.Error(err))
		return nil, exchangeFailed("identity provider unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, exchangeFailed("failed to read identity provider response", err)
	}
	if resp.StatusCode != http.StatusOK {
		e.logger.Warn("wechat code exchange returned non-200", zap.Int("status", resp.StatusCode))
		return nil, exchangeFailed(fmt.Sprintf("identity provider returned status %d", resp.StatusCode), nil)
	}

	var payload code2SessionResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, exchangeFailed("unreadable identity provider response", err)
	}
	if payload.ErrCode != 0 {
		e.logger.Warn("wechat rejected login code",
			zap.Int("errcode", payload.ErrCode),
			zap.String("errmsg", payload.ErrMsg),
		)
		return nil, exchangeFailed("login code rejected", nil).
			WithDetail("errcode", payload.ErrCode).
			WithDetail("errmsg", payload.ErrMsg)
	}
	if payload.OpenID == "" {
		return nil, exchangeFailed("identity provider returned no openid", nil)
	}

	return &Identity{
		OpenID:     payload.OpenID,
		SessionKey: payload.SessionKey,
		UnionID:    payload.UnionID,
	}, nil
}

func exchangeFailed(message string, err error) *services.DomainError {
	return services.NewDomainError(services.ErrorTypeIdentityExchangeFailed, message, err)
}
