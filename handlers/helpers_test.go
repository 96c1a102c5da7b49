package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/upb/minichat-gateway/middleware"
	"github.com/upb/minichat-gateway/models"
	"github.com/upb/minichat-gateway/services/session"
)

func newPrincipal() *session.Principal {
	return &session.Principal{
		SubjectID:  uuid.New(),
		ExternalID: "openid-abc",
		IssuedAs:   models.SessionTypeUser,
		Token:      "token-1",
		ExpiresAt:  time.Now().Add(720 * time.Hour),
	}
}

// authedRequest builds a request carrying principal as if the auth pipeline had run
func authedRequest(method, target, body string, principal *session.Principal) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if principal != nil {
		req = req.WithContext(middleware.WithPrincipal(req.Context(), principal))
	}
	return req
}

type envelope struct {
	Data    json.RawMessage        `json:"data"`
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	return env
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}
