package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Alligator/jqawk/internal/cache"
)

func testServer(t *testing.T) (*Server, *AuthService) {
	auth := NewAuthService("test-secret", time.Hour)
	progCache := cache.NewProgramCache(cache.NewMemoryCache(cache.DefaultConfig()))
	return New(auth, progCache, nil, nil), auth
}

func TestHandleRunRejectsUnauthenticated(t *testing.T) {
	s, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/run", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleRunSuccess(t *testing.T) {
	s, auth := testServer(t)
	token, err := auth.IssueToken("test")
	require.NoError(t, err)

	body, _ := json.Marshal(runRequest{
		Source:   `{ print $.name }`,
		Selector: "$",
		Input:    `[{"name": "ok"}]`,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/run", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, []string{"ok"}, resp.Lines)
}

func TestHandleRunCompileError(t *testing.T) {
	s, auth := testServer(t)
	token, _ := auth.IssueToken("test")

	body, _ := json.Marshal(runRequest{Source: `{ print $`, Input: `{}`})
	req := httptest.NewRequest(http.MethodPost, "/v1/run", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
