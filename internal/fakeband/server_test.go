package fakeband

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fslongjin/bandsweep/pkg/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFixture = `
authUrl: https://auth.example/authorize
users:
  - code: good-code
    accessToken: tok
    userKey: u1
    name: Alice
  - code: other-code
    accessToken: tok-2
    userKey: u2
    name: Bob
bands:
  - bandKey: b1
    name: Hikers
    memberCount: 3
    posts:
      - postKey: p1
        comments:
          - {commentKey: c1, body: "Buy SPAM now"}
          - {commentKey: c2, body: "hello"}
          - {commentKey: c3, body: "more spam", fail: "rate limited", failTimes: 1}
      - postKey: p2
        fail: "post locked"
        comments:
          - {commentKey: c4, body: "ok"}
  - bandKey: private
    name: Secret
    members: [u2]
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f, err := ParseFixture([]byte(testFixture))
	require.NoError(t, err)
	return New(f, Options{})
}

func do(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestAuthEndpoints(t *testing.T) {
	s := newTestServer(t)

	w, out := do(t, s, http.MethodGet, "/api/auth/band", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://auth.example/authorize", out["data"].(map[string]any)["auth_url"])

	w, out = do(t, s, http.MethodPost, "/api/auth/oauth/token", `{"code":"good-code"}`)
	require.Equal(t, http.StatusOK, w.Code)
	data := out["data"].(map[string]any)
	assert.Equal(t, "tok", data["access_token"])
	assert.Equal(t, "u1", data["user_key"])

	w, out = do(t, s, http.MethodPost, "/api/auth/oauth/token", `{"code":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, out["success"])

	w, _ = do(t, s, http.MethodPost, "/api/auth/oauth/token", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListBandsHonorsMembership(t *testing.T) {
	s := newTestServer(t)

	bands, err := s.World().Bands("tok")
	require.NoError(t, err)
	require.Len(t, bands, 1)
	assert.Equal(t, "b1", bands[0].BandKey)

	bands, err = s.World().Bands("tok-2")
	require.NoError(t, err)
	assert.Len(t, bands, 2)

	w, _ := do(t, s, http.MethodGet, "/api/bands?access_token=bad", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = do(t, s, http.MethodGet, "/api/bands/private/posts/count?access_token=tok", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCountEndpoints(t *testing.T) {
	s := newTestServer(t)

	_, out := do(t, s, http.MethodGet, "/api/bands/b1/comments/count?access_token=tok", "")
	assert.EqualValues(t, 4, out["count"])

	_, out = do(t, s, http.MethodGet, "/api/bands/b1/comments/count/keyword?access_token=tok&keyword=spam", "")
	assert.EqualValues(t, 2, out["count"], "keyword matching is case-insensitive")

	_, out = do(t, s, http.MethodGet, "/api/bands/b1/posts/count?access_token=tok", "")
	assert.EqualValues(t, 2, out["data"].(map[string]any)["count"])

	w, _ := do(t, s, http.MethodGet, "/api/bands/b1/comments/count/keyword?access_token=tok&keyword=%20", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, s, http.MethodGet, "/api/bands/missing/comments/count?access_token=tok", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteKeywordCommentsWithInjectedFailure(t *testing.T) {
	s := newTestServer(t)

	w, out := do(t, s, http.MethodDelete, "/api/bands/b1/comments/keyword?access_token=tok&keyword=SPAM", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := out["data"].(map[string]any)
	assert.EqualValues(t, 2, data["total"])
	assert.EqualValues(t, 1, data["successful"])
	assert.EqualValues(t, 1, data["failed"])
	failed := data["failed_comments"].([]any)
	require.Len(t, failed, 1)
	assert.Equal(t, "c3", failed[0].(map[string]any)["comment_key"])

	scope, err := model.KeywordComments("spam")
	require.NoError(t, err)
	n, err := s.World().Count("tok", "b1", scope)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// failTimes: 1 lets the second attempt through.
	outcome, err := s.World().Delete(context.Background(), "tok", "b1", scope, 0)
	require.NoError(t, err)
	assert.Equal(t, model.DeleteOutcome{Total: 1, Successful: 1}, *outcome)
	assert.Equal(t, 2, s.World().DeleteCalls("b1", scope))
}

func TestDeletePostsTakesCommentsAlong(t *testing.T) {
	s := newTestServer(t)

	w, out := do(t, s, http.MethodDelete, "/api/bands/b1/posts?access_token=tok", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := out["data"].(map[string]any)
	assert.EqualValues(t, 2, data["total"])
	assert.EqualValues(t, 1, data["failed"])
	failed := data["failed_posts"].([]any)
	assert.Equal(t, "post locked", failed[0].(map[string]any)["error"])

	n, err := s.World().Count("tok", "b1", model.AllComments())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the comment on the locked post survives")
}

func TestFaultInjection(t *testing.T) {
	s := newTestServer(t)

	s.SetHTMLErrors(true)
	w, _ := do(t, s, http.MethodGet, "/api/bands/b1/comments/count?access_token=tok", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	s.SetHTMLErrors(false)

	s.SetRemoteError("upstream quota exceeded")
	w, out := do(t, s, http.MethodDelete, "/api/bands/b1/comments?access_token=tok", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "upstream quota exceeded", out["error"].(map[string]any)["message"])
	assert.Equal(t, 0, s.World().DeleteCalls("b1", model.AllComments()))
}

func TestLoadFixtureRejectsDuplicates(t *testing.T) {
	_, err := ParseFixture([]byte("bands:\n  - bandKey: a\n  - bandKey: a\n"))
	assert.Error(t, err)

	_, err = ParseFixture([]byte("users:\n  - code: x\n"))
	assert.Error(t, err)

	f := DefaultFixture()
	require.NoError(t, f.validate())
}
