package bandsweep

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/fslongjin/bandsweep/internal/fakeband"
	"github.com/fslongjin/bandsweep/pkg/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFake(t *testing.T, opts fakeband.Options) (*fakeband.Server, *Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fake := fakeband.New(fakeband.DefaultFixture(), opts)
	ts := httptest.NewServer(fake.Router())
	t.Cleanup(ts.Close)
	return fake, NewClient(ts.URL+"/api", WithTimeout(5*time.Second))
}

func TestAuthFlow(t *testing.T) {
	_, client := newFake(t, fakeband.Options{})
	ctx := context.Background()

	authURL, err := client.Auth.AuthURL(ctx)
	require.NoError(t, err)
	assert.Contains(t, authURL, "oauth2/authorize")

	cred, err := client.Auth.ExchangeCode(ctx, " demo-code ")
	require.NoError(t, err)
	assert.Equal(t, "demo-token", cred.AccessToken)
	assert.Equal(t, "demo-user", cred.IdentityID)

	_, err = client.Auth.ExchangeCode(ctx, "wrong")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))

	_, err = client.Auth.ExchangeCode(ctx, "")
	assert.Error(t, err)
}

func TestBandsListAndFind(t *testing.T) {
	_, client := newFake(t, fakeband.Options{})

	bands, err := client.Bands.List(context.Background(), "demo-token")
	require.NoError(t, err)
	require.Len(t, bands, 2)

	b, err := Find(bands, "band-books")
	require.NoError(t, err)
	assert.Equal(t, "Book Club", b.Name)

	b, err = Find(bands, "weekend hiking")
	require.NoError(t, err)
	assert.Equal(t, "band-hiking", b.BandKey)

	_, err = Find(bands, "nope")
	assert.ErrorIs(t, err, ErrBandNotFound)

	_, err = Find([]Band{{BandKey: "a", Name: "Same"}, {BandKey: "b", Name: "same"}}, "Same")
	assert.Error(t, err)
}

func TestContentCountAndDelete(t *testing.T) {
	fake, client := newFake(t, fakeband.Options{})
	ctx := context.Background()

	n, err := client.Content.Count(ctx, "demo-token", "band-hiking", model.AllComments())
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	n, err = client.Content.Count(ctx, "demo-token", "band-hiking", model.AllPosts())
	require.NoError(t, err)
	assert.Equal(t, 2, n, "post count arrives under data.count")

	kw, err := model.KeywordComments("spam")
	require.NoError(t, err)
	n, err = client.Content.Count(ctx, "demo-token", "band-hiking", kw)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	outcome, err := client.Content.Delete(ctx, "demo-token", "band-hiking", kw)
	require.NoError(t, err)
	assert.Equal(t, model.DeleteOutcome{Total: 5, Successful: 5}, *outcome)
	assert.Equal(t, 1, fake.World().DeleteCalls("band-hiking", kw))
}

func TestCountRejectsHTMLErrorPage(t *testing.T) {
	fake, client := newFake(t, fakeband.Options{})
	fake.SetHTMLErrors(true)

	n, err := client.Content.Count(context.Background(), "demo-token", "band-hiking", model.AllComments())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.True(t, IsContentType(err))
	assert.Contains(t, err.Error(), "502")
}

func TestDeleteStructuredError(t *testing.T) {
	fake, client := newFake(t, fakeband.Options{})
	fake.SetRemoteError("quota exceeded")

	_, err := client.Content.Delete(context.Background(), "demo-token", "band-hiking", model.AllPosts())
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Structured)
	assert.Equal(t, "quota exceeded", apiErr.Message)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestInvalidScopeNeverReachesServer(t *testing.T) {
	fake, client := newFake(t, fakeband.Options{})
	interim := model.DeleteScope{Kind: model.ScopeKeywordComments}

	_, err := client.Content.Count(context.Background(), "demo-token", "band-hiking", interim)
	assert.ErrorIs(t, err, model.ErrEmptyKeyword)
	_, err = client.Content.Delete(context.Background(), "demo-token", "band-hiking", interim)
	assert.ErrorIs(t, err, model.ErrEmptyKeyword)
	assert.Equal(t, 0, fake.World().DeleteCalls("band-hiking", interim))
}

func TestDeleteHonorsContextDeadline(t *testing.T) {
	_, client := newFake(t, fakeband.Options{ItemDelay: 50 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_, err := client.Content.Delete(ctx, "demo-token", "band-hiking", model.AllComments())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNonJSONSuccessIsContentTypeError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("0"))
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	_, err := client.Content.Count(context.Background(), "t", "b", model.AllComments())
	assert.True(t, IsContentType(err))
}

func TestSuccessFalseIsAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"success":false,"error":"band is archived"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, WithUserAgent("test-agent"))
	_, err := client.Content.Count(context.Background(), "t", "b", model.AllComments())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "band is archived", apiErr.Message)
	assert.Equal(t, http.StatusOK, apiErr.StatusCode)
}

func TestSnippetCutsOnRuneBoundary(t *testing.T) {
	// 3-byte runes put byte 256 in the middle of a character.
	body := []byte(strings.Repeat("밴드", 100))
	got := snippet(body)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len(got), maxSnippet+len("..."))
	assert.Equal(t, "short", snippet([]byte("  short \n")))
}
