package sweep

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fslongjin/bandsweep/internal/fakeband"
	"github.com/fslongjin/bandsweep/pkg/model"
	bandsweep "github.com/fslongjin/bandsweep/sdk/go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const retryFixture = `
users:
  - {code: c, accessToken: tok, userKey: u1, name: Alice}
bands:
  - bandKey: band-1
    name: Hikers
    posts:
      - postKey: p1
        comments:
          - {commentKey: c1, body: one}
          - {commentKey: c2, body: two, fail: "rate limited", failTimes: 1}
          - {commentKey: c3, body: three, fail: "rate limited", failTimes: 1}
`

func TestEndToEndAgainstFakeServer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f, err := fakeband.ParseFixture([]byte(retryFixture))
	require.NoError(t, err)
	fake := fakeband.New(f, fakeband.Options{ProgressInterval: 5 * time.Millisecond})
	ts := httptest.NewServer(fake.Router())
	defer ts.Close()

	client := bandsweep.NewClient(ts.URL + "/api")
	session := NewAuthSession(NewMemoryStore(nil), nil)
	cred, err := client.Auth.ExchangeCode(context.Background(), "c")
	require.NoError(t, err)
	require.NoError(t, session.Replace(context.Background(), cred))

	o := New(Config{
		API:       client.Content,
		Session:   session,
		Confirmer: AlwaysConfirm,
		Progress: &StreamEstimator{
			Open: func(ctx context.Context, token, bandKey string, scope model.DeleteScope) (ProgressFeed, error) {
				stream, err := client.Content.StreamProgress(ctx, token, bandKey, scope)
				if err != nil {
					return nil, err
				}
				return stream, nil
			},
		},
	})
	bands, err := client.Bands.List(context.Background(), cred.AccessToken)
	require.NoError(t, err)
	band, err := bandsweep.Find(bands, "hikers")
	require.NoError(t, err)
	require.NoError(t, o.SelectBand(*band))
	require.NoError(t, o.SelectScope(model.AllComments()))

	res, err := o.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, model.OutcomePartial, res.Kind())
	assert.Equal(t, 2, res.Outcome.Failed)
	assert.Equal(t, "rate limited", res.Outcome.FailedItems[0].ErrorMessage)

	res, err = o.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.DeleteOutcome{Total: 2, Successful: 2}, *res.Outcome)

	fake.SetHTMLErrors(true)
	_, err = o.Sweep(context.Background())
	assert.True(t, IsTransport(err))
	assert.Equal(t, PhaseIdle, o.Snapshot().Phase)
}
