package sweep

import (
	"context"
	"time"

	"github.com/fslongjin/bandsweep/internal/logx"
	"github.com/fslongjin/bandsweep/internal/security"
	"github.com/fslongjin/bandsweep/pkg/model"
)

// ContentAPI is the remote Deletion API.
type ContentAPI interface {
	Count(ctx context.Context, accessToken, bandKey string, scope model.DeleteScope) (int, error)
	Delete(ctx context.Context, accessToken, bandKey string, scope model.DeleteScope) (*model.DeleteOutcome, error)
}

// Prober asks how many items match a scope before anything destructive happens.
type Prober struct {
	api     ContentAPI
	timeout time.Duration
}

func NewProber(api ContentAPI, timeout time.Duration) *Prober {
	return &Prober{api: api, timeout: timeout}
}

// Probe returns the number of items scope matches in band.
func (p *Prober) Probe(ctx context.Context, scope model.DeleteScope, band *model.Band, cred *model.Credential) (int, error) {
	if err := checkRequest(scope, band, cred); err != nil {
		return 0, err
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	logger := logx.WithComponent(ctx, "prober")
	logger.Debug("counting", "band_key", band.BandKey, "scope", scope.Key(), "token_fp", security.Fingerprint(cred.AccessToken))

	n, err := p.api.Count(ctx, cred.AccessToken, band.BandKey, scope)
	if err != nil {
		classified := classifyProbe(err)
		logger.Warn("count failed", "band_key", band.BandKey, "scope", scope.Key(), "error", err)
		return 0, classified
	}
	if n < 0 {
		return 0, &TransportError{Op: "count", Message: "negative count in response"}
	}
	logger.Debug("counted", "band_key", band.BandKey, "scope", scope.Key(), "count", n)
	return n, nil
}

// checkRequest rejects requests the remote side must never see.
func checkRequest(scope model.DeleteScope, band *model.Band, cred *model.Credential) error {
	if cred == nil || cred.AccessToken == "" {
		return validationErr(ErrNotAuthenticated)
	}
	if band == nil || band.BandKey == "" {
		return validationErr(ErrNoBand)
	}
	if scope.Kind == "" {
		return validationErr(ErrNoScope)
	}
	if err := scope.Validate(); err != nil {
		return validationErr(err)
	}
	return nil
}
