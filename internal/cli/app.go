package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fslongjin/bandsweep/internal/config"
	"github.com/fslongjin/bandsweep/internal/lifecycle"
	"github.com/fslongjin/bandsweep/internal/output"
	"github.com/fslongjin/bandsweep/internal/security"
	"github.com/fslongjin/bandsweep/internal/store"
	"github.com/fslongjin/bandsweep/internal/sweep"
	bandsweep "github.com/fslongjin/bandsweep/sdk/go"
	"github.com/spf13/viper"
)

// app is the state shared by all commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string

	cfg     *config.Config
	format  output.Format
	logger  *slog.Logger
	closers []func() error

	client   *bandsweep.Client
	creds    *store.CredentialStore
	session  *sweep.AuthSession
	inflight *lifecycle.Tracker

	exit func(code int)
}

func (a *app) apiClient() *bandsweep.Client {
	if a.client == nil {
		a.client = bandsweep.NewClient(a.cfg.APIServer, bandsweep.WithTimeout(a.cfg.Timeout))
	}
	return a.client
}

// openSession opens the credential database and loads the stored credential.
func (a *app) openSession(ctx context.Context) (*sweep.AuthSession, error) {
	if a.session != nil {
		return a.session, nil
	}
	if err := a.cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := store.InitDB(a.cfg.DBPath()); err != nil {
		return nil, fmt.Errorf("failed to open credential database: %w", err)
	}
	a.closers = append(a.closers, store.CloseDB)

	cipher, err := security.NewTokenCipherFromEnv(a.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to init credential cipher: %w", err)
	}
	a.creds = store.NewCredentialStore(cipher)
	a.inflight = lifecycle.NewTracker()
	session := sweep.NewAuthSession(a.creds, a.inflight)
	if _, err := session.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	a.session = session
	return session, nil
}

// requireLogin returns the session and fails when no credential is stored.
func (a *app) requireLogin(ctx context.Context) (*sweep.AuthSession, error) {
	session, err := a.openSession(ctx)
	if err != nil {
		return nil, err
	}
	if session.Current() == nil {
		return nil, errors.New("not logged in: run 'bandsweep auth login' first")
	}
	return session, nil
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	a.session = nil
	return errors.Join(errs...)
}
