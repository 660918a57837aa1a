package bandsweep

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fslongjin/bandsweep/pkg/model"
)

// AuthService handles the OAuth collaborator endpoints.
type AuthService struct {
	client *Client
}

// AuthURL returns the provider authorization URL the user must visit.
func (s *AuthService) AuthURL(ctx context.Context) (string, error) {
	env, err := s.client.doEnvelope(ctx, "GET", s.client.buildPath("auth", "band"), nil, nil)
	if err != nil {
		return "", err
	}
	authURL := env.AuthURLValue()
	if authURL == "" {
		return "", errors.New("response has no auth_url")
	}
	return authURL, nil
}

// ExchangeCode trades an OAuth authorization code for a Credential.
func (s *AuthService) ExchangeCode(ctx context.Context, code string) (*Credential, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("authorization code is required")
	}
	env, err := s.client.doEnvelope(ctx, "POST", s.client.buildPath("auth", "oauth", "token"), &TokenRequest{Code: code}, nil)
	if err != nil {
		return nil, err
	}
	var cred Credential
	if err := env.DecodeData(&cred); err != nil {
		return nil, err
	}
	if err := model.Validate(&cred); err != nil {
		return nil, fmt.Errorf("incomplete credential in response: %w", err)
	}
	return &cred, nil
}
