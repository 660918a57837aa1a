package bandsweep

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// ContentService handles counting and deleting band content.
type ContentService struct {
	client *Client
}

// scopeRoute maps a scope to its path segments under bands/{key}. Count
// endpoints insert "count" after the first segment.
func scopeRoute(scope DeleteScope) (segments []string, query url.Values, err error) {
	if err := scope.Validate(); err != nil {
		return nil, nil, err
	}
	query = url.Values{}
	switch scope.Kind {
	case ScopeAllComments:
		return []string{"comments"}, query, nil
	case ScopeKeywordComments:
		query.Set("keyword", scope.NormalizedKeyword())
		return []string{"comments", "keyword"}, query, nil
	default:
		return []string{"posts"}, query, nil
	}
}

func (s *ContentService) request(accessToken, bandKey string, scope DeleteScope, count bool) (string, url.Values, error) {
	if bandKey == "" {
		return "", nil, errors.New("band key is required")
	}
	route, query, err := scopeRoute(scope)
	if err != nil {
		return "", nil, err
	}
	segments := []string{"bands", bandKey, route[0]}
	if count {
		segments = append(segments, "count")
	}
	segments = append(segments, route[1:]...)
	query.Set("access_token", accessToken)
	return s.client.buildPath(segments...), query, nil
}

// Count returns how many items match scope in the band. A reply that is not
// a JSON success envelope with a count is an error, never zero.
func (s *ContentService) Count(ctx context.Context, accessToken, bandKey string, scope DeleteScope) (int, error) {
	p, query, err := s.request(accessToken, bandKey, scope, true)
	if err != nil {
		return 0, err
	}
	env, err := s.client.doEnvelope(ctx, "GET", p, nil, query)
	if err != nil {
		return 0, err
	}
	n, ok := env.CountValue()
	if !ok {
		return 0, errors.New("response has no count")
	}
	if n < 0 {
		return 0, fmt.Errorf("response has negative count %d", n)
	}
	return n, nil
}

// Delete performs the remote deletion and returns its summary. The call may
// run for minutes; callers bound it with a context deadline. The client's
// own timeout does not apply.
func (s *ContentService) Delete(ctx context.Context, accessToken, bandKey string, scope DeleteScope) (*DeleteOutcome, error) {
	p, query, err := s.request(accessToken, bandKey, scope, false)
	if err != nil {
		return nil, err
	}
	env, err := s.client.untimed().doEnvelope(ctx, "DELETE", p, nil, query)
	if err != nil {
		return nil, err
	}
	var outcome DeleteOutcome
	if err := env.DecodeData(&outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}
