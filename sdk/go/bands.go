package bandsweep

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// BandService handles the band directory.
type BandService struct {
	client *Client
}

// List retrieves the bands the token's identity belongs to.
func (s *BandService) List(ctx context.Context, accessToken string) ([]Band, error) {
	env, err := s.client.doEnvelope(ctx, "GET", s.client.buildPath("bands"), nil, tokenQuery(accessToken))
	if err != nil {
		return nil, err
	}
	var result BandListResponse
	if err := env.DecodeData(&result); err != nil {
		return nil, err
	}
	return result.ResultData.Bands, nil
}

// ErrBandNotFound is returned by Find when no band matches.
var ErrBandNotFound = errors.New("band not found")

// Find resolves ref against bands by exact band key first, then by name.
// Name matching is case-insensitive; an ambiguous name is an error.
func Find(bands []Band, ref string) (*Band, error) {
	ref = strings.TrimSpace(ref)
	for i := range bands {
		if bands[i].BandKey == ref {
			return &bands[i], nil
		}
	}
	var match *Band
	for i := range bands {
		if strings.EqualFold(bands[i].Name, ref) {
			if match != nil {
				return nil, fmt.Errorf("band name %q is ambiguous; use the band key", ref)
			}
			match = &bands[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %q", ErrBandNotFound, ref)
	}
	return match, nil
}
