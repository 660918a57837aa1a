package model

import (
	"errors"
	"fmt"
	"strings"
)

// ScopeKind names the class of content a deletion targets.
type ScopeKind string

const (
	ScopeAllComments     ScopeKind = "all-comments"
	ScopeKeywordComments ScopeKind = "keyword-comments"
	ScopeAllPosts        ScopeKind = "all-posts"
)

var (
	// ErrEmptyKeyword is returned when a keyword scope has no keyword after trimming.
	ErrEmptyKeyword = errors.New("keyword is required")

	// ErrUnknownScope is returned for a scope kind outside the three variants.
	ErrUnknownScope = errors.New("unknown delete scope")
)

// DeleteScope is a tagged union over AllComments, KeywordComments and AllPosts.
// Keyword is only meaningful for ScopeKeywordComments.
//
// The zero value is not a valid scope. A keyword scope with an empty keyword
// can be held as an interim selection but fails Validate.
type DeleteScope struct {
	Kind    ScopeKind `json:"kind" yaml:"kind"`
	Keyword string    `json:"keyword,omitempty" yaml:"keyword,omitempty"`
}

// AllComments targets every comment of a band.
func AllComments() DeleteScope {
	return DeleteScope{Kind: ScopeAllComments}
}

// AllPosts targets every post of a band. Comments on those posts go with them.
func AllPosts() DeleteScope {
	return DeleteScope{Kind: ScopeAllPosts}
}

// KeywordComments targets comments containing keyword. The keyword is trimmed
// and must not be empty.
func KeywordComments(keyword string) (DeleteScope, error) {
	s := DeleteScope{Kind: ScopeKeywordComments, Keyword: strings.TrimSpace(keyword)}
	if err := s.Validate(); err != nil {
		return DeleteScope{}, err
	}
	return s, nil
}

// ParseScopeKind parses a scope kind name. Short aliases are accepted.
func ParseScopeKind(s string) (ScopeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all-comments", "comments":
		return ScopeAllComments, nil
	case "keyword-comments", "keyword":
		return ScopeKeywordComments, nil
	case "all-posts", "posts":
		return ScopeAllPosts, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownScope, s)
	}
}

// Validate reports whether the scope may be sent to the remote API.
func (s DeleteScope) Validate() error {
	switch s.Kind {
	case ScopeAllComments, ScopeAllPosts:
		return nil
	case ScopeKeywordComments:
		if strings.TrimSpace(s.Keyword) == "" {
			return ErrEmptyKeyword
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownScope, s.Kind)
	}
}

// NormalizedKeyword returns the trimmed keyword.
func (s DeleteScope) NormalizedKeyword() string {
	return strings.TrimSpace(s.Keyword)
}

// Equal compares two scopes after keyword normalization.
func (s DeleteScope) Equal(other DeleteScope) bool {
	return s.Kind == other.Kind && s.NormalizedKeyword() == other.NormalizedKeyword()
}

// Noun is the item type the scope deletes, for display.
func (s DeleteScope) Noun() string {
	if s.Kind == ScopeAllPosts {
		return "posts"
	}
	return "comments"
}

// Key identifies the scope for in-flight bookkeeping.
func (s DeleteScope) Key() string {
	if s.Kind == ScopeKeywordComments {
		return string(s.Kind) + ":" + strings.ToLower(s.NormalizedKeyword())
	}
	return string(s.Kind)
}

func (s DeleteScope) String() string {
	switch s.Kind {
	case ScopeAllComments:
		return "all comments"
	case ScopeKeywordComments:
		return fmt.Sprintf("comments containing %q", s.NormalizedKeyword())
	case ScopeAllPosts:
		return "all posts"
	default:
		return string(s.Kind)
	}
}
