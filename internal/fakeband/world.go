package fakeband

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fslongjin/bandsweep/pkg/model"
)

var (
	ErrInvalidToken = errors.New("invalid access token")
	ErrUnknownCode  = errors.New("invalid authorization code")
	ErrUnknownBand  = errors.New("band not found")
	ErrNotMember    = errors.New("not a member of this band")
)

type comment struct {
	key       string
	body      string
	fail      string
	failTimes int
	attempts  int
}

type post struct {
	key       string
	content   string
	fail      string
	failTimes int
	attempts  int
	comments  []*comment
}

type band struct {
	info    model.Band
	members map[string]bool
	posts   []*post
}

type operation struct {
	current int
	total   int
}

// World is the simulator's in-memory state. All methods are safe for
// concurrent use.
type World struct {
	mu           sync.Mutex
	authURL      string
	usersByCode  map[string]model.Credential
	usersByToken map[string]model.Credential
	bands        []*band
	bandsByKey   map[string]*band
	ops          map[string]*operation
	deleteCalls  map[string]int
}

func NewWorld(f *Fixture) *World {
	w := &World{
		authURL:      f.AuthURL,
		usersByCode:  make(map[string]model.Credential),
		usersByToken: make(map[string]model.Credential),
		bandsByKey:   make(map[string]*band),
		ops:          make(map[string]*operation),
		deleteCalls:  make(map[string]int),
	}
	for _, u := range f.Users {
		cred := model.Credential{
			AccessToken:     u.AccessToken,
			IdentityID:      u.UserKey,
			DisplayName:     u.Name,
			ProfileImageURL: u.ProfileImageURL,
		}
		w.usersByCode[u.Code] = cred
		w.usersByToken[u.AccessToken] = cred
	}
	for _, bf := range f.Bands {
		b := &band{
			info: model.Band{
				BandKey:       bf.BandKey,
				Name:          bf.Name,
				CoverImageURL: bf.Cover,
				MemberCount:   bf.MemberCount,
			},
			members: make(map[string]bool),
		}
		for _, m := range bf.Members {
			b.members[m] = true
		}
		for _, pf := range bf.Posts {
			p := &post{key: pf.PostKey, content: pf.Content, fail: pf.Fail, failTimes: pf.FailTimes}
			for _, cf := range pf.Comments {
				p.comments = append(p.comments, &comment{
					key: cf.CommentKey, body: cf.Body, fail: cf.Fail, failTimes: cf.FailTimes,
				})
			}
			b.posts = append(b.posts, p)
		}
		w.bands = append(w.bands, b)
		w.bandsByKey[b.info.BandKey] = b
	}
	return w
}

func (w *World) AuthURL() string {
	return w.authURL
}

func (w *World) Exchange(code string) (model.Credential, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cred, ok := w.usersByCode[code]
	if !ok {
		return model.Credential{}, ErrUnknownCode
	}
	return cred, nil
}

func (w *World) Bands(token string) ([]model.Band, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cred, ok := w.usersByToken[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	out := make([]model.Band, 0, len(w.bands))
	for _, b := range w.bands {
		if len(b.members) == 0 || b.members[cred.IdentityID] {
			out = append(out, b.info)
		}
	}
	return out, nil
}

// Count returns how many items match scope. Keyword matching is case-insensitive.
func (w *World) Count(token, bandKey string, scope model.DeleteScope) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, err := w.lookup(token, bandKey)
	if err != nil {
		return 0, err
	}
	if scope.Kind == model.ScopeAllPosts {
		return len(b.posts), nil
	}
	n := 0
	for _, p := range b.posts {
		for _, c := range p.comments {
			if matches(scope, c.body) {
				n++
			}
		}
	}
	return n, nil
}

// Delete removes every item matching scope, sleeping delay before each
// item. Items with an injected failure stay in place and are reported.
func (w *World) Delete(ctx context.Context, token, bandKey string, scope model.DeleteScope, delay time.Duration) (*model.DeleteOutcome, error) {
	w.mu.Lock()
	b, err := w.lookup(token, bandKey)
	if err != nil {
		w.mu.Unlock()
		return nil, err
	}
	var targets []any
	if scope.Kind == model.ScopeAllPosts {
		for _, p := range b.posts {
			targets = append(targets, p)
		}
	} else {
		for _, p := range b.posts {
			for _, c := range p.comments {
				if matches(scope, c.body) {
					targets = append(targets, c)
				}
			}
		}
	}
	opKey := operationKey(bandKey, scope)
	op := &operation{total: len(targets)}
	w.ops[opKey] = op
	w.deleteCalls[opKey]++
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		if w.ops[opKey] == op {
			delete(w.ops, opKey)
		}
		w.mu.Unlock()
	}()

	outcome := &model.DeleteOutcome{Total: len(targets)}
	for _, target := range targets {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		w.mu.Lock()
		switch t := target.(type) {
		case *post:
			if injectedFailure(t.fail, t.failTimes, &t.attempts) {
				outcome.FailedItems = append(outcome.FailedItems, model.FailedItem{ItemID: t.key, ErrorMessage: t.fail})
			} else {
				b.removePost(t)
			}
		case *comment:
			if injectedFailure(t.fail, t.failTimes, &t.attempts) {
				outcome.FailedItems = append(outcome.FailedItems, model.FailedItem{ItemID: t.key, ErrorMessage: t.fail})
			} else {
				b.removeComment(t)
			}
		}
		op.current++
		w.mu.Unlock()
	}
	outcome.Failed = len(outcome.FailedItems)
	outcome.Successful = outcome.Total - outcome.Failed
	return outcome, nil
}

// Progress reports the in-flight deletion for band and scope, if any.
func (w *World) Progress(bandKey string, scope model.DeleteScope) (model.ProgressEstimate, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	op, ok := w.ops[operationKey(bandKey, scope)]
	if !ok {
		return model.ProgressEstimate{}, false
	}
	return model.ProgressEstimate{Current: op.current, Total: op.total}, true
}

// DeleteCalls returns how many delete calls reached the world for band and scope.
func (w *World) DeleteCalls(bandKey string, scope model.DeleteScope) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.deleteCalls[operationKey(bandKey, scope)]
}

func (w *World) lookup(token, bandKey string) (*band, error) {
	cred, ok := w.usersByToken[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	b, ok := w.bandsByKey[bandKey]
	if !ok {
		return nil, ErrUnknownBand
	}
	if len(b.members) > 0 && !b.members[cred.IdentityID] {
		return nil, ErrNotMember
	}
	return b, nil
}

func (b *band) removePost(target *post) {
	for i, p := range b.posts {
		if p == target {
			b.posts = append(b.posts[:i], b.posts[i+1:]...)
			return
		}
	}
}

func (b *band) removeComment(target *comment) {
	for _, p := range b.posts {
		for i, c := range p.comments {
			if c == target {
				p.comments = append(p.comments[:i], p.comments[i+1:]...)
				return
			}
		}
	}
}

func injectedFailure(message string, failTimes int, attempts *int) bool {
	if message == "" {
		return false
	}
	if failTimes > 0 && *attempts >= failTimes {
		return false
	}
	*attempts++
	return true
}

func matches(scope model.DeleteScope, body string) bool {
	if scope.Kind != model.ScopeKeywordComments {
		return true
	}
	return strings.Contains(strings.ToLower(body), strings.ToLower(scope.NormalizedKeyword()))
}

func operationKey(bandKey string, scope model.DeleteScope) string {
	return bandKey + "|" + scope.Key()
}
