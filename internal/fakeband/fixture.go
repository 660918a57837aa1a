package fakeband

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixture seeds the simulator.
type Fixture struct {
	AuthURL string        `yaml:"authUrl"`
	Users   []UserFixture `yaml:"users"`
	Bands   []BandFixture `yaml:"bands"`
}

// UserFixture maps an OAuth code to the credential it exchanges for.
type UserFixture struct {
	Code            string `yaml:"code"`
	AccessToken     string `yaml:"accessToken"`
	UserKey         string `yaml:"userKey"`
	Name            string `yaml:"name"`
	ProfileImageURL string `yaml:"profileImageUrl"`
}

type BandFixture struct {
	BandKey     string        `yaml:"bandKey"`
	Name        string        `yaml:"name"`
	Cover       string        `yaml:"cover"`
	MemberCount int           `yaml:"memberCount"`
	Members     []string      `yaml:"members"` // user keys; empty means everyone
	Posts       []PostFixture `yaml:"posts"`
}

type PostFixture struct {
	PostKey   string           `yaml:"postKey"`
	Content   string           `yaml:"content"`
	Fail      string           `yaml:"fail"`
	FailTimes int              `yaml:"failTimes"`
	Comments  []CommentFixture `yaml:"comments"`
}

// CommentFixture is one comment. A non-empty Fail makes deletion fail with
// that message; FailTimes limits how many attempts fail (0 means always).
type CommentFixture struct {
	CommentKey string `yaml:"commentKey"`
	Body       string `yaml:"body"`
	Fail       string `yaml:"fail"`
	FailTimes  int    `yaml:"failTimes"`
}

// LoadFixture reads a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return ParseFixture(data)
}

func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Fixture) validate() error {
	tokens := map[string]bool{}
	for _, u := range f.Users {
		if u.Code == "" || u.AccessToken == "" || u.UserKey == "" {
			return fmt.Errorf("user %q needs code, accessToken and userKey", u.Name)
		}
		if tokens[u.AccessToken] {
			return fmt.Errorf("duplicate access token for user %q", u.Name)
		}
		tokens[u.AccessToken] = true
	}
	keys := map[string]bool{}
	for _, b := range f.Bands {
		if b.BandKey == "" {
			return fmt.Errorf("band %q has no bandKey", b.Name)
		}
		if keys[b.BandKey] {
			return fmt.Errorf("duplicate band key %q", b.BandKey)
		}
		keys[b.BandKey] = true
	}
	return nil
}

// DefaultFixture is a small world with one user and two bands.
func DefaultFixture() *Fixture {
	comments := func(prefix string, n int, body string) []CommentFixture {
		out := make([]CommentFixture, n)
		for i := range out {
			out[i] = CommentFixture{CommentKey: fmt.Sprintf("%s-c%d", prefix, i+1), Body: body}
		}
		return out
	}
	return &Fixture{
		AuthURL: "https://auth.band.us/oauth2/authorize?response_type=code&client_id=demo",
		Users: []UserFixture{{
			Code:        "demo-code",
			AccessToken: "demo-token",
			UserKey:     "demo-user",
			Name:        "Demo User",
		}},
		Bands: []BandFixture{
			{
				BandKey:     "band-hiking",
				Name:        "Weekend Hiking",
				MemberCount: 24,
				Posts: []PostFixture{
					{PostKey: "p1", Content: "Trail report", Comments: comments("p1", 7, "nice photos")},
					{PostKey: "p2", Content: "Gear swap", Comments: comments("p2", 5, "selling my SPAM stove")},
				},
			},
			{
				BandKey:     "band-books",
				Name:        "Book Club",
				MemberCount: 9,
				Posts: []PostFixture{
					{PostKey: "b1", Content: "March pick", Comments: comments("b1", 3, "loved it")},
				},
			},
		},
	}
}
