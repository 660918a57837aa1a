package sweep

import (
	"context"
	"fmt"
	"strings"

	"github.com/fslongjin/bandsweep/pkg/model"
)

// Prompt is what the user is asked before a deletion runs.
type Prompt struct {
	Scope   model.DeleteScope
	Band    model.Band
	Count   int
	Title   string
	Message string
}

// Confirmer obtains an explicit decision for a prompt. Returning an error
// leaves the workflow as if the user declined.
type Confirmer interface {
	Confirm(ctx context.Context, prompt Prompt) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt Prompt) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt Prompt) (bool, error) {
	return f(ctx, prompt)
}

// AlwaysConfirm accepts every prompt, for non-interactive use.
var AlwaysConfirm = ConfirmFunc(func(context.Context, Prompt) (bool, error) { return true, nil })

// Gate turns a probed count into a prompt and waits for the decision.
type Gate struct {
	confirmer Confirmer
}

func NewGate(confirmer Confirmer) *Gate {
	return &Gate{confirmer: confirmer}
}

// Ask blocks until the confirmer decides. Only an explicit true proceeds.
func (g *Gate) Ask(ctx context.Context, prompt Prompt) (bool, error) {
	if g.confirmer == nil {
		return false, nil
	}
	ok, err := g.confirmer.Confirm(ctx, prompt)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// NewPrompt builds the scope-specific wording. The count is always stated.
func NewPrompt(scope model.DeleteScope, band model.Band, count int) Prompt {
	var b strings.Builder
	switch scope.Kind {
	case model.ScopeKeywordComments:
		fmt.Fprintf(&b, "Found %d comments containing %q in band %q.\n\n", count, scope.NormalizedKeyword(), band.Name)
		fmt.Fprintf(&b, "Delete these %d comments?", count)
	case model.ScopeAllPosts:
		fmt.Fprintf(&b, "Band %q has %d posts in total.\n\n", band.Name, count)
		b.WriteString("Warning: all comments on these posts are deleted with them.\n\n")
		fmt.Fprintf(&b, "Delete all %d posts?", count)
	default:
		fmt.Fprintf(&b, "Band %q has %d comments in total.\n\n", band.Name, count)
		fmt.Fprintf(&b, "Delete all %d comments?", count)
	}
	b.WriteString("\n\nThis cannot be undone.")

	return Prompt{
		Scope:   scope,
		Band:    band,
		Count:   count,
		Title:   ActionLabel(scope, band),
		Message: b.String(),
	}
}

// ActionLabel is the short description of what a sweep of scope does.
func ActionLabel(scope model.DeleteScope, band model.Band) string {
	switch scope.Kind {
	case model.ScopeKeywordComments:
		return fmt.Sprintf("Sweep comments containing %q in band %s", scope.NormalizedKeyword(), band.Name)
	case model.ScopeAllPosts:
		return fmt.Sprintf("Sweep all posts of band %s", band.Name)
	default:
		return fmt.Sprintf("Sweep all comments of band %s", band.Name)
	}
}
