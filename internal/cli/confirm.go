package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/fslongjin/bandsweep/internal/output"
	"github.com/fslongjin/bandsweep/internal/sweep"
)

// huhConfirmer asks with an interactive form.
type huhConfirmer struct{}

func (huhConfirmer) Confirm(ctx context.Context, p sweep.Prompt) (bool, error) {
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(p.Title).
				Description(p.Message).
				Affirmative("Delete").
				Negative("Cancel").
				Value(&ok),
		),
	).WithTheme(huh.ThemeDracula()).RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return ok, nil
}

// lineConfirmer asks on a plain stream; only "y" or "yes" confirms.
type lineConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func newLineConfirmer(in io.Reader, out io.Writer) *lineConfirmer {
	return &lineConfirmer{in: bufio.NewReader(in), out: out}
}

func (c *lineConfirmer) Confirm(_ context.Context, p sweep.Prompt) (bool, error) {
	if p.Title != "" {
		fmt.Fprintln(c.out, output.TitleStyle.Render(p.Title))
	}
	fmt.Fprint(c.out, p.Message+" [y/N]: ")
	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	if line == "" && errors.Is(err, io.EOF) {
		fmt.Fprintln(c.out)
	}
	return answer == "y" || answer == "yes", nil
}

// confirmerFor picks the prompt style for the attached terminal.
func confirmerFor(in io.Reader, out io.Writer, assumeYes bool) sweep.Confirmer {
	if assumeYes {
		return sweep.AlwaysConfirm
	}
	if output.IsTerminal(in) && output.IsTerminal(out) {
		return huhConfirmer{}
	}
	return newLineConfirmer(in, out)
}
