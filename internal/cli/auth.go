package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/fslongjin/bandsweep/internal/output"
	"github.com/fslongjin/bandsweep/internal/security"
	"github.com/fslongjin/bandsweep/internal/sweep"
	"github.com/spf13/cobra"
)

// AuthStatus is what `auth status` prints.
type AuthStatus struct {
	LoggedIn         bool      `json:"logged_in" yaml:"loggedIn"`
	Name             string    `json:"name,omitempty" yaml:"name,omitempty"`
	UserKey          string    `json:"user_key,omitempty" yaml:"userKey,omitempty"`
	TokenFingerprint string    `json:"token_fingerprint,omitempty" yaml:"tokenFingerprint,omitempty"`
	StoredAt         time.Time `json:"stored_at,omitempty" yaml:"storedAt,omitempty"`
}

func newAuthCommand(a *app) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Band login",
	}

	var code string
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with a Band authorization code",
		Long: `Prints the Band authorization URL. Open it, approve access and paste
either the code or the whole callback URL you were redirected to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.requestContext(cmd.Context())
			defer cancel()
			session, err := a.openSession(ctx)
			if err != nil {
				return err
			}

			input := code
			if input == "" {
				authURL, err := a.apiClient().Auth.AuthURL(ctx)
				if err != nil {
					return fmt.Errorf("failed to get authorization URL: %w", err)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "Open this URL to authorize bandsweep:")
				fmt.Fprintln(cmd.ErrOrStderr(), "  "+output.AccentStyle.Render(authURL))
				input, err = readCode(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
			}
			authCode, err := parseAuthCode(input)
			if err != nil {
				return err
			}

			cred, err := a.apiClient().Auth.ExchangeCode(ctx, authCode)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if err := session.Replace(ctx, cred); err != nil {
				return err
			}
			name := cred.DisplayName
			if name == "" {
				name = cred.IdentityID
			}
			fmt.Fprintln(cmd.OutOrStdout(), output.PassStyle.Render(output.IconPass+" Logged in as "+name))
			return nil
		},
	}
	loginCmd.Flags().StringVar(&code, "code", "", "Authorization code or callback URL (skips the prompt)")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			status := AuthStatus{}
			if cred := session.Current(); cred != nil {
				status.LoggedIn = true
				status.Name = cred.DisplayName
				status.UserKey = cred.IdentityID
				status.TokenFingerprint = security.Fingerprint(cred.AccessToken)
				if _, storedAt, err := a.creds.Fingerprint(cmd.Context()); err == nil {
					status.StoredAt = storedAt
				}
			}
			if a.format != output.FormatTable {
				return output.NewFormatter(a.format).Write(cmd.OutOrStdout(), status)
			}
			if !status.LoggedIn {
				fmt.Fprintln(cmd.OutOrStdout(), output.MutedStyle.Render("Not logged in."))
				return nil
			}
			return output.NewTableFormatterWithLabels(
				[]string{"name", "user_key", "token_fingerprint", "stored_at"},
				map[string]string{"token_fingerprint": "TOKEN"},
			).Write(cmd.OutOrStdout(), status)
		},
	}

	var yes bool
	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			cred := session.Current()
			if cred == nil {
				fmt.Fprintln(cmd.OutOrStdout(), output.MutedStyle.Render("Not logged in."))
				return nil
			}
			confirmer := confirmerFor(cmd.InOrStdin(), cmd.ErrOrStderr(), yes)
			ok, err := confirmer.Confirm(cmd.Context(), sweep.Prompt{
				Title:   "Log out",
				Message: fmt.Sprintf("Remove the stored login for %s?", cred.DisplayName),
			})
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), output.MutedStyle.Render("Cancelled."))
				return nil
			}
			if err := session.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), output.PassStyle.Render(output.IconPass+" Logged out"))
			return nil
		},
	}
	logoutCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	authCmd.AddCommand(loginCmd, statusCmd, logoutCmd)
	return authCmd
}

func readCode(in io.Reader, out io.Writer) (string, error) {
	if output.IsTerminal(in) && output.IsTerminal(out) {
		var value string
		err := huh.NewInput().
			Title("Authorization code").
			Description("Paste the code or the callback URL").
			Value(&value).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("code is required")
				}
				return nil
			}).
			Run()
		if errors.Is(err, huh.ErrUserAborted) {
			return "", errors.New("login cancelled")
		}
		return value, err
	}
	fmt.Fprint(out, "Authorization code: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return line, nil
}

// parseAuthCode accepts a bare code or the callback URL carrying code= or
// error= in its query.
func parseAuthCode(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("authorization code is empty")
	}
	if !strings.Contains(input, "?") && !strings.Contains(input, "://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid callback URL: %w", err)
	}
	q := u.Query()
	if reason := q.Get("error"); reason != "" {
		if desc := q.Get("error_description"); desc != "" {
			reason += ": " + desc
		}
		return "", fmt.Errorf("authorization failed: %s", reason)
	}
	if c := strings.TrimSpace(q.Get("code")); c != "" {
		return c, nil
	}
	return "", errors.New("callback URL has no code parameter")
}
