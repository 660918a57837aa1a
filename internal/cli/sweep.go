package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fslongjin/bandsweep/internal/output"
	"github.com/fslongjin/bandsweep/internal/sweep"
	"github.com/fslongjin/bandsweep/pkg/model"
	"github.com/spf13/cobra"
)

type sweepOptions struct {
	band    string
	yes     bool
	retries int
}

func newSweepCommand(a *app) *cobra.Command {
	opts := &sweepOptions{}
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete your comments or posts from a band",
		Long: `Counts the matching items, asks for confirmation and deletes them.
Items the Band API could not delete are listed and can be retried.`,
	}
	sweepCmd.PersistentFlags().StringVarP(&opts.band, "band", "b", "", "Band key or name (required)")
	sweepCmd.PersistentFlags().BoolVarP(&opts.yes, "yes", "y", false, "Do not ask for confirmation")
	sweepCmd.PersistentFlags().IntVar(&opts.retries, "retries", 0, "With --yes, retry failed items up to this many times")
	_ = sweepCmd.MarkPersistentFlagRequired("band")

	commentsCmd := &cobra.Command{
		Use:   "comments",
		Short: "Delete all your comments in the band",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSweep(cmd, model.AllComments(), opts)
		},
	}

	keywordCmd := &cobra.Command{
		Use:   "keyword <word>",
		Short: "Delete your comments containing a keyword (case-insensitive)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := model.KeywordComments(args[0])
			if err != nil {
				return err
			}
			return a.runSweep(cmd, scope, opts)
		},
	}

	postsCmd := &cobra.Command{
		Use:   "posts",
		Short: "Delete all your posts in the band, with their comments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSweep(cmd, model.AllPosts(), opts)
		},
	}

	sweepCmd.AddCommand(commentsCmd, keywordCmd, postsCmd)
	return sweepCmd
}

func (a *app) runSweep(cmd *cobra.Command, scope model.DeleteScope, opts *sweepOptions) error {
	ctx := cmd.Context()
	session, err := a.requireLogin(ctx)
	if err != nil {
		return err
	}
	band, err := a.resolveBand(ctx, opts.band)
	if err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	confirmer := confirmerFor(cmd.InOrStdin(), errOut, opts.yes)
	orch := sweep.New(sweep.Config{
		API:           a.apiClient().Content,
		Session:       session,
		Confirmer:     confirmer,
		Progress:      a.progressSource(),
		Sink:          output.NewProgressLine(errOut, "Deleting "+scope.Noun()),
		InFlight:      a.inflight,
		CountTimeout:  a.cfg.Timeout,
		DeleteTimeout: a.cfg.DeleteTimeout,
	})
	if err := orch.SelectBand(*band); err != nil {
		return err
	}
	if err := orch.SelectScope(scope); err != nil {
		return err
	}

	stop := a.watchInterrupt(errOut)
	defer stop()

	reporter := &output.Reporter{W: cmd.OutOrStdout(), Format: a.format}
	res, err := orch.Sweep(ctx)
	if err != nil {
		if !reportInterrupted(errOut, orch, err) {
			return err
		}
	} else if err := reporter.Report(output.NewSweepReport(res, *band, scope, false)); err != nil {
		return err
	}

	// lastErr is what the command exits with if the user stops retrying.
	lastErr := err
	for attempt := 0; ; attempt++ {
		snap := orch.Snapshot()
		if !snap.CanRetry() {
			return lastErr
		}
		again, err := a.shouldRetry(ctx, confirmer, opts, attempt, snap, scope, *band)
		if err != nil {
			return err
		}
		if !again {
			return lastErr
		}
		res, err = orch.Retry(ctx)
		lastErr = err
		if err != nil {
			if !reportInterrupted(errOut, orch, err) {
				return err
			}
			continue
		}
		if err := reporter.Report(output.NewSweepReport(res, *band, scope, true)); err != nil {
			return err
		}
	}
}

// reportInterrupted prints a deletion that failed in transit and reports
// whether the orchestrator kept it for retry.
func reportInterrupted(w io.Writer, orch *sweep.Orchestrator, err error) bool {
	if !sweep.IsTransport(err) || !orch.Snapshot().CanRetry() {
		return false
	}
	fmt.Fprintln(w, output.FailStyle.Render(output.IconFail+" "+err.Error()))
	msg := "The connection failed before the result arrived."
	if sweep.IsTimeout(err) {
		msg = "The deletion timed out."
	}
	fmt.Fprintln(w, output.WarnStyle.Render(
		msg+" It may or may not have completed on the server; a retry only deletes what is left."))
	return true
}

func (a *app) shouldRetry(ctx context.Context, confirmer sweep.Confirmer, opts *sweepOptions, attempt int, snap sweep.Snapshot, scope model.DeleteScope, band model.Band) (bool, error) {
	if opts.yes {
		return attempt < opts.retries, nil
	}
	count := snap.RetryCount()
	msg := fmt.Sprintf("Retry the %d failed %s?", count, scope.Noun())
	if snap.Interrupted != nil {
		msg = fmt.Sprintf("Retry deleting the %d %s?", count, scope.Noun())
	}
	return confirmer.Confirm(ctx, sweep.Prompt{
		Scope:   scope,
		Band:    band,
		Count:   count,
		Title:   "Retry",
		Message: msg,
	})
}

func (a *app) progressSource() sweep.ProgressSource {
	random := sweep.NewRandomEstimator(a.cfg.ProgressInterval)
	if !a.cfg.StreamProgress {
		return random
	}
	client := a.apiClient()
	return &sweep.StreamEstimator{
		Open: func(ctx context.Context, token, bandKey string, scope model.DeleteScope) (sweep.ProgressFeed, error) {
			stream, err := client.Content.StreamProgress(ctx, token, bandKey, scope)
			if err != nil {
				return nil, err
			}
			return stream, nil
		},
		Fallback: random,
	}
}

// watchInterrupt keeps the process alive on Ctrl-C while a deletion is in
// flight, since the server finishes it regardless. A second signal, or the
// delete timeout elapsing, exits.
func (a *app) watchInterrupt(errOut io.Writer) func() {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	exit := a.exit
	if exit == nil {
		exit = os.Exit
	}

	go func() {
		select {
		case <-done:
			return
		case <-sigs:
		}
		if a.inflight == nil || !a.inflight.Busy() {
			exit(130)
			return
		}
		fmt.Fprintln(errOut, output.WarnStyle.Render(
			"\nA deletion is still running on the server. Waiting for its result; press Ctrl-C again to quit."))
		waitCtx, cancel := context.WithTimeout(context.Background(), a.cfg.DeleteTimeout)
		defer cancel()
		drained := make(chan error, 1)
		go func() { drained <- a.inflight.Wait(waitCtx) }()
		select {
		case <-done:
		case <-sigs:
			exit(130)
		case err := <-drained:
			if err != nil {
				exit(1)
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
