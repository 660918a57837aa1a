package cli

import (
	"context"
	"fmt"

	"github.com/fslongjin/bandsweep/internal/output"
	"github.com/fslongjin/bandsweep/pkg/model"
	bandsweep "github.com/fslongjin/bandsweep/sdk/go"
	"github.com/spf13/cobra"
)

func newBandsCommand(a *app) *cobra.Command {
	bandsCmd := &cobra.Command{
		Use:     "bands",
		Aliases: []string{"band"},
		Short:   "Browse the bands you belong to",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List your bands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bands, err := a.listBands(cmd.Context())
			if err != nil {
				return err
			}
			if a.format != output.FormatTable {
				return output.NewFormatter(a.format).Write(cmd.OutOrStdout(), bands)
			}
			return output.NewTableFormatterWithLabels(
				[]string{"band_key", "name", "member_count"},
				map[string]string{"member_count": "MEMBERS"},
			).Write(cmd.OutOrStdout(), bands)
		},
	}

	bandsCmd.AddCommand(listCmd)
	return bandsCmd
}

func (a *app) listBands(parent context.Context) ([]model.Band, error) {
	ctx, cancel := a.requestContext(parent)
	defer cancel()
	session, err := a.requireLogin(ctx)
	if err != nil {
		return nil, err
	}
	bands, err := a.apiClient().Bands.List(ctx, session.Current().AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to list bands: %w", err)
	}
	return bands, nil
}

// resolveBand finds the band by key or name in the directory listing.
func (a *app) resolveBand(ctx context.Context, ref string) (*model.Band, error) {
	bands, err := a.listBands(ctx)
	if err != nil {
		return nil, err
	}
	return bandsweep.Find(bands, ref)
}
