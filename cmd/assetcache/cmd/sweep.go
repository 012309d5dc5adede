package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/assetcache/internal/ui"
)

func newSweepCmd(opts *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Evict metadata of files that no longer exist",
		Long: `Run one reconciliation pass over the metadata root: every persisted
record whose file is gone is deleted. Unreadable records are reported and
left in place.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			repo, err := openRepository(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			res, err := repo.Sweep(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			r := ui.NewRenderer(out, opts.noColor || ui.NoColorFor(out))
			if jsonOutput {
				return r.RenderJSON(map[string]any{
					"checked":     res.Checked,
					"evicted":     res.Evicted,
					"unreadable":  res.Unreadable,
					"duration_ms": res.Duration.Milliseconds(),
				})
			}
			r.RenderSweep(res.Checked, res.Evicted, res.Unreadable, res.Duration)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
