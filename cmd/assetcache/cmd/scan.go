package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/assetcache/internal/asset"
	"github.com/Aman-CERP/assetcache/internal/async"
	"github.com/Aman-CERP/assetcache/internal/catalog"
	"github.com/Aman-CERP/assetcache/internal/ui"
)

type scanOptions struct {
	jsonOutput bool
	folder     string
	offset     int
	limit      int
	folders    bool
	noTUI      bool
}

// scanReport is the JSON form of a scan.
type scanReport struct {
	Import  async.ImportProgressSnapshot `json:"import"`
	Assets  []*asset.Asset               `json:"assets"`
	Folders []*asset.Folder              `json:"folders,omitempty"`
}

func newScanCmd(opts *rootOptions) *cobra.Command {
	so := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan <dir>",
		Short: "Import a directory once and list its assets",
		Long: `Import a directory without watching it, then list the indexed assets.

Metadata persisted by earlier runs is reused, so only new or changed files
are digested.`,
		Example: `  # Import and list everything
  assetcache scan /srv/media

  # List the second page of ten assets under /2024 as JSON
  assetcache scan /srv/media --folder /2024 --offset 10 --limit 10 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), cmd, opts, so, args[0])
		},
	}

	cmd.Flags().BoolVar(&so.jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&so.folder, "folder", "/", "List assets beneath this folder URI")
	cmd.Flags().IntVar(&so.offset, "offset", 0, "Skip this many assets")
	cmd.Flags().IntVar(&so.limit, "limit", 0, "Return at most this many assets (0 = all)")
	cmd.Flags().BoolVar(&so.folders, "folders", false, "Also list folders with their asset counts")
	cmd.Flags().BoolVar(&so.noTUI, "no-tui", false, "Print plain progress lines instead of the interactive display")

	return cmd
}

func runScan(ctx context.Context, cmd *cobra.Command, opts *rootOptions, so *scanOptions, dir string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	repo, err := openRepository(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	rootID, err := repo.ImportRoot(ctx, dir)
	if err != nil {
		return err
	}
	if so.jsonOutput {
		err = repo.Wait(ctx, rootID)
	} else {
		err = followImport(ctx, cmd.ErrOrStderr(), opts, so.noTUI, repo, rootID)
	}
	if err != nil {
		return err
	}
	status, err := repo.Status(rootID)
	if err != nil {
		return err
	}

	list, err := repo.ListAssets(rootID, so.folder, catalog.ListOptions{
		Sort:   true,
		Offset: so.offset,
		Limit:  so.limit,
	})
	if err != nil {
		return err
	}

	var folders []*asset.Folder
	if so.folders {
		if folders, err = repo.ListFolders(rootID, so.folder); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	r := ui.NewRenderer(out, opts.noColor || ui.NoColorFor(out))
	if so.jsonOutput {
		return r.RenderJSON(scanReport{Import: status, Assets: list, Folders: folders})
	}

	r.RenderImport(status)
	_, _ = fmt.Fprintf(out, "\nAssets under %s (%d):\n", so.folder, len(list))
	r.RenderAssets(list)
	if so.folders {
		_, _ = fmt.Fprintf(out, "\nFolders (%d):\n", len(folders))
		r.RenderFolders(folders)
	}
	return nil
}
