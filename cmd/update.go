package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"nexus/internal/update"

	"github.com/spf13/cobra"
)

var (
	flagCheck       bool
	flagForceUpdate bool
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update nexus to the latest release",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client := update.NewClient("")

		out.Status("Checking for updates...")
		rel, err := client.Latest(ctx)
		if err != nil {
			return err
		}
		newer, err := update.Newer(rel.Version(), Version)
		if err != nil {
			return err
		}
		out.Field("Current", Version)
		out.Field("Latest", rel.Version())

		if !newer && !flagForceUpdate {
			out.Success("nexus is up to date")
			return nil
		}
		if flagCheck {
			if newer {
				out.Status("run 'nexus update' to install %s", rel.Version())
			}
			return nil
		}

		name, err := update.AssetName(runtime.GOOS, runtime.GOARCH)
		if err != nil {
			return err
		}
		asset, err := update.FindAsset(rel, name)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		bar := out.Progress(int(asset.Size), "downloading "+asset.Name)
		if _, err := client.Download(ctx, asset, io.MultiWriter(&buf, bar)); err != nil {
			return err
		}
		bar.Finish()

		exe, err := os.Executable()
		if err != nil {
			return err
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		if err := update.Install(exe, &buf); err != nil {
			return err
		}
		out.Success("Updated to %s", rel.Version())
		return nil
	},
}

func init() {
	updateCmd.Flags().BoolVar(&flagCheck, "check", false, "only check for a newer release")
	updateCmd.Flags().BoolVar(&flagForceUpdate, "force", false, "reinstall even when already on the latest release")
	rootCmd.AddCommand(updateCmd)
}
