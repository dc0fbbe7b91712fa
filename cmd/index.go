package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"nexus/internal/index"
	"nexus/internal/metrics"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	flagForce       bool
	flagWorkers     int
	flagSummarize   bool
	flagMetricsAddr string
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a repository for semantic search",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		root := "."
		if len(args) == 1 {
			root = args[0]
		}
		if flagMetricsAddr != "" {
			go metrics.Serve(flagMetricsAddr, logger)
		}

		ic := indexConfig(root, sharedRouter())
		if flagWorkers > 0 {
			ic.Workers = flagWorkers
		}

		idx, err := index.Open(ctx, ic)
		var ie *index.IndexError
		if errors.As(err, &ie) && ie.Kind == index.KindCorruptStore && flagForce {
			out.Warn("index store is corrupt; rebuilding")
			if err := index.Purge(ie.Path); err != nil {
				return err
			}
			idx, err = index.Open(ctx, ic)
		}
		if err != nil {
			return err
		}
		defer idx.Close()

		out.Header("Index " + idx.Root())
		start := time.Now()
		var (
			bar   *progressbar.ProgressBar
			phase string
		)
		stats, err := idx.Index(ctx, index.Options{
			Force:     flagForce,
			Summarize: flagSummarize,
			OnProgress: func(p string, current, total int) {
				if p != phase || bar == nil {
					if bar != nil {
						bar.Finish()
					}
					phase = p
					bar = out.Progress(total, p)
				}
				bar.Set(current)
			},
		})
		if bar != nil {
			bar.Finish()
		}
		if err != nil {
			return err
		}

		out.Success("Indexed in %s", time.Since(start).Round(time.Millisecond))
		out.Field("Files", fmt.Sprintf("%d total, %d indexed, %d unchanged, %d removed",
			stats.FilesTotal, stats.FilesIndexed, stats.FilesUnchanged, stats.FilesDeleted))
		out.Field("Chunks", fmt.Sprintf("%d written, %d total", stats.ChunksWritten, stats.ChunksTotal))
		if stats.RecoverableErrors > 0 || stats.FatalErrors > 0 {
			out.Warn("%d file(s) with syntax errors, %d skipped", stats.RecoverableErrors, stats.FatalErrors)
		}
		if flagSummarize && idx.Overview() != "" {
			out.Field("Overview", idx.Root()+string(os.PathSeparator)+index.DirName+string(os.PathSeparator)+index.OverviewFile)
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVarP(&flagForce, "force", "f", false, "discard the existing index and rebuild")
	indexCmd.Flags().IntVar(&flagWorkers, "workers", 0, "parallel workers (default: number of CPUs)")
	indexCmd.Flags().BoolVar(&flagSummarize, "summarize", false, "generate file summaries and overview.md with the AI provider")
	indexCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while indexing")
	rootCmd.AddCommand(indexCmd)
}
