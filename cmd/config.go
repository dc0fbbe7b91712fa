package cmd

import (
	"errors"
	"fmt"
	"os"

	"nexus/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	flagShow       bool
	flagInitConfig bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch {
		case flagInitConfig:
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("%s already exists", cfgPath)
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.Save(cfgPath, config.Default()); err != nil {
				return err
			}
			out.Success("Created %s", cfgPath)
		case flagShow:
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			out.Status("# %s", cfgPath)
			fmt.Fprint(out.Out, string(data))
		default:
			out.Field("Config", cfgPath)
			out.Status("use --show to print it or --init to create it")
		}
		return nil
	},
}

func init() {
	configCmd.Flags().BoolVar(&flagShow, "show", false, "print the effective configuration")
	configCmd.Flags().BoolVar(&flagInitConfig, "init", false, "write a default configuration file")
	rootCmd.AddCommand(configCmd)
}
