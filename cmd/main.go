package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/drpcorg/abacus/repl"
	"github.com/drpcorg/abacus/utils"
	"github.com/spf13/cobra"
)

var (
	configPath string
	metricsOn  string
	verbose    bool

	rootCmd = &cobra.Command{
		Use:          "abacus",
		Short:        "An interactive shell for indexed in-memory collections",
		Version:      "0.1.0",
		SilenceUsage: true,
		RunE:         runShell,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config with collections to seed")
	rootCmd.PersistentFlags().StringVar(&metricsOn, "metrics", "", "serve prometheus metrics on this address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func runShell(cmd *cobra.Command, args []string) error {
	cfg, err := repl.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if metricsOn != "" {
		cfg.Metrics = metricsOn
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	r := repl.New(cfg, utils.NewDefaultLogger(level))
	if err := r.Open(); err != nil {
		return err
	}
	defer r.Close()
	return r.Run()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
