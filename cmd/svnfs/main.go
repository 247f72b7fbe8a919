// cmd/svnfs/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	repoPath   string
	configPath string
	verboseLog bool
)

// cliLog is the driver-level logger shared by the commands that have no
// open *fs.Store of their own to log through (diff, diff3); commands that
// do open a store log through its Log field instead.
var cliLog *zap.Logger

var rootCmd = &cobra.Command{
	Use:   "svnfs",
	Short: "svnfs is a standalone FSFS-style revision store",
	Long: `svnfs manages a versioned, filesystem-backed object store modeled on
Subversion's FSFS backend: immutable revisions, copy-on-write transactions,
and a line-oriented diff/merge engine.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zapcore.InfoLevel
		if verboseLog {
			level = zapcore.DebugLevel
		}
		zcfg := zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(level)
		zcfg.DisableStacktrace = true
		logger, err := zcfg.Build()
		if err != nil {
			logger = zap.NewNop()
		}
		cliLog = logger
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&repoPath, "repo", ".", "path to the repository root")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a repository config file (yaml)")
	rootCmd.PersistentFlags().BoolVar(&verboseLog, "verbose", false, "enable debug-level logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(diff3Cmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
