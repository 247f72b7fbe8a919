package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justcherie/svnfs/internal/difflib"
)

var (
	diffIgnoreSpace string
	diffIgnoreEOL   bool
	diffColor       bool
)

var diffCmd = &cobra.Command{
	Use:   "diff <original> <modified>",
	Short: "Print a unified diff between two files",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := parseDiffOptions(diffIgnoreSpace, diffIgnoreEOL)
		if err != nil {
			return err
		}

		cliLog.Debug("diff: comparing files", zap.String("original", args[0]), zap.String("modified", args[1]))

		a, err := difflib.Load(args[0], opts)
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		b, err := difflib.Load(args[1], opts)
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[1], err)
		}

		out, changed := difflib.FormatUnified(a, b, args[0], fileMtime(args[0]), args[1], fileMtime(args[1]), opts)
		if !changed {
			cliLog.Debug("diff: no differences", zap.String("path", args[1]))
			return nil
		}
		printDiff(out)
		return nil
	},
}

func parseDiffOptions(ignoreSpace string, ignoreEOL bool) (difflib.Options, error) {
	opts := difflib.Options{IgnoreEOLStyle: ignoreEOL}
	switch strings.ToLower(ignoreSpace) {
	case "", "none":
		opts.IgnoreSpace = difflib.SpaceNone
	case "change":
		opts.IgnoreSpace = difflib.SpaceChange
	case "all":
		opts.IgnoreSpace = difflib.SpaceAll
	default:
		return opts, fmt.Errorf("invalid --ignore-space %q: want none, change, or all", ignoreSpace)
	}
	return opts, nil
}

func fileMtime(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return info.ModTime().Format("2006-01-02 15:04:05.000000000 -0700")
}

func printDiff(text string) {
	if !diffColor || !isTerminal() {
		fmt.Print(text)
		return
	}
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "@@"):
			header.Print(line)
		case strings.HasPrefix(line, "+"):
			added.Print(line)
		case strings.HasPrefix(line, "-"):
			removed.Print(line)
		default:
			fmt.Print(line)
		}
	}
}

func isTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

func init() {
	diffCmd.Flags().StringVar(&diffIgnoreSpace, "ignore-space", "none", "whitespace handling: none, change, or all")
	diffCmd.Flags().BoolVar(&diffIgnoreEOL, "ignore-eol-style", false, "treat CRLF/CR/LF as equivalent")
	diffCmd.Flags().BoolVar(&diffColor, "color", false, "colorize hunks when stdout is a terminal")
}
