package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justcherie/svnfs/internal/difflib"
)

var (
	diff3IgnoreSpace string
	diff3IgnoreEOL   bool
	diff3Style       string
	diff3Color       bool
)

var diff3Cmd = &cobra.Command{
	Use:   "diff3 <original> <modified> <latest>",
	Short: "Three-way merge modified and latest against their common original",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := parseDiffOptions(diff3IgnoreSpace, diff3IgnoreEOL)
		if err != nil {
			return err
		}
		style, err := parseMergeStyle(diff3Style)
		if err != nil {
			return err
		}

		cliLog.Debug("diff3: merging files",
			zap.String("original", args[0]), zap.String("modified", args[1]), zap.String("latest", args[2]))

		original, err := difflib.Load(args[0], opts)
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		modified, err := difflib.Load(args[1], opts)
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[1], err)
		}
		latest, err := difflib.Load(args[2], opts)
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[2], err)
		}

		out, hasConflict := difflib.FormatThreeWay(original, modified, latest, nil, args[1], args[0], args[2], style, opts)
		printMerge(out)
		if hasConflict {
			cliLog.Debug("diff3: unresolved conflicts", zap.String("path", args[1]))
			os.Exit(1)
		}
		return nil
	},
}

func parseMergeStyle(s string) (difflib.MergeStyle, error) {
	switch s {
	case "", "modified-latest":
		return difflib.StyleModifiedLatest, nil
	case "modified-original-latest":
		return difflib.StyleModifiedOriginalLatest, nil
	case "modified":
		return difflib.StyleModified, nil
	case "latest":
		return difflib.StyleLatest, nil
	case "resolved-modified-latest":
		return difflib.StyleResolvedModifiedLatest, nil
	case "only-conflicts":
		return difflib.StyleOnlyConflicts, nil
	default:
		return 0, fmt.Errorf("invalid --style %q", s)
	}
}

func printMerge(text string) {
	if !diff3Color || !isTerminal() {
		fmt.Print(text)
		return
	}
	mine := color.New(color.FgGreen)
	theirs := color.New(color.FgBlue)
	marker := color.New(color.FgYellow)
	inMine, inTheirs := false, false
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "<<<<<<<"):
			marker.Print(line)
			inMine = true
		case strings.HasPrefix(line, "|||||||"):
			marker.Print(line)
			inMine = false
		case strings.HasPrefix(line, "======="):
			marker.Print(line)
			inMine, inTheirs = false, true
		case strings.HasPrefix(line, ">>>>>>>"):
			marker.Print(line)
			inTheirs = false
		case inMine:
			mine.Print(line)
		case inTheirs:
			theirs.Print(line)
		default:
			fmt.Print(line)
		}
	}
}

func init() {
	diff3Cmd.Flags().StringVar(&diff3IgnoreSpace, "ignore-space", "none", "whitespace handling: none, change, or all")
	diff3Cmd.Flags().BoolVar(&diff3IgnoreEOL, "ignore-eol-style", false, "treat CRLF/CR/LF as equivalent")
	diff3Cmd.Flags().StringVar(&diff3Style, "style", "modified-latest", "conflict display style")
	diff3Cmd.Flags().BoolVar(&diff3Color, "color", false, "colorize conflict markers when stdout is a terminal")
}
