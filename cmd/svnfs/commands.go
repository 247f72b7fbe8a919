package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/justcherie/svnfs/internal/fs"
)

func openStore() (*fs.Store, error) {
	cfg, err := fs.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return fs.Open(repoPath, cfg)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new, empty repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := fs.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		s, err := fs.Create(repoPath, cfg)
		if err != nil {
			return fmt.Errorf("creating repository: %w", err)
		}
		defer s.Close()
		fmt.Println("Initialized empty repository in", repoPath)
		return nil
	},
}

var (
	commitPuts    []string
	commitMkdirs  []string
	commitRemoves []string
	commitCopies  []string
	commitMessage string
	commitAuthor  string
)

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Stage changes in a fresh transaction and commit them",
	Long: `commit opens a transaction at the repository's current youngest
revision, applies the requested operations grouped by kind (every --put,
then every --mkdir, then every --copy, then every --rm), and commits. Each --put takes "localfile=/repo/path". Each --copy
takes "rev:/repo/source=/repo/dest" and records a cross-history copy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return fmt.Errorf("opening repository: %w", err)
		}
		defer s.Close()

		txn, err := fs.Begin(s)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}

		for _, spec := range commitPuts {
			local, dest, ok := strings.Cut(spec, "=")
			if !ok {
				txn.Purge()
				return fmt.Errorf("invalid --put %q, want local=dest", spec)
			}
			data, err := os.ReadFile(local)
			if err != nil {
				txn.Purge()
				return fmt.Errorf("reading %s: %w", local, err)
			}
			if _, err := txn.PutFile(dest, data); err != nil {
				txn.Purge()
				return fmt.Errorf("putting %s: %w", dest, err)
			}
		}
		for _, dest := range commitMkdirs {
			if _, err := txn.MakeDir(dest); err != nil {
				txn.Purge()
				return fmt.Errorf("making directory %s: %w", dest, err)
			}
		}
		for _, spec := range commitCopies {
			fromSpec, dest, ok := strings.Cut(spec, "=")
			if !ok {
				txn.Purge()
				return fmt.Errorf("invalid --copy %q, want rev:path=dest", spec)
			}
			revStr, fromPath, ok := strings.Cut(fromSpec, ":")
			if !ok {
				txn.Purge()
				return fmt.Errorf("invalid --copy %q, want rev:path=dest", spec)
			}
			fromRev, err := strconv.Atoi(revStr)
			if err != nil {
				txn.Purge()
				return fmt.Errorf("invalid --copy source revision %q: %w", revStr, err)
			}
			if _, err := txn.CopyPath(fromRev, fromPath, dest); err != nil {
				txn.Purge()
				return fmt.Errorf("copying %s@%d to %s: %w", fromPath, fromRev, dest, err)
			}
		}
		for _, dest := range commitRemoves {
			if err := txn.DeleteEntry(dest); err != nil {
				txn.Purge()
				return fmt.Errorf("removing %s: %w", dest, err)
			}
		}

		if commitMessage != "" {
			if err := txn.SetRevisionProp("svn:log", commitMessage); err != nil {
				txn.Purge()
				return fmt.Errorf("setting svn:log: %w", err)
			}
		}
		if commitAuthor != "" {
			if err := txn.SetRevisionProp("svn:author", commitAuthor); err != nil {
				txn.Purge()
				return fmt.Errorf("setting svn:author: %w", err)
			}
		}

		rev, err := s.Commit(txn)
		if err != nil {
			return fmt.Errorf("committing: %w", err)
		}
		fmt.Printf("Committed revision %d\n", rev)
		return nil
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <rev> <path>",
	Short: "Print a file's contents at a given revision",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rev, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid revision %q: %w", args[0], err)
		}
		s, err := openStore()
		if err != nil {
			return fmt.Errorf("opening repository: %w", err)
		}
		defer s.Close()

		nr, err := s.Lookup(rev, args[1])
		if err != nil {
			return fmt.Errorf("looking up %s@%d: %w", args[1], rev, err)
		}
		if nr.Kind != fs.KindFile {
			return fmt.Errorf("%s@%d is not a file", args[1], rev)
		}
		data, err := fs.ReadRepresentation(s, nr.DataRep)
		if err != nil {
			return fmt.Errorf("reading %s@%d: %w", args[1], rev, err)
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var logCmd = &cobra.Command{
	Use:   "log <rev>",
	Short: "Show the changed-paths section of a revision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rev, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid revision %q: %w", args[0], err)
		}
		s, err := openStore()
		if err != nil {
			return fmt.Errorf("opening repository: %w", err)
		}
		defer s.Close()

		props, err := s.GetRevisionProps(rev)
		if err == nil {
			if author, ok := props["svn:author"]; ok {
				fmt.Printf("author: %s\n", author)
			}
			if msg, ok := props["svn:log"]; ok {
				fmt.Printf("log: %s\n", msg)
			}
		}

		changes, err := s.GetChangedPaths(rev)
		if err != nil {
			return fmt.Errorf("reading changed paths for rev %d: %w", rev, err)
		}
		fmt.Printf("Changed paths (rev %d):\n", rev)
		for _, c := range changes {
			fmt.Printf("   %s %s\n", changeGlyph(c.Action), c.Path)
		}
		return nil
	},
}

func changeGlyph(a fs.ChangeAction) string {
	switch a {
	case fs.ActionAdd:
		return "A"
	case fs.ActionDelete:
		return "D"
	case fs.ActionReplace:
		return "R"
	case fs.ActionModify:
		return "M"
	default:
		return "?"
	}
}

func init() {
	commitCmd.Flags().StringArrayVar(&commitPuts, "put", nil, "add or modify a file: local=/repo/path (repeatable)")
	commitCmd.Flags().StringArrayVar(&commitMkdirs, "mkdir", nil, "create an empty directory at /repo/path (repeatable)")
	commitCmd.Flags().StringArrayVar(&commitRemoves, "rm", nil, "delete the entry at /repo/path (repeatable)")
	commitCmd.Flags().StringArrayVar(&commitCopies, "copy", nil, "copy rev:/repo/source=/repo/dest (repeatable)")
	commitCmd.Flags().StringVar(&commitMessage, "message", "", "svn:log revision property")
	commitCmd.Flags().StringVar(&commitAuthor, "author", "", "svn:author revision property")
}
