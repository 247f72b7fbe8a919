package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes rootCmd with the given args, capturing and returning
// whatever the command writes to os.Stdout. commitCmd's repeatable flags are
// reset first since pflag's StringArrayVar appends onto whatever value the
// variable already holds, and rootCmd is a package-level singleton reused
// across every call in this file.
func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	commitPuts = nil
	commitMkdirs = nil
	commitRemoves = nil
	commitCopies = nil
	commitMessage = ""
	commitAuthor = ""

	r, w, err := os.Pipe()
	require.NoError(t, err)
	origStdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = origStdout }()

	rootCmd.SetArgs(args)
	runErr := rootCmd.Execute()

	require.NoError(t, w.Close())
	out, _ := io.ReadAll(r)
	require.NoError(t, runErr)
	return string(out)
}

func TestCLIInitCommitCatLogRoundTrip(t *testing.T) {
	dir := t.TempDir()
	localFile := filepath.Join(dir, "greeting.txt")
	require.NoError(t, os.WriteFile(localFile, []byte("hello from the CLI\n"), 0644))

	initOut := runCLI(t, "init", "--repo", dir)
	assert.Contains(t, initOut, "Initialized empty repository")

	commitOut := runCLI(t, "commit", "--repo", dir,
		"--put", localFile+"=/trunk/greeting.txt",
		"--message", "add greeting",
		"--author", "alice")
	assert.Contains(t, commitOut, "Committed revision 1")

	catOut := runCLI(t, "cat", "--repo", dir, "1", "/trunk/greeting.txt")
	assert.Equal(t, "hello from the CLI\n", catOut)

	logOut := runCLI(t, "log", "--repo", dir, "1")
	assert.Contains(t, logOut, "author: alice")
	assert.Contains(t, logOut, "log: add greeting")
	assert.True(t, strings.Contains(logOut, "A /trunk/greeting.txt"))
}

func TestCLICommitMkdirAndRemove(t *testing.T) {
	dir := t.TempDir()
	runCLI(t, "init", "--repo", dir)

	runCLI(t, "commit", "--repo", dir, "--mkdir", "/branches")

	removeOut := runCLI(t, "commit", "--repo", dir, "--rm", "/branches")
	assert.Contains(t, removeOut, "Committed revision 2")

	logOut := runCLI(t, "log", "--repo", dir, "2")
	assert.Contains(t, logOut, "D /branches")
}

func TestCLICatRejectsUnknownPath(t *testing.T) {
	dir := t.TempDir()
	runCLI(t, "init", "--repo", dir)

	commitPuts = nil
	commitMkdirs = nil
	commitRemoves = nil
	commitCopies = nil
	commitMessage = ""
	commitAuthor = ""
	rootCmd.SetArgs([]string{"cat", "--repo", dir, "0", "/does/not/exist"})
	err := rootCmd.Execute()
	assert.Error(t, err)
}

func TestCLICommitCopy(t *testing.T) {
	dir := t.TempDir()
	localFile := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(localFile, []byte("trunk file"), 0644))

	runCLI(t, "init", "--repo", dir)
	runCLI(t, "commit", "--repo", dir, "--put", localFile+"=/trunk/a.txt")

	copyOut := runCLI(t, "commit", "--repo", dir, "--copy", "1:/trunk=/branches/b1")
	assert.Contains(t, copyOut, "Committed revision 2")

	catOut := runCLI(t, "cat", "--repo", dir, "2", "/branches/b1/a.txt")
	assert.Equal(t, "trunk file", catOut)

	logOut := runCLI(t, "log", "--repo", dir, "2")
	assert.Contains(t, logOut, "A /branches/b1")
}
