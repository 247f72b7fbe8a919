package fs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ChangeAction is the kind of path mutation recorded in a transaction's
// changes log (spec.md §4.7).
type ChangeAction int

const (
	ActionModify ChangeAction = iota
	ActionAdd
	ActionDelete
	ActionReplace
	ActionReset
)

func (a ChangeAction) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionDelete:
		return "delete"
	case ActionReplace:
		return "replace"
	case ActionReset:
		return "reset"
	default:
		return "modify"
	}
}

func parseChangeAction(s string) (ChangeAction, error) {
	switch s {
	case "modify":
		return ActionModify, nil
	case "add":
		return ActionAdd, nil
	case "delete":
		return ActionDelete, nil
	case "replace":
		return ActionReplace, nil
	case "reset":
		return ActionReset, nil
	}
	return 0, fmt.Errorf("%w: unknown change action %q", ErrCorruption, s)
}

// Change is one path-mutation record: two lines in the on-disk changes
// log, a main line and a copyfrom line (spec.md §4.7, §6 "changed-paths
// section").
type Change struct {
	NodeRevID    string // "-" (or empty) only valid when Action == ActionReset
	Action       ChangeAction
	TextMod      bool
	PropMod      bool
	Path         string
	CopyFromRev  int
	CopyFromPath string
}

func boolFlag(b bool) string {
	if b {
		return "t"
	}
	return "f"
}

func parseBoolFlag(s string) (bool, error) {
	switch s {
	case "t":
		return true, nil
	case "f":
		return false, nil
	}
	return false, fmt.Errorf("%w: bad boolean flag %q", ErrCorruption, s)
}

// encodeChange appends one change record to w.
func encodeChange(w io.Writer, c Change) error {
	nodeID := c.NodeRevID
	if nodeID == "" {
		nodeID = "-"
	}
	if _, err := fmt.Fprintf(w, "%s %s %s %s %s\n", nodeID, c.Action, boolFlag(c.TextMod), boolFlag(c.PropMod), c.Path); err != nil {
		return err
	}
	if c.CopyFromPath == "" {
		_, err := io.WriteString(w, "\n")
		return err
	}
	_, err := fmt.Fprintf(w, "%d %s\n", c.CopyFromRev, c.CopyFromPath)
	return err
}

// decodeChanges reads every change record from r in order, tolerating the
// final record lacking a trailing newline.
func decodeChanges(r *bufio.Reader) ([]Change, error) {
	var out []Change
	for {
		line, err := r.ReadString('\n')
		if err == io.EOF && strings.TrimSpace(line) == "" {
			return out, nil
		}
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("%w: changes: %v", ErrCorruption, err)
		}
		mainEOF := err == io.EOF

		fields := strings.Fields(line)
		if len(fields) != 5 {
			return nil, fmt.Errorf("%w: malformed change line %q", ErrCorruption, line)
		}
		action, err := parseChangeAction(fields[1])
		if err != nil {
			return nil, err
		}
		textMod, err := parseBoolFlag(fields[2])
		if err != nil {
			return nil, err
		}
		propMod, err := parseBoolFlag(fields[3])
		if err != nil {
			return nil, err
		}
		c := Change{NodeRevID: fields[0], Action: action, TextMod: textMod, PropMod: propMod, Path: fields[4]}

		if !mainEOF {
			cpLine, cerr := r.ReadString('\n')
			if cerr != nil && cerr != io.EOF {
				return nil, fmt.Errorf("%w: changes: missing copyfrom line: %v", ErrCorruption, cerr)
			}
			cpLine = strings.TrimRight(cpLine, "\n")
			if cpLine != "" {
				sp := strings.IndexByte(cpLine, ' ')
				if sp < 0 {
					return nil, fmt.Errorf("%w: malformed copyfrom line %q", ErrCorruption, cpLine)
				}
				rev, rerr := strconv.Atoi(cpLine[:sp])
				if rerr != nil {
					return nil, fmt.Errorf("%w: bad copyfrom revision: %v", ErrCorruption, rerr)
				}
				c.CopyFromRev = rev
				c.CopyFromPath = cpLine[sp+1:]
			}
		}

		out = append(out, c)
		if mainEOF {
			return out, nil
		}
	}
}

// AppendChange records one path mutation to a transaction's changes log.
func (s *Store) AppendChange(txnID string, c Change) error {
	f, err := os.OpenFile(s.Layout.TxnChanges(txnID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer f.Close()
	return encodeChange(f, c)
}

// ReadChanges loads every change record appended to a transaction so far.
func (s *Store) ReadChanges(txnID string) ([]Change, error) {
	f, err := os.Open(s.Layout.TxnChanges(txnID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return decodeChanges(bufio.NewReader(f))
}

// FoldChanges folds a transaction's ordered change log into the final
// changed-paths summary for a revision, applying the rules of spec.md
// §4.7: reset drops an entry, delete-after-in-transaction-add drops it,
// add/replace after delete collapses to replace, modify ORs the
// text/prop flags, and delete/replace of a path prunes prior entries for
// its strict descendants (skipped when prefolded is true, matching a
// changes log that has already been through one fold).
func FoldChanges(changes []Change, prefolded bool) ([]Change, error) {
	folded := make(map[string]Change)
	var order []string
	seen := make(map[string]bool)

	remember := func(path string) {
		if !seen[path] {
			seen[path] = true
			order = append(order, path)
		}
	}

	prune := func(path string) {
		if prefolded {
			return
		}
		prefix := path + "/"
		for p := range folded {
			if strings.HasPrefix(p, prefix) {
				delete(folded, p)
			}
		}
	}

	for _, c := range changes {
		if c.Action == ActionReset {
			delete(folded, c.Path)
			continue
		}

		if c.NodeRevID == "" || c.NodeRevID == "-" {
			return nil, fmt.Errorf("%w: non-reset change for %q has a null noderev-id", ErrCorruption, c.Path)
		}

		prior, exists := folded[c.Path]

		if exists && prior.Action != ActionDelete && prior.NodeRevID != c.NodeRevID {
			return nil, fmt.Errorf("%w: new noderev-id for %q whose prior entry was not a delete", ErrCorruption, c.Path)
		}

		if exists && prior.Action == ActionDelete {
			switch c.Action {
			case ActionAdd, ActionReplace:
				c.Action = ActionReplace
			default:
				return nil, fmt.Errorf("%w: only add/replace/reset valid for %q after a delete", ErrCorruption, c.Path)
			}
		}

		switch c.Action {
		case ActionDelete:
			if exists && prior.Action == ActionAdd {
				delete(folded, c.Path)
			} else {
				folded[c.Path] = c
				remember(c.Path)
			}
			prune(c.Path)
		case ActionModify:
			if exists {
				prior.TextMod = prior.TextMod || c.TextMod
				prior.PropMod = prior.PropMod || c.PropMod
				folded[c.Path] = prior
			} else {
				folded[c.Path] = c
			}
			remember(c.Path)
		default: // add, replace
			folded[c.Path] = c
			remember(c.Path)
			if c.Action == ActionReplace {
				prune(c.Path)
			}
		}
	}

	out := make([]Change, 0, len(order))
	for _, p := range order {
		if c, ok := folded[p]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}
