package fs

import (
	"fmt"
	"strconv"
	"strings"
)

// ID is the tagged variant recommended by spec.md §9: a node-revision
// identity is either anchored in a transaction (mutable) or anchored in a
// published revision at a byte offset (immutable). Never hold a direct
// pointer between loaded noderevs; dereference through the store by ID.
type ID struct {
	NodeID string
	CopyID string

	// Exactly one of TxnID (mutable) or (Rev, Offset) (immutable) is valid,
	// selected by Mutable.
	Mutable bool
	TxnID   string
	Rev     int
	Offset  int64
}

func TxnNodeID(nodeID, copyID, txnID string) ID {
	return ID{NodeID: nodeID, CopyID: copyID, Mutable: true, TxnID: txnID}
}

func RevNodeID(nodeID, copyID string, rev int, offset int64) ID {
	return ID{NodeID: nodeID, CopyID: copyID, Mutable: false, Rev: rev, Offset: offset}
}

// String renders the triplet form used in the "id:" header value and in
// the directory-entry hash: "node_id.copy_id.rev/offset" for immutable ids
// or "node_id.copy_id.txn_id" for transaction-local ids.
func (id ID) String() string {
	if id.Mutable {
		return fmt.Sprintf("%s.%s.%s", id.NodeID, id.CopyID, id.TxnID)
	}
	return fmt.Sprintf("%s.%s.%d/%d", id.NodeID, id.CopyID, id.Rev, id.Offset)
}

// ParseID parses the triplet format emitted by ID.String. A location
// segment containing '/' is a rev/offset pair; otherwise it is a bare
// transaction id.
func ParseID(s string) (ID, error) {
	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 {
		return ID{}, fmt.Errorf("%w: malformed node-id %q", ErrCorruption, s)
	}
	nodeID, copyID, loc := parts[0], parts[1], parts[2]

	if slash := strings.IndexByte(loc, '/'); slash >= 0 {
		rev, err := strconv.Atoi(loc[:slash])
		if err != nil {
			return ID{}, fmt.Errorf("%w: bad revision in node-id %q: %v", ErrCorruption, s, err)
		}
		offset, err := strconv.ParseInt(loc[slash+1:], 10, 64)
		if err != nil {
			return ID{}, fmt.Errorf("%w: bad offset in node-id %q: %v", ErrCorruption, s, err)
		}
		return RevNodeID(nodeID, copyID, rev, offset), nil
	}

	return TxnNodeID(nodeID, copyID, loc), nil
}

// Equal compares two ids by value, as mandated by the "identities as value
// types" design note.
func (id ID) Equal(other ID) bool {
	return id == other
}

const keyDigits = "0123456789abcdefghijklmnopqrstuvwxyz"

// nextKey produces the monotonic successor of a base-36-style key, used to
// allocate fresh temporary node/copy ids inside a transaction. Grounded on
// svn_fs_fs__next_key's digit-increment-with-carry algorithm referenced from
// fs_fs.c's key arithmetic helpers.
func nextKey(key string) string {
	if key == "" {
		return "0"
	}
	digits := []byte(key)
	for i := len(digits) - 1; i >= 0; i-- {
		idx := strings.IndexByte(keyDigits, digits[i])
		if idx < len(keyDigits)-1 {
			digits[i] = keyDigits[idx+1]
			return string(digits)
		}
		digits[i] = keyDigits[0]
	}
	return "1" + string(digits)
}

// addKeys implements the original's svn_fs_fs__add_keys: treat both keys as
// base-36 numbers and add them digit by digit with carry, right-aligned.
// This is the renumbering arithmetic used both to combine a transaction's
// next-ids counter with the globally reserved starting id (commit step 3)
// and to convert a "_"-prefixed temporary suffix into a permanent id
// (commit step 4b). Recovered verbatim from fs_fs.c per SPEC_FULL §5.
func addKeys(a, b string) string {
	if a == "" {
		a = "0"
	}
	if b == "" {
		b = "0"
	}

	la, lb := len(a), len(b)
	n := la
	if lb > n {
		n = lb
	}
	out := make([]byte, n+1)

	carry := 0
	for i := 0; i < n; i++ {
		var da, db int
		if i < la {
			da = strings.IndexByte(keyDigits, a[la-1-i])
		}
		if i < lb {
			db = strings.IndexByte(keyDigits, b[lb-1-i])
		}
		sum := da + db + carry
		carry = sum / 36
		out[n-i] = keyDigits[sum%36]
	}

	if carry > 0 {
		out[0] = keyDigits[carry]
		return strings.TrimLeft(string(out), "0")
	}

	result := strings.TrimLeft(string(out[1:]), "0")
	if result == "" {
		return "0"
	}
	return result
}

// temporaryID reports whether the given node or copy id component is a
// transaction-local temporary id (the "_"-prefixed convention from
// spec.md §9) and, if so, its suffix.
func temporaryID(component string) (suffix string, isTemp bool) {
	if strings.HasPrefix(component, "_") {
		return component[1:], true
	}
	return "", false
}
