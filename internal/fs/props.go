package fs

import (
	"bufio"
	"bytes"
	"os"
)

// GetNodeProps resolves a node-revision's property hash: published nodes
// decode their PLAIN prop rep directly, mutable nodes read the staged
// node.<id>.<copy>.props hash file (spec.md §3 "Property ...
// representations of mutable noderevs may be truncated to just a '-1'
// marker ... to indicate 'look in the transaction staging area'").
func (s *Store) GetNodeProps(nr *NodeRevision) (map[string][]byte, error) {
	if nr.PropRep == nil {
		return map[string][]byte{}, nil
	}
	if nr.PropRep.Mutable {
		path := s.Layout.TxnNodeProps(nr.ID.TxnID, nr.ID.NodeID, nr.ID.CopyID)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return map[string][]byte{}, nil
			}
			return nil, err
		}
		return decodeHash(bufio.NewReader(bytes.NewReader(data)))
	}
	raw, err := ReadRepresentation(s, nr.PropRep)
	if err != nil {
		return nil, err
	}
	return decodeHash(bufio.NewReader(bytes.NewReader(raw)))
}

// SetNodeProps rewrites a mutable node-revision's staged property hash in
// full (properties, unlike directories, get no incremental overlay — they
// are small enough that spec.md §4.5's "additionally support incremental
// deltas" language singles out directories, not properties) and marks
// nr.PropRep as a mutable-truncated pointer so the caller's subsequent
// PutNodeRevision writes "-1" for props.
func (s *Store) SetNodeProps(nr *NodeRevision, props map[string][]byte) error {
	path := s.Layout.TxnNodeProps(nr.ID.TxnID, nr.ID.NodeID, nr.ID.CopyID)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := encodeHash(f, props); err != nil {
		return err
	}
	nr.PropRep = &Representation{Mutable: true, TxnID: nr.ID.TxnID}
	return nil
}
