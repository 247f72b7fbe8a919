package fs

import (
	"os"
)

// deltaBaseAncestor walks back predecessorDistance(newCount) steps from a
// node, its immediate predecessor being the first step, to find the
// noderev a fresh write should
// delta against (spec.md §4.4 "Base selection"). Returns nil when
// newCount's distance is zero, meaning delta vs-empty.
func deltaBaseAncestor(s *Store, predecessorID *ID, newCount int) (*NodeRevision, error) {
	distance := predecessorDistance(newCount)
	if distance == 0 || predecessorID == nil {
		return nil, nil
	}
	nr, err := s.GetNodeRevision(*predecessorID)
	if err != nil {
		return nil, err
	}
	for i := 1; i < distance; i++ {
		if nr.PredecessorID == nil {
			return nr, nil
		}
		nr, err = s.GetNodeRevision(*nr.PredecessorID)
		if err != nil {
			return nil, err
		}
	}
	return nr, nil
}

// PutFileContent writes new file bytes for a mutable file noderev,
// deltifying against the skip-chain ancestor chosen by deltaBaseAncestor,
// and appends the representation directly to the transaction's prototype
// rev file (spec.md §4.4: file data reps, unlike directory/property reps,
// get a real location immediately, not a "-1" placeholder). nr.DataRep is
// updated in place; the caller still owns calling PutNodeRevision.
func (s *Store) PutFileContent(nr *NodeRevision, data []byte) error {
	var baseData []byte
	var baseLoc *repLocation
	var baseSize int64

	if ancestor, err := deltaBaseAncestor(s, nr.PredecessorID, nr.PredecessorCount); err != nil {
		return err
	} else if ancestor != nil && ancestor.DataRep != nil {
		baseData, err = ReadRepresentation(s, ancestor.DataRep)
		if err != nil {
			return err
		}
		loc := ancestor.DataRep.location()
		baseLoc = &loc
		baseSize = ancestor.DataRep.Size
	}

	f, err := os.OpenFile(s.Layout.TxnProtoRev(nr.ID.TxnID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	offset := info.Size()

	rep, _, err := WriteRepresentation(f, data, baseData, false, baseLoc, baseSize, s.Config.CompressDeltas)
	if err != nil {
		return err
	}
	rep.Mutable = true
	rep.TxnID = nr.ID.TxnID
	rep.Offset = offset
	nr.DataRep = rep
	return nil
}
