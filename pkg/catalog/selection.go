package catalog

import "github.com/glorpus-work/datafetch/pkg/errors"

// Selection is the resolved set of sessions of one collection a command works on.
type Selection struct {
	Collection *Collection
	Sessions   []*Session
	// Missing holds requested session ids the collection does not contain.
	Missing []string
}

// SelectedPart is a part together with the ids of its parents.
type SelectedPart struct {
	CollectionID string
	SessionID    string
	Part         Part
}

// Key returns the collection/session/part key of the part.
func (p SelectedPart) Key() string {
	return FileKey(p.CollectionID, p.SessionID, p.Part.ID)
}

// Select resolves sessionIDs within the collection collectionID.
// An empty sessionIDs selects every session. Unknown session ids are not an
// error; they are reported in Selection.Missing.
func (c *Catalog) Select(collectionID string, sessionIDs []string) (*Selection, error) {
	col, ok := c.Collection(collectionID)
	if !ok {
		return nil, errors.Wrapf(errors.ErrCollectionNotFound, "%q (available: %v)", collectionID, c.CollectionIDs())
	}

	sel := &Selection{Collection: col}
	if len(sessionIDs) == 0 {
		for i := range col.Sessions {
			sel.Sessions = append(sel.Sessions, &col.Sessions[i])
		}
		return sel, nil
	}

	for _, id := range sessionIDs {
		s, ok := col.Session(id)
		if !ok {
			sel.Missing = append(sel.Missing, id)
			continue
		}
		sel.Sessions = append(sel.Sessions, s)
	}
	return sel, nil
}

// Parts returns the selected parts in declaration order.
// Optional parts are only included when includeOptional is set.
func (s *Selection) Parts(includeOptional bool) []SelectedPart {
	var parts []SelectedPart
	for _, sess := range s.Sessions {
		for _, p := range sess.Parts {
			if p.Optional && !includeOptional {
				continue
			}
			parts = append(parts, SelectedPart{
				CollectionID: s.Collection.ID,
				SessionID:    sess.ID,
				Part:         p,
			})
		}
	}
	return parts
}
