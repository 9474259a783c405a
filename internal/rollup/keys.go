package rollup

// KeyID is a dense per-dimension identifier for an interned classification
// path. IDs are assigned in first-observed order, so rebuilding the same
// record set yields the same IDs.
type KeyID uint32

// pathSet interns classification paths structurally. Equality is
// segmentwise; there is no delimiter join anywhere, so a path segment
// containing the table's join key cannot collide with a nested path.
type pathSet struct {
	root  pathTrie
	paths [][]string // KeyID → path
}

type pathTrie struct {
	children map[string]*pathTrie
	id       KeyID
	terminal bool
}

func (ps *pathSet) intern(path []string) KeyID {
	node := &ps.root
	for _, seg := range path {
		if node.children == nil {
			node.children = make(map[string]*pathTrie)
		}
		child, ok := node.children[seg]
		if !ok {
			child = &pathTrie{}
			node.children[seg] = child
		}
		node = child
	}
	if !node.terminal {
		node.terminal = true
		node.id = KeyID(len(ps.paths))
		ps.paths = append(ps.paths, append([]string(nil), path...))
	}
	return node.id
}

func (ps *pathSet) lookup(path []string) (KeyID, bool) {
	node := &ps.root
	for _, seg := range path {
		child, ok := node.children[seg]
		if !ok {
			return 0, false
		}
		node = child
	}
	if !node.terminal {
		return 0, false
	}
	return node.id, true
}

// path returns the interned segments for an ID. Callers must not mutate.
func (ps *pathSet) path(id KeyID) []string { return ps.paths[id] }

func (ps *pathSet) len() int { return len(ps.paths) }
