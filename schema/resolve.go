package schema

import "github.com/d-j-hatton/python-smartem/errors"

// ResolvePath walks foreign keys from start toward end and returns the
// entities visited, start first.
//
// The walk stops early when an entity has no foreign key; the partial path is
// returned without error and callers branch on its last element. An entity
// with more than one foreign key fails the walk with ErrAmbiguousChain.
func (g *Graph) ResolvePath(start, end Entity) ([]Entity, error) {
	if _, err := g.Table(start); err != nil {
		return nil, err
	}
	if _, err := g.Table(end); err != nil {
		return nil, err
	}

	path := []Entity{start}
	current := start
	for hops := 0; current != end; hops++ {
		if hops >= g.maxDepth {
			return nil, errors.Wrapf(ErrChainTooDeep, "%s to %s after %d hops", start, end, hops)
		}
		fk, ok, err := g.Parent(current)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve %s to %s", start, end)
		}
		if !ok {
			break
		}
		current = fk.Parent
		path = append(path, current)
	}
	return path, nil
}

// Reaches reports whether path ends at target.
func Reaches(path []Entity, target Entity) bool {
	return len(path) > 0 && path[len(path)-1] == target
}

// ResolvePath resolves a chain in the Default graph.
func ResolvePath(start, end Entity) ([]Entity, error) {
	return Default.ResolvePath(start, end)
}
