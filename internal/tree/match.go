package tree

import (
	"errors"
	"sort"
	"strings"
)

// Match is the outcome of matching a request path against the arena.
type Match struct {
	ID    uint
	Chain string
	// Exact is set when the whole path was consumed by the node chain.
	Exact bool
	// Remainder holds the unmatched trailing segments of a partial match.
	Remainder string
}

// Found reports whether any node matched.
func (m Match) Found() bool {
	return m.ID != 0
}

// NormalizePath trims surrounding slashes and collapses empty segments.
func NormalizePath(path string) string {
	parts := strings.Split(path, "/")
	kept := parts[:0]
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, "/")
}

// Match finds the reachable node whose slug chain equals path, falling back to
// the node with the longest chain that is a segment prefix of path. An empty
// path matches the homepage root.
//
// Nodes whose chain cannot be walked are skipped. When no exact match exists
// the errors of those broken nodes that could have served path are returned
// joined, so the caller can report the misconfiguration. Broken nodes elsewhere
// in the tree do not affect the result.
func (a *Arena) Match(path string) (Match, error) {
	target := NormalizePath(path)
	ids := a.sortedIDs()

	if target == "" {
		return a.matchHomepage(ids), nil
	}

	var (
		best    Match
		chainEr []error
	)
	segments := strings.Split(target, "/")
	for _, id := range ids {
		ok, err := a.Reachable(id)
		if err != nil {
			if a.onPath(id, segments) {
				chainEr = append(chainEr, err)
			}
			continue
		}
		if !ok {
			continue
		}
		chain, err := a.Chain(id)
		if err != nil {
			if a.onPath(id, segments) {
				chainEr = append(chainEr, err)
			}
			continue
		}
		if chain == target {
			return Match{ID: id, Chain: chain, Exact: true}, nil
		}
		if strings.HasPrefix(target, chain+"/") && len(chain) > len(best.Chain) {
			best = Match{ID: id, Chain: chain, Remainder: strings.TrimPrefix(target, chain+"/")}
		}
	}
	if len(chainEr) > 0 {
		return best, errors.Join(chainEr...)
	}
	return best, nil
}

// onPath reports whether the walkable part of id's parent chain lines up with
// segments: the slug of id equals some segment and every ancestor up to the
// break (or the start of the path) equals the segment before it.
func (a *Arena) onPath(id uint, segments []string) bool {
	n, ok := a.nodes[id]
	if !ok {
		return false
	}
	for k, segment := range segments {
		if segment != n.Slug {
			continue
		}
		visited := map[uint]struct{}{id: {}}
		cur, aligned := n, true
		for j := k - 1; j >= 0 && cur.ParentID != 0; j-- {
			if _, seen := visited[cur.ParentID]; seen {
				break
			}
			parent, ok := a.nodes[cur.ParentID]
			if !ok {
				break
			}
			if parent.Slug != segments[j] {
				aligned = false
				break
			}
			visited[parent.ID] = struct{}{}
			cur = parent
		}
		if aligned {
			return true
		}
	}
	return false
}

func (a *Arena) matchHomepage(ids []uint) Match {
	var (
		best  Match
		bestN Node
	)
	for _, id := range ids {
		n := a.nodes[id]
		if !n.Homepage || !n.Active || n.ParentID != 0 {
			continue
		}
		if best.Found() && bestN.Position <= n.Position {
			continue
		}
		best = Match{ID: id, Chain: n.Slug, Exact: true}
		bestN = n
	}
	return best
}

func (a *Arena) sortedIDs() []uint {
	ids := make([]uint, 0, len(a.nodes))
	for id := range a.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
