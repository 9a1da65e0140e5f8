package graph

import (
	"context"
	"fmt"
)

// DefaultImpactDepth bounds the transitive caller walk.
const DefaultImpactDepth = 10

// Impact classifies the downstream effect of changing one function: the
// callers that reference it directly, transitive callers by hop distance,
// the entry points and tests among them, and a blast radius tier.
func (s *searcher) Impact(ctx context.Context, id string, opts ImpactOptions) (*ImpactResult, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}

	target, err := snap.g.Vertex(id)
	if err != nil {
		return nil, &NotFoundError{Kind: "function", Query: id, Hint: "unknown function id"}
	}

	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultImpactDepth
	}
	changeKind := opts.ChangeKind
	if changeKind == "" {
		changeKind = ChangeSignature
	} else if !validChangeKind(changeKind) {
		return nil, fmt.Errorf("unknown change kind %q", changeKind)
	}

	result := &ImpactResult{
		TargetID:            target.ID,
		TargetName:          target.Name,
		ChangeKind:          changeKind,
		DirectCallers:       []ImpactedCaller{},
		TransitiveCallers:   []ImpactedCaller{},
		AffectedEntryPoints: []string{},
		AffectedTests:       []string{},
	}

	breaking := breakingChange(changeKind)
	entryPoints := make(map[string]bool)
	tests := make(map[string]bool)

	type frontierItem struct {
		id    string
		depth int
	}
	visited := map[string]bool{id: true}
	frontier := []frontierItem{{id: id, depth: 0}}

	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, hop := range snap.in[cur.id] {
			if visited[hop.id] {
				continue
			}
			visited[hop.id] = true
			caller := snap.cg.Functions[hop.id]
			depth := cur.depth + 1

			impacted := ImpactedCaller{
				FunctionID:   caller.ID,
				FunctionName: caller.Name,
				File:         caller.File,
				Line:         caller.StartLine,
				Depth:        depth,
				Transitive:   depth > 1,
				WouldBreak:   depth == 1 && breaking,
			}
			if depth == 1 {
				result.DirectCallers = append(result.DirectCallers, impacted)
			} else {
				result.TransitiveCallers = append(result.TransitiveCallers, impacted)
			}

			// Tests are reported on their own list, so the entry point
			// set and the blast radius only count non-test entries.
			if caller.IsTest() {
				tests[caller.ID] = true
			} else if caller.EntryPoint {
				entryPoints[caller.ID] = true
			}

			frontier = append(frontier, frontierItem{id: hop.id, depth: depth})
		}
	}

	result.AffectedEntryPoints = sortedKeys(entryPoints)
	result.AffectedTests = sortedKeys(tests)
	result.BlastRadius = s.blastRadius(len(result.DirectCallers), len(result.TransitiveCallers), len(result.AffectedEntryPoints))
	return result, nil
}

// breakingChange reports whether direct call sites stop compiling or
// resolving under the change kind.
func breakingChange(kind string) bool {
	switch kind {
	case ChangeSignature, ChangeReturnType, ChangeRename, ChangeDeletion:
		return true
	}
	return false
}

func validChangeKind(kind string) bool {
	switch kind {
	case ChangeSignature, ChangeReturnType, ChangeRename, ChangeDeletion, ChangeBehavior:
		return true
	}
	return false
}

// blastRadius classifies impact size from caller and entry point counts.
func (s *searcher) blastRadius(direct, transitive, entryPoints int) string {
	switch {
	case direct == 0 && transitive == 0:
		return BlastMinimal
	case entryPoints >= s.opts.SevereEntryPoints || direct >= s.opts.SevereCallers:
		return BlastSevere
	case entryPoints > 0:
		return BlastSignificant
	default:
		return BlastModerate
	}
}
