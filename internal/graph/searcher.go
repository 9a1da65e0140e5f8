package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dominikbraun/graph"
)

// Query defaults and limits
const (
	DefaultCallerDepth       = 1
	DefaultMaxResults        = 100
	DefaultSevereEntryPoints = 3
	DefaultSevereCallers     = 10
	maxSuggestions           = 5
)

// SearcherOptions configure query-side policy: which tables count as
// sensitive and where the severe blast-radius thresholds sit.
type SearcherOptions struct {
	SensitiveTables   []string
	SevereEntryPoints int
	SevereCallers     int
}

// CallerHit is one caller found by a Callers query. CallSites point at the
// lines where this function invokes the next hop toward the target.
type CallerHit struct {
	Function  *FunctionRecord `json:"function"`
	CallSites []CodeLocation  `json:"call_sites,omitempty"`
	Depth     int             `json:"depth"`
}

// CallersResult is the response to a Callers query.
type CallersResult struct {
	TargetID      string      `json:"target_id"`
	TargetName    string      `json:"target_name"`
	Callers       []CallerHit `json:"callers"`
	TotalFound    int         `json:"total_found"`
	TotalReturned int         `json:"total_returned"`
	Truncated     bool        `json:"truncated"`
}

// GraphInfo summarizes the loaded graph for status queries.
type GraphInfo struct {
	Schema      string    `json:"schema"`
	BuildID     string    `json:"build_id"`
	GeneratedAt time.Time `json:"generated_at"`
	ProjectRoot string    `json:"project_root"`
	Stats       Stats     `json:"stats"`
}

// Searcher answers read-only queries against the persisted call graph.
type Searcher interface {
	// FindFunction resolves a function id, qualified name, or simple name
	// to a single record, optionally narrowed to a file.
	FindFunction(name, file string) (*FunctionRecord, error)

	// Callers walks incoming edges from a function up to depth hops.
	Callers(ctx context.Context, id string, depth, limit int) (*CallersResult, error)

	// Reachability walks outgoing resolved edges from a function and
	// collects every data access reached, with the path taken.
	Reachability(ctx context.Context, id string, opts ReachabilityOptions) (*ReachabilityResult, error)

	// PathsToData walks incoming edges from every function accessing the
	// given table and reports the entry points that can reach it.
	PathsToData(ctx context.Context, opts InverseOptions) (*InverseResult, error)

	// Impact classifies the downstream effect of changing a function.
	Impact(ctx context.Context, id string, opts ImpactOptions) (*ImpactResult, error)

	// Info returns build metadata and statistics.
	Info() (*GraphInfo, error)

	// Reload reloads the graph from storage.
	Reload(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// searcher implements Searcher over an immutable snapshot. A reload builds
// a fresh snapshot and swaps the pointer; queries keep the snapshot they
// grabbed, so a swap never affects an in-flight traversal.
type searcher struct {
	storage Storage
	opts    SearcherOptions

	mu   sync.RWMutex // protects snap
	snap *snapshot
}

// snapshot is one loaded graph plus the derived query structures: a
// directed graph view, forward and reverse adjacency, and name indexes.
type snapshot struct {
	cg *CallGraph
	g  graph.Graph[string, *FunctionRecord]

	out    map[string][]edgeHop // caller id -> resolved callees
	in     map[string][]edgeHop // callee id -> callers
	byName map[string][]string  // simple name -> ids
	byQual map[string][]string  // qualified name -> ids

	sensitive map[string]bool // lowercased sensitive table names
}

// edgeHop is one resolved call edge; line and column locate the call site
// in the caller's file.
type edgeHop struct {
	id   string
	line int
	col  int
}

// arenaNode is one BFS arena slot. viaLine is the call-site line in the
// node's BFS parent that led here; paths are reconstructed by walking
// parent indexes back to the root.
type arenaNode struct {
	id      string
	parent  int
	depth   int
	viaLine int
}

// NewSearcher creates a searcher and performs the initial load. A missing
// graph is tolerated so servers can start before the first build; queries
// then fail with ErrGraphNotBuilt until a reload succeeds.
func NewSearcher(storage Storage, opts SearcherOptions) (Searcher, error) {
	if opts.SevereEntryPoints <= 0 {
		opts.SevereEntryPoints = DefaultSevereEntryPoints
	}
	if opts.SevereCallers <= 0 {
		opts.SevereCallers = DefaultSevereCallers
	}

	s := &searcher{storage: storage, opts: opts}
	if err := s.Reload(context.Background()); err != nil && !errors.Is(err, ErrGraphNotBuilt) {
		return nil, err
	}
	return s, nil
}

// Reload reloads the graph from storage and swaps in a fresh snapshot.
// The new snapshot is built outside the lock so queries keep running
// against the old one until the swap.
func (s *searcher) Reload(ctx context.Context) error {
	cg, err := s.storage.Load()
	if err != nil {
		return err
	}

	snap, err := newSnapshot(cg, s.opts.SensitiveTables)
	if err != nil {
		return fmt.Errorf("failed to index graph: %w", err)
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	return nil
}

// Close releases resources.
func (s *searcher) Close() error {
	return nil
}

// current returns the active snapshot.
func (s *searcher) current() (*snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return nil, ErrGraphNotBuilt
	}
	return s.snap, nil
}

// newSnapshot builds the query structures for one loaded graph. Functions
// are inserted in sorted id order so traversal order is deterministic.
func newSnapshot(cg *CallGraph, sensitiveTables []string) (*snapshot, error) {
	snap := &snapshot{
		cg:        cg,
		g:         graph.New(func(f *FunctionRecord) string { return f.ID }, graph.Directed()),
		out:       make(map[string][]edgeHop),
		in:        make(map[string][]edgeHop),
		byName:    make(map[string][]string),
		byQual:    make(map[string][]string),
		sensitive: make(map[string]bool, len(sensitiveTables)),
	}
	for _, table := range sensitiveTables {
		snap.sensitive[strings.ToLower(table)] = true
	}

	ids := make([]string, 0, len(cg.Functions))
	for id := range cg.Functions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		fn := cg.Functions[id]
		if err := snap.g.AddVertex(fn); err != nil {
			return nil, fmt.Errorf("failed to add function %s: %w", id, err)
		}
		snap.byName[fn.Name] = append(snap.byName[fn.Name], id)
		if fn.QualifiedName != "" && fn.QualifiedName != fn.Name {
			snap.byQual[fn.QualifiedName] = append(snap.byQual[fn.QualifiedName], id)
		}
	}

	// Only resolved references become edges; unresolved ones surface in
	// queries as unknown reach indicators.
	for _, id := range ids {
		fn := cg.Functions[id]
		for _, call := range fn.Calls {
			if !call.Resolved || call.CalleeID == "" {
				continue
			}
			if cg.Functions[call.CalleeID] == nil {
				continue
			}
			_ = snap.g.AddEdge(id, call.CalleeID) // duplicate call sites share one edge
			snap.out[id] = append(snap.out[id], edgeHop{id: call.CalleeID, line: call.Line, col: call.Column})
			snap.in[call.CalleeID] = append(snap.in[call.CalleeID], edgeHop{id: id, line: call.Line, col: call.Column})
		}
	}

	return snap, nil
}

// FindFunction resolves a name to a single function record.
func (s *searcher) FindFunction(name, file string) (*FunctionRecord, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	return snap.findFunction(name, file)
}

func (snap *snapshot) findFunction(name, file string) (*FunctionRecord, error) {
	// Full ids short-circuit the name lookup.
	if _, _, _, err := SplitFunctionID(name); err == nil {
		if fn, verr := snap.g.Vertex(name); verr == nil {
			return fn, nil
		}
	}

	ids := snap.byQual[name]
	if len(ids) == 0 {
		ids = snap.byName[name]
	}

	matched := filterByFile(snap.cg, ids, file)
	if len(matched) == 0 && len(ids) > 0 {
		// The name exists, just not in the requested file.
		return nil, &NotFoundError{
			Kind:       "function",
			Query:      name,
			Hint:       fmt.Sprintf("no definition in %q", file),
			Candidates: capList(ids, maxSuggestions),
		}
	}

	switch len(matched) {
	case 0:
		return nil, &NotFoundError{
			Kind:       "function",
			Query:      name,
			Hint:       "check the spelling or rebuild the graph",
			Candidates: snap.suggest(name),
		}
	case 1:
		return snap.cg.Functions[matched[0]], nil
	default:
		return nil, &AmbiguousError{Query: name, Matches: matched}
	}
}

// Callers walks incoming edges breadth-first from the target.
func (s *searcher) Callers(ctx context.Context, id string, depth, limit int) (*CallersResult, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	if depth <= 0 {
		depth = DefaultCallerDepth
	}
	if limit <= 0 {
		limit = DefaultMaxResults
	}

	target, err := snap.g.Vertex(id)
	if err != nil {
		return nil, &NotFoundError{Kind: "function", Query: id, Hint: "unknown function id"}
	}

	type frontierItem struct {
		id    string
		depth int
	}

	hits := []CallerHit{}
	visited := map[string]bool{id: true}
	frontier := []frontierItem{{id: id, depth: 0}}

	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		if cur.depth >= depth {
			continue
		}
		for _, hop := range snap.in[cur.id] {
			if visited[hop.id] {
				continue
			}
			visited[hop.id] = true
			hits = append(hits, CallerHit{
				Function:  snap.cg.Functions[hop.id],
				CallSites: snap.callSites(hop.id, cur.id),
				Depth:     cur.depth + 1,
			})
			frontier = append(frontier, frontierItem{id: hop.id, depth: cur.depth + 1})
		}
	}

	result := &CallersResult{
		TargetID:   target.ID,
		TargetName: target.Name,
		Callers:    hits,
		TotalFound: len(hits),
	}
	if len(result.Callers) > limit {
		result.Callers = result.Callers[:limit]
		result.Truncated = true
	}
	result.TotalReturned = len(result.Callers)
	return result, nil
}

// Reachability walks outgoing resolved edges breadth-first and collects
// data-access facts on every visited function. A visited set keeps the
// walk cycle-safe and guarantees no path repeats an id.
func (s *searcher) Reachability(ctx context.Context, id string, opts ReachabilityOptions) (*ReachabilityResult, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}

	origin, err := snap.g.Vertex(id)
	if err != nil {
		return nil, &NotFoundError{Kind: "function", Query: id, Hint: "unknown function id"}
	}

	result := &ReachabilityResult{
		Origin:          CodeLocation{File: origin.File, Line: origin.StartLine, FunctionID: origin.ID},
		ReachableAccess: []ReachableAccess{},
		Tables:          []string{},
	}

	tableFilter := make(map[string]bool, len(opts.Tables))
	for _, table := range opts.Tables {
		tableFilter[strings.ToLower(table)] = true
	}

	arena := []arenaNode{{id: id, parent: -1, depth: 0}}
	visited := map[string]bool{id: true}
	tables := make(map[string]bool)
	fields := make(map[string]bool)

	for i := 0; i < len(arena); i++ {
		node := arena[i]
		fn := snap.cg.Functions[node.id]
		if node.depth > result.MaxDepth {
			result.MaxDepth = node.depth
		}

		for _, fact := range fn.DataAccess {
			if !snap.keepFact(fact, opts, tableFilter) {
				continue
			}
			result.ReachableAccess = append(result.ReachableAccess, ReachableAccess{
				Table:      fact.Table,
				Operation:  fact.Operation,
				Fields:     fact.Fields,
				File:       fact.File,
				Line:       fact.Line,
				Confidence: fact.Confidence,
				Framework:  fact.Framework,
				Path:       snap.pathFrom(arena, i, fact.Line),
				Depth:      node.depth,
			})
			tables[fact.Table] = true
			for _, field := range fact.Fields {
				fields[field] = true
			}
		}

		if opts.IncludeUnresolved {
			for _, call := range fn.Calls {
				if call.Resolved {
					continue
				}
				result.Unknown = append(result.Unknown, UnknownReach{
					CalleeName: call.CalleeName,
					FromID:     node.id,
					File:       call.File,
					Line:       call.Line,
					Depth:      node.depth,
				})
			}
		}

		if opts.MaxDepth > 0 && node.depth >= opts.MaxDepth {
			continue
		}
		for _, hop := range snap.out[node.id] {
			if visited[hop.id] {
				continue
			}
			visited[hop.id] = true
			arena = append(arena, arenaNode{id: hop.id, parent: i, depth: node.depth + 1, viaLine: hop.line})
		}
	}

	result.Tables = sortedKeys(tables)
	result.Fields = sortedKeys(fields)
	result.FunctionsTraversed = len(visited)
	return result, nil
}

// PathsToData finds every entry point that can reach an access on the
// given table, walking incoming edges up from each matching accessor. One
// representative path is kept per (entry point, access site) pair.
func (s *searcher) PathsToData(ctx context.Context, opts InverseOptions) (*InverseResult, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	if opts.Table == "" {
		return nil, fmt.Errorf("paths-to-data: table is required")
	}

	result := &InverseResult{
		TargetTable: opts.Table,
		TargetField: opts.Field,
		AccessPaths: []InverseAccessPath{},
		EntryPoints: []string{},
	}

	seenPairs := make(map[string]bool)
	entryPoints := make(map[string]bool)

	for _, accessorID := range snap.cg.DataAccessors {
		fn := snap.cg.Functions[accessorID]
		if fn == nil {
			continue
		}
		facts := matchingFacts(fn, opts.Table, opts.Field)
		if len(facts) == 0 {
			continue
		}
		result.TotalAccessors++

		arena := []arenaNode{{id: accessorID, parent: -1, depth: 0}}
		visited := map[string]bool{accessorID: true}

		for i := 0; i < len(arena); i++ {
			node := arena[i]
			nodeFn := snap.cg.Functions[node.id]

			if nodeFn.EntryPoint {
				for _, fact := range facts {
					key := node.id + "|" + fact.File + ":" + strconv.Itoa(fact.Line)
					if seenPairs[key] {
						continue
					}
					seenPairs[key] = true
					entryPoints[node.id] = true
					result.AccessPaths = append(result.AccessPaths, InverseAccessPath{
						EntryPoint:      node.id,
						Path:            snap.pathDown(arena, i, fact.Line),
						AccessTable:     fact.Table,
						AccessOperation: fact.Operation,
						AccessFields:    fact.Fields,
						AccessFile:      fact.File,
						AccessLine:      fact.Line,
					})
				}
			}

			if opts.MaxDepth > 0 && node.depth >= opts.MaxDepth {
				continue
			}
			for _, hop := range snap.in[node.id] {
				if visited[hop.id] {
					continue
				}
				visited[hop.id] = true
				arena = append(arena, arenaNode{id: hop.id, parent: i, depth: node.depth + 1, viaLine: hop.line})
			}
		}
	}

	if result.TotalAccessors == 0 {
		return nil, &NotFoundError{
			Kind:       "table",
			Query:      opts.Table,
			Hint:       "no detected access to this table",
			Candidates: snap.knownTables(maxSuggestions),
		}
	}

	result.EntryPoints = sortedKeys(entryPoints)
	return result, nil
}

// Info returns build metadata and statistics for the loaded graph.
func (s *searcher) Info() (*GraphInfo, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	return &GraphInfo{
		Schema:      snap.cg.Schema,
		BuildID:     snap.cg.BuildID,
		GeneratedAt: snap.cg.GeneratedAt,
		ProjectRoot: snap.cg.ProjectRoot,
		Stats:       snap.cg.Stats,
	}, nil
}

// keepFact applies the table allow-list and the sensitive-only filter.
func (snap *snapshot) keepFact(fact DataAccessFact, opts ReachabilityOptions, tableFilter map[string]bool) bool {
	table := strings.ToLower(fact.Table)
	if len(tableFilter) > 0 && !tableFilter[table] {
		return false
	}
	if opts.SensitiveOnly && !snap.sensitive[table] {
		return false
	}
	return true
}

// pathFrom reconstructs the root-to-node path for a forward walk. Each hop
// carries the line where it calls the next hop; the final hop carries the
// access line itself.
func (snap *snapshot) pathFrom(arena []arenaNode, idx, leafLine int) []CallPathNode {
	chain := parentChain(arena, idx)

	path := make([]CallPathNode, len(chain))
	for pos := range path {
		node := arena[chain[len(chain)-1-pos]]
		fn := snap.cg.Functions[node.id]
		path[pos] = CallPathNode{FunctionID: fn.ID, FunctionName: fn.Name, File: fn.File}
	}
	for pos := 0; pos < len(path)-1; pos++ {
		next := arena[chain[len(chain)-2-pos]]
		path[pos].Line = next.viaLine
	}
	path[len(path)-1].Line = leafLine
	return path
}

// pathDown reconstructs the entry-point-to-accessor path for an inverse
// walk. The arena root is the accessor, so the parent chain from an entry
// point already reads top-down.
func (snap *snapshot) pathDown(arena []arenaNode, idx, accessLine int) []CallPathNode {
	chain := parentChain(arena, idx)

	path := make([]CallPathNode, len(chain))
	for pos, ai := range chain {
		node := arena[ai]
		fn := snap.cg.Functions[node.id]
		line := node.viaLine
		if pos == len(chain)-1 {
			line = accessLine
		}
		path[pos] = CallPathNode{FunctionID: fn.ID, FunctionName: fn.Name, File: fn.File, Line: line}
	}
	return path
}

// parentChain collects arena indexes from a node back to the root.
func parentChain(arena []arenaNode, idx int) []int {
	var chain []int
	for i := idx; i >= 0; i = arena[i].parent {
		chain = append(chain, i)
	}
	return chain
}

// callSites lists the locations where caller invokes callee.
func (snap *snapshot) callSites(callerID, calleeID string) []CodeLocation {
	fn := snap.cg.Functions[callerID]
	if fn == nil {
		return nil
	}
	var sites []CodeLocation
	for _, call := range fn.Calls {
		if call.Resolved && call.CalleeID == calleeID {
			sites = append(sites, CodeLocation{File: call.File, Line: call.Line, Column: call.Column, FunctionID: callerID})
		}
	}
	return sites
}

// suggest returns known names containing the query, for not-found hints.
func (snap *snapshot) suggest(query string) []string {
	q := strings.ToLower(query)
	seen := make(map[string]bool)
	var out []string
	for name := range snap.byName {
		if !seen[name] && strings.Contains(strings.ToLower(name), q) {
			seen[name] = true
			out = append(out, name)
		}
	}
	for name := range snap.byQual {
		if !seen[name] && strings.Contains(strings.ToLower(name), q) {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return capList(out, maxSuggestions)
}

// knownTables lists distinct accessed tables, for not-found hints.
func (snap *snapshot) knownTables(limit int) []string {
	tables := make(map[string]bool)
	for _, id := range snap.cg.DataAccessors {
		fn := snap.cg.Functions[id]
		if fn == nil {
			continue
		}
		for _, fact := range fn.DataAccess {
			tables[fact.Table] = true
		}
	}
	return capList(sortedKeys(tables), limit)
}

// matchingFacts filters a function's facts by table and optional field.
func matchingFacts(fn *FunctionRecord, table, field string) []DataAccessFact {
	var out []DataAccessFact
	for _, fact := range fn.DataAccess {
		if !strings.EqualFold(fact.Table, table) {
			continue
		}
		if field != "" && !containsFold(fact.Fields, field) {
			continue
		}
		out = append(out, fact)
	}
	return out
}

// filterByFile keeps ids defined in the given file. An empty file keeps
// everything; a relative suffix like "api/users.ts" matches path-aligned.
func filterByFile(cg *CallGraph, ids []string, file string) []string {
	if file == "" {
		return ids
	}
	var out []string
	for _, id := range ids {
		fn := cg.Functions[id]
		if fn == nil {
			continue
		}
		if fn.File == file || strings.HasSuffix(fn.File, "/"+file) {
			out = append(out, id)
		}
	}
	return out
}

func containsFold(list []string, want string) bool {
	for _, s := range list {
		if strings.EqualFold(s, want) {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func capList(list []string, limit int) []string {
	if len(list) > limit {
		return list[:limit]
	}
	return list
}
