// Package graph expands a root program into its transitive call tree and
// decorates every node with the files the program uses.
package graph

import (
	"context"
	"log/slog"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/phobologic/quid/internal/index"
	"github.com/phobologic/quid/internal/model"
)

// DefaultMaxDepth bounds recursion when no depth is configured.
const DefaultMaxDepth = 10

var tracer = otel.Tracer("quid.graph")

// LeafReason says why a node was returned without expanding its calls.
type LeafReason string

const (
	LeafDepth   LeafReason = "depth"   // depth > max depth
	LeafVisited LeafReason = "visited" // already expanded earlier in the same build
	LeafStopped LeafReason = "stopped" // matched the stop list
)

// Stats describes one build.
type Stats struct {
	Nodes     int
	MaxDepth  int // deepest nesting level reached
	Truncated map[LeafReason]int
	Programs  int // distinct programs expanded
}

// Observer receives a report after every Build.
type Observer interface {
	ObserveBuild(root string, stats Stats, elapsed time.Duration)
}

// Builder turns an index into decorated call trees. A Builder holds no
// per-build state and may be used from several goroutines at once.
type Builder struct {
	ix       *index.Index
	maxDepth int
	stop     *ignore.GitIgnore
	logger   *slog.Logger
	observer Observer
}

// Option configures a Builder.
type Option func(*Builder)

// WithMaxDepth sets the deepest level that is still expanded. The root is
// level 0.
func WithMaxDepth(n int) Option {
	return func(b *Builder) { b.maxDepth = n }
}

// WithStopPrograms keeps programs matching any gitignore-style pattern as
// leaves. They still receive their used files.
func WithStopPrograms(patterns []string) Option {
	return func(b *Builder) {
		if len(patterns) == 0 {
			b.stop = nil
			return
		}
		b.stop = ignore.CompileIgnoreLines(patterns...)
	}
}

// WithLogger sets the logger used for truncation messages.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(b *Builder) { b.observer = o }
}

// NewBuilder returns a Builder reading from ix.
func NewBuilder(ix *index.Index, opts ...Option) *Builder {
	b := &Builder{
		ix:       ix,
		maxDepth: DefaultMaxDepth,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// MaxDepth returns the configured depth cap.
func (b *Builder) MaxDepth() int {
	return b.maxDepth
}

// Build returns the fully decorated call tree for root. It has no side
// effects beyond tracing and the observer report.
func (b *Builder) Build(ctx context.Context, root string) *model.CallNode {
	_, span := tracer.Start(ctx, "graph.Build")
	defer span.End()

	if !b.ix.HasProgram(root) {
		b.logger.Debug("root program not in catalogs", "root", root)
		span.AddEvent("unknown root")
	}

	start := time.Now()
	tree, stats := b.BuildCallTree(root)
	b.AttachUsedFiles(tree)
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.String("quid.root", root),
		attribute.Int("quid.max_depth", b.MaxDepth()),
		attribute.Int("quid.nodes", stats.Nodes),
		attribute.Int("quid.depth", stats.MaxDepth),
		attribute.Int("quid.truncated.depth", stats.Truncated[LeafDepth]),
		attribute.Int("quid.truncated.visited", stats.Truncated[LeafVisited]),
	)
	span.SetStatus(codes.Ok, "")

	b.logger.Debug("call tree built",
		"root", root,
		"nodes", stats.Nodes,
		"programs", stats.Programs,
		"elapsed", elapsed)

	if b.observer != nil {
		b.observer.ObserveBuild(root, stats, elapsed)
	}
	return tree
}

// BuildCallTree expands root into a call tree without file data. Each call
// gets a fresh visited set: a program is expanded on its first encounter
// only, anywhere in the tree, and is a childless leaf afterwards.
func (b *Builder) BuildCallTree(root string) (*model.CallNode, Stats) {
	st := &buildState{
		b:       b,
		visited: make(map[string]struct{}),
		stats:   Stats{Truncated: make(map[LeafReason]int)},
	}
	tree := st.expand(root, 0)
	st.stats.Programs = len(st.visited)
	return tree, st.stats
}

// AttachUsedFiles sets UsedFiles on node and every descendant, pre-order.
func (b *Builder) AttachUsedFiles(node *model.CallNode) {
	node.Walk(func(n, _ *model.CallNode, _ int) bool {
		n.UsedFiles = b.ix.Files(n.Program)
		return true
	})
}

type buildState struct {
	b       *Builder
	visited map[string]struct{}
	stats   Stats
}

func (st *buildState) expand(program string, depth int) *model.CallNode {
	st.stats.Nodes++
	if depth > st.stats.MaxDepth {
		st.stats.MaxDepth = depth
	}

	if depth > st.b.maxDepth {
		st.stats.Truncated[LeafDepth]++
		st.b.logger.Warn("maximum depth reached", "program", program, "max_depth", st.b.maxDepth)
		return model.NewLeaf(program)
	}

	if _, seen := st.visited[program]; seen {
		st.stats.Truncated[LeafVisited]++
		st.b.logger.Debug("program already expanded", "program", program, "depth", depth)
		return model.NewLeaf(program)
	}
	st.visited[program] = struct{}{}

	node := model.NewLeaf(program)
	if st.b.stop != nil && st.b.stop.MatchesPath(program) {
		st.stats.Truncated[LeafStopped]++
		return node
	}

	for _, called := range st.b.ix.Calls(program) {
		node.Calls = append(node.Calls, st.expand(called, depth+1))
	}
	return node
}
