// Package index builds deduplicating lookup structures from the call and
// file-usage catalogs.
package index

import (
	"sort"

	"github.com/phobologic/quid/internal/model"
)

// Index maps programs to the distinct subprograms they call and the
// distinct files they open. It is immutable once built and safe to share
// between goroutines.
type Index struct {
	calls map[string]map[string]struct{}
	files map[string]map[model.FileRef]struct{}
}

// Stats summarizes the content of an Index.
type Stats struct {
	CallPrograms int // programs with at least one call
	FilePrograms int // programs with at least one file
	CallEdges    int // distinct (program, subprogram) pairs
	FileUsages   int // distinct (program, file, open type) triples
}

// Build indexes the given records. Records may arrive in any order;
// duplicates collapse. A record with an empty program is indexed under "".
func Build(calls []model.CallRecord, files []model.FileRecord) *Index {
	ix := &Index{
		calls: make(map[string]map[string]struct{}),
		files: make(map[string]map[model.FileRef]struct{}),
	}

	for i := range calls {
		r := &calls[i]
		set := ix.calls[r.Program]
		if set == nil {
			set = make(map[string]struct{})
			ix.calls[r.Program] = set
		}
		set[r.Subprogram] = struct{}{}
	}

	for i := range files {
		r := &files[i]
		set := ix.files[r.Program]
		if set == nil {
			set = make(map[model.FileRef]struct{})
			ix.files[r.Program] = set
		}
		// OpenNumber is not part of the key.
		set[model.FileRef{Name: r.File, OpenType: r.OpenType}] = struct{}{}
	}

	return ix
}

// Calls returns the distinct subprograms called by program, sorted.
// Unknown programs yield an empty, non-nil slice.
func (ix *Index) Calls(program string) []string {
	set := ix.calls[program]
	out := make([]string, 0, len(set))
	for sp := range set {
		out = append(out, sp)
	}
	sort.Strings(out)
	return out
}

// Files returns the distinct files used by program, sorted by name then
// open type. Unknown programs yield an empty, non-nil slice.
func (ix *Index) Files(program string) []model.FileRef {
	set := ix.files[program]
	out := make([]model.FileRef, 0, len(set))
	for ref := range set {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].OpenType < out[j].OpenType
	})
	return out
}

// HasProgram reports whether program appears as a caller in either catalog.
func (ix *Index) HasProgram(program string) bool {
	_, inCalls := ix.calls[program]
	_, inFiles := ix.files[program]
	return inCalls || inFiles
}

// Stats returns counts describing the index.
func (ix *Index) Stats() Stats {
	s := Stats{
		CallPrograms: len(ix.calls),
		FilePrograms: len(ix.files),
	}
	for _, set := range ix.calls {
		s.CallEdges += len(set)
	}
	for _, set := range ix.files {
		s.FileUsages += len(set)
	}
	return s
}
