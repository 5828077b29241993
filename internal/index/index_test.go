package index

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/quid/internal/model"
)

func sampleCalls() []model.CallRecord {
	return []model.CallRecord{
		{Program: "A", Sequence: "001", Subprogram: "B"},
		{Program: "A", Sequence: "002", Subprogram: "C"},
		{Program: "A", Sequence: "003", Subprogram: "B"},
		{Program: "B", Sequence: "001", Subprogram: "D"},
	}
}

func sampleFiles() []model.FileRecord {
	return []model.FileRecord{
		{Program: "A", Sequence: "001", File: "F1", OpenType: "I", OpenNumber: "1"},
		{Program: "A", Sequence: "002", File: "F1", OpenType: "I", OpenNumber: "2"},
		{Program: "A", Sequence: "003", File: "F1", OpenType: "O", OpenNumber: "3"},
		{Program: "B", Sequence: "001", File: "F2", OpenType: "O", OpenNumber: "1"},
	}
}

func TestBuildDedupCalls(t *testing.T) {
	t.Parallel()

	ix := Build(sampleCalls(), nil)
	assert.Equal(t, []string{"B", "C"}, ix.Calls("A"))
	assert.Equal(t, []string{"D"}, ix.Calls("B"))
}

func TestBuildDedupFilesIgnoresOpenNumber(t *testing.T) {
	t.Parallel()

	ix := Build(nil, sampleFiles())
	assert.Equal(t, []model.FileRef{
		{Name: "F1", OpenType: "I"},
		{Name: "F1", OpenType: "O"},
	}, ix.Files("A"))
	assert.Equal(t, []model.FileRef{{Name: "F2", OpenType: "O"}}, ix.Files("B"))
}

func TestUnknownProgramIsEmpty(t *testing.T) {
	t.Parallel()

	ix := Build(sampleCalls(), sampleFiles())

	calls := ix.Calls("NOPE")
	require.NotNil(t, calls)
	assert.Empty(t, calls)

	files := ix.Files("NOPE")
	require.NotNil(t, files)
	assert.Empty(t, files)

	assert.False(t, ix.HasProgram("NOPE"))
	assert.True(t, ix.HasProgram("A"))
}

func TestEmptyProgramIndexedUnderEmptyKey(t *testing.T) {
	t.Parallel()

	ix := Build(
		[]model.CallRecord{{Program: "", Subprogram: "X"}},
		[]model.FileRecord{{Program: "", File: "F", OpenType: "I"}},
	)
	assert.Equal(t, []string{"X"}, ix.Calls(""))
	assert.Equal(t, []model.FileRef{{Name: "F", OpenType: "I"}}, ix.Files(""))
}

func TestBuildOrderIndependent(t *testing.T) {
	t.Parallel()

	calls := sampleCalls()
	files := sampleFiles()
	want := Build(calls, files)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		pc := append([]model.CallRecord(nil), calls...)
		pf := append([]model.FileRecord(nil), files...)
		rng.Shuffle(len(pc), func(a, b int) { pc[a], pc[b] = pc[b], pc[a] })
		rng.Shuffle(len(pf), func(a, b int) { pf[a], pf[b] = pf[b], pf[a] })

		got := Build(pc, pf)
		assert.Equal(t, want.calls, got.calls)
		assert.Equal(t, want.files, got.files)
	}
}

func TestBuildIdempotent(t *testing.T) {
	t.Parallel()

	calls := sampleCalls()
	once := Build(calls, sampleFiles())
	twice := Build(append(calls, calls...), append(sampleFiles(), sampleFiles()...))
	assert.Equal(t, once.calls, twice.calls)
	assert.Equal(t, once.files, twice.files)
}

func TestStats(t *testing.T) {
	t.Parallel()

	s := Build(sampleCalls(), sampleFiles()).Stats()
	assert.Equal(t, Stats{CallPrograms: 2, FilePrograms: 2, CallEdges: 3, FileUsages: 3}, s)
}

func TestAccessorsReturnCopies(t *testing.T) {
	t.Parallel()

	ix := Build(sampleCalls(), sampleFiles())
	calls := ix.Calls("A")
	calls[0] = "MUTATED"
	assert.Equal(t, []string{"B", "C"}, ix.Calls("A"))
}
