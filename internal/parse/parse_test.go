package parse

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/quid/internal/model"
)

func callLine(prog, seq, sub string) string {
	return fmt.Sprintf("%-8s%-3s%-10s%-10s", prog, seq, sub, "TRAILER")
}

func fileLine(prog, seq, file, typ, num string) string {
	return fmt.Sprintf("%-8s%-3s%-10s%-10s%-10s%-10s%-30s", prog, seq, file, typ, num, "X", "COMMENT")
}

func TestCalls(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		callLine("PGMA", "001", "SUBB"),
		"",
		"      ",
		callLine("PGMA", "002", "SUBC"),
		callLine("", "003", "ORPHAN"),
	}, "\n")

	recs, err := Calls(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []model.CallRecord{
		{Program: "PGMA", Sequence: "001", Subprogram: "SUBB"},
		{Program: "PGMA", Sequence: "002", Subprogram: "SUBC"},
	}, recs)
}

func TestFiles(t *testing.T) {
	t.Parallel()

	input := fileLine("PGMA", "001", "CUSTFILE", "I", "1") + "\r\n" +
		fileLine("PGMB", "002", "OUTFILE", "O", "2") + "\r\n"

	recs, err := Files(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []model.FileRecord{
		{Program: "PGMA", Sequence: "001", File: "CUSTFILE", OpenType: "I", OpenNumber: "1"},
		{Program: "PGMB", Sequence: "002", File: "OUTFILE", OpenType: "O", OpenNumber: "2"},
	}, recs)
}

func TestEmptyInput(t *testing.T) {
	t.Parallel()

	calls, err := Calls(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, calls)

	files, err := Files(strings.NewReader("\n\n"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestSplitFixed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		line   string
		widths []int
		want   []string
	}{
		{"exact", "AAABBCC", []int{3, 2, 2}, []string{"AAA", "BB", "CC"}},
		{"trimmed", " A  B C ", []int{3, 2, 3}, []string{"A", "B", "C"}},
		{"short line", "AAAB", []int{3, 2, 2}, []string{"AAA", "B", ""}},
		{"long line", "AAABBCCDD", []int{3, 2}, []string{"AAA", "BB"}},
		{"empty", "", []int{1, 1}, []string{"", ""}},
		{"multibyte", "ÉTÉAB", []int{3, 2}, []string{"ÉTÉ", "AB"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SplitFixed(tt.line, tt.widths))
		})
	}
}

func TestCallsLongLine(t *testing.T) {
	t.Parallel()

	line := callLine("PGMA", "001", "SUBB") + strings.Repeat(" ", 100_000)
	recs, err := Calls(strings.NewReader(line))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "SUBB", recs[0].Subprogram)
}

func TestVeryLongLine(t *testing.T) {
	t.Parallel()

	long := fileLine("PGMA", "001", "CUSTFILE", "I", "1") + strings.Repeat("x", 3<<20)
	input := long + "\n" + fileLine("PGMB", "002", "OUTFILE", "O", "2") + "\n"

	recs, err := Files(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []model.FileRecord{
		{Program: "PGMA", Sequence: "001", File: "CUSTFILE", OpenType: "I", OpenNumber: "1"},
		{Program: "PGMB", Sequence: "002", File: "OUTFILE", OpenType: "O", OpenNumber: "2"},
	}, recs)
}

func TestLastLineWithoutNewline(t *testing.T) {
	t.Parallel()

	input := callLine("PGMA", "001", "SUBB") + "\n" + callLine("PGMA", "002", "SUBC")
	recs, err := Calls(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "SUBC", recs[1].Subprogram)
}
