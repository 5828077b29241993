// Package parse decodes the fixed-width call (DOCSP) and file-usage
// (DOCFIC) catalogs into typed records.
package parse

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/phobologic/quid/internal/model"
)

// Field widths, in characters, of one catalog line. Only the leading fields
// are mapped onto records; the rest are carried by the catalog but unused.
var (
	CallWidths = []int{8, 3, 10, 10, 10, 10, 10, 10, 10}
	FileWidths = []int{8, 3, 10, 10, 10, 10, 30}
)

// Calls decodes a DOCSP catalog. Blank lines and lines without a program
// name are skipped.
func Calls(r io.Reader) ([]model.CallRecord, error) {
	var recs []model.CallRecord
	err := eachLine(r, CallWidths, func(f []string) {
		recs = append(recs, model.CallRecord{
			Program:    f[0],
			Sequence:   f[1],
			Subprogram: f[2],
		})
	})
	if err != nil {
		return nil, fmt.Errorf("decoding call catalog: %w", err)
	}
	return recs, nil
}

// Files decodes a DOCFIC catalog. Blank lines and lines without a program
// name are skipped.
func Files(r io.Reader) ([]model.FileRecord, error) {
	var recs []model.FileRecord
	err := eachLine(r, FileWidths, func(f []string) {
		recs = append(recs, model.FileRecord{
			Program:    f[0],
			Sequence:   f[1],
			File:       f[2],
			OpenType:   f[3],
			OpenNumber: f[4],
		})
	})
	if err != nil {
		return nil, fmt.Errorf("decoding file catalog: %w", err)
	}
	return recs, nil
}

// eachLine feeds every non-blank line to fn. Only the bytes that can hold
// the mapped fields are kept, so lines of any length decode.
func eachLine(r io.Reader, widths []int, fn func(fields []string)) error {
	keep := 0
	for _, w := range widths {
		keep += w
	}
	keep *= utf8.UTFMax

	br := bufio.NewReader(r)
	var line []byte
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if room := keep - len(line); room > 0 {
			if len(chunk) > room {
				chunk = chunk[:room]
			}
			line = append(line, chunk...)
		}
		if isPrefix {
			continue
		}

		text := strings.TrimRight(string(line), "\r")
		line = line[:0]
		if strings.TrimSpace(text) == "" {
			continue
		}
		fields := SplitFixed(text, widths)
		if fields[0] == "" {
			continue
		}
		fn(fields)
	}
}

// SplitFixed cuts line into len(widths) trimmed fields. Fields past the end
// of a short line are empty.
func SplitFixed(line string, widths []int) []string {
	runes := []rune(line)
	fields := make([]string, len(widths))
	pos := 0
	for i, w := range widths {
		if pos >= len(runes) {
			break
		}
		end := pos + w
		if end > len(runes) {
			end = len(runes)
		}
		fields[i] = strings.TrimSpace(string(runes[pos:end]))
		pos = end
	}
	return fields
}
