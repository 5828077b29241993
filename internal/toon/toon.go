// Package toon renders a dependency tree as TOON (Token-Oriented Object
// Notation): a root line followed by flat, pre-order tables of programs and
// file usages.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/quid/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// cell is one pre-encoded table value.
type cell string

func str(s string) cell { return cell(encodeValue(s)) }
func num(n int) cell    { return cell(strconv.Itoa(n)) }

// Encode converts a decorated tree into TOON. Rows follow the tree in
// pre-order; the root row has an empty parent and depth 0.
func Encode(tree *model.CallNode) string {
	var programRows, fileRows [][]cell

	tree.Walk(func(node, parent *model.CallNode, depth int) bool {
		parentName := ""
		if parent != nil {
			parentName = parent.Program
		}
		programRows = append(programRows, []cell{
			str(node.Program),
			str(parentName),
			num(depth),
			num(len(node.Calls)),
		})
		for _, f := range node.UsedFiles {
			fileRows = append(fileRows, []cell{str(node.Program), str(f.Name), str(f.OpenType)})
		}
		return true
	})

	parts := []string{
		fmt.Sprintf("root: %s", encodeValue(tree.Program)),
		formatTabular("programs", []string{"program", "parent", "depth", "calls"}, programRows),
		formatTabular("files", []string{"program", "name", "typopen"}, fileRows),
	}
	return strings.Join(parts, "\n") + "\n"
}

func formatTabular(name string, columns []string, rows [][]cell) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, c := range row {
			encoded[i] = string(c)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

// encodeValue encodes a string cell. Strings that would read back as a
// number or keyword are quoted.
func encodeValue(value string) string {
	switch {
	case value == "":
		return `""`
	case value != strings.TrimSpace(value):
		return quote(value)
	case strings.ContainsAny(value, "\n\r\t"):
		return quote(value)
	case looksNumeric.MatchString(value):
		return quote(value)
	case needsQuoting.MatchString(value):
		return quote(value)
	case strings.HasPrefix(value, "-"):
		return quote(value)
	}
	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}
	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
