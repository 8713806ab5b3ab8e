// Package schema validates and reconciles the two headers of a diff run:
// duplicate-column detection, header-mode comparison, key-column
// resolution, and the comparison-column order that governs both
// field-equality and the ordering of changed-column names.
package schema

import (
	"sort"
	"strings"

	"csvdiff/internal/diffcore"
)

// HeaderMode selects how the two headers must relate to each other.
type HeaderMode string

const (
	HeaderModeStrict HeaderMode = "strict"
	HeaderModeSorted HeaderMode = "sorted"
)

// ValidateHeader rejects a header with duplicate column names. side is
// "A" or "B", used only for the error message.
func ValidateHeader(header []string, side string) error {
	seen := make(map[string]bool, len(header))
	for _, name := range header {
		if seen[name] {
			return diffcore.New(diffcore.CodeDuplicateColumnName,
				"Duplicate column name in %s: %s", side, name)
		}
		seen[name] = true
	}
	return nil
}

// ComparisonColumns reconciles the two headers under mode and returns
// the ordered column list used for field-equality and changed-column
// ordering: columnsA verbatim in strict mode, the lexicographically
// sorted name list in sorted mode.
func ComparisonColumns(columnsA, columnsB []string, mode HeaderMode) ([]string, error) {
	switch mode {
	case HeaderModeStrict:
		if !equalOrdered(columnsA, columnsB) {
			return nil, diffcore.New(diffcore.CodeHeaderMismatch,
				"Header mismatch: A=%v B=%v", columnsA, columnsB)
		}
		return columnsA, nil
	case HeaderModeSorted:
		sa, sb := sortedCopy(columnsA), sortedCopy(columnsB)
		if !equalOrdered(sa, sb) {
			return nil, diffcore.New(diffcore.CodeHeaderMismatch,
				"Header mismatch (sorted mode): A=%v B=%v", columnsA, columnsB)
		}
		return sa, nil
	default:
		return nil, diffcore.New(diffcore.CodeInvalidOptionCombo,
			"Unsupported header_mode: %s", mode)
	}
}

// ResolveKeyColumns checks that every key column exists in both headers
// and returns, for each key column, its index into each header.
func ResolveKeyColumns(keyColumns, columnsA, columnsB []string) (idxA, idxB []int, err error) {
	posA := indexOf(columnsA)
	posB := indexOf(columnsB)
	idxA = make([]int, len(keyColumns))
	idxB = make([]int, len(keyColumns))
	for i, k := range keyColumns {
		a, okA := posA[k]
		b, okB := posB[k]
		if !okA || !okB {
			return nil, nil, diffcore.New(diffcore.CodeMissingKeyColumn,
				"Missing key column: %s", k)
		}
		idxA[i] = a
		idxB[i] = b
	}
	return idxA, idxB, nil
}

// ComparisonIndexes maps each comparison column name to its index in
// header, for one side. Used to pull comparison values out of a Row
// without re-resolving names per row.
func ComparisonIndexes(comparisonColumns, header []string) []int {
	pos := indexOf(header)
	out := make([]int, len(comparisonColumns))
	for i, c := range comparisonColumns {
		out[i] = pos[c]
	}
	return out
}

func indexOf(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, h := range header {
		m[h] = i
	}
	return m
}

func equalOrdered(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

// StripBOM removes a leading UTF-8 BOM from the first header field only,
// matching the §3 normalization rule (csvreader also strips it at the
// byte level; this is a defense-in-depth string-level pass for callers
// that construct headers directly, e.g. from fixtures).
func StripBOM(header []string) []string {
	if len(header) == 0 {
		return header
	}
	if strings.HasPrefix(header[0], "\uFEFF") {
		out := append([]string(nil), header...)
		out[0] = strings.TrimPrefix(out[0], "\uFEFF")
		return out
	}
	return header
}
