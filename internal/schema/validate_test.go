package schema

import (
	"testing"

	"csvdiff/internal/diffcore"
)

func TestValidateHeaderDuplicate(t *testing.T) {
	err := ValidateHeader([]string{"id", "name", "id"}, "A")
	if err == nil {
		t.Fatal("expected error")
	}
	de, ok := diffcore.AsDiffError(err)
	if !ok || de.Code != diffcore.CodeDuplicateColumnName {
		t.Fatalf("got %v, want duplicate_column_name", err)
	}
}

func TestComparisonColumnsStrict(t *testing.T) {
	cols, err := ComparisonColumns([]string{"id", "name"}, []string{"id", "name"}, HeaderModeStrict)
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 2 || cols[0] != "id" || cols[1] != "name" {
		t.Fatalf("got %v", cols)
	}

	_, err = ComparisonColumns([]string{"id", "name"}, []string{"name", "id"}, HeaderModeStrict)
	if de, ok := diffcore.AsDiffError(err); !ok || de.Code != diffcore.CodeHeaderMismatch {
		t.Fatalf("expected header_mismatch, got %v", err)
	}
}

func TestComparisonColumnsSorted(t *testing.T) {
	cols, err := ComparisonColumns([]string{"id", "name"}, []string{"name", "id"}, HeaderModeSorted)
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 2 || cols[0] != "id" || cols[1] != "name" {
		t.Fatalf("got %v", cols)
	}
}

func TestResolveKeyColumnsMissing(t *testing.T) {
	_, _, err := ResolveKeyColumns([]string{"missing"}, []string{"id"}, []string{"id"})
	if de, ok := diffcore.AsDiffError(err); !ok || de.Code != diffcore.CodeMissingKeyColumn {
		t.Fatalf("expected missing_key_column, got %v", err)
	}
}
