package infra

import (
	"errors"
	"strings"
	"testing"
)

func TestExtractMarker(t *testing.T) {
	query := "--sql 0a1b2c3d-0000-1111-2222-333344445555\nselect 1"
	marker, stmt, err := extractMarker(query)
	if err != nil {
		t.Fatalf("extractMarker: %v", err)
	}
	if marker != "0a1b2c3d-0000-1111-2222-333344445555" {
		t.Fatalf("marker = %q", marker)
	}
	if strings.TrimSpace(stmt) != "select 1" {
		t.Fatalf("stmt = %q", stmt)
	}
}

func TestExtractMarkerRejectsUntagged(t *testing.T) {
	for _, query := range []string{
		"select 1",
		"-- sql 0a1b2c3d-0000-1111-2222-333344445555\nselect 1",
		"--sql not-a-uuid\nselect 1",
	} {
		if _, _, err := extractMarker(query); err == nil {
			t.Fatalf("extractMarker(%q) accepted an untagged statement", query)
		}
	}
}

func TestErrorRowDefersError(t *testing.T) {
	want := errors.New("bad marker")
	var dest string
	if err := (errorRow{err: want}).Scan(&dest); !errors.Is(err, want) {
		t.Fatalf("Scan error = %v, want %v", err, want)
	}
}
