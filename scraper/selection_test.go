package scraper

import (
	"bytes"
	"slices"
	"strings"
	"testing"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []int
		wantErr bool
	}{
		{name: "empty picks all", input: "\n", want: []int{0, 1, 2, 3, 4}},
		{name: "all keyword", input: "ALL", want: []int{0, 1, 2, 3, 4}},
		{name: "single", input: "2", want: []int{1}},
		{name: "list and range", input: "5, 1-2", want: []int{0, 1, 4}},
		{name: "overlap collapses", input: "1-3,2-4", want: []int{0, 1, 2, 3}},
		{name: "out of range", input: "6", wantErr: true},
		{name: "zero", input: "0", wantErr: true},
		{name: "reversed range", input: "4-2", wantErr: true},
		{name: "garbage", input: "audio", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSelection(tt.input, 5)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNameSelector(t *testing.T) {
	options := []string{"Audio", "TV & Video", "Garten"}

	got, err := NameSelector{"garten", " audio "}.Select("Categories", options)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !slices.Equal(got, []int{0, 2}) {
		t.Fatalf("got %v, want [0 2]", got)
	}

	all, _ := NameSelector(nil).Select("Categories", options)
	if !slices.Equal(all, []int{0, 1, 2}) {
		t.Fatalf("empty selector should pick all, got %v", all)
	}

	none, _ := NameSelector{"Spielzeug"}.Select("Categories", options)
	if len(none) != 0 {
		t.Fatalf("unknown name should pick nothing, got %v", none)
	}
}

func TestPromptSelectorRetriesInvalidInput(t *testing.T) {
	var out bytes.Buffer
	selector := NewPromptSelector(strings.NewReader("9\n1,3\n"), &out)

	got, err := selector.Select("Brands in Audio", []string{"Sony", "JBL", "Bose"})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !slices.Equal(got, []int{0, 2}) {
		t.Fatalf("got %v, want [0 2]", got)
	}
	printed := out.String()
	if !strings.Contains(printed, "[3] Bose") || !strings.Contains(printed, "out of range") {
		t.Fatalf("prompt output:\n%s", printed)
	}
}

func TestPromptSelectorEOFPicksAll(t *testing.T) {
	selector := NewPromptSelector(strings.NewReader(""), &bytes.Buffer{})
	got, err := selector.Select("Categories", []string{"Audio", "TV"})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !slices.Equal(got, []int{0, 1}) {
		t.Fatalf("got %v", got)
	}
}

func TestSelectAll(t *testing.T) {
	got, err := SelectAll.Select("x", []string{"a", "b"})
	if err != nil || !slices.Equal(got, []int{0, 1}) {
		t.Fatalf("got %v, %v", got, err)
	}
}
