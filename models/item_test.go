package models

import "testing"

func TestCategoryLeaves(t *testing.T) {
	flat := CategoryRef{Name: "Audio", URL: "/audio"}
	leaves := flat.Leaves()
	if len(leaves) != 1 || leaves[0].Category != "Audio" || leaves[0].SubCategory != "" {
		t.Fatalf("flat leaves = %+v", leaves)
	}

	nested := CategoryRef{
		Name: "Computer",
		URL:  "/computer",
		Subcategories: []CategoryRef{
			{Name: "Notebooks", URL: "/notebooks"},
			{Name: "Zubehör", URL: "/zubehoer", Subcategories: []CategoryRef{
				{Name: "Mäuse", URL: "/maeuse"},
				{Name: "Tastaturen", URL: "/tastaturen"},
			}},
		},
	}
	leaves = nested.Leaves()
	want := []string{"Notebooks", "Mäuse", "Tastaturen"}
	if len(leaves) != len(want) {
		t.Fatalf("leaves=%d, want %d", len(leaves), len(want))
	}
	for i, leaf := range leaves {
		if leaf.Category != "Computer" {
			t.Fatalf("leaf %d category=%q, want Computer", i, leaf.Category)
		}
		if leaf.SubCategory != want[i] {
			t.Fatalf("leaf %d sub=%q, want %q", i, leaf.SubCategory, want[i])
		}
	}
}

func TestStringPtr(t *testing.T) {
	if StringPtr("") != nil {
		t.Fatalf("empty string should map to nil")
	}
	if got := Deref(StringPtr("Sony")); got != "Sony" {
		t.Fatalf("Deref = %q, want Sony", got)
	}
	if got := Deref(nil); got != "" {
		t.Fatalf("Deref(nil) = %q", got)
	}
}
