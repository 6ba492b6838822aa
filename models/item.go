// Package models defines data structures for the scraper.
package models

import "time"

// CategoryRef is one node of a shop's category navigation.
type CategoryRef struct {
	Name          string        `json:"name"`
	URL           string        `json:"url"`
	Subcategories []CategoryRef `json:"subcategories,omitempty"`
}

// Leaf is a walk target: the top-level category name and the ref whose listing is paged.
type Leaf struct {
	Category    string
	SubCategory string
	Ref         CategoryRef
}

// Leaves flattens the category tree into walk targets in navigation order.
// A category without subcategories is its own leaf.
func (c CategoryRef) Leaves() []Leaf {
	if len(c.Subcategories) == 0 {
		return []Leaf{{Category: c.Name, Ref: c}}
	}
	var out []Leaf
	var walk func(ref CategoryRef)
	walk = func(ref CategoryRef) {
		if len(ref.Subcategories) == 0 {
			out = append(out, Leaf{Category: c.Name, SubCategory: ref.Name, Ref: ref})
			return
		}
		for _, sub := range ref.Subcategories {
			walk(sub)
		}
	}
	for _, sub := range c.Subcategories {
		walk(sub)
	}
	return out
}

// ItemRef references a single listing entry that has not been fetched yet.
type ItemRef struct {
	URL         string `json:"url"`
	Category    string `json:"category"`
	SubCategory string `json:"sub_category,omitempty"`
}

// Item is the structured record extracted from one item page.
type Item struct {
	Name        string   `csv:"name" json:"name"`
	Price       float64  `csv:"price" json:"price"`
	Description *string  `csv:"description" json:"description,omitempty"`
	Category    string   `csv:"category" json:"category"`
	Rating      *float64 `csv:"rating" json:"rating,omitempty"`
	Brand       *string  `csv:"brand" json:"brand,omitempty"`
	Source      string   `csv:"source" json:"source"`
	SubCategory string   `csv:"sub_category" json:"sub_category,omitempty"`
	URL         string   `csv:"-" json:"url,omitempty"`
}

// Brand is a brand filter candidate offered on a category page.
type Brand struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ItemCount int    `json:"item_count"`
}

// Listing is what one paginated listing page yields.
type Listing struct {
	Refs       []string
	HasNext    bool
	TotalPages int // 0 when the page shows no page-count indicator
}

// CrawlResult holds the overall result of a crawl.
type CrawlResult struct {
	StartTime    time.Time
	EndTime      time.Time
	Categories   int
	PageCount    int
	RefCount     int
	ItemCount    int
	SkippedCount int
	Duplicates   int
	Flushes      int
	Recycles     int
	ErrorsByType map[string]int
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
