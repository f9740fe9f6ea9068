package models

import (
	"testing"
)

func TestGroupHighlights_DropsEmptyRectangles(t *testing.T) {
	hs := []Highlight{
		{DocumentID: "a", Page: 1, Width: 10, Height: 5},
		{DocumentID: "a", Page: 1, Width: 0, Height: 5},
		{DocumentID: "a", Page: 2, Width: 10, Height: -1},
		{DocumentID: "b", Page: 3, Width: 1, Height: 1},
	}
	got := GroupHighlights(hs)
	if len(got["a"][1]) != 1 {
		t.Errorf("doc a page 1: got %d highlights, want 1", len(got["a"][1]))
	}
	if _, ok := got["a"][2]; ok {
		t.Error("doc a page 2 should have no bucket")
	}
	if len(got["b"][3]) != 1 {
		t.Errorf("doc b page 3: got %d highlights, want 1", len(got["b"][3]))
	}
}

func TestGroupRedactions(t *testing.T) {
	rs := []Redaction{
		{DocumentID: "a", Page: 2, Width: 10, Height: 5, Opacity: 1},
		{DocumentID: "a", Page: 2, Width: 3, Height: 3},
		{DocumentID: "a", Page: 4, Width: 0, Height: 0},
	}
	got := GroupRedactions(rs)
	if len(got) != 1 || len(got["a"]) != 1 || len(got["a"][2]) != 2 {
		t.Errorf("unexpected grouping: %+v", got)
	}
}

func TestHeaderFooter_IsZero(t *testing.T) {
	if !(HeaderFooter{}).IsZero() {
		t.Error("empty config should be zero")
	}
	if (HeaderFooter{PageNumbers: true}).IsZero() {
		t.Error("page numbers enabled should not be zero")
	}
}
