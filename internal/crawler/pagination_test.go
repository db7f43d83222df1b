package crawler

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func paginationDoc(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestHasNextPage(t *testing.T) {
	tests := []struct {
		name        string
		markup      string
		currentPage int
		want        bool
	}{
		{
			name:        "successor index anchor",
			markup:      `<a href="/trades?page=4">5</a>`,
			currentPage: 3,
			want:        true,
		},
		{
			name:        "successor anchor for wrong index",
			markup:      `<a href="/trades?page=9">10</a>`,
			currentPage: 3,
			want:        false,
		},
		{
			name:        "rel next marker",
			markup:      `<a rel="next" href="/trades?p=next">next</a>`,
			currentPage: 0,
			want:        true,
		},
		{
			name:        "next class marker",
			markup:      `<div class="nav-next"><a href="/more">more</a></div>`,
			currentPage: 0,
			want:        true,
		},
		{
			name:        "pagination region successor",
			markup:      `<nav class="pagination-bar"><a href="?page=1">1</a></nav>`,
			currentPage: 0,
			want:        true,
		},
		{
			name:        "no pagination at all",
			markup:      `<p>just trades</p>`,
			currentPage: 0,
			want:        false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := paginationDoc(t, "<html><body>"+tt.markup+"</body></html>")
			if got := HasNextPage(doc, tt.currentPage, "page"); got != tt.want {
				t.Errorf("HasNextPage = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasNextPageNilDocument(t *testing.T) {
	if HasNextPage(nil, 0, "page") {
		t.Error("nil document must report no next page")
	}
}
