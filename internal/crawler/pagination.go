package crawler

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HasNextPage reports whether the fetched listing page advertises a page
// after currentPage. Checks, in order: an anchor whose target encodes the
// successor index, a generic "next" navigational marker, and anchors inside
// a pagination region.
func HasNextPage(doc *goquery.Document, currentPage int, pageParam string) bool {
	if doc == nil {
		return false
	}
	successor := fmt.Sprintf("%s=%d", pageParam, currentPage+1)

	if anchorWithHref(doc.Selection, "a[href]", successor) {
		return true
	}

	next := false
	doc.Find(`a.next, a[rel="next"], [class*="next"] a`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if href, ok := s.Attr("href"); ok && strings.TrimSpace(href) != "" {
			next = true
			return false
		}
		return true
	})
	if next {
		return true
	}

	return anchorWithHref(doc.Selection, `[class*="pagination"] a[href]`, successor)
}

func anchorWithHref(scope *goquery.Selection, selector, fragment string) bool {
	found := false
	scope.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if ok && strings.Contains(href, fragment) {
			found = true
			return false
		}
		return true
	})
	return found
}
