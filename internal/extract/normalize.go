// Package extract turns trade listing markup into normalized trade records.
//
// Extraction is built on ordered cascades of matching rules (see Library):
// the most structurally specific rule for a field is tried first and the most
// permissive text scan last, so the scraper keeps producing records when the
// site's markup drifts. A rule that matches nothing is never an error.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/PuerkitoBio/goquery"
	"github.com/michaelwdorrill/Trade-Scraper/pkg/types"
)

var (
	// Full decimal form, e.g. "$1,950,000". The trailing capture group
	// detects abbreviated forms so they fall through to moneyAbbrRe.
	moneyFullRe = regexp.MustCompile(`\$([0-9][0-9,]*)([.MKmk]?)`)
	// Abbreviated form, e.g. "$1.95M" or "$950K".
	moneyAbbrRe = regexp.MustCompile(`(?i)\$([0-9.]+)\s*([MK])`)

	contractYearsRe     = regexp.MustCompile(`(?i)Yr\s*(\d+)\s*/\s*(\d+)`)
	contractYearsBareRe = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)

	firstIntRe   = regexp.MustCompile(`\b(\d+)\b`)
	expiryYearRe = regexp.MustCompile(`(?i)Exp(?:iry)?\s*(\d{4})`)

	whitespaceRe = regexp.MustCompile(`\s+`)
)

// ParseMoney converts a textual money fragment to a non-negative amount.
// Recognized encodings, in priority order: full decimal form with thousands
// separators ("$1,950,000"), abbreviated millions ("$1.95M"), and abbreviated
// thousands ("$950K"). Returns nil when no encoding matches.
func ParseMoney(text string) *float64 {
	if text == "" {
		return nil
	}
	if m := moneyFullRe.FindStringSubmatch(text); m != nil && m[2] == "" {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err == nil && v >= 0 {
			return &v
		}
	}
	if m := moneyAbbrRe.FindStringSubmatch(text); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil && v >= 0 {
			switch strings.ToUpper(m[2]) {
			case "M":
				v *= 1_000_000
			case "K":
				v *= 1_000
			}
			return &v
		}
	}
	return nil
}

// ParseContractYears decodes a "Yr C/T" contract fragment, where C is the
// year of the contract currently being served and T its total length.
// Years left counts the current year: years_left = T - C + 1, so
// "Yr 2/4" -> (3, 4) and "Yr 3/3" -> (1, 3). Fragments where C or T is not
// positive, or C exceeds T, decode to (nil, nil).
func ParseContractYears(text string) (yearsLeft, totalYears *int) {
	if text == "" {
		return nil, nil
	}
	m := contractYearsRe.FindStringSubmatch(text)
	if m == nil {
		m = contractYearsBareRe.FindStringSubmatch(text)
	}
	if m == nil {
		return nil, nil
	}
	current, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, nil
	}
	total, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, nil
	}
	if current < 1 || total < 1 || current > total {
		return nil, nil
	}
	left := total - current + 1
	return &left, &total
}

// ParseAge extracts the first integer token from text. Range checks are the
// caller's concern.
func ParseAge(text string) *int {
	m := firstIntRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &v
}

// ParsePosition normalizes a position fragment to one of the recognized
// codes. Compound codes like "LW/RW" resolve to their first component.
func ParsePosition(text string) *string {
	pos := strings.ToUpper(strings.TrimSpace(text))
	if pos == "" {
		return nil
	}
	if i := strings.IndexByte(pos, '/'); i > 0 {
		pos = pos[:i]
	}
	if _, ok := types.ValidPositions[pos]; !ok {
		return nil
	}
	return &pos
}

// ParseExpiryYear extracts a four-digit contract expiry year from fragments
// like "Exp 2027" or "Expiry 2027".
func ParseExpiryYear(text string) *int {
	m := expiryYearRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &v
}

// nodeText renders the selection's text content with single spaces between
// adjacent text nodes, so regex rules see token boundaries that goquery's
// plain Text() concatenation would lose.
func nodeText(s *goquery.Selection) string {
	var b strings.Builder
	for _, node := range s.Nodes {
		appendNodeText(node, &b)
	}
	return collapseWhitespace(b.String())
}

func appendNodeText(node *html.Node, b *strings.Builder) {
	if node.Type == html.TextNode {
		text := strings.TrimSpace(node.Data)
		if text != "" {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(text)
		}
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		appendNodeText(child, b)
	}
}

func collapseWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}
