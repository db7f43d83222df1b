package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ContainerRule locates candidate containers within a scope. Rules are pure:
// they either yield containers or nothing, never an error.
type ContainerRule struct {
	Name string
	Find func(scope *goquery.Selection) []*goquery.Selection
}

// TextRule extracts one raw text fragment from a container.
type TextRule struct {
	Name    string
	Extract func(container *goquery.Selection) (string, bool)
}

// Library holds the ordered matching rules per field kind. Order encodes
// confidence: the most structurally specific rule comes first, the most
// permissive text scan last.
type Library struct {
	TradeContainers  []ContainerRule
	PlayerContainers []ContainerRule
	PlayerExclusions []*regexp.Regexp

	TradeDate    []TextRule
	TradeSummary []TextRule
	TradeURL     []TextRule

	PlayerName    []TextRule
	PlayerAge     []TextRule
	PlayerPos     []TextRule
	ContractYears []TextRule
	CapHit        []TextRule
}

// firstContainers runs a container cascade, returning the first rule's
// non-empty result together with the rule name that produced it.
func firstContainers(rules []ContainerRule, scope *goquery.Selection) ([]*goquery.Selection, string) {
	for _, rule := range rules {
		if found := rule.Find(scope); len(found) > 0 {
			return found, rule.Name
		}
	}
	return nil, ""
}

// firstText runs a text cascade, returning the first non-empty fragment.
func firstText(rules []TextRule, container *goquery.Selection) (string, bool) {
	for _, rule := range rules {
		if text, ok := rule.Extract(container); ok && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text), true
		}
	}
	return "", false
}

// selectorRule matches containers by CSS selector.
func selectorRule(name, selector string) ContainerRule {
	return ContainerRule{
		Name: name,
		Find: func(scope *goquery.Selection) []*goquery.Selection {
			var found []*goquery.Selection
			scope.Find(selector).Each(func(_ int, s *goquery.Selection) {
				found = append(found, s)
			})
			return found
		},
	}
}

// selectorText extracts the normalized text of the first selector match.
func selectorText(name, selector string) TextRule {
	return TextRule{
		Name: name,
		Extract: func(container *goquery.Selection) (string, bool) {
			match := container.Find(selector).First()
			if match.Length() == 0 {
				return "", false
			}
			return nodeText(match), true
		},
	}
}

// regexText scans the container's normalized text for the pattern and
// returns the whole match.
func regexText(name string, re *regexp.Regexp) TextRule {
	return TextRule{
		Name: name,
		Extract: func(container *goquery.Selection) (string, bool) {
			m := re.FindString(nodeText(container))
			return m, m != ""
		},
	}
}

// labelSiblingText finds an element whose own text equals label and returns
// the text of its next sibling. Mirrors label/value span pairs such as
// "age" / "28".
func labelSiblingText(name, selector, label string) TextRule {
	return TextRule{
		Name: name,
		Extract: func(container *goquery.Selection) (string, bool) {
			var value string
			container.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if !strings.EqualFold(strings.TrimSpace(s.Text()), label) {
					return true
				}
				sibling := s.Next()
				if sibling.Length() == 0 {
					return true
				}
				value = nodeText(sibling)
				return false
			})
			return value, value != ""
		},
	}
}

// blockAncestor walks up to the nearest enclosing block-level container.
func blockAncestor(s *goquery.Selection) *goquery.Selection {
	parent := s.ParentsFiltered("div, article, section").First()
	if parent.Length() == 0 {
		return nil
	}
	return parent
}

// dedupeContainers drops containers already seen, comparing by underlying
// node identity so a container matched by several strategies appears once.
func dedupeContainers(containers []*goquery.Selection) []*goquery.Selection {
	seen := make(map[*html.Node]struct{}, len(containers))
	out := containers[:0]
	for _, c := range containers {
		if len(c.Nodes) == 0 {
			continue
		}
		if _, dup := seen[c.Nodes[0]]; dup {
			continue
		}
		seen[c.Nodes[0]] = struct{}{}
		out = append(out, c)
	}
	return out
}

var (
	tradeDateRe   = regexp.MustCompile(`(?i)(JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC)\s+\d{1,2},?\s*\d{4}`)
	acquiredRe    = regexp.MustCompile(`(?i)\bacquired\b`)
	fromForRe     = regexp.MustCompile(`(?i)from\s+(the\s+)?\S.*\bfor\b`)
	summaryShape  = regexp.MustCompile(`(?i)The\s+[\w\s.'-]+acquired[\s\S]*?(?:from|for)[\s\S]*?(?:pick|prospect|consideration|\d{4})`)
	contractTagRe = regexp.MustCompile(`(?i)Yr\s*\d+\s*/\s*\d+`)
	capHitAmtRe   = regexp.MustCompile(`\$[\d,.]+\s*[MKmk]?`)
)

// DefaultLibrary returns the rule set tuned for the puckpedia trade listing,
// with generic class-token and text-scan fallbacks behind the site-specific
// selectors.
func DefaultLibrary() *Library {
	return &Library{
		TradeContainers: []ContainerRule{
			selectorRule("listing-card", "div.border.rounded-lg.mb-8.border-pp-border"),
			selectorRule("trade-class-token", `[class*="trade-card"], [class*="trade-item"], [class*="trade-row"], [class*="tradeCard"], [class*="TradeCard"], div[class*="trade"], article[class*="trade"]`),
			acquiredTextRule(),
			dateTextRule(),
		},
		PlayerContainers: []ContainerRule{
			selectorRule("player-card", "div.flex.items-start.mb-1.border.rounded-lg"),
			selectorRule("player-class-token", `[class*="player-card"], [class*="player-row"], div[class*="player"], li[class*="player"]`),
			moneyRowRule(),
		},
		PlayerExclusions: []*regexp.Regexp{
			regexp.MustCompile(`(?i)draft\s+pick`),
			regexp.MustCompile(`(?i)no\s+current\s+contract`),
			regexp.MustCompile(`(?i)salary\s+retained`),
		},
		TradeDate: []TextRule{
			headerSiblingDateRule(),
			selectorText("date-class-token", `[class*="date"]`),
			regexText("date-text-scan", tradeDateRe),
		},
		TradeSummary: []TextRule{
			selectorText("content-link", "div.pp_content a"),
			regexText("acquired-shape", summaryShape),
			acquiredFragmentRule(),
		},
		TradeURL: []TextRule{
			hrefRule("content-link-href", "div.pp_content a[href]", nil),
			tradeHrefRule(),
			detailsAnchorRule(),
		},
		PlayerName: []TextRule{
			selectorText("profile-link", "a.pp_link"),
			selectorText("first-anchor", "a"),
			leadingNameRule(),
		},
		PlayerAge: []TextRule{
			labelSiblingText("age-label", "span", "age"),
			regexText("age-text-scan", regexp.MustCompile(`(?i)age\s*\d{1,2}`)),
		},
		PlayerPos: []TextRule{
			labelSiblingText("pos-label", "span", "pos"),
			regexText("pos-text-scan", regexp.MustCompile(`(?i)pos\s*[A-Z/]{1,5}\b`)),
		},
		ContractYears: []TextRule{
			regexText("contract-tag", contractTagRe),
		},
		CapHit: []TextRule{
			labelSiblingDivText("cap-hit-label"),
			regexText("money-text-scan", capHitAmtRe),
		},
	}
}

// acquiredTextRule finds paragraphs describing a trade ("X acquired ... from
// ... for ...") and promotes them to their nearest block ancestor.
func acquiredTextRule() ContainerRule {
	return ContainerRule{
		Name: "acquired-text",
		Find: func(scope *goquery.Selection) []*goquery.Selection {
			var found []*goquery.Selection
			scope.Find("div, p").Each(func(_ int, s *goquery.Selection) {
				if s.ChildrenFiltered("div, p").Length() > 0 {
					// Match the innermost text block; its ancestors would
					// otherwise surface as phantom nested trades.
					return
				}
				text := nodeText(s)
				if len(text) >= 500 {
					return
				}
				if !acquiredRe.MatchString(text) || !fromForRe.MatchString(text) {
					return
				}
				if parent := blockAncestor(s); parent != nil {
					found = append(found, parent)
				}
			})
			return found
		},
	}
}

// dateTextRule finds elements carrying a "MON D YYYY" token and promotes
// them to their nearest block ancestor. Last-resort trade boundary.
func dateTextRule() ContainerRule {
	return ContainerRule{
		Name: "date-text",
		Find: func(scope *goquery.Selection) []*goquery.Selection {
			var found []*goquery.Selection
			scope.Find("div, span, p").Each(func(_ int, s *goquery.Selection) {
				if s.Children().Length() > 0 {
					return
				}
				if !tradeDateRe.MatchString(s.Text()) {
					return
				}
				if parent := blockAncestor(s); parent != nil {
					found = append(found, parent)
				}
			})
			return found
		},
	}
}

// moneyRowRule treats any row-like element carrying a money token as a
// candidate player container.
func moneyRowRule() ContainerRule {
	return ContainerRule{
		Name: "money-row",
		Find: func(scope *goquery.Selection) []*goquery.Selection {
			var found []*goquery.Selection
			scope.Find("div, tr, li").Each(func(_ int, s *goquery.Selection) {
				if s.Find("div, tr, li").Length() > 0 {
					// Prefer leaf rows so nested wrappers don't double-count.
					return
				}
				if capHitAmtRe.MatchString(nodeText(s)) {
					found = append(found, s)
				}
			})
			return found
		},
	}
}

// headerSiblingDateRule reads the trade date from the uppercase header div
// that precedes each trade container in the listing.
func headerSiblingDateRule() TextRule {
	return TextRule{
		Name: "header-sibling",
		Extract: func(container *goquery.Selection) (string, bool) {
			prev := container.Prev()
			if prev.Length() == 0 {
				return "", false
			}
			class, _ := prev.Attr("class")
			if !strings.Contains(class, "tracking-widest") {
				return "", false
			}
			if date := prev.Find("div.pl-2").First(); date.Length() > 0 {
				return nodeText(date), true
			}
			return nodeText(prev), true
		},
	}
}

// acquiredFragmentRule returns the first child fragment mentioning
// "acquired" that is long enough to be a summary.
func acquiredFragmentRule() TextRule {
	return TextRule{
		Name: "acquired-fragment",
		Extract: func(container *goquery.Selection) (string, bool) {
			var summary string
			container.Find("p, span, div, a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
				text := nodeText(s)
				if len(text) > 20 && acquiredRe.MatchString(text) {
					summary = text
					return false
				}
				return true
			})
			return summary, summary != ""
		},
	}
}

// hrefRule returns the href of the first matching anchor, optionally
// filtered by an href pattern.
func hrefRule(name, selector string, hrefPattern *regexp.Regexp) TextRule {
	return TextRule{
		Name: name,
		Extract: func(container *goquery.Selection) (string, bool) {
			var href string
			container.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				h, ok := s.Attr("href")
				if !ok || strings.TrimSpace(h) == "" {
					return true
				}
				if hrefPattern != nil && !hrefPattern.MatchString(h) {
					return true
				}
				href = strings.TrimSpace(h)
				return false
			})
			return href, href != ""
		},
	}
}

func tradeHrefRule() TextRule {
	return hrefRule("trade-path-href", "a[href]", regexp.MustCompile(`(?i)trade|/t/`))
}

// detailsAnchorRule follows anchors labelled "details" or "comments".
func detailsAnchorRule() TextRule {
	return TextRule{
		Name: "details-anchor",
		Extract: func(container *goquery.Selection) (string, bool) {
			var href string
			container.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
				label := strings.ToLower(strings.TrimSpace(s.Text()))
				if !strings.Contains(label, "detail") && !strings.Contains(label, "comment") {
					return true
				}
				h, ok := s.Attr("href")
				if !ok || strings.TrimSpace(h) == "" {
					return true
				}
				href = strings.TrimSpace(h)
				return false
			})
			return href, href != ""
		},
	}
}

var leadingNameRe = regexp.MustCompile(`^([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`)

// leadingNameRule falls back to the leading capitalized words of the row.
func leadingNameRule() TextRule {
	return TextRule{
		Name: "leading-name",
		Extract: func(container *goquery.Selection) (string, bool) {
			m := leadingNameRe.FindStringSubmatch(nodeText(container))
			if m == nil {
				return "", false
			}
			return m[1], true
		},
	}
}

// labelSiblingDivText reads the value div that follows a "Cap Hit" label div.
func labelSiblingDivText(name string) TextRule {
	capHitLabelRe := regexp.MustCompile(`(?i)^Cap\s*Hit$`)
	return TextRule{
		Name: name,
		Extract: func(container *goquery.Selection) (string, bool) {
			var value string
			container.Find("div, span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if !capHitLabelRe.MatchString(strings.TrimSpace(s.Text())) {
					return true
				}
				sibling := s.Next()
				if sibling.Length() == 0 {
					return true
				}
				value = nodeText(sibling)
				return false
			})
			return value, value != ""
		},
	}
}
