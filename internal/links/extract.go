// Package links finds hyperlink references in fetched page bodies and
// resolves them against the page URL.
package links

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// PatternName selects the PatternExtractor.
	PatternName = "pattern"
	// MarkupName selects the MarkupExtractor.
	MarkupName = "markup"
)

// Extractor returns the absolute URLs linked from body. Implementations
// never fail: malformed input degrades to fewer or no links.
type Extractor interface {
	Extract(baseURL, body string) []string
}

// ByName returns the extractor registered under name.
func ByName(name string) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PatternName:
		return NewPatternExtractor(), nil
	case MarkupName:
		return MarkupExtractor{}, nil
	default:
		return nil, &ExtractorError{Name: name, Message: "unknown extractor"}
	}
}

// PatternExtractor matches double-quoted href attribute values textually.
// It does not parse markup, so partial or broken documents are fine.
type PatternExtractor struct {
	re *regexp.Regexp
}

// NewPatternExtractor compiles the href pattern. The returned value is
// safe for concurrent use.
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{re: regexp.MustCompile(`href="(.*?)"`)}
}

// Extract implements Extractor.
func (p *PatternExtractor) Extract(baseURL, body string) []string {
	base, ok := parseBase(baseURL)
	if !ok || body == "" {
		return nil
	}

	set := newLinkSet(base)
	for _, m := range p.re.FindAllStringSubmatch(body, -1) {
		set.add(m[1])
	}
	return set.sorted()
}

// MarkupExtractor locates href attributes through an HTML tokenizer.
// Unlike PatternExtractor it also sees single-quoted and unquoted values.
type MarkupExtractor struct{}

// Extract implements Extractor.
func (MarkupExtractor) Extract(baseURL, body string) []string {
	base, ok := parseBase(baseURL)
	if !ok || body == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	set := newLinkSet(base)
	doc.Find("[href]").Each(func(_ int, s *goquery.Selection) {
		if href, exists := s.Attr("href"); exists {
			set.add(href)
		}
	})
	return set.sorted()
}

func parseBase(baseURL string) (*url.URL, bool) {
	if baseURL == "" {
		return nil, false
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, false
	}
	return base, true
}

// linkSet resolves raw references against a base and collapses duplicates.
type linkSet struct {
	base *url.URL
	seen map[string]struct{}
}

func newLinkSet(base *url.URL) *linkSet {
	return &linkSet{base: base, seen: make(map[string]struct{})}
}

func (s *linkSet) add(raw string) {
	ref, err := url.Parse(raw)
	if err != nil {
		return
	}
	s.seen[s.base.ResolveReference(ref).String()] = struct{}{}
}

func (s *linkSet) sorted() []string {
	if len(s.seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.seen))
	for u := range s.seen {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
