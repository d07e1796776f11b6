package extractor

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"blogarchive/pkg/logger"
	"blogarchive/pkg/sites"
)

// Result is the best-effort content of one post detail page. Missing
// fields come back empty, never as an error; the caller falls back to the
// stub's title and date.
type Result struct {
	Title   string
	Date    string
	Content string
	Images  []string
}

// Extractor pulls structured fields out of a post detail page using the
// site profile's ordered selector fallback.
type Extractor struct {
	profile *sites.Profile
	logger  logger.Logger
}

// New creates an Extractor for one site layout.
func New(profile *sites.Profile, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Extractor{profile: profile, logger: log}
}

// Extract reads title, date, content HTML and image URLs from a detail
// page document.
func (e *Extractor) Extract(doc *goquery.Document, url string) Result {
	res := Result{
		Title: e.extractTitle(doc),
		Date:  e.extractDate(doc),
	}

	content, sel := e.extractContent(doc)
	res.Content = content
	res.Images = e.extractImages(sel, content)

	e.logger.DebugWithFields("Post extracted", map[string]interface{}{
		"url":         url,
		"title_found": res.Title != "",
		"date_found":  res.Date != "",
		"images":      len(res.Images),
	})

	return res
}

// extractTitle walks the title selectors in priority order. The first
// non-empty match that is not site boilerplate wins; no merging across
// selectors.
func (e *Extractor) extractTitle(doc *goquery.Document) string {
	for _, sel := range e.profile.TitleSelectors {
		text := cleanText(doc.Find(sel).First().Text())
		if text == "" {
			continue
		}
		if e.isBoilerplate(text) {
			continue
		}
		return text
	}
	return ""
}

func (e *Extractor) isBoilerplate(text string) bool {
	for _, phrase := range e.profile.ExcludePhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

var datePattern = regexp.MustCompile(`(\d{4})[./-](\d{1,2})[./-](\d{1,2})`)

// extractDate runs the three date tiers: separate year/month/day elements,
// a regex scan over date-like elements, then the structured metadata tag.
// First tier to produce a value wins.
func (e *Extractor) extractDate(doc *goquery.Document) string {
	parts := e.profile.DatePartsSelector
	if parts.Year != "" {
		y := digits(doc.Find(parts.Year).First().Text())
		mo := digits(doc.Find(parts.Month).First().Text())
		d := digits(doc.Find(parts.Day).First().Text())
		if y != "" && mo != "" && d != "" {
			return y + "/" + pad2(mo) + "/" + pad2(d)
		}
	}

	for _, sel := range e.profile.DateSelectors {
		var found string
		doc.Find(sel).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if m := datePattern.FindStringSubmatch(s.Text()); m != nil {
				found = m[1] + "/" + pad2(m[2]) + "/" + pad2(m[3])
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	if e.profile.MetaDateSelector != "" {
		if dt, ok := doc.Find(e.profile.MetaDateSelector).First().Attr("datetime"); ok {
			if t, err := time.Parse(time.RFC3339, strings.TrimSpace(dt)); err == nil {
				return t.Format("2006/01/02")
			}
			if m := datePattern.FindStringSubmatch(dt); m != nil {
				return m[1] + "/" + pad2(m[2]) + "/" + pad2(m[3])
			}
		}
	}

	return ""
}

// extractContent walks the content selectors and returns the inner HTML of
// the first non-empty match, along with its selection for image scanning.
func (e *Extractor) extractContent(doc *goquery.Document) (string, *goquery.Selection) {
	for _, sel := range e.profile.ContentSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		html, err := node.Html()
		if err != nil {
			continue
		}
		if strings.TrimSpace(node.Text()) == "" && node.Find("img").Length() == 0 {
			continue
		}
		return strings.TrimSpace(html), node
	}
	return "", nil
}

var imgTagPattern = regexp.MustCompile(`<img[^>]+src=["']([^"']+)["']`)

// extractImages scans the content container for embedded images in DOM
// order, then re-scans the extracted HTML with a regex for tags the DOM
// query missed. Duplicates and excluded-keyword URLs never make the list.
func (e *Extractor) extractImages(content *goquery.Selection, html string) []string {
	var images []string
	seen := make(map[string]bool)

	add := func(raw string) {
		url := e.profile.ResolveURL(raw)
		if url == "" || seen[url] {
			return
		}
		if isExcluded(url) {
			return
		}
		seen[url] = true
		images = append(images, url)
	}

	if content != nil {
		content.Find("img").Each(func(i int, s *goquery.Selection) {
			if src, ok := s.Attr("src"); ok {
				add(src)
			}
		})
	}

	// Defensive second pass over the raw HTML string.
	for _, m := range imgTagPattern.FindAllStringSubmatch(html, -1) {
		add(m[1])
	}

	return images
}

// isExcluded reports whether the URL references site chrome (icons, logos,
// nav sprites) rather than post content.
func isExcluded(url string) bool {
	lowered := strings.ToLower(url)
	for _, kw := range sites.ExcludeKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
