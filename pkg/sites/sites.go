package sites

import (
	"fmt"
	"strings"

	"blogarchive/pkg/models"
)

// Profile describes one of the two known blog layouts: base origin, URL
// shapes, and the selector sets the collector and extractor walk in
// priority order. The extraction logic is intentionally specific to these
// two sites; this is not a general scraping framework.
type Profile struct {
	Site    models.Site
	BaseURL string

	// listPathFormat takes (page, memberID)
	listPathFormat string
	// PageSize is the number of entries a full listing page carries; a
	// shorter page is the last-page heuristic.
	PageSize int

	// Listing page. Stubs are read only from inside ListContainer so that
	// sidebar "latest posts" widgets are never picked up.
	ListContainer string
	StubEntry     string
	StubLink      string
	StubTitle     string
	StubDate      string

	// Detail page, ordered selector fallback per field.
	TitleSelectors   []string
	ContentSelectors []string

	// Date extraction tiers.
	DatePartsSelector struct {
		Year, Month, Day string
	}
	DateSelectors    []string
	MetaDateSelector string

	// Title matches containing one of these phrases are site boilerplate
	// and rejected.
	ExcludePhrases []string

	// Member roster page.
	RosterPath string
	RosterLink string
	RosterName string
}

// ExcludeKeywords lists URL fragments that mark an image as site chrome
// rather than post content. Shared by both layouts.
var ExcludeKeywords = []string{
	"icon",
	"logo",
	"banner",
	"btn_",
	"button",
	"nav_",
	"emoji",
	"sprite",
	"/common/",
	"/parts/",
}

var current = &Profile{
	Site:           models.SiteCurrent,
	BaseURL:        "https://www.hinatazaka46.com",
	listPathFormat: "/s/official/diary/member/list?ima=0000&page=%d&ct=%d",
	PageSize:       20,

	ListContainer: "div.p-blog-group",
	StubEntry:     "article.p-blog-article",
	StubLink:      "a.c-button-blog-detail",
	StubTitle:     ".c-blog-article__title",
	StubDate:      ".c-blog-article__date",

	TitleSelectors: []string{
		".c-blog-article__title",
		".p-blog-article h1",
		"article h1",
	},
	ContentSelectors: []string{
		".c-blog-article__text",
		".p-blog-article__text",
		"article .box-article",
	},
	DateSelectors: []string{
		".c-blog-article__date",
		".p-blog-article__date",
	},
	MetaDateSelector: "time[datetime]",
	ExcludePhrases: []string{
		"公式ブログ",
		"メンバーブログ",
	},

	RosterPath: "/s/official/search/artist?ima=0000",
	RosterLink: "ul.p-member__list li.p-member__item a",
	RosterName: ".c-member__name",
}

var legacy = &Profile{
	Site:           models.SiteLegacy,
	BaseURL:        "https://www.keyakizaka46.com",
	listPathFormat: "/s/k46o/diary/member/list?ima=0000&page=%d&ct=%02d",
	PageSize:       20,

	ListContainer: "div.box-main",
	StubEntry:     "article",
	StubLink:      "h3 a, .box-ttl a",
	StubTitle:     "h3, .box-ttl",
	StubDate:      ".box-bottom li",

	TitleSelectors: []string{
		".box-ttl h3",
		"article h1",
		"header h1",
	},
	ContentSelectors: []string{
		".box-article",
		"article .txt",
	},
	DatePartsSelector: struct{ Year, Month, Day string }{
		Year:  ".box-bottom .year",
		Month: ".box-bottom .month",
		Day:   ".box-bottom .day",
	},
	DateSelectors: []string{
		".box-bottom li",
		".box-date",
	},
	MetaDateSelector: "time[datetime]",
	ExcludePhrases: []string{
		"公式ブログ",
	},

	RosterPath: "/s/k46o/search/artist?ima=0000",
	RosterLink: ".sorted .box a",
	RosterName: ".name",
}

// ProfileFor returns the layout profile for the given site.
func ProfileFor(site models.Site) (*Profile, error) {
	switch site {
	case models.SiteCurrent:
		return current, nil
	case models.SiteLegacy:
		return legacy, nil
	default:
		return nil, fmt.Errorf("unknown site %q", site)
	}
}

// WithBaseURL returns a copy of the profile pointed at a different origin.
// Tests use this to serve fixture pages from a local server.
func (p *Profile) WithBaseURL(base string) *Profile {
	cp := *p
	cp.BaseURL = strings.TrimRight(base, "/")
	return &cp
}

// OverrideBaseURL repoints a site's shared profile at a different origin
// and returns a restore function. Tests that exercise code resolving
// profiles internally use this instead of WithBaseURL.
func OverrideBaseURL(site models.Site, base string) func() {
	p, err := ProfileFor(site)
	if err != nil {
		return func() {}
	}
	old := p.BaseURL
	p.BaseURL = strings.TrimRight(base, "/")
	return func() { p.BaseURL = old }
}

// ListingURL builds the paginated listing URL for a member. Pages are
// zero-based.
func (p *Profile) ListingURL(memberID, page int) string {
	return p.BaseURL + fmt.Sprintf(p.listPathFormat, page, memberID)
}

// ResolveURL resolves a possibly relative URL against the site origin.
func (p *Profile) ResolveURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	if strings.HasPrefix(raw, "/") {
		return p.BaseURL + raw
	}
	return p.BaseURL + "/" + raw
}
