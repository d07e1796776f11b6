package models

import "time"

// Site identifies which of the two known blog platforms a post came from.
// A member's history can span both: the group's current platform and the
// legacy platform it grew out of.
type Site string

const (
	// SiteCurrent is the group's current official blog platform.
	SiteCurrent Site = "site-A"
	// SiteLegacy is the predecessor platform; old posts live there.
	SiteLegacy Site = "site-B"
)

// Valid reports whether s is one of the two known sites.
func (s Site) Valid() bool {
	return s == SiteCurrent || s == SiteLegacy
}

// Member is immutable reference data about a group member, keyed by the
// site's native numeric id. Seeded once, never deleted.
type Member struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	BlogURL string `json:"blog_url,omitempty"`
}

// PostStub is a lightweight post reference collected from a listing page
// before the full post is visited.
type PostStub struct {
	URL   string `json:"url"`
	Date  string `json:"date"`
	Title string `json:"title"`
}

// BlogPost is a fully scraped post. URL is the natural key: re-scraping the
// same URL replaces the row instead of duplicating it. MemberName is
// denormalized so posts survive a member-table reset.
type BlogPost struct {
	ID         int         `json:"id"`
	MemberID   int         `json:"member_id"`
	MemberName string      `json:"member_name"`
	URL        string      `json:"url"`
	Title      string      `json:"title"`
	// Date keeps the site-native text form (YYYY/MM/DD), not ISO.
	Date      string      `json:"date"`
	Content   string      `json:"content"`
	Site      Site        `json:"site"`
	CreatedAt time.Time   `json:"created_at"`
	Images    []PostImage `json:"images"`
}

// PostImage is one image reference inside a post, in the order it was
// discovered in the post body. LocalPath is empty until the image has been
// downloaded.
type PostImage struct {
	ID        int    `json:"id"`
	PostID    int    `json:"post_id"`
	ImageURL  string `json:"image_url"`
	LocalPath string `json:"local_path,omitempty"`
}
