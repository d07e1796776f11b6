package extractor

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogarchive/pkg/logger"
	"blogarchive/pkg/models"
	"blogarchive/pkg/sites"
)

func parseHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func currentProfile(t *testing.T) *sites.Profile {
	t.Helper()
	p, err := sites.ProfileFor(models.SiteCurrent)
	require.NoError(t, err)
	return p
}

func legacyProfile(t *testing.T) *sites.Profile {
	t.Helper()
	p, err := sites.ProfileFor(models.SiteLegacy)
	require.NoError(t, err)
	return p
}

func TestExtractFullPost(t *testing.T) {
	html := `
	<html><body>
	<article class="p-blog-article">
		<div class="c-blog-article__title">今日の出来事</div>
		<div class="c-blog-article__date">2024.3.5</div>
		<div class="c-blog-article__text">
			<p>こんにちは！</p>
			<img src="/images/blog/photo1.jpg">
			<img src="https://cdn.example.com/photo2.jpg">
		</div>
	</article>
	</body></html>`

	e := New(currentProfile(t), logger.NewNopLogger())
	res := e.Extract(parseHTML(t, html), "https://www.hinatazaka46.com/s/official/diary/detail/1")

	assert.Equal(t, "今日の出来事", res.Title)
	assert.Equal(t, "2024/03/05", res.Date)
	assert.Contains(t, res.Content, "こんにちは！")
	assert.Equal(t, []string{
		"https://www.hinatazaka46.com/images/blog/photo1.jpg",
		"https://cdn.example.com/photo2.jpg",
	}, res.Images)
}

func TestExtractTitleFallsBackThroughSelectors(t *testing.T) {
	html := `
	<html><body>
	<article class="p-blog-article">
		<h1>二番手のタイトル</h1>
		<div class="c-blog-article__text"><p>body</p></div>
	</article>
	</body></html>`

	e := New(currentProfile(t), logger.NewNopLogger())
	res := e.Extract(parseHTML(t, html), "u")

	assert.Equal(t, "二番手のタイトル", res.Title)
}

func TestExtractTitleRejectsBoilerplate(t *testing.T) {
	html := `
	<html><body>
	<article class="p-blog-article">
		<div class="c-blog-article__title">公式ブログ</div>
		<h1>本当のタイトル</h1>
		<div class="c-blog-article__text"><p>body</p></div>
	</article>
	</body></html>`

	e := New(currentProfile(t), logger.NewNopLogger())
	res := e.Extract(parseHTML(t, html), "u")

	assert.Equal(t, "本当のタイトル", res.Title,
		"a boilerplate match falls through to the next selector")
}

func TestExtractMissingFieldsAreEmptyNotErrors(t *testing.T) {
	e := New(currentProfile(t), logger.NewNopLogger())
	res := e.Extract(parseHTML(t, `<html><body><p>nothing here</p></body></html>`), "u")

	assert.Empty(t, res.Title)
	assert.Empty(t, res.Date)
	assert.Empty(t, res.Content)
	assert.Empty(t, res.Images)
}

func TestExtractDateFromParts(t *testing.T) {
	html := `
	<html><body>
	<div class="box-main">
		<div class="box-ttl"><h3>タイトル</h3></div>
		<div class="box-article"><p>body</p></div>
		<div class="box-bottom">
			<span class="year">2019年</span>
			<span class="month">7月</span>
			<span class="day">9日</span>
		</div>
	</div>
	</body></html>`

	e := New(legacyProfile(t), logger.NewNopLogger())
	res := e.Extract(parseHTML(t, html), "u")

	assert.Equal(t, "2019/07/09", res.Date)
}

func TestExtractDateNormalizesSeparators(t *testing.T) {
	for _, raw := range []string{"2024.3.5", "2024/3/5", "2024-03-05"} {
		html := `
		<html><body>
		<article class="p-blog-article">
			<div class="c-blog-article__date">` + raw + `</div>
			<div class="c-blog-article__text"><p>body</p></div>
		</article>
		</body></html>`

		e := New(currentProfile(t), logger.NewNopLogger())
		res := e.Extract(parseHTML(t, html), "u")

		assert.Equal(t, "2024/03/05", res.Date, "input %q", raw)
	}
}

func TestExtractDateFromMetaTag(t *testing.T) {
	html := `
	<html><body>
	<article class="p-blog-article">
		<time datetime="2023-11-20T18:30:00+09:00"></time>
		<div class="c-blog-article__text"><p>body</p></div>
	</article>
	</body></html>`

	e := New(currentProfile(t), logger.NewNopLogger())
	res := e.Extract(parseHTML(t, html), "u")

	assert.Equal(t, "2023/11/20", res.Date)
}

func TestExtractImagesFiltersSiteChrome(t *testing.T) {
	html := `
	<html><body>
	<article class="p-blog-article">
		<div class="c-blog-article__text">
			<img src="/images/blog/real1.jpg">
			<img src="/common/header_logo.png">
			<img src="/assets/icon_heart.png">
			<img src="/images/nav_arrow.png">
			<img src="/images/blog/real2.jpg">
		</div>
	</article>
	</body></html>`

	e := New(currentProfile(t), logger.NewNopLogger())
	res := e.Extract(parseHTML(t, html), "u")

	assert.Equal(t, []string{
		"https://www.hinatazaka46.com/images/blog/real1.jpg",
		"https://www.hinatazaka46.com/images/blog/real2.jpg",
	}, res.Images)
}

func TestExtractImagesDedupesAndKeepsOrder(t *testing.T) {
	html := `
	<html><body>
	<article class="p-blog-article">
		<div class="c-blog-article__text">
			<img src="/b.jpg">
			<img src="/a.jpg">
			<img src="/b.jpg">
		</div>
	</article>
	</body></html>`

	e := New(currentProfile(t), logger.NewNopLogger())
	res := e.Extract(parseHTML(t, html), "u")

	assert.Equal(t, []string{
		"https://www.hinatazaka46.com/b.jpg",
		"https://www.hinatazaka46.com/a.jpg",
	}, res.Images)
}

func TestExtractImagesRegexSecondPass(t *testing.T) {
	// The regex pass sees the same HTML the DOM pass covered; images it
	// re-finds are already deduped, so the result stays stable.
	html := `
	<html><body>
	<article class="p-blog-article">
		<div class="c-blog-article__text">
			<p>text</p>
			<img src='/single-quoted.jpg'>
		</div>
	</article>
	</body></html>`

	e := New(currentProfile(t), logger.NewNopLogger())
	res := e.Extract(parseHTML(t, html), "u")

	assert.Equal(t, []string{"https://www.hinatazaka46.com/single-quoted.jpg"}, res.Images)
}

func TestExtractProtocolRelativeImageURL(t *testing.T) {
	html := `
	<html><body>
	<article class="p-blog-article">
		<div class="c-blog-article__text">
			<img src="//cdn.example.com/x.jpg">
		</div>
	</article>
	</body></html>`

	e := New(currentProfile(t), logger.NewNopLogger())
	res := e.Extract(parseHTML(t, html), "u")

	assert.Equal(t, []string{"https://cdn.example.com/x.jpg"}, res.Images)
}
