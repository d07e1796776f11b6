package integration

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// MockBlogServer simulates the blog site: a paginated member listing,
// detail pages and an image CDN. Posts are generated programmatically so
// tests can dial in any archive size.
type MockBlogServer struct {
	server *httptest.Server

	pageSize     int
	postsPerID   map[int]int // member id -> total posts
	requestCount int32

	mu           sync.RWMutex
	failOnce     map[string]int // path -> status to return once
	sharedImages bool           // every post references one shared image
}

// NewMockBlogServer creates a running mock site.
func NewMockBlogServer(pageSize int) *MockBlogServer {
	m := &MockBlogServer{
		pageSize:   pageSize,
		postsPerID: make(map[int]int),
		failOnce:   make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/s/official/diary/member/list", m.handleListing)
	mux.HandleFunc("/s/official/diary/detail/", m.handleDetail)
	mux.HandleFunc("/images/", m.handleImage)

	m.server = httptest.NewServer(mux)
	return m
}

// URL returns the mock site's origin.
func (m *MockBlogServer) URL() string { return m.server.URL }

// Close shuts the server down.
func (m *MockBlogServer) Close() { m.server.Close() }

// SetPosts configures how many posts a member has.
func (m *MockBlogServer) SetPosts(memberID, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postsPerID[memberID] = count
}

// FailOnce makes the next request to path return the given status, then
// recover.
func (m *MockBlogServer) FailOnce(path string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOnce[path] = status
}

// UseSharedImage makes every post reference the same image URL in
// addition to its own.
func (m *MockBlogServer) UseSharedImage(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sharedImages = on
}

// RequestCount returns how many requests the server has seen.
func (m *MockBlogServer) RequestCount() int {
	return int(atomic.LoadInt32(&m.requestCount))
}

func (m *MockBlogServer) consumeFailure(w http.ResponseWriter, path string) bool {
	m.mu.Lock()
	status, ok := m.failOnce[path]
	if ok {
		delete(m.failOnce, path)
	}
	m.mu.Unlock()

	if ok {
		w.WriteHeader(status)
		return true
	}
	return false
}

// handleListing serves one page of a member's post listing, newest first.
// Post n of N has date 2024/01/<N-n+1 capped at 28>.
func (m *MockBlogServer) handleListing(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.requestCount, 1)
	if m.consumeFailure(w, r.URL.Path+"?page="+r.URL.Query().Get("page")) {
		return
	}

	memberID, _ := strconv.Atoi(r.URL.Query().Get("ct"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	m.mu.RLock()
	total := m.postsPerID[memberID]
	m.mu.RUnlock()

	first := page * m.pageSize
	last := first + m.pageSize
	if last > total {
		last = total
	}

	var b strings.Builder
	b.WriteString(`<html><body><div class="p-blog-group">`)
	for i := first; i < last; i++ {
		postNum := total - i // newest first
		b.WriteString(fmt.Sprintf(`
		<article class="p-blog-article">
			<div class="c-blog-article__title">Post %d</div>
			<div class="c-blog-article__date">%s</div>
			<a class="c-button-blog-detail" href="/s/official/diary/detail/%d-%d"></a>
		</article>`, postNum, postDate(postNum), memberID, postNum))
	}
	b.WriteString(`</div></body></html>`)

	w.Write([]byte(b.String()))
}

func (m *MockBlogServer) handleDetail(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.requestCount, 1)
	if m.consumeFailure(w, r.URL.Path) {
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/s/official/diary/detail/")

	m.mu.RLock()
	shared := m.sharedImages
	m.mu.RUnlock()

	extra := ""
	if shared {
		extra = `<img src="/images/shared.jpg">`
	}

	fmt.Fprintf(w, `
	<html><body>
	<article class="p-blog-article">
		<div class="c-blog-article__title">Post %s</div>
		<div class="c-blog-article__text">
			<p>diary entry %s</p>
			<img src="/images/%s.jpg">
			%s
			<img src="/common/nav_logo.png">
		</div>
	</article>
	</body></html>`, key, key, key, extra)
}

func (m *MockBlogServer) handleImage(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.requestCount, 1)
	if m.consumeFailure(w, r.URL.Path) {
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write([]byte("image-bytes:" + r.URL.Path))
}

func postDate(postNum int) string {
	day := postNum
	if day > 28 {
		day = 28
	}
	if day < 1 {
		day = 1
	}
	return fmt.Sprintf("2024.1.%d", day)
}
