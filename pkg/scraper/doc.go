// Package scraper wires the archive pipeline together: the pagination
// collector finds post stubs, each detail page is fetched and extracted
// under the shared request scheduler, posts are upserted into SQLite, and
// images are downloaded in windows and linked back to their posts.
//
// Runs are resilient by design. A post that fails to fetch, parse or
// persist is counted and skipped; only context cancellation stops a run
// early.
package scraper
