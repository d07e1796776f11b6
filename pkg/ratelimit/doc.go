// Package ratelimit paces outbound requests against the blog sites.
//
// The Scheduler enforces a random minimum gap between requests and a
// mandatory long pause every Nth request (the burst limit). State is held
// in the Scheduler value and reset per scrape run; there are no package
// globals.
package ratelimit
