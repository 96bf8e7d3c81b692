// Package search turns a query into referrer pages that host images of the
// subject.
//
// GoogleProvider renders a Google Images result page in the shared browser
// and reads referrer links out of it. SearxngProvider asks a SearXNG
// instance through its JSON API, optionally with a bearer token. New wraps
// either in RateLimited so searches are paced per minute.
//
// FilterReferrers drops search engines, social networks and other hosts
// that never carry subject images.
package search
