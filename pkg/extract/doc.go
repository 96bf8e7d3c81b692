// Package extract finds candidate image URLs on referrer pages.
//
// BrowserExtractor renders the page in the shared headless browser and
// waits a per-domain settle delay before reading it; StaticExtractor reads
// the raw HTML over HTTP, decoding legacy charsets first. Both hand the
// HTML to ParseImageURLs, which looks at img src, lazy-load attributes,
// srcset (largest candidate), Open Graph and image_src links.
//
// With extract.respect_robots set, every extractor is wrapped in Guarded and
// pages disallowed by robots.txt are skipped.
package extract
