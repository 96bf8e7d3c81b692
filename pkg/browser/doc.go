// Package browser runs the headless Chrome used to render search result
// pages and referrer pages.
//
// Manager launches Chrome through the rod launcher, or connects to a remote
// instance when browser.remote_url is set. RenderHTML opens a stealth tab,
// scrolls to trigger lazy loading, waits a settle delay and returns the
// rendered HTML; the tab is closed before it returns.
package browser
