// Package ratelimit paces outbound requests.
//
// SlidingWindow counts requests inside a moving time window and backs
// search pacing (search.requests_per_minute). Unlimited satisfies the same
// interface when pacing is turned off.
//
// Wait takes a context so a cancelled harvest does not sit out a long window:
//
//	limiter := ratelimit.PerMinute(20)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
