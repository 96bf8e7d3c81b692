package harvest

import (
	"strings"
	"time"

	"picharvest/pkg/config"
	"picharvest/pkg/store"
)

// DomainTier is the historical speed class of a referrer domain
type DomainTier int

const (
	TierFast DomainTier = iota
	TierNormal
	TierSlow
)

func (t DomainTier) String() string {
	switch t {
	case TierFast:
		return "fast"
	case TierSlow:
		return "slow"
	default:
		return "normal"
	}
}

// Prioritizer orders referrer URLs by domain tier and picks page settle delays
type Prioritizer struct {
	fast   map[string]bool
	slow   map[string]bool
	settle [3]time.Duration
}

func NewPrioritizer(cfg config.DomainConfig) *Prioritizer {
	p := &Prioritizer{
		fast:   make(map[string]bool, len(cfg.Fast)),
		slow:   make(map[string]bool, len(cfg.Slow)),
		settle: [3]time.Duration{cfg.FastSettle, cfg.NormalSettle, cfg.SlowSettle},
	}
	for _, d := range cfg.Fast {
		p.fast[strings.ToLower(d)] = true
	}
	for _, d := range cfg.Slow {
		p.slow[strings.ToLower(d)] = true
	}
	return p
}

// Tier classifies a domain; unlisted domains are normal
func (p *Prioritizer) Tier(domain string) DomainTier {
	d := strings.ToLower(domain)
	switch {
	case p.fast[d]:
		return TierFast
	case p.slow[d]:
		return TierSlow
	default:
		return TierNormal
	}
}

// Settle is how long a page on domain is given to render
func (p *Prioritizer) Settle(domain string) time.Duration {
	return p.settle[p.Tier(domain)]
}

// Order puts fast domains first and slow ones last, keeping discovery
// order within each tier
func (p *Prioritizer) Order(urls []store.SourceURL) []store.SourceURL {
	var buckets [3][]store.SourceURL
	for _, u := range urls {
		t := p.Tier(u.Domain)
		buckets[t] = append(buckets[t], u)
	}
	out := make([]store.SourceURL, 0, len(urls))
	for _, b := range buckets {
		out = append(out, b...)
	}
	return out
}
