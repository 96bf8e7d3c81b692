package harvest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"picharvest/pkg/config"
	"picharvest/pkg/store"
)

func testDomains() config.DomainConfig {
	return config.DomainConfig{
		Fast:         []string{"upload.wikimedia.org"},
		Slow:         []string{"slow.example.net"},
		FastSettle:   200 * time.Millisecond,
		NormalSettle: 300 * time.Millisecond,
		SlowSettle:   800 * time.Millisecond,
	}
}

func TestPrioritizerTier(t *testing.T) {
	p := NewPrioritizer(testDomains())

	assert.Equal(t, TierFast, p.Tier("upload.wikimedia.org"))
	assert.Equal(t, TierFast, p.Tier("Upload.Wikimedia.org"))
	assert.Equal(t, TierSlow, p.Tier("slow.example.net"))
	assert.Equal(t, TierNormal, p.Tier("unknown.example.org"))
	assert.Equal(t, "normal", TierNormal.String())
}

func TestPrioritizerSettle(t *testing.T) {
	p := NewPrioritizer(testDomains())

	assert.Equal(t, 200*time.Millisecond, p.Settle("upload.wikimedia.org"))
	assert.Equal(t, 300*time.Millisecond, p.Settle("blog.example.org"))
	assert.Equal(t, 800*time.Millisecond, p.Settle("slow.example.net"))
}

func TestPrioritizerOrderIsStablePartition(t *testing.T) {
	p := NewPrioritizer(testDomains())
	in := []store.SourceURL{
		{ID: 1, Domain: "slow.example.net"},
		{ID: 2, Domain: "a.example.org"},
		{ID: 3, Domain: "upload.wikimedia.org"},
		{ID: 4, Domain: "b.example.org"},
		{ID: 5, Domain: "upload.wikimedia.org"},
		{ID: 6, Domain: "slow.example.net"},
	}

	var ids []int64
	for _, u := range p.Order(in) {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []int64{3, 5, 2, 4, 1, 6}, ids)
	assert.Equal(t, int64(1), in[0].ID, "input must not be reordered")
}
