package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newImage(sourceID int64, fp string) *Image {
	return &Image{
		SourceURLID:    sourceID,
		ImageURL:       "https://cdn.example.org/" + fp + ".jpg",
		Fingerprint:    fp,
		PerceptualHash: "d:00ff00ff00ff00ff",
		FilePath:       "/tmp/" + fp + ".jpg",
		FileSize:       12345,
		Width:          800,
		Height:         1000,
		IsRelevant:     true,
		RelevanceScore: 0.85,
		ContentType:    "portrait_photo",
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "picharvest.db")

	s1, err := Open(path)
	require.NoError(t, err)
	v1, err := s1.AppliedMigrations()
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	v2, err := s2.AppliedMigrations()
	require.NoError(t, err)

	assert.Equal(t, []int{1}, v1)
	assert.Equal(t, v1, v2)
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.CreateSession(ctx, "ada lovelace")
	require.NoError(t, err)
	require.NoError(t, s.SetSessionTotal(ctx, id, 42))

	sess, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ada lovelace", sess.Query)
	assert.Equal(t, 42, sess.TotalURLs)
	assert.False(t, sess.CreatedAt.IsZero())

	_, err = s.GetSession(ctx, id+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreURLsDeduplicatesWithinSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sid, err := s.CreateSession(ctx, "q")
	require.NoError(t, err)

	first, err := s.StoreURLs(ctx, sid, []string{
		"https://a.example.org/1",
		"https://B.example.org/2",
		"https://a.example.org/1",
	})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "https://a.example.org/1", first[0].URL)
	assert.Equal(t, "b.example.org", first[1].Domain)

	// a later admission of a visited URL does not resurrect it
	changed, err := s.MarkVisited(ctx, first[0].ID, 3, "")
	require.NoError(t, err)
	assert.True(t, changed)

	again, err := s.StoreURLs(ctx, sid, []string{"https://a.example.org/1", "https://c.example.org/3"})
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "https://c.example.org/3", again[0].URL)

	// another session may hold the same URL
	other, err := s.CreateSession(ctx, "q2")
	require.NoError(t, err)
	fresh, err := s.StoreURLs(ctx, other, []string{"https://a.example.org/1"})
	require.NoError(t, err)
	assert.Len(t, fresh, 1)
}

func TestMarkVisitedTransitionsOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sid, _ := s.CreateSession(ctx, "q")
	urls, err := s.StoreURLs(ctx, sid, []string{"https://a.example.org/page"})
	require.NoError(t, err)
	id := urls[0].ID

	changed, err := s.MarkVisited(ctx, id, 0, "navigation timeout")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.MarkVisited(ctx, id, 9, "")
	require.NoError(t, err)
	assert.False(t, changed)

	su, err := s.GetURL(ctx, id)
	require.NoError(t, err)
	assert.True(t, su.Visited)
	assert.Equal(t, 0, su.ImagesFound)
	assert.Equal(t, "navigation timeout", su.Error)
}

func TestUnvisitedURLs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sid, _ := s.CreateSession(ctx, "q")
	var urls []string
	for i := 0; i < 5; i++ {
		urls = append(urls, fmt.Sprintf("https://site%d.example.org/", i))
	}
	rows, err := s.StoreURLs(ctx, sid, urls)
	require.NoError(t, err)
	_, err = s.MarkVisited(ctx, rows[1].ID, 1, "")
	require.NoError(t, err)

	pending, err := s.UnvisitedURLs(ctx, sid, 3)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, rows[0].ID, pending[0].ID)
	assert.Equal(t, rows[2].ID, pending[1].ID)
	assert.Equal(t, rows[3].ID, pending[2].ID)

	all, err := s.UnvisitedURLs(ctx, sid, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestStoreImageEnforcesGlobalFingerprintUniqueness(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s1, _ := s.CreateSession(ctx, "first run")
	u1, _ := s.StoreURLs(ctx, s1, []string{"https://a.example.org/"})
	s2, _ := s.CreateSession(ctx, "second run")
	u2, _ := s.StoreURLs(ctx, s2, []string{"https://b.example.org/"})

	id, err := s.StoreImage(ctx, newImage(u1[0].ID, "abc"))
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = s.StoreImage(ctx, newImage(u2[0].ID, "abc"))
	assert.ErrorIs(t, err, ErrDuplicate)

	has, err := s.HasFingerprint(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, has)
	has, err = s.HasFingerprint(ctx, "zzz")
	require.NoError(t, err)
	assert.False(t, has)

	fps, err := s.Fingerprints(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, fps)

	imgs, err := s.ImagesForURL(ctx, u1[0].ID)
	require.NoError(t, err)
	require.Len(t, imgs, 1)
	assert.True(t, imgs[0].IsRelevant)
	assert.Equal(t, "portrait_photo", imgs[0].ContentType)
	assert.InDelta(t, 0.85, imgs[0].RelevanceScore, 1e-9)
}

func TestConcurrentStoreImageSameFingerprint(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sid, _ := s.CreateSession(ctx, "q")
	urls, _ := s.StoreURLs(ctx, sid, []string{"https://a.example.org/", "https://b.example.org/"})

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, u := range urls {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := s.StoreImage(ctx, newImage(id, "same"))
			results <- err
		}(u.ID)
	}
	wg.Wait()
	close(results)

	var ok, dup int
	for err := range results {
		switch err {
		case nil:
			ok++
		case ErrDuplicate:
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, dup)
}

func TestDeleteSessionCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sid, _ := s.CreateSession(ctx, "q")
	urls, _ := s.StoreURLs(ctx, sid, []string{"https://a.example.org/"})
	_, err := s.StoreImage(ctx, newImage(urls[0].ID, "gone"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteSession(ctx, sid))

	has, err := s.HasFingerprint(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, has)
	_, err = s.GetURL(ctx, urls[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteSession(ctx, sid), ErrNotFound)
}

func TestStatsAndRecentSessions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sid, _ := s.CreateSession(ctx, "ada lovelace")
	urls, _ := s.StoreURLs(ctx, sid, []string{
		"https://upload.wikimedia.org/a",
		"https://upload.wikimedia.org/b",
		"https://broken.example.org/",
	})
	_, _ = s.MarkVisited(ctx, urls[0].ID, 2, "")
	_, _ = s.MarkVisited(ctx, urls[2].ID, 0, "status 500")
	_, err := s.StoreImage(ctx, newImage(urls[0].ID, "f1"))
	require.NoError(t, err)
	_, err = s.StoreImage(ctx, newImage(urls[0].ID, "f2"))
	require.NoError(t, err)

	st, err := s.Stats(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Sessions)
	assert.Equal(t, 3, st.URLs)
	assert.Equal(t, 2, st.Visited)
	assert.Equal(t, 1, st.Errored)
	assert.Equal(t, 2, st.Images)
	assert.Equal(t, int64(24690), st.Bytes)
	require.NotEmpty(t, st.TopDomains)
	assert.Equal(t, DomainYield{Domain: "upload.wikimedia.org", URLs: 2, Images: 2}, st.TopDomains[0])

	recent, err := s.RecentSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "ada lovelace", recent[0].Query)
	assert.Equal(t, 2, recent[0].Visited)
	assert.Equal(t, 2, recent[0].Images)

	hashes, err := s.PerceptualHashes(ctx)
	require.NoError(t, err)
	assert.Len(t, hashes, 2)
}

func TestIsBusy(t *testing.T) {
	assert.True(t, IsBusy(fmt.Errorf("exec: database is locked (5) (SQLITE_BUSY)")))
	assert.False(t, IsBusy(fmt.Errorf("UNIQUE constraint failed")))
	assert.False(t, IsBusy(nil))
}
