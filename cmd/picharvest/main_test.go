package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picharvest/pkg/config"
	"picharvest/pkg/logger"
	"picharvest/pkg/store"
)

func TestFindNearDuplicates(t *testing.T) {
	images := []store.HashedImage{
		{ID: 1, FilePath: "a/0001.jpg", Hash: "d:0000000000000000"},
		{ID: 2, FilePath: "a/0002.jpg", Hash: "d:ffffffffffffffff"},
		{ID: 3, FilePath: "b/0001.jpg", Hash: "d:0000000000000003"},
		{ID: 4, FilePath: "b/0002.jpg", Hash: "garbage"},
		{ID: 5, FilePath: "c/0001.jpg", Hash: "d:0000000000000001"},
	}

	pairs := findNearDuplicates(images, 2, logger.NewNopLogger())
	require.Len(t, pairs, 3)
	assert.Equal(t, 1, pairs[0].Distance)
	assert.ElementsMatch(t, []int64{1, 5}, []int64{pairs[0].A.ID, pairs[0].B.ID})

	for _, p := range pairs {
		assert.NotEqual(t, int64(2), p.A.ID)
		assert.NotEqual(t, int64(2), p.B.ID)
		assert.LessOrEqual(t, p.Distance, 2)
	}
}

func TestSearchAccount(t *testing.T) {
	assert.Equal(t, "me", searchAccount(config.SearchConfig{Account: "me", SearxngURL: "https://searx.example.org"}))
	assert.Equal(t, "searx.example.org", searchAccount(config.SearchConfig{SearxngURL: "https://searx.example.org:8443/"}))
	assert.Equal(t, "", searchToken(config.SearchConfig{Provider: "google"}))
}

func TestRunRequiresQuery(t *testing.T) {
	err := runCmd.Args(runCmd, nil)
	assert.Error(t, err)

	err = runHarvest(runCmd, []string{"   "})
	assert.EqualError(t, err, "query must not be empty")
}
