package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"picharvest/pkg/fetch"
	"picharvest/pkg/logger"
	"picharvest/pkg/store"
	"picharvest/pkg/ui"
)

var dupeDistance int

var dupesCmd = &cobra.Command{
	Use:   "dupes",
	Short: "Report stored images that look alike",
	Long: `Report pairs of stored images whose perceptual hashes differ in at most
--distance bits. Exact duplicates never reach the database; this finds
resized, recompressed or lightly edited copies of the same picture.`,
	Args: cobra.NoArgs,
	RunE: runDupes,
}

func init() {
	rootCmd.AddCommand(dupesCmd)
	dupesCmd.Flags().IntVar(&dupeDistance, "distance", 10, "maximum Hamming distance between hashes")
}

// NearPair is two stored images with similar perceptual hashes
type NearPair struct {
	A, B     store.HashedImage
	Distance int
}

// findNearDuplicates compares every pair of hashes. Hashes that fail to
// parse are skipped.
func findNearDuplicates(images []store.HashedImage, maxDistance int, log logger.Logger) []NearPair {
	var pairs []NearPair
	for i := 0; i < len(images); i++ {
		for j := i + 1; j < len(images); j++ {
			d, err := fetch.HashDistance(images[i].Hash, images[j].Hash)
			if err != nil {
				log.WithError(err).DebugWithFields("Skipping unparsable hash pair", map[string]interface{}{
					"a": images[i].ID,
					"b": images[j].ID,
				})
				continue
			}
			if d <= maxDistance {
				pairs = append(pairs, NearPair{A: images[i], B: images[j], Distance: d})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Distance < pairs[j].Distance })
	return pairs
}

func runDupes(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	images, err := st.PerceptualHashes(context.Background())
	if err != nil {
		return err
	}

	pairs := findNearDuplicates(images, dupeDistance, logger.GetLogger())
	if len(pairs) == 0 {
		ui.PrintSuccess(fmt.Sprintf("No near-duplicates among %d images", len(images)))
		return nil
	}

	ui.PrintHighlight(fmt.Sprintf("%d near-duplicate pairs among %d images", len(pairs), len(images)))
	for _, p := range pairs {
		fmt.Printf("%s %s\n    %s\n", ui.Yellow(fmt.Sprintf("[%2d]", p.Distance)), p.A.FilePath, p.B.FilePath)
	}
	return nil
}
