package strategy

import (
	"strings"
	"unicode"

	"picharvest/pkg/config"
)

// DefaultQualifiers is the contextual vocabulary appended to a person query
var DefaultQualifiers = []string{
	"singer", "artist", "photos", "pictures", "portrait", "red carpet",
	"movie", "actress", "celebrity", "professional", "award",
	"fashion", "beauty", "style",
}

// ScriptQualifier holds the qualifiers used for queries written in one script
type ScriptQualifier struct {
	Script *unicode.RangeTable
	Terms  []string
}

// ScriptQualifiers are tried in order; the first script found in the
// query contributes its terms ahead of the default vocabulary
var ScriptQualifiers = []ScriptQualifier{
	{unicode.Hebrew, []string{"זמר", "תמונות"}},
	{unicode.Arabic, []string{"مغني", "صور"}},
	{unicode.Cyrillic, []string{"певец", "фото"}},
	{unicode.Greek, []string{"τραγουδιστής", "φωτογραφίες"}},
	{unicode.Hangul, []string{"가수", "사진"}},
	{unicode.Han, []string{"歌手", "照片"}},
}

// Strategy decides when a run should widen its search and how
type Strategy struct {
	tiers         config.TierConfig
	maxVariations int
}

// New creates a Strategy from the tier table and the variation budget
func New(tiers config.TierConfig, maxVariations int) *Strategy {
	return &Strategy{tiers: tiers, maxVariations: maxVariations}
}

// Threshold returns the shortfall a target must exceed before variations run
func (s *Strategy) Threshold(target int) int {
	return s.tiers.For(target).VariationThreshold
}

// ShouldGenerateVariations reports whether the shortfall exceeds the tier threshold
func (s *Strategy) ShouldGenerateVariations(current, target int) bool {
	return target-current > s.Threshold(target)
}

// GenerateVariations derives up to maxVariations queries from base.
// Qualifiers already present in base are skipped; order follows the vocabulary.
func (s *Strategy) GenerateVariations(base string) []string {
	base = strings.TrimSpace(base)
	if base == "" || s.maxVariations <= 0 {
		return nil
	}

	vocab := DefaultQualifiers
	if local := localQualifiers(base); len(local) > 0 {
		vocab = append(append([]string(nil), local...), DefaultQualifiers...)
	}

	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(base)) {
		words[w] = true
	}
	lowered := strings.ToLower(base)

	var out []string
	for _, q := range vocab {
		if len(out) == s.maxVariations {
			break
		}
		if strings.Contains(q, " ") {
			if strings.Contains(lowered, q) {
				continue
			}
		} else if words[q] {
			continue
		}
		out = append(out, base+" "+q)
	}
	return out
}

// localQualifiers returns the terms of the first known script in s.
// Latin and unlisted scripts get none.
func localQualifiers(s string) []string {
	for _, r := range s {
		if r < unicode.MaxASCII {
			continue
		}
		for _, sq := range ScriptQualifiers {
			if unicode.Is(sq.Script, r) {
				return sq.Terms
			}
		}
	}
	return nil
}
