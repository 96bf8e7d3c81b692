package storage

import (
	"regexp"
	"strings"
)

// modifierWords describe the kind of picture rather than who is in it
var modifierWords = map[string]bool{
	"photos": true, "pictures": true, "images": true, "pics": true,
	"fashion": true, "style": true, "outfit": true, "dress": true, "clothes": true,
	"concert": true, "performance": true, "stage": true, "live": true,
	"red": true, "carpet": true, "photoshoot": true, "magazine": true,
	"glamour": true, "beauty": true, "portrait": true, "singer": true,
	"music": true, "eurovision": true, "israel": true, "unicorn": true,
}

var unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// SubjectName maps a query to its consolidated folder name, so "Ada Lovelace
// portrait" and "ada lovelace photos" share one folder (ada_lovelace).
func SubjectName(query string) string {
	var kept []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = unsafeChars.ReplaceAllString(w, "")
		if w == "" || modifierWords[w] {
			continue
		}
		kept = append(kept, w)
		if len(kept) == 2 {
			break
		}
	}
	if len(kept) == 0 {
		// everything was a modifier; fall back to the sanitised query
		s := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(query), "_"), "_")
		if s == "" {
			return "unnamed"
		}
		return s
	}
	return strings.Join(kept, "_")
}
