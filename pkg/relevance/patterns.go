package relevance

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// musicDomains host artwork far more often than photos of the artist
var musicDomains = []string{
	"genius.com", "spotify.com", "apple.com", "music.apple.com",
	"deezer.com", "soundcloud.com", "last.fm", "shazam.com",
	"amazon.com", "bandcamp.com", "discogs.com",
}

var cdnPatterns = compileAll(
	`cdn[-_]?images?`, `i\.ytimg`, `mzstatic`, `cloudfront`,
	`amazonaws`, `googleusercontent`, `fbcdn`, `cdninstagram`,
)

var irrelevantPatterns = compileAll(
	// page furniture
	`logo`, `icon`, `favicon`, `sprite`, `button`, `arrow`, `nav`,
	`menu`, `header`, `footer`, `sidebar`, `banner`, `ad[_-]`,
	`placeholder`, `loading`, `spinner`, `blank`, `default`,

	// record artwork
	`album[-_]?cover`, `artwork`, `vinyl`, `cd[-_]?cover`,
	`playlist`, `track[-_]?art`, `single[-_]?cover`,

	`thumbnail`, `thumb`, `preview`, `watermark`,
	`background`, `bg[-_]?image`, `pattern`, `texture`,

	// explicit small pixel sizes
	`(?:^|[/_-])(?:16|24|32|48|64|96|128)(?:x(?:16|24|32|48|64|96|128))?(?:[/_-]|$)`,

	`wikipedia.*logo`, `wikimedia.*logo`, `commons.*logo`,
)

// quickRejectPatterns run before any fetch and must stay conservative
var quickRejectPatterns = compileAll(
	`logo`, `icon`, `favicon`, `sprite`, `button`,
	`(?:^|[/_-])(?:16|24|32|48|64|96)(?:x(?:16|24|32|48|64|96))?(?:[/_-]|$)`,
	`ad[_-]`, `banner`, `header`, `footer`,
	`(?:^|[/_.-])(?:nav|menu)(?:[/_.-]|$)`,
)

var dimensionToken = regexp.MustCompile(`(\d+)x(\d+)`)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// IsIrrelevantURL reports whether the URL text looks like page furniture,
// record artwork or a tiny rendition
func IsIrrelevantURL(imageURL string) bool {
	return matchesAny(irrelevantPatterns, strings.ToLower(imageURL))
}

// IsMusicDomain reports whether the image is hosted by a music service
func IsMusicDomain(imageURL string) bool {
	host := hostOf(imageURL)
	for _, d := range musicDomains {
		if strings.Contains(host, d) {
			return true
		}
	}
	return false
}

// IsCDN reports whether the URL points at a generic media CDN
func IsCDN(imageURL string) bool {
	return matchesAny(cdnPatterns, strings.ToLower(imageURL))
}

// URLDimensions returns the first WxH token in the URL, if any
func URLDimensions(imageURL string) (w, h int, ok bool) {
	m := dimensionToken.FindStringSubmatch(strings.ToLower(imageURL))
	if m == nil {
		return 0, 0, false
	}
	w, errW := strconv.Atoi(m[1])
	h, errH := strconv.Atoi(m[2])
	if errW != nil || errH != nil {
		return 0, 0, false
	}
	return w, h, true
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
