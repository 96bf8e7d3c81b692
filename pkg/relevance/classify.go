package relevance

// ContentType is the coarse category an image is sorted into
type ContentType string

const (
	MusicArtistPhoto ContentType = "music_artist_photo"
	MusicArtwork     ContentType = "music_artwork"
	CDNPersonPhoto   ContentType = "cdn_person_photo"
	CDNMedia         ContentType = "cdn_media"
	IrrelevantUI     ContentType = "irrelevant_ui"
	PortraitPhoto    ContentType = "portrait_photo"
	GroupPhoto       ContentType = "group_photo"
	UnknownContent   ContentType = "unknown_content"
	// Unclassified marks images accepted without content analysis
	Unclassified ContentType = "unclassified"
)

// portrait aspect band, width over height
const (
	portraitMinAspect = 0.7
	portraitMaxAspect = 1.4
)

// IsPortraitAspect reports whether width/height falls in the portrait band
func IsPortraitAspect(aspect float64) bool {
	return aspect >= portraitMinAspect && aspect <= portraitMaxAspect
}

// ClassifyContent sorts an image by where it is hosted and what was found in it.
// Hosting wins over content: a face on a music service is still music content.
func ClassifyContent(imageURL string, hasFaces bool, aspect float64) ContentType {
	switch {
	case IsMusicDomain(imageURL):
		if hasFaces {
			return MusicArtistPhoto
		}
		return MusicArtwork
	case IsCDN(imageURL):
		if hasFaces {
			return CDNPersonPhoto
		}
		return CDNMedia
	case IsIrrelevantURL(imageURL):
		return IrrelevantUI
	case hasFaces && IsPortraitAspect(aspect):
		return PortraitPhoto
	case hasFaces:
		return GroupPhoto
	default:
		return UnknownContent
	}
}
