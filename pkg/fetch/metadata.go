package fetch

import (
	"bytes"

	"github.com/bep/imagemeta"
)

// Metadata is the subset of embedded image metadata picharvest uses
type Metadata struct {
	// Orientation is the EXIF orientation (1 to 8); 0 when absent
	Orientation int
	Copyright   string
	Artist      string
	Credit      string
}

var wantedTags = map[imagemeta.Source]map[string]bool{
	imagemeta.EXIF: {
		"Orientation": true,
		"Copyright":   true,
		"Artist":      true,
	},
	imagemeta.IPTC: {
		"CopyrightNotice": true,
		"Credit":          true,
		"Byline":          true,
	},
}

// ReadMetadata parses EXIF and IPTC tags from raw image bytes. It returns
// nil when nothing useful is present; parse failures are not errors.
func ReadMetadata(data []byte) *Metadata {
	if len(data) == 0 {
		return nil
	}

	meta := &Metadata{}
	found := false

	_, err := imagemeta.Decode(imagemeta.Options{
		R:       bytes.NewReader(data),
		Sources: imagemeta.EXIF | imagemeta.IPTC,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return wantedTags[ti.Source][ti.Tag]
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			switch ti.Tag {
			case "Orientation":
				if o := tagInt(ti.Value); o >= 1 && o <= 8 {
					meta.Orientation = o
					found = true
				}
			case "Copyright", "CopyrightNotice":
				if s := tagString(ti.Value); s != "" && meta.Copyright == "" {
					meta.Copyright = s
					found = true
				}
			case "Artist", "Byline":
				if s := tagString(ti.Value); s != "" && meta.Artist == "" {
					meta.Artist = s
					found = true
				}
			case "Credit":
				if s := tagString(ti.Value); s != "" {
					meta.Credit = s
					found = true
				}
			}
			return nil
		},
	})
	if err != nil || !found {
		return nil
	}
	return meta
}

func tagString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		if len(val) > 0 {
			return val[0]
		}
	case []any:
		if len(val) > 0 {
			if s, ok := val[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

func tagInt(v any) int {
	switch val := v.(type) {
	case int:
		return val
	case uint16:
		return int(val)
	case uint32:
		return int(val)
	case int64:
		return int(val)
	case uint64:
		return int(val)
	case []uint16:
		if len(val) > 0 {
			return int(val[0])
		}
	case []any:
		if len(val) > 0 {
			return tagInt(val[0])
		}
	}
	return 0
}
