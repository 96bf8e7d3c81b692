package fetch

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"github.com/corona10/goimagehash"
	"golang.org/x/crypto/blake2b"
	_ "golang.org/x/image/webp"

	errs "picharvest/pkg/errors"
)

// Limits are the acceptance bounds for a downloaded image
type Limits struct {
	MinWidth    int
	MinHeight   int
	MinBytes    int64
	MaxBytes    int64
	MaxPixels   int64 // zero means unbounded
	JPEGQuality int
}

// Image is a validated picture in its final, re-encoded form
type Image struct {
	Data           []byte
	Format         string // png or jpeg
	Ext            string
	SourceFormat   string
	Width          int
	Height         int
	Fingerprint    string
	PerceptualHash string
	Decoded        image.Image
	Meta           *Metadata
}

// AspectRatio is width over height
func (i *Image) AspectRatio() float64 {
	if i.Height == 0 {
		return 0
	}
	return float64(i.Width) / float64(i.Height)
}

// Normalize validates raw bytes and re-encodes them. PNG stays PNG so
// transparency survives; everything else becomes JPEG. The fingerprint is
// taken over the re-encoded bytes so format variants of one picture collide.
func Normalize(data []byte, lim Limits) (*Image, error) {
	if int64(len(data)) < lim.MinBytes {
		return nil, errs.NewValidation(fmt.Sprintf("image too small: %d bytes", len(data)), nil)
	}
	if lim.MaxBytes > 0 && int64(len(data)) > lim.MaxBytes {
		return nil, errs.NewValidation(fmt.Sprintf("image too large: %d bytes", len(data)), nil)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errs.NewValidation("unrecognised image data", err)
	}
	// orientation may swap the sides, so check the short side against both
	if min(cfg.Width, cfg.Height) < min(lim.MinWidth, lim.MinHeight) ||
		max(cfg.Width, cfg.Height) < max(lim.MinWidth, lim.MinHeight) {
		return nil, errs.NewValidation(fmt.Sprintf("image too small: %dx%d", cfg.Width, cfg.Height), nil)
	}
	// the header is checked before decoding so a tiny file cannot claim a huge canvas
	if lim.MaxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > lim.MaxPixels {
		return nil, errs.NewValidation(fmt.Sprintf("image too large: %dx%d pixels", cfg.Width, cfg.Height), nil)
	}

	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errs.NewValidation("corrupt image data", err)
	}

	meta := ReadMetadata(data)
	if meta != nil && meta.Orientation > 1 {
		decoded = applyOrientation(decoded, meta.Orientation)
	}

	b := decoded.Bounds()
	if b.Dx() < lim.MinWidth || b.Dy() < lim.MinHeight {
		return nil, errs.NewValidation(fmt.Sprintf("image too small: %dx%d", b.Dx(), b.Dy()), nil)
	}

	out := &Image{
		SourceFormat: format,
		Width:        b.Dx(),
		Height:       b.Dy(),
		Decoded:      decoded,
		Meta:         meta,
	}

	var buf bytes.Buffer
	if format == "png" {
		err = png.Encode(&buf, decoded)
		out.Format, out.Ext = "png", "png"
	} else {
		q := lim.JPEGQuality
		if q <= 0 || q > 100 {
			q = 95
		}
		err = jpeg.Encode(&buf, decoded, &jpeg.Options{Quality: q})
		out.Format, out.Ext = "jpeg", "jpg"
	}
	if err != nil {
		return nil, errs.NewValidation("re-encoding image", err)
	}
	out.Data = buf.Bytes()
	out.Fingerprint = Fingerprint(out.Data)

	if h, err := goimagehash.DifferenceHash(decoded); err == nil {
		out.PerceptualHash = h.ToString()
	}
	return out, nil
}

// Fingerprint is the hex blake2b-256 digest of data
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashDistance is the Hamming distance between two stored perceptual hashes
func HashDistance(a, b string) (int, error) {
	ha, err := goimagehash.ImageHashFromString(a)
	if err != nil {
		return 0, fmt.Errorf("parsing hash %q: %w", a, err)
	}
	hb, err := goimagehash.ImageHashFromString(b)
	if err != nil {
		return 0, fmt.Errorf("parsing hash %q: %w", b, err)
	}
	return ha.Distance(hb)
}
