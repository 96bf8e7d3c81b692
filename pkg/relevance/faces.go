package relevance

import (
	"context"
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
)

// Face is one detected face. Confidence is in [0,1].
type Face struct {
	Row, Col, Size int
	Confidence     float64
}

// FaceDetector finds faces in a decoded image
type FaceDetector interface {
	Detect(ctx context.Context, img image.Image) ([]Face, error)
}

// PigoDetector detects faces with a pigo cascade
type PigoDetector struct {
	classifier *pigo.Pigo
	minSize    int
	// minQuality drops weak detections; pigo's own examples use 5
	minQuality float32
}

// NewPigoDetector loads the facefinder cascade at path
func NewPigoDetector(path string) (*PigoDetector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading face cascade: %w", err)
	}
	return NewPigoDetectorFromBytes(data)
}

// NewPigoDetectorFromBytes unpacks a cascade already in memory
func NewPigoDetectorFromBytes(cascade []byte) (*PigoDetector, error) {
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpacking face cascade: %w", err)
	}
	return &PigoDetector{classifier: classifier, minSize: 30, minQuality: 5}, nil
}

// Detect runs the cascade over a grayscale copy of img
func (d *PigoDetector) Detect(ctx context.Context, img image.Image) ([]Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := pigo.ImgToNRGBA(img)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()
	if cols == 0 || rows == 0 {
		return nil, fmt.Errorf("empty image")
	}

	params := pigo.CascadeParams{
		MinSize:     d.minSize,
		MaxSize:     max(cols, rows),
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(src),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, 0.2)

	var faces []Face
	for _, det := range dets {
		if det.Q < d.minQuality {
			continue
		}
		q := float64(det.Q)
		faces = append(faces, Face{
			Row:        det.Row,
			Col:        det.Col,
			Size:       det.Scale,
			Confidence: q / (q + 5),
		})
	}
	return faces, nil
}
