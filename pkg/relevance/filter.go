package relevance

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"

	errs "picharvest/pkg/errors"
	"picharvest/pkg/logger"
)

// DefaultThreshold is the score an image needs to be kept
const DefaultThreshold = 0.4

// Input is one fetched image to be scored
type Input struct {
	Image    image.Image
	ImageURL string
	Query    string
	// Copyright is the embedded copyright or credit line, if any
	Copyright string
}

// Assessment is the outcome of scoring one image
type Assessment struct {
	Score          float64
	Relevant       bool
	ContentType    ContentType
	Faces          int
	FaceConfidence float64
	AspectRatio    float64
	IsPortrait     bool
	Reasons        []string
}

// Filter decides which images are worth keeping for a person search.
// Prefilter looks only at the URL; Score needs the decoded image.
type Filter struct {
	detector  FaceDetector
	threshold float64
	logger    logger.Logger
}

// NewFilter creates a filter. A nil detector makes every Score a
// classification failure, which callers treat as accept.
func NewFilter(detector FaceDetector, threshold float64, l logger.Logger) *Filter {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if l == nil {
		l = logger.GetLogger()
	}
	return &Filter{detector: detector, threshold: threshold, logger: l}
}

// Threshold returns the acceptance score
func (f *Filter) Threshold() float64 {
	return f.threshold
}

// Prefilter reports whether an image URL may be relevant. False means the
// URL is page furniture or a tiny rendition and must not be fetched.
func (f *Filter) Prefilter(imageURL string) bool {
	return !matchesAny(quickRejectPatterns, strings.ToLower(imageURL))
}

// Score analyses a fetched image. On a classification failure it returns
// the partial assessment together with a classification error.
func (f *Filter) Score(ctx context.Context, in Input) (Assessment, error) {
	if in.Image == nil {
		return Assessment{ContentType: Unclassified}, errs.NewClassification("no image data", nil)
	}

	b := in.Image.Bounds()
	a := Assessment{}
	if b.Dy() > 0 {
		a.AspectRatio = float64(b.Dx()) / float64(b.Dy())
	}
	a.IsPortrait = IsPortraitAspect(a.AspectRatio)

	if f.detector == nil {
		a.ContentType = Unclassified
		return a, errs.NewClassification("no face detector configured", nil)
	}

	faces, err := f.detector.Detect(ctx, in.Image)
	if err != nil {
		a.ContentType = Unclassified
		return a, errs.NewClassification("face detection failed", err)
	}

	a.Faces = len(faces)
	if a.Faces > 0 {
		var sum float64
		for _, face := range faces {
			sum += face.Confidence
		}
		a.FaceConfidence = sum / float64(a.Faces)
		a.Reasons = append(a.Reasons, fmt.Sprintf("%d face(s), avg confidence %.2f", a.Faces, a.FaceConfidence))
	}

	a.ContentType = ClassifyContent(in.ImageURL, a.Faces > 0, a.AspectRatio)
	a.Score, a.Reasons = score(a, in.ImageURL, a.Reasons)
	if in.Copyright != "" && isStockCredit(in.Copyright) {
		a.Reasons = append(a.Reasons, "stock agency credit: "+in.Copyright)
	}
	a.Relevant = a.Score >= f.threshold

	f.logger.DebugWithFields("Image scored", map[string]interface{}{
		"image_url":    in.ImageURL,
		"score":        a.Score,
		"relevant":     a.Relevant,
		"content_type": string(a.ContentType),
		"faces":        a.Faces,
		"reasons":      a.Reasons,
	})
	return a, nil
}

// score combines the face, shape, category and URL signals into [0,1]
func score(a Assessment, imageURL string, reasons []string) (float64, []string) {
	s := 0.0
	add := func(delta float64, why string) {
		s += delta
		reasons = append(reasons, fmt.Sprintf("%s: %+.2f", why, delta))
	}

	if a.Faces > 0 {
		add(math.Min(0.6, a.FaceConfidence*0.6), "face detection")
		if a.Faces == 1 {
			add(0.2, "single face")
		}
	} else {
		add(-0.3, "no faces")
	}

	if a.IsPortrait {
		add(0.15, "portrait orientation")
	}

	switch a.ContentType {
	case PortraitPhoto:
		add(0.25, "portrait photo")
	case MusicArtistPhoto:
		add(0.2, "music artist photo")
	case GroupPhoto:
		add(0.1, "group photo")
	case MusicArtwork, CDNMedia, IrrelevantUI:
		add(-0.4, string(a.ContentType))
	}

	if IsIrrelevantURL(imageURL) {
		add(-0.3, "irrelevant url pattern")
	}

	if w, h, ok := URLDimensions(imageURL); ok {
		switch {
		case w < 150 || h < 150:
			add(-0.2, "small dimensions in url")
		case w >= 400 && h >= 400:
			add(0.1, "large dimensions in url")
		}
	}

	return math.Max(0, math.Min(1, s)), reasons
}

var stockAgencies = []string{
	"getty", "shutterstock", "alamy", "istock", "dreamstime",
	"depositphotos", "123rf", "adobe stock", "wireimage",
}

func isStockCredit(credit string) bool {
	lower := strings.ToLower(credit)
	for _, a := range stockAgencies {
		if strings.Contains(lower, a) {
			return true
		}
	}
	return false
}
