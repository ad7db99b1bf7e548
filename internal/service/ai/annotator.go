package ai

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"camwatch/internal/model"
)

// Annotator draws detection boxes on JPEG frames.
type Annotator struct {
	color     color.RGBA
	thickness int
}

func NewAnnotator() *Annotator {
	return &Annotator{color: color.RGBA{R: 255, G: 0, B: 0, A: 0}, thickness: 2}
}

// Annotate draws the detections on the frame and returns the re-encoded JPEG.
func (a *Annotator) Annotate(frame model.Frame, detections []model.RawDetection) ([]byte, error) {
	mat, err := gocv.IMDecode(frame.Data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	for _, d := range detections {
		r := d.Region
		rect := image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
		if err := gocv.Rectangle(&mat, rect, a.color, a.thickness); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %w", err)
		}

		label := fmt.Sprintf("%s (%.2f)", d.Class, d.Confidence)
		pt := image.Pt(r.X, max(r.Y-5, 10))
		if err := gocv.PutText(&mat, label, pt, gocv.FontHersheySimplex, 0.5, a.color, 1); err != nil {
			return nil, fmt.Errorf("failed to draw text: %w", err)
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()
	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
