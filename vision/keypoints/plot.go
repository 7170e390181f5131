package keypoints

import (
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// PlotConfig controls how matches are drawn.
type PlotConfig struct {
	Width, Height int
	// NewMatchesFrom is the index of the first new match. New matches are drawn in distinct colors,
	// earlier ones in gray.
	NewMatchesFrom int
}

// PlotMatches draws the two images' keypoints side by side, joins matched keypoints with a line, and
// writes the result as a PNG to outName.
func PlotMatches(kps1, kps2 []r2.Point, matches []IndexedFeatureMatch, cfg PlotConfig, outName string) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return errors.Errorf("invalid plot size (%d, %d)", cfg.Width, cfg.Height)
	}
	matched1, matched2, err := GetMatchingKeyPoints(matches, kps1, kps2)
	if err != nil {
		return err
	}
	w, h := cfg.Width, cfg.Height
	offset := float64(w)

	dc := gg.NewContext(2*w, h)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetColor(color.Gray{Y: 128})
	dc.DrawLine(offset, 0, offset, float64(h))
	dc.Stroke()

	// draw keypoints
	dc.SetRGBA(0, 0, 1, 0.5)
	for _, p := range kps1 {
		dc.DrawCircle(p.X, p.Y, 3.0)
		dc.Fill()
	}
	for _, p := range kps2 {
		dc.DrawCircle(p.X+offset, p.Y, 3.0)
		dc.Fill()
	}

	// draw matches; new ones get hues spread over the color wheel
	dc.SetLineWidth(1)
	numNew := len(matches) - cfg.NewMatchesFrom
	for i := range matches {
		if k := i - cfg.NewMatchesFrom; k >= 0 {
			dc.SetColor(colorful.Hsv(360*float64(k)/float64(numNew), 0.9, 0.9))
		} else {
			dc.SetRGB(0.5, 0.5, 0.5)
		}
		dc.DrawLine(matched1[i].X, matched1[i].Y, matched2[i].X+offset, matched2[i].Y)
		dc.Stroke()
	}
	return dc.SavePNG(outName)
}
