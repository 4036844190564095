package ui

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"golang.org/x/image/draw"
)

// screenshotScaled writes the current framebuffer to a PNG at path, scaled
// up by factor using a Catmull-Rom resampler (nearest-neighbor would
// alias the Game Boy's 160x144 grid badly at non-integer or large factors;
// ebiten's own GeoM scaling, used for the live window, is integer-only).
func screenshotScaled(fb []byte, factor int, path string) error {
	if factor < 1 {
		factor = 1
	}
	src := &image.RGBA{
		Pix:    fb,
		Stride: 4 * 160,
		Rect:   image.Rect(0, 0, 160, 144),
	}
	dst := image.NewRGBA(image.Rect(0, 0, 160*factor, 144*factor))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, dst)
}

// saveScreenshot writes a timestamped, upscaled PNG of the current frame
// next to the working directory.
func (a *App) saveScreenshot() error {
	ts := time.Now().Format("20060102_150405")
	name := fmt.Sprintf("screenshot_%s.png", ts)
	return screenshotScaled(a.m.VideoBuffer(), a.cfg.Scale, name)
}
