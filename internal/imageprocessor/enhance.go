package imageprocessor

import (
	"image"
	"image/color"
)

const (
	enhanceContrast   = 1.2
	enhanceBrightness = 1.1
	enhanceSaturation = 1.3
)

// Enhance applies contrast, brightness and saturation boosts in that order,
// following the CSS filter function definitions.
func Enhance(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			r, g, bl := float64(c.R)/255, float64(c.G)/255, float64(c.B)/255

			r, g, bl = contrast(r), contrast(g), contrast(bl)
			r, g, bl = clamp01(r*enhanceBrightness), clamp01(g*enhanceBrightness), clamp01(bl*enhanceBrightness)
			r, g, bl = saturate(r, g, bl, enhanceSaturation)

			dst.SetNRGBA(x, y, color.NRGBA{R: to8(r), G: to8(g), B: to8(bl), A: c.A})
		}
	}
	return dst
}

func contrast(v float64) float64 {
	return clamp01((v-0.5)*enhanceContrast + 0.5)
}

func saturate(r, g, b, s float64) (float64, float64, float64) {
	nr := (0.213+0.787*s)*r + (0.715-0.715*s)*g + (0.072-0.072*s)*b
	ng := (0.213-0.213*s)*r + (0.715+0.285*s)*g + (0.072-0.072*s)*b
	nb := (0.213-0.213*s)*r + (0.715-0.715*s)*g + (0.072+0.928*s)*b
	return clamp01(nr), clamp01(ng), clamp01(nb)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func to8(v float64) uint8 {
	return uint8(v*255 + 0.5)
}
