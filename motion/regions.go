package motion

import (
	"image"

	"github.com/disintegration/gift"
	"github.com/harrydb/go/img/grayscale"
	"github.com/lucasb-eyer/go-colorful"
)

// DefaultRegionBlur is the gaussian sigma applied to the change mask before
// connected areas are extracted.
const DefaultRegionBlur = 5

// Region is a connected area of change.
type Region struct {
	Pixels int
	Color  colorful.Color
}

// FindRegions groups changed offsets into connected areas larger than
// minPixels. Isolated changes are blurred away first.
func FindRegions(width, height int, offsets DeltaPixelList, sigma float32, minPixels int) []Region {
	if len(offsets) == 0 || width <= 0 || height <= 0 {
		return nil
	}

	mask := image.NewGray(image.Rect(0, 0, width, height))
	for _, off := range offsets {
		if off >= 0 && off < len(mask.Pix) {
			// mask stride == width for a fresh image
			mask.Pix[off] = 255
		}
	}

	g := gift.New(
		gift.GaussianBlur(sigma),
		gift.Threshold(50),
	)
	dst := image.NewGray(g.Bounds(mask.Bounds()))
	g.Draw(dst, mask)

	cocos := grayscale.CoCos(dst, 255, grayscale.NEIGHBOR8)
	sizes := make([]int, 0, len(cocos))
	for i := range cocos {
		if len(cocos[i]) > minPixels {
			sizes = append(sizes, len(cocos[i]))
		}
	}
	if len(sizes) == 0 {
		return nil
	}

	pal := colorful.FastWarmPalette(len(sizes))
	regions := make([]Region, len(sizes))
	for i, n := range sizes {
		regions[i] = Region{Pixels: n, Color: pal[i]}
	}
	return regions
}
