package motion

import "testing"

func TestFindRegions_EmptyOffsets(t *testing.T) {
	if r := FindRegions(10, 10, nil, DefaultRegionBlur, 0); r != nil {
		t.Fatalf("expected no regions, got %v", r)
	}
}

func TestFindRegions_SingleBlock(t *testing.T) {
	const w, h = 64, 64
	var offsets DeltaPixelList
	for y := 16; y < 48; y++ {
		for x := 16; x < 48; x++ {
			offsets = append(offsets, y*w+x)
		}
	}
	regions := FindRegions(w, h, offsets, DefaultRegionBlur, 50)
	if len(regions) != 1 {
		t.Fatalf("expected one region, got %d", len(regions))
	}
	if regions[0].Pixels <= 50 {
		t.Fatalf("region too small: %d", regions[0].Pixels)
	}
	if regions[0].Color.Hex() == "" {
		t.Fatal("region has no color")
	}
}

func TestFindRegions_IsolatedPixelsFiltered(t *testing.T) {
	offsets := DeltaPixelList{0, 63*64 + 63}
	if r := FindRegions(64, 64, offsets, DefaultRegionBlur, 50); len(r) != 0 {
		t.Fatalf("expected isolated pixels to be dropped, got %v", r)
	}
}
