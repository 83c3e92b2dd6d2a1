package fonts

import (
	"image"
	"testing"
)

func TestBold(t *testing.T) {
	f, err := Bold()
	if err != nil {
		t.Fatalf("Bold failed: %v", err)
	}
	again, _ := Bold()
	if f != again {
		t.Error("Bold should parse the font once")
	}
}

func TestNewFaceRejectsBadSize(t *testing.T) {
	f, err := Bold()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewFace(f, 0); err == nil {
		t.Error("Expected error for zero size")
	}
}

func TestMeasure(t *testing.T) {
	f, _ := Bold()
	face, err := NewFace(f, 32)
	if err != nil {
		t.Fatal(err)
	}
	defer face.Close()

	short := Measure(face, "HI")
	long := Measure(face, "HELLO WORLD")
	if long.Width <= short.Width {
		t.Errorf("Expected longer text to be wider: %f vs %f", long.Width, short.Width)
	}
	if short.Ascent <= 0 {
		t.Errorf("Expected positive ascent, got %f", short.Ascent)
	}
}

func TestMaskIsCentred(t *testing.T) {
	f, _ := Bold()
	face, err := NewFace(f, 40)
	if err != nil {
		t.Fatal(err)
	}
	defer face.Close()

	bounds := image.Rect(0, 0, 300, 100)
	mask := Mask(face, "HELLO", bounds, 150, 50)

	minX, maxX, minY, maxY := bounds.Max.X, -1, bounds.Max.Y, -1
	for y := 0; y < 100; y++ {
		for x := 0; x < 300; x++ {
			if mask.AlphaAt(x, y).A == 0 {
				continue
			}
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < 0 {
		t.Fatal("Mask is empty")
	}

	cx := (minX + maxX) / 2
	cy := (minY + maxY) / 2
	if cx < 140 || cx > 160 {
		t.Errorf("Expected horizontal centre near 150, got %d", cx)
	}
	if cy < 38 || cy > 62 {
		t.Errorf("Expected vertical centre near 50, got %d", cy)
	}
}
