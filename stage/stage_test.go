package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/d-j-hatton/python-smartem/model"
)

func TestFindPointPixel(t *testing.T) {
	tests := []struct {
		name   string
		inner  Point
		centre Point
		flip   Flip
		want   Pixel
	}{
		{"at centre", Point{0, 0}, Point{0, 0}, NoFlip, Pixel{50, 50}},
		{"offset", Point{-100, -200}, Point{0, 0}, NoFlip, Pixel{60, 70}},
		{"flipped", Point{-100, -200}, Point{0, 0}, Flip{-1, -1}, Pixel{40, 30}},
		{"truncates toward zero", Point{-15, 15}, Point{0, 0}, NoFlip, Pixel{51, 49}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindPointPixel(tt.inner, tt.centre, 10, Size{100, 100}, tt.flip)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStagePosition(t *testing.T) {
	got := StagePosition(Pixel{60, 40}, 10, Point{1000, 2000}, Size{100, 100})
	assert.Equal(t, Point{1100, 1900}, got)

	// round trip on the pixel grid
	centre := Point{500, -500}
	pixel := FindPointPixel(Point{300, -300}, centre, 10, Size{100, 100}, Flip{-1, -1})
	assert.Equal(t, Point{300, -300}, StagePosition(pixel, 10, centre, Size{100, 100}))
}

func TestContains(t *testing.T) {
	tile := model.Image{PixelSize: 10, ReadoutAreaX: 100, ReadoutAreaY: 50, StagePositionX: 0, StagePositionY: 0}

	assert.True(t, Contains(tile, Point{0, 0}))
	assert.True(t, Contains(tile, Point{499, 249}))
	assert.False(t, Contains(tile, Point{500, 0}), "edge is exclusive")
	assert.False(t, Contains(tile, Point{0, 250}))
	assert.False(t, Contains(tile, Point{-501, 0}))
}

func TestPixelIn(t *testing.T) {
	outer := model.Image{PixelSize: 10, ReadoutAreaX: 100, ReadoutAreaY: 100}
	inner := model.Image{StagePositionX: -100, StagePositionY: -100}
	assert.Equal(t, Pixel{60, 60}, PixelIn(inner, outer, NoFlip))
}
