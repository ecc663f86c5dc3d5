// Package stage converts between microscope stage positions and image pixels.
package stage

import "github.com/d-j-hatton/python-smartem/model"

// Point is a stage position in nanometres.
type Point struct {
	X, Y float64
}

// Pixel is an integer image coordinate.
type Pixel struct {
	X, Y int
}

// Size is an image readout area in pixels.
type Size struct {
	Width, Height int
}

// Flip mirrors an axis when the image is stored inverted relative to the stage.
type Flip struct {
	X, Y int
}

// NoFlip leaves both axes as they are.
var NoFlip = Flip{X: 1, Y: 1}

// FindPointPixel locates inner inside an outer image centred at centre with
// spacing nanometres per pixel. Offsets truncate toward zero.
func FindPointPixel(inner, centre Point, spacing float64, size Size, flip Flip) Pixel {
	dx := (centre.X - inner.X) / spacing
	dy := (centre.Y - inner.Y) / spacing
	return Pixel{
		X: size.Width/2 + flip.X*int(dx),
		Y: size.Height/2 + flip.Y*int(dy),
	}
}

// StagePosition is the stage position of pixel within an image centred at centre.
func StagePosition(pixel Pixel, spacing float64, centre Point, size Size) Point {
	return Point{
		X: centre.X + float64(pixel.X-size.Width/2)*spacing,
		Y: centre.Y + float64(pixel.Y-size.Height/2)*spacing,
	}
}

// Centre is the stage position of an image.
func Centre(img model.Image) Point {
	return Point{X: img.StagePositionX, Y: img.StagePositionY}
}

// SizeOf is the readout area of an image.
func SizeOf(img model.Image) Size {
	return Size{Width: int(img.ReadoutAreaX), Height: int(img.ReadoutAreaY)}
}

// Contains reports whether p lies strictly inside the area img covers:
// centre ± half the readout area times the pixel size on both axes.
func Contains(img model.Image, p Point) bool {
	halfX := 0.5 * img.PixelSize * float64(img.ReadoutAreaX)
	halfY := 0.5 * img.PixelSize * float64(img.ReadoutAreaY)
	return p.X > img.StagePositionX-halfX && p.X < img.StagePositionX+halfX &&
		p.Y > img.StagePositionY-halfY && p.Y < img.StagePositionY+halfY
}

// PixelIn locates inner within outer, both taken from their stored images.
func PixelIn(inner, outer model.Image, flip Flip) Pixel {
	return FindPointPixel(Centre(inner), Centre(outer), outer.PixelSize, SizeOf(outer), flip)
}
