package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// drawText draws text on an image using basicfont
func drawText(img *image.RGBA, x, y int, text string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// createSheetWithHeader returns a white sheet with text drawn at 4x scale
// inside header.
func createSheetWithHeader(text string, header image.Rectangle) *image.RGBA {
	small := image.NewRGBA(image.Rect(0, 0, len(text)*7+20, 24))
	draw.Draw(small, small.Bounds(), image.White, image.Point{}, draw.Src)
	drawText(small, 10, 17, text, color.Black)
	big := imaging.Resize(small, small.Bounds().Dx()*4, 0, imaging.NearestNeighbor)

	sheet := image.NewRGBA(image.Rect(0, 0, 800, 600))
	draw.Draw(sheet, sheet.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(sheet, big.Bounds().Add(header.Min), big, image.Point{}, draw.Src)
	return sheet
}

func TestCrop(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))

	tests := []struct {
		name   string
		region image.Rectangle
		want   image.Rectangle
	}{
		{"inside", image.Rect(10, 10, 40, 30), image.Rect(0, 0, 30, 20)},
		{"clipped", image.Rect(80, 40, 200, 200), image.Rect(0, 0, 20, 10)},
		{"whole", image.Rect(-5, -5, 500, 500), image.Rect(0, 0, 100, 50)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Crop(img, tt.region)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Bounds())
		})
	}
}

func TestCrop_Outside(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	assert.Nil(t, Crop(img, image.Rect(200, 200, 300, 300)))
	assert.Nil(t, Crop(img, image.Rectangle{}))
}

func TestCrop_OffsetImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	img.Set(60, 60, color.Black)
	sub := img.SubImage(image.Rect(50, 50, 100, 100))

	got := Crop(sub, image.Rect(55, 55, 70, 70))
	require.NotNil(t, got)
	assert.Equal(t, image.Rect(0, 0, 15, 15), got.Bounds())
	r, _, _, _ := got.At(5, 5).RGBA()
	assert.Zero(t, r)
}

func TestPrepare_EnlargesSmallCrops(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	data, err := prepare(img, image.Rect(0, 0, 100, 16))
	require.NoError(t, err)

	decoded, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, minCropHeight, decoded.Bounds().Dy())
	assert.Equal(t, 400, decoded.Bounds().Dx())
}

func TestRead_EmptyRegion(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	_, err := NewReader("eng").Read(img, image.Rect(500, 500, 600, 600))
	assert.ErrorIs(t, err, ErrEmptyRegion)
}

func TestNewReader_DefaultLanguage(t *testing.T) {
	assert.Equal(t, "eng", NewReader("").Language)
	assert.Equal(t, "tha", NewReader("tha").Language)
}

func TestRead_StudentID(t *testing.T) {
	header := image.Rect(100, 100, 600, 250)
	sheet := createSheetWithHeader("640512", header)

	r := NewReader("eng")
	r.Whitelist = DigitsWhitelist
	text, err := r.Read(sheet, header)
	if err != nil {
		t.Skip("Tesseract not available:", err)
	}
	assert.Regexp(t, `^[0-9\s]*$`, text)
	assert.Contains(t, strings.Join(strings.Fields(text), ""), "6405")
}

func TestRead_BlankHeader(t *testing.T) {
	sheet := image.NewRGBA(image.Rect(0, 0, 400, 300))
	draw.Draw(sheet, sheet.Bounds(), image.White, image.Point{}, draw.Src)

	text, err := NewReader("eng").Read(sheet, image.Rect(50, 50, 350, 150))
	if err != nil {
		t.Skip("Tesseract not available:", err)
	}
	assert.Empty(t, text)
}
