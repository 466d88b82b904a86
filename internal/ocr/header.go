package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// ErrEmptyRegion is returned when the requested region does not overlap the
// image.
var ErrEmptyRegion = errors.New("header region is outside the image")

// DigitsWhitelist restricts recognition to student-ID characters.
const DigitsWhitelist = "0123456789"

// minCropHeight is the height small crops are enlarged to before OCR.
// Tesseract does poorly on glyphs under about 20 px.
const minCropHeight = 64

// Reader extracts text from a region of an image.
type Reader struct {
	// Language is the Tesseract language code, "eng" when empty.
	Language string

	// Whitelist, when set, limits the characters Tesseract may return.
	Whitelist string

	// TessdataPrefix overrides the directory holding *.traineddata files.
	TessdataPrefix string
}

// NewReader creates a Reader for the given language.
func NewReader(language string) *Reader {
	if language == "" {
		language = "eng"
	}
	return &Reader{Language: language}
}

// Read returns the text inside region of img with surrounding whitespace
// removed. The region is clipped to the image bounds.
func (r *Reader) Read(img image.Image, region image.Rectangle) (string, error) {
	data, err := prepare(img, region)
	if err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if r.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(r.TessdataPrefix); err != nil {
			return "", fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}

	lang := r.Language
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		return "", fmt.Errorf("failed to set language: %w", err)
	}
	if r.Whitelist != "" {
		if err := client.SetWhitelist(r.Whitelist); err != nil {
			return "", fmt.Errorf("failed to set whitelist: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// prepare crops, grayscales and enlarges the region and returns it as PNG.
func prepare(img image.Image, region image.Rectangle) ([]byte, error) {
	crop := Crop(img, region)
	if crop == nil {
		return nil, ErrEmptyRegion
	}

	gray := imaging.Grayscale(crop)
	if h := gray.Bounds().Dy(); h < minCropHeight {
		gray = imaging.Resize(gray, 0, minCropHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, gray, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode region: %w", err)
	}
	return buf.Bytes(), nil
}

// Crop returns the part of img inside region, clipped to the image bounds,
// as a zero-origin image. It returns nil when nothing is left.
func Crop(img image.Image, region image.Rectangle) *image.NRGBA {
	r := region.Intersect(img.Bounds())
	if r.Empty() {
		return nil
	}
	return imaging.Crop(img, r)
}
