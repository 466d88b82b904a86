package omr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gowithe/scangrade-thai/internal/detector"
	"github.com/Gowithe/scangrade-thai/internal/geometry"
	"github.com/Gowithe/scangrade-thai/internal/grading"
	"github.com/Gowithe/scangrade-thai/internal/imaging"
	"github.com/Gowithe/scangrade-thai/internal/marks"
	"github.com/Gowithe/scangrade-thai/internal/template"
)

const (
	canonicalW = 160
	canonicalH = 230
)

var headerRegion = image.Rect(10, 5, 150, 30)

// slotCenter returns the canonical position of question q, option index o
// on the test layout.
func slotCenter(q, o int) (float64, float64) {
	return float64(20 + o*25), float64(60 + (q-1)*50)
}

func testRegistry(t *testing.T) *template.Registry {
	t.Helper()
	parts := make([]string, 0, 15)
	for q := 1; q <= 3; q++ {
		for o := 0; o < 5; o++ {
			x, y := slotCenter(q, o)
			parts = append(parts, fmt.Sprintf(`"%d": {"x": %g, "y": %g}`, (q-1)*5+o+1, x, y))
		}
	}
	fsys := fstest.MapFS{
		"t.json": {Data: []byte("{" + strings.Join(parts, ",") + "}")},
	}
	return template.NewRegistry(fsys,
		template.Layout{Name: "t", QuestionCount: 3, File: "t.json", Header: headerRegion},
		template.Layout{Name: "broken", QuestionCount: 3, File: "missing.json"},
	)
}

func markAt(q, o int, conf float64) marks.Detection {
	x, y := slotCenter(q, o)
	return marks.Detection{
		Box:        marks.Box{X1: x - 8, Y1: y - 8, X2: x + 8, Y2: y + 8},
		Confidence: conf,
	}
}

// fixedDetector returns the same detections for every image and records the
// last image it saw.
type fixedDetector struct {
	detections []marks.Detection
	err        error
	seen       image.Image
	deadline   bool
}

func (d *fixedDetector) Detect(ctx context.Context, img image.Image, _ float64) ([]marks.Detection, error) {
	d.seen = img
	_, d.deadline = ctx.Deadline()
	return d.detections, d.err
}

type fakeHeader struct {
	text   string
	err    error
	region image.Rectangle
}

func (h *fakeHeader) Read(_ image.Image, region image.Rectangle) (string, error) {
	h.region = region
	return h.text, h.err
}

func testSettings() Settings {
	s := DefaultSettings()
	s.MaxSlotDistance = 20
	s.DefaultKeys = map[string]string{}
	return s
}

func testEngine(t *testing.T, det marks.Detector, opts ...Option) *Engine {
	t.Helper()
	rect := geometry.NewRectifier(geometry.Config{
		Width:   canonicalW,
		Height:  canonicalH,
		Margins: imaging.Margins{Bottom: 4},
	})
	opts = append([]Option{WithSettings(testSettings())}, opts...)
	return New(rect, testRegistry(t), det, opts...)
}

// createSheetPhoto draws a white axis-aligned sheet on a dark background.
func createSheetPhoto(width, height int, sheet image.Rectangle) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBA{40, 40, 40, 255}
			if image.Pt(x, y).In(sheet) {
				c = color.NRGBA{245, 245, 245, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func sheetDetections() []marks.Detection {
	return []marks.Detection{
		markAt(1, 1, 0.9), // q1 B
		markAt(2, 0, 0.8), // q2 A
		markAt(2, 3, 0.3), // q2 D
		// Off the grid.
		{Box: marks.Box{X1: 145, Y1: 215, X2: 155, Y2: 225}, Confidence: 0.9},
	}
}

func TestGradeAuto(t *testing.T) {
	det := &fixedDetector{detections: sheetDetections()}
	header := &fakeHeader{text: "640512"}
	e := testEngine(t, det, WithHeaderReader(header))

	photo := createSheetPhoto(400, 500, image.Rect(60, 50, 340, 450))
	res, err := e.GradeAuto(context.Background(), photo, Request{Template: "t", AnswerKey: "b a c"})
	require.NoError(t, err)

	require.NotNil(t, det.seen)
	assert.Equal(t, image.Rect(0, 0, canonicalW, canonicalH), det.seen.Bounds())
	assert.True(t, det.deadline, "detector call should carry a deadline")

	assert.Equal(t, marks.AnswerSet{1: "B", 2: marks.Multi}, res.Answers)
	assert.Equal(t, "BAC", res.KeyString)
	assert.Equal(t, 3, res.QuestionCount)
	assert.Equal(t, "t", res.Template)
	assert.Equal(t, grading.Stats{Correct: 1, Multi: 1, Blank: 1, Total: 3}, res.Stats)
	assert.Equal(t, grading.StatusCorrect, res.Detail[1].Status)
	assert.Equal(t, grading.StatusMulti, res.Detail[2].Status)
	assert.Equal(t, grading.StatusBlank, res.Detail[3].Status)
	assert.Equal(t, 1, res.Discarded)
	assert.Equal(t, map[string]float64{"A": 0.8, "D": 0.3}, res.Marks[2])

	assert.Equal(t, "640512", res.Header)
	assert.Equal(t, headerRegion, header.region)

	require.NotNil(t, res.Annotated)
	assert.Equal(t, image.Rect(0, 0, canonicalW, canonicalH), res.Annotated.Bounds())

	_, err = uuid.Parse(res.RunID)
	assert.NoError(t, err)
}

func TestGradeAuto_DefaultKey(t *testing.T) {
	s := testSettings()
	s.DefaultKeys["t"] = "CCC"
	e := testEngine(t, &fixedDetector{detections: sheetDetections()}, WithSettings(s))

	photo := createSheetPhoto(400, 500, image.Rect(60, 50, 340, 450))
	res, err := e.GradeAuto(context.Background(), photo, Request{Template: "t"})
	require.NoError(t, err)

	assert.Equal(t, "CCC", res.KeyString)
	assert.Equal(t, grading.Stats{Wrong: 1, Multi: 1, Blank: 1, Total: 3}, res.Stats)
}

func TestGradeAuto_NoKey(t *testing.T) {
	e := testEngine(t, &fixedDetector{detections: sheetDetections()})

	photo := createSheetPhoto(400, 500, image.Rect(60, 50, 340, 450))
	res, err := e.GradeAuto(context.Background(), photo, Request{Template: "t"})
	require.NoError(t, err)

	assert.Empty(t, res.Detail)
	assert.Empty(t, res.KeyString)
	assert.Equal(t, grading.Stats{Blank: 1, Multi: 1, Total: 2}, res.Stats)
}

func TestGradeAuto_RequestKeyWinsOverDefault(t *testing.T) {
	s := testSettings()
	s.DefaultKeys["t"] = "CCC"
	e := testEngine(t, &fixedDetector{}, WithSettings(s))

	key := e.EffectiveKey(Request{Template: "t", AnswerKey: "ab"}, 3)
	assert.Equal(t, "A", key[1])
	assert.Equal(t, "B", key[2])
	assert.NotContains(t, key, 3)

	// A key string with no options still overrides the default.
	assert.Empty(t, e.EffectiveKey(Request{Template: "t", AnswerKey: "???"}, 3))
}

func TestGradeAuto_NotFound(t *testing.T) {
	det := &fixedDetector{}
	e := testEngine(t, det)

	plain := createSheetPhoto(300, 300, image.Rectangle{})
	_, err := e.GradeAuto(context.Background(), plain, Request{Template: "t"})
	require.Error(t, err)

	assert.Equal(t, KindRectification, KindOf(err))
	assert.ErrorIs(t, err, geometry.ErrNotFound)
	assert.Nil(t, det.seen, "detector must not run without a canonical image")
}

func TestGradeAuto_EmptyImage(t *testing.T) {
	e := testEngine(t, &fixedDetector{})
	_, err := e.GradeAuto(context.Background(), image.NewNRGBA(image.Rectangle{}), Request{Template: "t"})
	assert.Equal(t, KindInvalidInput, KindOf(err))
	assert.ErrorIs(t, err, imaging.ErrEmptyImage)
}

func TestGrade_TemplateErrors(t *testing.T) {
	e := testEngine(t, &fixedDetector{})
	photo := createSheetPhoto(400, 500, image.Rect(60, 50, 340, 450))

	_, err := e.GradeAuto(context.Background(), photo, Request{Template: "99"})
	assert.Equal(t, KindInvalidInput, KindOf(err))
	assert.ErrorIs(t, err, template.ErrTemplateNotFound)

	_, err = e.GradeAuto(context.Background(), photo, Request{Template: "broken"})
	assert.Equal(t, KindConfiguration, KindOf(err))
	assert.ErrorIs(t, err, template.ErrTemplateNotFound)
}

func TestGrade_DetectorFailure(t *testing.T) {
	det := &fixedDetector{err: fmt.Errorf("%w: connection refused", detector.ErrUnavailable)}
	e := testEngine(t, det)

	photo := createSheetPhoto(400, 500, image.Rect(60, 50, 340, 450))
	_, err := e.GradeAuto(context.Background(), photo, Request{Template: "t"})
	assert.Equal(t, KindDetection, KindOf(err))
	assert.ErrorIs(t, err, detector.ErrUnavailable)
}

func TestGrade_NoDetectTimeout(t *testing.T) {
	s := testSettings()
	require.Zero(t, s.DetectTimeout, "no detector timeout unless configured")
	det := &fixedDetector{}
	e := testEngine(t, det, WithSettings(s))

	photo := createSheetPhoto(400, 500, image.Rect(60, 50, 340, 450))
	_, err := e.GradeAuto(context.Background(), photo, Request{Template: "t"})
	require.NoError(t, err)
	assert.False(t, det.deadline)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	_, err = e.GradeAuto(ctx, photo, Request{Template: "t"})
	require.NoError(t, err)
	assert.True(t, det.deadline)
}

func TestGrade_HeaderFailureIsNotFatal(t *testing.T) {
	header := &fakeHeader{err: errors.New("tesseract missing")}
	e := testEngine(t, &fixedDetector{detections: sheetDetections()}, WithHeaderReader(header))

	photo := createSheetPhoto(400, 500, image.Rect(60, 50, 340, 450))
	res, err := e.GradeAuto(context.Background(), photo, Request{Template: "t"})
	require.NoError(t, err)
	assert.Empty(t, res.Header)
}

func TestGradeManual(t *testing.T) {
	s := testSettings()
	s.MaxManualSide = 250
	det := &fixedDetector{detections: sheetDetections()}
	e := testEngine(t, det, WithSettings(s))

	// The photo is downscaled by half; points stay in photo coordinates.
	photo := createSheetPhoto(400, 500, image.Rect(60, 50, 340, 450))
	points := []geometry.Point{{339, 449}, {60, 50}, {60, 449}, {339, 50}}

	res, err := e.GradeManual(context.Background(), photo, points, Request{Template: "t", AnswerKey: "BAC"})
	require.NoError(t, err)
	assert.Equal(t, grading.Stats{Correct: 1, Multi: 1, Blank: 1, Total: 3}, res.Stats)

	canonical := imaging.ToNRGBA(det.seen)
	assert.Equal(t, image.Rect(0, 0, canonicalW, canonicalH), canonical.Bounds())
	for _, p := range []image.Point{{3, 3}, {canonicalW - 4, 3}, {3, canonicalH - 4}, {canonicalW - 4, canonicalH - 4}, {80, 115}} {
		assert.Greater(t, int(canonical.NRGBAAt(p.X, p.Y).R), 200, "pixel %v should be inside the sheet", p)
	}
}

func TestGradeManual_InvalidPoints(t *testing.T) {
	e := testEngine(t, &fixedDetector{})
	photo := createSheetPhoto(100, 100, image.Rect(10, 10, 90, 90))

	tests := []struct {
		name   string
		points []geometry.Point
	}{
		{"too few", []geometry.Point{{0, 0}, {10, 0}, {10, 10}}},
		{"too many", []geometry.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {5, 5}}},
		{"coincident", []geometry.Point{{5, 5}, {5, 5}, {5, 5}, {5, 5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.GradeManual(context.Background(), photo, tt.points, Request{Template: "t"})
			assert.Equal(t, KindInvalidInput, KindOf(err))
			assert.ErrorIs(t, err, geometry.ErrInvalidPoints)
		})
	}
}

func TestError(t *testing.T) {
	cause := errors.New("boom")
	err := newError(KindDetection, "mark detection failed", cause)
	assert.Equal(t, "detection_failed: mark detection failed: boom", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := &Error{Kind: KindInvalidInput, Message: "no image"}
	assert.Equal(t, "invalid_input: no image", bare.Error())

	wrapped := fmt.Errorf("handler: %w", err)
	assert.Equal(t, KindDetection, KindOf(wrapped))
	assert.Equal(t, ErrorKind(""), KindOf(cause))
}
