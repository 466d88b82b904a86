package omr

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Gowithe/scangrade-thai/internal/answerkey"
	"github.com/Gowithe/scangrade-thai/internal/config"
	"github.com/Gowithe/scangrade-thai/internal/geometry"
	"github.com/Gowithe/scangrade-thai/internal/grading"
	"github.com/Gowithe/scangrade-thai/internal/imaging"
	"github.com/Gowithe/scangrade-thai/internal/logging"
	"github.com/Gowithe/scangrade-thai/internal/marks"
	"github.com/Gowithe/scangrade-thai/internal/template"
)

// DefaultTemplate is used when a request names no layout.
const DefaultTemplate = "60"

// KeyPlaceholder fills ungraded questions in Result.KeyString.
const KeyPlaceholder = '-'

// HeaderReader reads text from a region of the canonical image.
type HeaderReader interface {
	Read(img image.Image, region image.Rectangle) (string, error)
}

// Settings tune a pipeline run.
type Settings struct {
	// MaxInputSide and MaxManualSide bound the raw photo before automatic
	// and manual rectification. Zero disables the downscale.
	MaxInputSide  int
	MaxManualSide int

	MaxSlotDistance     float64
	ConfidenceThreshold float64

	// DetectTimeout bounds the detector call. Zero means the caller's
	// context alone decides.
	DetectTimeout time.Duration

	// DefaultKeys holds the canonical default key per layout name.
	DefaultKeys map[string]string
}

// DefaultSettings returns the settings used by the hosted service.
func DefaultSettings() Settings {
	return Settings{
		MaxInputSide:        2000,
		MaxManualSide:       2400,
		MaxSlotDistance:     marks.DefaultMaxSlotDistance,
		ConfidenceThreshold: 0.10,
		DetectTimeout:       0,
	}
}

// SettingsFromConfig copies the pipeline settings out of c.
func SettingsFromConfig(c *config.Config) Settings {
	return Settings{
		MaxInputSide:        c.MaxInputSide,
		MaxManualSide:       c.MaxManualSide,
		MaxSlotDistance:     c.MaxSlotDistance,
		ConfidenceThreshold: c.ConfidenceThreshold,
		DetectTimeout:       c.DetectTimeout,
		DefaultKeys:         c.DefaultKeys,
	}
}

// Request selects the layout and answer key for a run.
type Request struct {
	// Template is the layout name, DefaultTemplate when empty.
	Template string `json:"template"`

	// AnswerKey is a raw key string. When empty the layout's default key is
	// used.
	AnswerKey string `json:"answer_key"`
}

// Result is the outcome of a successful run.
type Result struct {
	RunID    string          `json:"run_id"`
	Template string          `json:"template"`
	Answers  marks.AnswerSet `json:"answers"`
	Key      answerkey.Key   `json:"key"`
	Detail   grading.Detail  `json:"detail"`
	Stats    grading.Stats   `json:"stats"`
	Header   string          `json:"header,omitempty"`

	// KeyString is the effective key in canonical form, with ungraded
	// questions shown as KeyPlaceholder.
	KeyString string `json:"key_string"`

	// QuestionCount is the number of questions on the layout.
	QuestionCount int `json:"question_count"`

	// Marks and Discarded come from mark resolution, for review.
	Marks     map[int]map[string]float64 `json:"marks"`
	Discarded int                        `json:"discarded"`

	// Annotated is the canonical image with slots and accepted marks drawn.
	Annotated image.Image `json:"-"`
}

// Engine grades answer-sheet photos. It is safe for concurrent use.
type Engine struct {
	rectifier *geometry.Rectifier
	registry  *template.Registry
	detector  marks.Detector
	header    HeaderReader
	log       logrus.FieldLogger
	settings  Settings
}

// Option configures an Engine.
type Option func(*Engine)

// WithHeaderReader enables reading the header region of layouts that
// declare one.
func WithHeaderReader(h HeaderReader) Option {
	return func(e *Engine) {
		e.header = h
	}
}

// WithLogger sets the engine logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithSettings replaces DefaultSettings.
func WithSettings(s Settings) Option {
	return func(e *Engine) {
		e.settings = s
	}
}

// New creates an Engine.
func New(rectifier *geometry.Rectifier, registry *template.Registry, detector marks.Detector, opts ...Option) *Engine {
	e := &Engine{
		rectifier: rectifier,
		registry:  registry,
		detector:  detector,
		log:       logging.Discard(),
		settings:  DefaultSettings(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the template registry the engine grades against.
func (e *Engine) Registry() *template.Registry {
	return e.registry
}

// CanonicalSize returns the size every photo is rectified to.
func (e *Engine) CanonicalSize() (int, int) {
	return e.rectifier.Size()
}

// GradeAuto grades a photo, locating the sheet outline automatically.
func (e *Engine) GradeAuto(ctx context.Context, raw image.Image, req Request) (*Result, error) {
	id, log := e.runLogger(req, "auto")
	tpl, key, err := e.prepare(req)
	if err != nil {
		return nil, err
	}

	canonical, err := e.RectifyAuto(raw)
	if err != nil {
		log.WithField("error", err.Error()).Info("Rectification failed")
		return nil, err
	}
	return e.grade(ctx, id, log, canonical, tpl, key)
}

// GradeManual grades a photo using four corner points given in raw image
// coordinates, in any order.
func (e *Engine) GradeManual(ctx context.Context, raw image.Image, points []geometry.Point, req Request) (*Result, error) {
	id, log := e.runLogger(req, "manual")
	tpl, key, err := e.prepare(req)
	if err != nil {
		return nil, err
	}

	canonical, err := e.RectifyManual(raw, points)
	if err != nil {
		return nil, err
	}
	return e.grade(ctx, id, log, canonical, tpl, key)
}

// RectifyAuto downscales raw to MaxInputSide and rectifies it
// automatically.
func (e *Engine) RectifyAuto(raw image.Image) (image.Image, error) {
	if raw == nil || raw.Bounds().Empty() {
		return nil, newError(KindInvalidInput, "image is empty", imaging.ErrEmptyImage)
	}

	img, _ := imaging.Downscale(raw, e.settings.MaxInputSide)
	canonical, err := e.rectifier.RectifyAutomatic(img)
	if err != nil {
		return nil, rectifyError(err)
	}
	return canonical, nil
}

// RectifyManual downscales raw to MaxManualSide, scales points to match and
// warps the quadrilateral they enclose onto the canonical rectangle.
func (e *Engine) RectifyManual(raw image.Image, points []geometry.Point) (image.Image, error) {
	if raw == nil || raw.Bounds().Empty() {
		return nil, newError(KindInvalidInput, "image is empty", imaging.ErrEmptyImage)
	}
	if len(points) != 4 {
		return nil, newError(KindInvalidInput, "exactly four corner points are required", geometry.ErrInvalidPoints)
	}

	img, scale := imaging.Downscale(raw, e.settings.MaxManualSide)
	origin := raw.Bounds().Min
	dst := img.Bounds().Min
	scaled := make([]geometry.Point, len(points))
	for i, p := range points {
		scaled[i] = geometry.Point{
			X: (p.X-float64(origin.X))*scale + float64(dst.X),
			Y: (p.Y-float64(origin.Y))*scale + float64(dst.Y),
		}
	}

	canonical, err := e.rectifier.RectifyManual(img, scaled)
	if err != nil {
		return nil, rectifyError(err)
	}
	return canonical, nil
}

// EffectiveKey returns the key a request is graded against: the parsed
// request key when given, otherwise the layout's default key.
func (e *Engine) EffectiveKey(req Request, questionCount int) answerkey.Key {
	if req.AnswerKey != "" {
		return answerkey.Parse(req.AnswerKey, questionCount)
	}
	name := req.Template
	if name == "" {
		name = DefaultTemplate
	}
	return answerkey.Parse(e.settings.DefaultKeys[name], questionCount)
}

func (e *Engine) prepare(req Request) (*template.Template, answerkey.Key, error) {
	name := req.Template
	if name == "" {
		name = DefaultTemplate
	}
	if _, ok := e.registry.Layout(name); !ok {
		return nil, nil, newError(KindInvalidInput, "unknown template "+name, template.ErrTemplateNotFound)
	}
	tpl, err := e.registry.Get(name)
	if err != nil {
		return nil, nil, newError(KindConfiguration, "template "+name+" could not be loaded", err)
	}
	return tpl, e.EffectiveKey(req, tpl.QuestionCount), nil
}

func (e *Engine) grade(ctx context.Context, id string, log logrus.FieldLogger, canonical image.Image, tpl *template.Template, key answerkey.Key) (*Result, error) {
	detectCtx := ctx
	if e.settings.DetectTimeout > 0 {
		var cancel context.CancelFunc
		detectCtx, cancel = context.WithTimeout(ctx, e.settings.DetectTimeout)
		defer cancel()
	}

	detections, err := e.detector.Detect(detectCtx, canonical, e.settings.ConfidenceThreshold)
	if err != nil {
		log.WithField("error", err.Error()).Error("Mark detection failed")
		return nil, newError(KindDetection, "mark detection failed", err)
	}

	res := marks.Resolve(canonical, detections, tpl, e.settings.MaxSlotDistance)
	if res.Discarded > 0 {
		log.WithFields(logrus.Fields{
			"discarded":  res.Discarded,
			"detections": len(detections),
		}).Debug("Discarded detections outside the slot grid")
	}

	detail, stats := grading.Grade(res.Answers, key, tpl.QuestionCount)

	result := &Result{
		RunID:         id,
		Template:      tpl.Name,
		QuestionCount: tpl.QuestionCount,
		Answers:       res.Answers,
		Key:           key,
		KeyString:     answerkey.Format(key, tpl.QuestionCount, KeyPlaceholder),
		Detail:        detail,
		Stats:         stats,
		Marks:         res.Marks,
		Discarded:     res.Discarded,
		Annotated:     res.Annotated,
	}

	if e.header != nil && !tpl.Header.Empty() {
		text, err := e.header.Read(canonical, tpl.Header)
		if err != nil {
			log.WithField("error", err.Error()).Warn("Header OCR failed")
		} else {
			result.Header = text
		}
	}

	log.WithFields(logrus.Fields{
		"correct": stats.Correct,
		"wrong":   stats.Wrong,
		"blank":   stats.Blank,
		"multi":   stats.Multi,
		"total":   stats.Total,
	}).Info("Sheet graded")
	return result, nil
}

func (e *Engine) runLogger(req Request, mode string) (string, *logrus.Entry) {
	name := req.Template
	if name == "" {
		name = DefaultTemplate
	}
	id := uuid.NewString()
	return id, e.log.WithFields(logrus.Fields{
		logging.RunIDKey: id,
		"template":       name,
		"mode":           mode,
	})
}

func rectifyError(err error) error {
	switch {
	case errors.Is(err, geometry.ErrNotFound):
		return newError(KindRectification, "could not find the sheet outline", err)
	case errors.Is(err, geometry.ErrInvalidPoints):
		return newError(KindInvalidInput, "corner points do not form a usable quadrilateral", err)
	case errors.Is(err, geometry.ErrDegenerateImage):
		return newError(KindInvalidInput, "image is too small to rectify", err)
	default:
		return newError(KindRectification, "rectification failed", err)
	}
}
