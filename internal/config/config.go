// Package config loads scangrade settings from the environment.
//
// Every key is prefixed with SCANGRADE_. A .env file in the working
// directory, when present, is read first; variables already set in the
// environment win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/Gowithe/scangrade-thai/internal/detector"
	"github.com/Gowithe/scangrade-thai/internal/geometry"
	"github.com/Gowithe/scangrade-thai/internal/imaging"
)

const prefix = "SCANGRADE_"

// defaultKeyPrefix names the per-layout default answer keys, for example
// SCANGRADE_DEFAULT_KEY_60.
const defaultKeyPrefix = prefix + "DEFAULT_KEY_"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds every runtime setting.
type Config struct {
	CanonicalWidth  int             `validate:"min=100"`
	CanonicalHeight int             `validate:"min=100"`
	Crop            imaging.Margins `validate:"-"`

	// MaxDetectSide is the working size for automatic corner detection.
	MaxDetectSide int `validate:"min=100"`

	// MaxInputSide and MaxManualSide bound the raw photo before automatic
	// and manual rectification.
	MaxInputSide  int `validate:"min=100"`
	MaxManualSide int `validate:"min=100"`

	MaxSlotDistance     float64 `validate:"gt=0"`
	ConfidenceThreshold float64 `validate:"gte=0,lte=1"`

	// TemplateDir replaces the embedded templates when set.
	TemplateDir string

	Detector    string `validate:"oneof=blob websocket"`
	DetectorURL string `validate:"required_if=Detector websocket,omitempty,url"`

	// DetectTimeout bounds one detector call. Zero means no limit.
	DetectTimeout time.Duration `validate:"gte=0"`

	OCREnabled     bool
	OCRLanguage    string `validate:"required_if=OCREnabled true"`
	OCRWhitelist   string
	TessdataPrefix string

	// DatabaseURL selects the Postgres key store. Empty keeps keys in
	// memory.
	DatabaseURL string

	LogLevel string `validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	LogFile  string

	// DefaultKeys maps a layout name to the key used when a request has
	// none.
	DefaultKeys map[string]string
}

// Default returns the built-in settings.
func Default() *Config {
	rc := geometry.DefaultConfig()
	return &Config{
		CanonicalWidth:      rc.Width,
		CanonicalHeight:     rc.Height,
		Crop:                rc.Margins,
		MaxDetectSide:       rc.MaxDetectSide,
		MaxInputSide:        2000,
		MaxManualSide:       2400,
		MaxSlotDistance:     150,
		ConfidenceThreshold: 0.10,
		Detector:            detector.KindBlob,
		DetectTimeout:       0,
		OCREnabled:          true,
		OCRLanguage:         "eng",
		LogLevel:            "info",
		DefaultKeys:         map[string]string{},
	}
}

// Load reads an optional .env file, then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}
	return FromMap(environ())
}

// FromMap builds a Config from env, falling back to Default for missing
// keys, and validates it.
func FromMap(env map[string]string) (*Config, error) {
	c := Default()
	p := parser{env: env}

	p.int("CANONICAL_WIDTH", &c.CanonicalWidth)
	p.int("CANONICAL_HEIGHT", &c.CanonicalHeight)
	p.int("CROP_TOP", &c.Crop.Top)
	p.int("CROP_BOTTOM", &c.Crop.Bottom)
	p.int("CROP_LEFT", &c.Crop.Left)
	p.int("CROP_RIGHT", &c.Crop.Right)
	p.int("MAX_DETECT_SIDE", &c.MaxDetectSide)
	p.int("MAX_INPUT_SIDE", &c.MaxInputSide)
	p.int("MAX_MANUAL_SIDE", &c.MaxManualSide)
	p.float("MAX_SLOT_DISTANCE", &c.MaxSlotDistance)
	p.float("CONFIDENCE_THRESHOLD", &c.ConfidenceThreshold)
	p.string("TEMPLATE_DIR", &c.TemplateDir)
	p.string("DETECTOR", &c.Detector)
	p.string("DETECTOR_URL", &c.DetectorURL)
	p.duration("DETECT_TIMEOUT", &c.DetectTimeout)
	p.bool("OCR_ENABLED", &c.OCREnabled)
	p.string("OCR_LANGUAGE", &c.OCRLanguage)
	p.string("OCR_WHITELIST", &c.OCRWhitelist)
	p.string("TESSDATA_PREFIX", &c.TessdataPrefix)
	p.string("DATABASE_URL", &c.DatabaseURL)
	p.string("LOG_LEVEL", &c.LogLevel)
	p.string("LOG_FILE", &c.LogFile)
	if p.err != nil {
		return nil, p.err
	}

	c.Detector = strings.ToLower(c.Detector)
	c.LogLevel = strings.ToLower(c.LogLevel)

	for k, v := range env {
		if name, ok := strings.CutPrefix(k, defaultKeyPrefix); ok && name != "" {
			c.DefaultKeys[name] = strings.TrimSpace(v)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks field ranges and cross-field requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Crop.Top < 0 || c.Crop.Bottom < 0 || c.Crop.Left < 0 || c.Crop.Right < 0 {
		return errors.New("invalid configuration: crop margins must not be negative")
	}
	if c.Crop.Top+c.Crop.Bottom >= c.CanonicalHeight || c.Crop.Left+c.Crop.Right >= c.CanonicalWidth {
		return errors.New("invalid configuration: crop margins leave no image")
	}
	return nil
}

// Rectifier returns the geometry settings.
func (c *Config) Rectifier() geometry.Config {
	rc := geometry.DefaultConfig()
	rc.Width = c.CanonicalWidth
	rc.Height = c.CanonicalHeight
	rc.Margins = c.Crop
	rc.MaxDetectSide = c.MaxDetectSide
	return rc
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, prefix) {
			env[k] = v
		}
	}
	return env
}

// parser reads prefixed keys and keeps the first conversion error.
type parser struct {
	env map[string]string
	err error
}

func (p *parser) lookup(key string) (string, bool) {
	v, ok := p.env[prefix+key]
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (p *parser) fail(key, v string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s%s=%q: %w", prefix, key, v, err)
	}
}

func (p *parser) string(key string, dst *string) {
	if v, ok := p.lookup(key); ok {
		*dst = v
	}
}

func (p *parser) int(key string, dst *int) {
	if v, ok := p.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (p *parser) float(key string, dst *float64) {
	if v, ok := p.lookup(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (p *parser) bool(key string, dst *bool) {
	if v, ok := p.lookup(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = b
	}
}

func (p *parser) duration(key string, dst *time.Duration) {
	if v, ok := p.lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = d
	}
}
