// Package language classifies the dominant language of raw document text.
package language

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/joseph-ayodele/copy-catalog/constants"
	"github.com/joseph-ayodele/copy-catalog/internal/common"
	"github.com/joseph-ayodele/copy-catalog/internal/llm"
)

// Detection is a normalized language result.
type Detection struct {
	Name   string // English display name, e.g. "German"
	Locale string // BCP 47 base tag, e.g. "de"
}

// Unknown is returned whenever detection fails.
var Unknown = Detection{Name: constants.UnknownLanguage, Locale: constants.UnknownLocale}

// IsEnglish reports whether the detection is English.
func (d Detection) IsEnglish() bool { return d.Locale == "en" }

var candidates = []language.Tag{
	language.English, language.German, language.French, language.Spanish, language.Italian,
	language.Dutch, language.Portuguese, language.Polish, language.Swedish, language.Danish,
	language.Norwegian, language.Finnish, language.Czech, language.Hungarian, language.Greek,
	language.Turkish, language.Russian, language.Japanese, language.Korean, language.Chinese,
}

// Detector wraps a detection capability and never fails.
type Detector struct {
	provider llm.LanguageDetector
	timeout  time.Duration
	logger   *slog.Logger
}

func NewDetector(provider llm.LanguageDetector, timeout time.Duration, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{provider: provider, timeout: timeout, logger: logger}
}

// Detect returns the dominant language of text, or Unknown on any failure.
func (d *Detector) Detect(ctx context.Context, text string) Detection {
	if d == nil || d.provider == nil || strings.TrimSpace(text) == "" {
		return Unknown
	}
	ctx, cancel := common.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	reply, err := d.provider.DetectLanguage(ctx, text)
	if err != nil {
		d.logger.Warn("language.detect.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return Unknown
	}
	det, ok := Normalize(reply)
	if !ok {
		d.logger.Warn("language.detect.unrecognized", "reply", llm.Truncate(reply, 64))
		return Unknown
	}
	d.logger.Info("language.detect.ok", "language", det.Name, "locale", det.Locale, "elapsed_ms", time.Since(start).Milliseconds())
	return det
}

// Normalize maps a code ("de", "pt-BR") or a name ("German", "Deutsch") to a Detection.
func Normalize(reply string) (Detection, bool) {
	s := strings.Trim(strings.TrimSpace(reply), ".\"'`")
	if s == "" {
		return Detection{}, false
	}

	if tag, err := language.Parse(s); err == nil {
		if det, ok := fromTag(tag); ok {
			return det, true
		}
	}
	for _, t := range candidates {
		if strings.EqualFold(display.English.Languages().Name(t), s) || strings.EqualFold(display.Self.Name(t), s) {
			return fromTag(t)
		}
	}
	return Detection{}, false
}

func fromTag(tag language.Tag) (Detection, bool) {
	base, conf := tag.Base()
	if conf == language.No || base.String() == constants.UnknownLocale {
		return Detection{}, false
	}
	name := display.English.Languages().Name(base)
	if name == "" {
		return Detection{}, false
	}
	return Detection{Name: name, Locale: base.String()}, true
}
