package language

import (
	"strings"

	"meeting-insights-go/internal/types"
)

const (
	DefaultSource = "hi"
	DefaultTarget = "en"
	DefaultFormat = "wav"
)

type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var supported = []Language{
	{"hi", "Hindi"},
	{"en", "English"},
	{"bn", "Bengali"},
	{"te", "Telugu"},
	{"mr", "Marathi"},
	{"ta", "Tamil"},
	{"gu", "Gujarati"},
	{"kn", "Kannada"},
	{"ml", "Malayalam"},
	{"pa", "Punjabi"},
	{"or", "Odia"},
	{"as", "Assamese"},
	{"ur", "Urdu"},
	{"ne", "Nepali"},
	{"sa", "Sanskrit"},
	{"sd", "Sindhi"},
	{"ks", "Kashmiri"},
	{"mai", "Maithili"},
	{"mni", "Manipuri"},
	{"brx", "Bodo"},
	{"gom", "Konkani"},
	{"si", "Sinhala"},
}

var formats = []string{"wav", "mp3", "flac", "m4a", "ogg"}

// Supported returns the language catalog.
func Supported() []Language {
	out := make([]Language, len(supported))
	copy(out, supported)
	return out
}

// Formats returns the accepted container formats.
func Formats() []string {
	out := make([]string, len(formats))
	copy(out, formats)
	return out
}

func IsSupported(code string) bool {
	for _, l := range supported {
		if l.Code == code {
			return true
		}
	}
	return false
}

// Base lower-cases a code and strips any region subtag ("en-US" -> "en").
func Base(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i >= 0 {
		code = code[:i]
	}
	return code
}

// Normalize returns the base code, or fallback when it is not supported.
func Normalize(code, fallback string) string {
	if b := Base(code); IsSupported(b) {
		return b
	}
	return fallback
}

// NormalizePair coerces both sides of a pair. Unsupported input is replaced
// with the defaults, never rejected.
func NormalizePair(source, target string) types.LanguagePair {
	return types.LanguagePair{
		Source: Normalize(source, DefaultSource),
		Target: Normalize(target, DefaultTarget),
	}
}

// NormalizeFormat lower-cases a container format and drops a leading dot.
// Unknown formats fall back to wav.
func NormalizeFormat(format string) string {
	f := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
	for _, known := range formats {
		if f == known {
			return f
		}
	}
	return DefaultFormat
}
