// Package audio turns uploaded recordings into 16 kHz mono WAV for the
// speech pipeline.
package audio

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/language"
	"meeting-insights-go/internal/types"
)

const (
	TargetRate = 16000
	// RateTolerance is how far a native rate may be from the target and
	// still be sent without resampling.
	RateTolerance = 1000
)

// NormalizationError means every decode path failed. The accompanying
// NormalizedAudio carries the original bytes.
type NormalizationError struct {
	Format string
	Err    error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("audio normalization failed (%s): %v", e.Format, e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

type Normalizer struct {
	TargetRate int
	ScratchDir string
	log        *logrus.Entry
}

func New(targetRate int, scratchDir string, log *logrus.Entry) *Normalizer {
	if targetRate <= 0 {
		targetRate = TargetRate
	}
	return &Normalizer{TargetRate: targetRate, ScratchDir: scratchDir, log: log.WithField("component", "audio")}
}

// Normalize never panics on malformed input. On error the result is a
// passthrough of the original bytes flagged best-effort.
func (n *Normalizer) Normalize(buf types.AudioBuffer) (types.NormalizedAudio, error) {
	format := Sniff(buf.Data, buf.Format)
	log := n.log.WithFields(logrus.Fields{"format": format, "bytes": len(buf.Data)})
	if len(buf.Data) == 0 {
		return Passthrough(buf.Data), &NormalizationError{Format: format, Err: errors.New("empty audio")}
	}

	samples, _, err := safeDecode(func() ([]float32, int, error) { return decodePrimary(buf.Data, format, n.TargetRate) })
	if err == nil {
		out, encErr := n.finish(samples, n.TargetRate, types.PathPrimary)
		if encErr == nil {
			log.WithField("samples", len(samples)).Debug("normalized via primary decoder")
			return out, nil
		}
		err = encErr
	}
	log.WithField("error", err.Error()).Warn("primary decode failed, trying native decoder")

	native, rate, secErr := safeDecode(func() ([]float32, int, error) { return decodeNative(buf.Data, format) })
	if secErr != nil {
		log.WithField("error", secErr.Error()).Warn("all decoders failed, passing original bytes through")
		return Passthrough(buf.Data), &NormalizationError{Format: format, Err: errors.Join(err, secErr)}
	}

	adjusted, outRate, path := ApplyRatePolicy(native, rate, n.TargetRate)
	if path == types.PathPassthrough {
		log.WithField("native_rate", rate).Warn("native rate below target, sending original bytes")
		out := Passthrough(buf.Data)
		out.Samples = Standardize(native)
		out.SampleRate = rate
		return out, nil
	}
	out, encErr := n.finish(adjusted, outRate, path)
	if encErr != nil {
		return Passthrough(buf.Data), &NormalizationError{Format: format, Err: encErr}
	}
	log.WithFields(logrus.Fields{"native_rate": rate, "rate": outRate, "path": path}).Info("normalized via native decoder")
	return out, nil
}

func (n *Normalizer) finish(samples []float32, rate int, path string) (types.NormalizedAudio, error) {
	samples = Standardize(samples)
	transport, err := EncodeWAV(samples, rate, n.ScratchDir)
	if err != nil {
		return types.NormalizedAudio{}, err
	}
	return types.NormalizedAudio{Samples: samples, SampleRate: rate, Transport: transport, Path: path}, nil
}

// ApplyRatePolicy decides what to do with audio decoded at its native rate.
// Within tolerance it is kept; above target it is decimated by an integer
// step (no low-pass filter); below target the caller should fall back to the
// original bytes, signalled by PathPassthrough.
func ApplyRatePolicy(samples []float32, native, target int) ([]float32, int, string) {
	diff := native - target
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff < RateTolerance:
		return samples, native, types.PathSecondary
	case native > target:
		out, rate := Decimate(samples, native, target)
		return out, rate, types.PathDecimated
	default:
		return samples, native, types.PathPassthrough
	}
}

// Decimate keeps every step-th sample, step = floor(native/target).
func Decimate(samples []float32, native, target int) ([]float32, int) {
	step := 1
	if target > 0 {
		step = native / target
	}
	if step <= 1 {
		return samples, native
	}
	out := make([]float32, 0, len(samples)/step+1)
	for i := 0; i < len(samples); i += step {
		out = append(out, samples[i])
	}
	return out, native / step
}

// Standardize zeroes NaN and infinite samples, then scales so the peak
// magnitude is at most 1.
func Standardize(samples []float32) []float32 {
	out := samples
	copied := false
	var peak float64
	for i, s := range samples {
		v := float64(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			if !copied {
				out = append([]float32(nil), samples...)
				copied = true
			}
			out[i] = 0
			continue
		}
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak <= 1 {
		return out
	}
	scaled := make([]float32, len(out))
	for i, s := range out {
		scaled[i] = float32(float64(s) / peak)
	}
	return scaled
}

// Passthrough wraps the original bytes unmodified.
func Passthrough(raw []byte) types.NormalizedAudio {
	return types.NormalizedAudio{
		Transport:  base64.StdEncoding.EncodeToString(raw),
		BestEffort: true,
		Path:       types.PathPassthrough,
	}
}

// Sniff identifies the container from magic bytes, falling back to the
// declared format.
func Sniff(data []byte, declared string) string {
	switch {
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return "wav"
	case bytes.HasPrefix(data, []byte("fLaC")):
		return "flac"
	case bytes.HasPrefix(data, []byte("OggS")):
		return "ogg"
	case bytes.HasPrefix(data, []byte("ID3")), len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	}
	return language.NormalizeFormat(declared)
}

func safeDecode(fn func() ([]float32, int, error)) (samples []float32, rate int, err error) {
	defer func() {
		if r := recover(); r != nil {
			samples, rate, err = nil, 0, fmt.Errorf("decoder panic: %v", r)
		}
	}()
	samples, rate, err = fn()
	if err == nil && len(samples) == 0 {
		err = errors.New("no samples decoded")
	}
	return samples, rate, err
}
