package audio

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// EncodeWAV writes 16-bit mono WAV through a scratch file and returns it
// base64 encoded. The scratch file is removed before returning.
func EncodeWAV(samples []float32, rate int, scratchDir string) (string, error) {
	f, err := os.CreateTemp(scratchDir, "normalized-*.wav")
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	format := beep.Format{SampleRate: beep.SampleRate(rate), NumChannels: 1, Precision: 2}
	if err := wav.Encode(f, &monoStreamer{samples: samples}, format); err != nil {
		return "", fmt.Errorf("encode wav: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind scratch file: %w", err)
	}
	raw, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("read scratch file: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
