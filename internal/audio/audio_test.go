package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"testing"

	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/types"
)

// pcmWAV builds a 16-bit PCM WAV file.
func pcmWAV(rate, channels int, frames []int16) []byte {
	var b bytes.Buffer
	dataLen := len(frames) * 2
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+dataLen))
	b.WriteString("WAVEfmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(wavePCM))
	binary.Write(&b, binary.LittleEndian, uint16(channels))
	binary.Write(&b, binary.LittleEndian, uint32(rate))
	binary.Write(&b, binary.LittleEndian, uint32(rate*channels*2))
	binary.Write(&b, binary.LittleEndian, uint16(channels*2))
	binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(dataLen))
	binary.Write(&b, binary.LittleEndian, frames)
	return b.Bytes()
}

// floatWAV builds a mono IEEE float WAV with a declared data size of zero.
func floatWAV(rate int, samples []float32) []byte {
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(0))
	b.WriteString("WAVEfmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(waveFloat))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint32(rate))
	binary.Write(&b, binary.LittleEndian, uint32(rate*4))
	binary.Write(&b, binary.LittleEndian, uint16(4))
	binary.Write(&b, binary.LittleEndian, uint16(32))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(0))
	binary.Write(&b, binary.LittleEndian, samples)
	return b.Bytes()
}

func sine(rate int, seconds float64, amp float64) []int16 {
	n := int(float64(rate) * seconds)
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amp * 32767 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return out
}

func newTestNormalizer(t *testing.T) *Normalizer {
	return New(TargetRate, t.TempDir(), logger.Nop().Entry)
}

func TestNormalizeTargetRateWAV(t *testing.T) {
	n := newTestNormalizer(t)
	out, err := n.Normalize(types.AudioBuffer{Data: pcmWAV(16000, 1, sine(16000, 0.5, 0.8)), Format: "wav"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Path != types.PathPrimary || out.SampleRate != 16000 || out.BestEffort {
		t.Fatalf("unexpected result path=%s rate=%d best=%v", out.Path, out.SampleRate, out.BestEffort)
	}
	if len(out.Samples) != 8000 {
		t.Errorf("expected 8000 samples, got %d", len(out.Samples))
	}

	raw, err := base64.StdEncoding.DecodeString(out.Transport)
	if err != nil {
		t.Fatalf("transport is not base64: %v", err)
	}
	samples, rate, err := DecodeRIFF(raw)
	if err != nil || rate != 16000 || len(samples) != 8000 {
		t.Fatalf("transport wav unreadable: rate=%d n=%d err=%v", rate, len(samples), err)
	}
}

func TestNormalizeResamplesStereo(t *testing.T) {
	mono := sine(44100, 1, 0.5)
	stereo := make([]int16, 0, len(mono)*2)
	for _, s := range mono {
		stereo = append(stereo, s, s)
	}
	n := newTestNormalizer(t)
	out, err := n.Normalize(types.AudioBuffer{Data: pcmWAV(44100, 2, stereo), Format: "mp3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.SampleRate != 16000 {
		t.Fatalf("expected 16000 Hz, got %d", out.SampleRate)
	}
	if d := len(out.Samples) - 16000; d < -200 || d > 200 {
		t.Errorf("expected about 16000 samples, got %d", len(out.Samples))
	}
	for _, s := range out.Samples {
		if s > 1 || s < -1 {
			t.Fatalf("sample out of range: %f", s)
		}
	}
}

func TestNormalizeSilenceStaysSilent(t *testing.T) {
	n := newTestNormalizer(t)
	out, err := n.Normalize(types.AudioBuffer{Data: pcmWAV(16000, 1, make([]int16, 1600)), Format: "wav"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, s := range out.Samples {
		if s != 0 {
			t.Fatalf("sample %d not silent: %f", i, s)
		}
	}
}

func TestNormalizeGarbagePassesThrough(t *testing.T) {
	raw := []byte("definitely not audio at all")
	n := newTestNormalizer(t)
	out, err := n.Normalize(types.AudioBuffer{Data: raw, Format: "m4a"})
	if err == nil {
		t.Fatal("expected a normalization error")
	}
	var nerr *NormalizationError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected *NormalizationError, got %T", err)
	}
	if !out.BestEffort || out.Path != types.PathPassthrough {
		t.Fatalf("expected best-effort passthrough, got %+v", out)
	}
	if out.Transport != base64.StdEncoding.EncodeToString(raw) {
		t.Fatal("passthrough must carry the original bytes")
	}
}

func TestNormalizeEmptyInput(t *testing.T) {
	n := newTestNormalizer(t)
	out, err := n.Normalize(types.AudioBuffer{})
	if err == nil || !out.BestEffort {
		t.Fatalf("expected error and best-effort result, got %+v %v", out, err)
	}
}

func TestNormalizeLeavesNoScratchFiles(t *testing.T) {
	dir := t.TempDir()
	n := New(TargetRate, dir, logger.Nop().Entry)
	n.Normalize(types.AudioBuffer{Data: pcmWAV(16000, 1, sine(16000, 0.1, 0.5))})
	n.Normalize(types.AudioBuffer{Data: []byte("RIFF....WAVEjunk")})
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("scratch files left behind: %d", len(entries))
	}
}

func TestDecodeRIFFFloatWithZeroDataSize(t *testing.T) {
	samples, rate, err := DecodeRIFF(floatWAV(22050, []float32{0.25, -0.5, 1.5}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rate != 22050 || len(samples) != 3 || samples[1] != -0.5 {
		t.Fatalf("unexpected decode rate=%d samples=%v", rate, samples)
	}
}

func TestDecodeRIFFDownmixes(t *testing.T) {
	samples, _, err := DecodeRIFF(pcmWAV(8000, 2, []int16{16384, 0, -16384, -16384}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 2 || samples[0] != 0.25 || samples[1] != -0.5 {
		t.Fatalf("unexpected downmix %v", samples)
	}
}

func TestDecodeRIFFRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeRIFF([]byte("RIFF\x00\x00\x00\x00WAVE")); err == nil {
		t.Fatal("expected error for a header without chunks")
	}
	if _, _, err := DecodeRIFF([]byte("OggS")); err == nil {
		t.Fatal("expected error for a non-RIFF file")
	}
}

func TestApplyRatePolicy(t *testing.T) {
	in := make([]float32, 480)
	for i := range in {
		in[i] = float32(i)
	}

	if _, rate, path := ApplyRatePolicy(in, 16500, 16000); path != types.PathSecondary || rate != 16500 {
		t.Errorf("within tolerance: got %s at %d", path, rate)
	}
	out, rate, path := ApplyRatePolicy(in, 48000, 16000)
	if path != types.PathDecimated || rate != 16000 || len(out) != 160 || out[1] != 3 {
		t.Errorf("decimation: got %s at %d, %d samples", path, rate, len(out))
	}
	out, rate, path = ApplyRatePolicy(in, 44100, 16000)
	if path != types.PathDecimated || rate != 22050 || len(out) != 240 {
		t.Errorf("44.1k decimation: got %s at %d, %d samples", path, rate, len(out))
	}
	if _, _, path := ApplyRatePolicy(in, 8000, 16000); path != types.PathPassthrough {
		t.Errorf("below target should pass through, got %s", path)
	}
}

func TestStandardize(t *testing.T) {
	got := Standardize([]float32{2, -4, 1})
	if got[0] != 0.5 || got[1] != -1 || got[2] != 0.25 {
		t.Fatalf("unexpected scaling %v", got)
	}
	quiet := []float32{0.5, -0.25}
	if got := Standardize(quiet); got[0] != 0.5 || got[1] != -0.25 {
		t.Fatalf("quiet audio should be untouched, got %v", got)
	}
}

func TestStandardizeDropsNonFinite(t *testing.T) {
	inf := float32(math.Inf(1))
	nan := float32(math.NaN())
	in := []float32{0.5, inf, -0.25, nan, float32(math.Inf(-1))}
	got := Standardize(in)
	want := []float32{0.5, 0, -0.25, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d: got %v, want %v (all %v)", i, got[i], want[i], got)
		}
	}
	if in[1] != inf {
		t.Fatal("input slice was modified")
	}
	if got := Standardize([]float32{2, inf}); got[0] != 1 || got[1] != 0 {
		t.Fatalf("peak should ignore infinities, got %v", got)
	}
}

func TestNormalizeFloatWAVWithInfinity(t *testing.T) {
	samples := []float32{0.5, 0.5, float32(math.Inf(1)), 0.5, 0.5}
	out, err := newTestNormalizer(t).Normalize(types.AudioBuffer{Data: floatWAV(16000, samples), Format: "wav"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	kept := 0
	for i, s := range out.Samples {
		v := float64(s)
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > 1 {
			t.Fatalf("sample %d out of range: %v", i, s)
		}
		if math.Abs(v-0.5) < 1e-3 {
			kept++
		}
	}
	if kept == 0 {
		t.Fatalf("finite samples were wiped: %v", out.Samples)
	}
}

func TestSniff(t *testing.T) {
	cases := []struct {
		data     []byte
		declared string
		want     string
	}{
		{pcmWAV(8000, 1, []int16{0}), "mp3", "wav"},
		{[]byte("fLaC\x00"), "wav", "flac"},
		{[]byte("OggS\x00"), "", "ogg"},
		{[]byte("ID3\x04"), "wav", "mp3"},
		{[]byte{0xFF, 0xFB, 0x90}, "", "mp3"},
		{[]byte("????"), "M4A", "m4a"},
		{[]byte("????"), "aiff", "wav"},
	}
	for _, c := range cases {
		if got := Sniff(c.data, c.declared); got != c.want {
			t.Errorf("Sniff(%q, %q) = %s, want %s", c.data, c.declared, got, c.want)
		}
	}
}
