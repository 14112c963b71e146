package audio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gopxl/beep"
	beepflac "github.com/gopxl/beep/flac"
	beepmp3 "github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

const resampleQuality = 4

// decodePrimary decodes with beep and resamples to target.
func decodePrimary(data []byte, format string, target int) ([]float32, int, error) {
	var (
		stream beep.StreamSeekCloser
		f      beep.Format
		err    error
	)
	switch format {
	case "wav":
		stream, f, err = wav.Decode(bytes.NewReader(data))
	case "mp3":
		stream, f, err = beepmp3.Decode(io.NopCloser(bytes.NewReader(data)))
	case "flac":
		stream, f, err = beepflac.Decode(bytes.NewReader(data))
	case "ogg":
		stream, f, err = vorbis.Decode(io.NopCloser(bytes.NewReader(data)))
	default:
		return nil, 0, fmt.Errorf("no primary decoder for %s", format)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", format, err)
	}
	defer stream.Close()

	var s beep.Streamer = stream
	if int(f.SampleRate) != target {
		s = beep.Resample(resampleQuality, f.SampleRate, beep.SampleRate(target), stream)
	}
	samples := drain(s)
	if err := s.Err(); err != nil {
		return nil, 0, fmt.Errorf("stream %s: %w", format, err)
	}
	return samples, target, nil
}

// drain reads a streamer to the end, averaging the two channels.
func drain(s beep.Streamer) []float32 {
	buf := make([][2]float64, 1024)
	var out []float32
	for {
		n, ok := s.Stream(buf)
		for i := 0; i < n; i++ {
			out = append(out, float32((buf[i][0]+buf[i][1])/2))
		}
		if !ok || n == 0 {
			return out
		}
	}
}

// monoStreamer replays mono samples on both channels.
type monoStreamer struct {
	samples []float32
	pos     int
}

func (m *monoStreamer) Stream(buf [][2]float64) (int, bool) {
	if m.pos >= len(m.samples) {
		return 0, false
	}
	n := copy2(buf, m.samples[m.pos:])
	m.pos += n
	return n, true
}

func (m *monoStreamer) Err() error { return nil }

func copy2(dst [][2]float64, src []float32) int {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		v := float64(src[i])
		dst[i] = [2]float64{v, v}
	}
	return n
}
