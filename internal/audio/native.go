package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// decodeNative decodes at the file's own rate, downmixed to mono.
func decodeNative(data []byte, format string) ([]float32, int, error) {
	switch format {
	case "wav":
		return DecodeRIFF(data)
	case "mp3":
		return decodeMP3(data)
	case "flac":
		return decodeFLAC(data)
	default:
		return nil, 0, fmt.Errorf("no native decoder for %s", format)
	}
}

// go-mp3 always yields 16-bit little endian stereo.
func decodeMP3(data []byte) ([]float32, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("mp3 decoder: %w", err)
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("mp3 decode: %w", err)
	}
	out := make([]float32, 0, len(pcm)/4)
	for i := 0; i+4 <= len(pcm); i += 4 {
		l := int16(binary.LittleEndian.Uint16(pcm[i:]))
		r := int16(binary.LittleEndian.Uint16(pcm[i+2:]))
		out = append(out, (float32(l)+float32(r))/2/32768)
	}
	return out, dec.SampleRate(), nil
}

func decodeFLAC(data []byte) ([]float32, int, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("flac stream: %w", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	if channels == 0 || stream.Info.BitsPerSample == 0 {
		return nil, 0, errors.New("flac stream has no channels")
	}
	scale := float32(int64(1) << (stream.Info.BitsPerSample - 1))
	var out []float32
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("flac frame: %w", err)
		}
		for i := 0; i < int(frame.BlockSize); i++ {
			var sum float32
			for ch := 0; ch < channels && ch < len(frame.Subframes); ch++ {
				sum += float32(frame.Subframes[ch].Samples[i])
			}
			out = append(out, sum/float32(channels)/scale)
		}
	}
	return out, int(stream.Info.SampleRate), nil
}

const (
	wavePCM        = 1
	waveFloat      = 3
	waveExtensible = 0xFFFE
)

type waveFormat struct {
	tag      uint16
	channels int
	rate     int
	bits     int
}

// DecodeRIFF is a lenient RIFF/WAVE reader. It accepts PCM at 8/16/24/32
// bits and IEEE float at 32/64 bits, including the extensible header, and
// tolerates a wrong or missing data chunk size.
func DecodeRIFF(data []byte) ([]float32, int, error) {
	if len(data) < 12 || string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, errors.New("not a RIFF/WAVE file")
	}
	var (
		wf      *waveFormat
		payload []byte
	)
	for pos := 12; pos+8 <= len(data); {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4:]))
		body := pos + 8
		end := body + size
		if size < 0 || end > len(data) {
			end = len(data)
		}
		switch id {
		case "fmt ":
			f, err := parseFormatChunk(data[body:end])
			if err != nil {
				return nil, 0, err
			}
			wf = f
		case "data":
			if size == 0 {
				end = len(data)
			}
			payload = data[body:end]
		}
		if payload != nil && wf != nil {
			break
		}
		pos = end + size%2
		if end == len(data) {
			break
		}
	}
	if wf == nil {
		return nil, 0, errors.New("wav: missing fmt chunk")
	}
	if payload == nil {
		return nil, 0, errors.New("wav: missing data chunk")
	}
	return wf.decode(payload)
}

func parseFormatChunk(b []byte) (*waveFormat, error) {
	if len(b) < 16 {
		return nil, errors.New("wav: short fmt chunk")
	}
	wf := &waveFormat{
		tag:      binary.LittleEndian.Uint16(b[0:]),
		channels: int(binary.LittleEndian.Uint16(b[2:])),
		rate:     int(binary.LittleEndian.Uint32(b[4:])),
		bits:     int(binary.LittleEndian.Uint16(b[14:])),
	}
	if wf.tag == waveExtensible && len(b) >= 26 {
		wf.tag = binary.LittleEndian.Uint16(b[24:])
	}
	if wf.channels < 1 || wf.rate < 1 {
		return nil, fmt.Errorf("wav: invalid header (%d channels, %d Hz)", wf.channels, wf.rate)
	}
	return wf, nil
}

func (wf *waveFormat) decode(payload []byte) ([]float32, int, error) {
	width := wf.bits / 8
	var sample func([]byte) float32
	switch {
	case wf.tag == wavePCM && wf.bits == 8:
		sample = func(b []byte) float32 { return (float32(b[0]) - 128) / 128 }
	case wf.tag == wavePCM && wf.bits == 16:
		sample = func(b []byte) float32 { return float32(int16(binary.LittleEndian.Uint16(b))) / 32768 }
	case wf.tag == wavePCM && wf.bits == 24:
		sample = func(b []byte) float32 {
			v := int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16
			return float32(v) / 8388608
		}
	case wf.tag == wavePCM && wf.bits == 32:
		sample = func(b []byte) float32 { return float32(float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648) }
	case wf.tag == waveFloat && wf.bits == 32:
		sample = func(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }
	case wf.tag == waveFloat && wf.bits == 64:
		sample = func(b []byte) float32 { return float32(math.Float64frombits(binary.LittleEndian.Uint64(b))) }
	default:
		return nil, 0, fmt.Errorf("wav: unsupported encoding tag=%d bits=%d", wf.tag, wf.bits)
	}

	frame := width * wf.channels
	out := make([]float32, 0, len(payload)/frame)
	for pos := 0; pos+frame <= len(payload); pos += frame {
		var sum float32
		for ch := 0; ch < wf.channels; ch++ {
			sum += sample(payload[pos+ch*width:])
		}
		out = append(out, sum/float32(wf.channels))
	}
	return out, wf.rate, nil
}
