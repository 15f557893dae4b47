package audio

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/go-audio/wav"
)

// wavFormatPCM is the WAVE_FORMAT_PCM tag; other encodings are rejected.
const wavFormatPCM = 1

// DecodeFile reads an audio file from disk and decodes it.
func DecodeFile(path string) (Waveform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Waveform{}, &DecodeError{Reason: "unreadable source", Err: err}
	}
	return DecodeBytes(data)
}

// DecodeBytes decodes an in-memory audio buffer.
func DecodeBytes(data []byte) (Waveform, error) {
	if len(data) == 0 {
		return Waveform{}, &DecodeError{Reason: "empty source"}
	}
	return Decode(bytes.NewReader(data))
}

// Decode reads a RIFF/WAVE integer PCM stream and returns it as a 16kHz mono
// waveform.
func Decode(r io.ReadSeeker) (Waveform, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		if err := d.Err(); err != nil && !errors.Is(err, io.EOF) {
			return Waveform{}, &DecodeError{Reason: "unsupported format", Err: err}
		}
		return Waveform{}, &DecodeError{Reason: "unsupported format"}
	}
	if d.WavAudioFormat != wavFormatPCM {
		return Waveform{}, &DecodeError{Reason: "only integer PCM WAV is supported"}
	}
	if d.SampleRate == 0 {
		return Waveform{}, &DecodeError{Reason: "invalid sample rate"}
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Waveform{}, &DecodeError{Reason: "corrupt sample data", Err: err}
	}
	if buf == nil || len(buf.Data) == 0 {
		return Waveform{}, &DecodeError{Reason: "no samples"}
	}

	channels := int(d.NumChans)
	if channels < 1 {
		return Waveform{}, &DecodeError{Reason: "invalid channel count"}
	}
	if len(buf.Data) < channels {
		return Waveform{}, &DecodeError{Reason: "no samples"}
	}

	mono := downmix(buf.Data, channels, int(d.BitDepth))
	return Waveform{
		Samples:    Resample(mono, int(d.SampleRate), TargetSampleRate),
		SampleRate: TargetSampleRate,
	}, nil
}

// downmix averages interleaved integer frames into normalized mono samples.
// 8-bit WAV is unsigned and centered on 128; wider depths are signed.
func downmix(data []int, channels, bitDepth int) []float32 {
	scale := float64(int64(1) << (bitDepth - 1))
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}

	frames := len(data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(data[i*channels+c] - offset)
		}
		v := sum / float64(channels) / scale
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		out[i] = float32(v)
	}
	return out
}
