// Package audio turns uploaded or downloaded WAV files into the float32
// waveforms the model replicas consume.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/wav"
)

// SampleRate is the only rate the models accept.
const SampleRate = 16000

var (
	ErrInvalidWAV            = errors.New("audio: not a valid WAV file")
	ErrUnsupportedSampleRate = errors.New("audio: unsupported sample rate")
)

// Audio is a decoded recording with one waveform per channel.
type Audio struct {
	Channels [][]float32
	Duration float64
}

// Mono averages all channels into one waveform.
func (a Audio) Mono() []float32 {
	switch len(a.Channels) {
	case 0:
		return nil
	case 1:
		return a.Channels[0]
	}
	out := make([]float32, len(a.Channels[0]))
	scale := 1 / float32(len(a.Channels))
	for _, ch := range a.Channels {
		for i, v := range ch {
			out[i] += v * scale
		}
	}
	return out
}

// DecodeWAV reads a PCM WAV file sampled at SampleRate. Samples are scaled
// into [-1, 1).
func DecodeWAV(r io.ReadSeeker) (Audio, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Audio{}, ErrInvalidWAV
	}
	if dec.SampleRate != SampleRate {
		return Audio{}, fmt.Errorf("%w: %d Hz, want %d Hz", ErrUnsupportedSampleRate, dec.SampleRate, SampleRate)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Audio{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	numChans := int(dec.NumChans)
	if numChans <= 0 {
		return Audio{}, fmt.Errorf("%w: no channels", ErrInvalidWAV)
	}
	bitDepth := int(dec.BitDepth)
	if bitDepth <= 0 || bitDepth > 32 {
		return Audio{}, fmt.Errorf("%w: bit depth %d", ErrInvalidWAV, bitDepth)
	}

	frames := len(buf.Data) / numChans
	channels := make([][]float32, numChans)
	for c := range channels {
		channels[c] = make([]float32, frames)
	}
	fullScale := float32(math.Exp2(float64(bitDepth - 1)))
	for i := 0; i < frames*numChans; i++ {
		v := buf.Data[i]
		if bitDepth == 8 {
			// 8-bit PCM is unsigned
			v -= 128
		}
		channels[i%numChans][i/numChans] = float32(v) / fullScale
	}

	return Audio{
		Channels: channels,
		Duration: float64(frames) / SampleRate,
	}, nil
}

// EncodeFloat32LE serializes samples as little-endian IEEE-754 floats.
func EncodeFloat32LE(samples []float32) []byte {
	out := make([]byte, 4*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

// DecodeFloat32LE is the inverse of EncodeFloat32LE.
func DecodeFloat32LE(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("audio: float32 payload length %d is not a multiple of 4", len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return out, nil
}
