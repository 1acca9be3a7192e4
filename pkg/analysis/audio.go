package analysis

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// DefaultSampleRate is the analysis rate every input is resampled to.
const DefaultSampleRate = 22050

// Audio is a mono waveform at a fixed sample rate.
type Audio struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the length of the waveform in seconds.
func (a *Audio) Duration() float64 {
	if a == nil || a.SampleRate == 0 {
		return 0
	}
	return float64(len(a.Samples)) / float64(a.SampleRate)
}

// LoadOptions controls decoding and resampling.
type LoadOptions struct {
	SampleRate int    // target rate, 0 keeps the native rate
	FFmpegBin  string // used for formats without a native decoder
}

// Load decodes path to mono and resamples it to opts.SampleRate.
func Load(ctx context.Context, path string, opts LoadOptions) (*Audio, error) {
	var (
		samples []float32
		rate    int
		err     error
	)

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp3", ".wav", ".wave":
		samples, rate, err = LoadAudioMono(path)
	default:
		if !IsSupportedAudio(ext) {
			return nil, fmt.Errorf("unsupported audio format: %s", ext)
		}
		samples, rate, err = decodeFFmpeg(ctx, opts.FFmpegBin, path, opts.SampleRate)
	}
	if err != nil {
		return nil, fmt.Errorf("load audio: %w", err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("load audio: %s contains no samples", filepath.Base(path))
	}

	if opts.SampleRate > 0 && opts.SampleRate != rate {
		samples = Resample(samples, rate, opts.SampleRate)
		rate = opts.SampleRate
	}

	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s)
	}
	return &Audio{Samples: out, SampleRate: rate}, nil
}

// LoadAudioMono loads an mp3 or wav file and returns mono float32 samples and sample rate.
func LoadAudioMono(path string) ([]float32, int, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".mp3":
		return loadMP3Mono(path)
	case ".wav", ".wave":
		return loadWAVMono(path)
	default:
		return nil, 0, fmt.Errorf("unsupported audio format: %s", ext)
	}
}

// IsSupportedAudio reports whether ext (with leading dot) can be loaded.
func IsSupportedAudio(ext string) bool {
	switch strings.ToLower(ext) {
	case ".mp3", ".wav", ".wave", ".m4a", ".aac", ".flac", ".ogg", ".aiff", ".aif":
		return true
	default:
		return false
	}
}

// go-mp3 emits this many extra samples ahead of the first encoded frame.
const goMP3DecoderDelay = 924

// Used when the file carries no LAME header.
const defaultEncoderDelay = 576

// readLAMEEncoderDelay reads the encoder delay from a LAME/Xing header if present.
func readLAMEEncoderDelay(r io.Reader) int {
	buf := make([]byte, 4096)
	n, err := io.ReadFull(r, buf)
	if err != nil && n < 200 {
		return defaultEncoderDelay
	}
	buf = buf[:n]

	// encoder delay is the upper 12 bits of the 24-bit field 21 bytes after "LAME"
	idx := bytes.Index(buf, []byte("LAME"))
	if idx == -1 || idx+24 > len(buf) {
		return defaultEncoderDelay
	}
	b := buf[idx+21 : idx+24]
	delay := (int(b[0]) << 4) | (int(b[1]) >> 4)
	if delay > 4096 {
		return defaultEncoderDelay
	}
	return delay
}

// loadMP3Mono decodes an MP3 file, mixes it to mono and trims the codec delay.
func loadMP3Mono(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	delay := readLAMEEncoderDelay(f) + goMP3DecoderDelay
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("failed to rewind file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create MP3 decoder: %w", err)
	}

	// go-mp3 always produces 16-bit little endian stereo
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode MP3: %w", err)
	}

	n := len(pcm) / 4
	samples := make([]float32, n)
	for i := range n {
		left := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
		right := int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
		samples[i] = (float32(left) + float32(right)) / 2 / 32768
	}

	if len(samples) > delay {
		samples = samples[delay:]
	}
	return samples, decoder.SampleRate(), nil
}

// loadWAVMono decodes a PCM wav file and averages its channels.
func loadWAVMono(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid wav file: %s", filepath.Base(path))
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels == 0 {
		return nil, 0, fmt.Errorf("wav file has no format chunk")
	}

	return mixDown(buf, int(decoder.BitDepth)), buf.Format.SampleRate, nil
}

// mixDown converts interleaved integer PCM to normalized mono.
func mixDown(buf *audio.IntBuffer, bitDepth int) []float32 {
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float32(math.Pow(2, float64(bitDepth-1)))
	// 8-bit wav is unsigned
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}

	channels := buf.Format.NumChannels
	n := len(buf.Data) / channels
	samples := make([]float32, n)
	for i := range n {
		var sum float32
		for c := range channels {
			sum += float32(buf.Data[i*channels+c]-offset) / scale
		}
		samples[i] = sum / float32(channels)
	}
	return samples
}

// decodeFFmpeg shells out to ffmpeg for containers the native decoders don't cover.
func decodeFFmpeg(ctx context.Context, bin, path string, rate int) ([]float32, int, error) {
	if bin == "" {
		bin = "ffmpeg"
	}
	if rate <= 0 {
		rate = DefaultSampleRate
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-f", "f32le", "-ac", "1", "-ar", strconv.Itoa(rate),
		"-",
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, 0, fmt.Errorf("ffmpeg decode: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	raw := stdout.Bytes()
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return samples, rate, nil
}

// Resample converts samples from srcRate to dstRate using linear interpolation.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 {
		return samples
	}

	ratio := float64(srcRate) / float64(dstRate)
	n := int(math.Ceil(float64(len(samples)) / ratio))
	out := make([]float32, n)

	for i := range n {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))

		switch {
		case idx+1 < len(samples):
			out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
		case idx < len(samples):
			out[i] = samples[idx]
		}
	}
	return out
}
