// Package audioprobe reads lightweight metadata (duration, embedded title)
// from audio files so archive entries can carry informative labels.
package audioprobe

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

// Info is the probed metadata for one audio file. Zero values mean the field
// could not be determined.
type Info struct {
	Title    string
	Duration int // seconds
}

// Describe renders the info for inclusion in a label, e.g. "Take 3 (2:45)".
func (i Info) Describe() string {
	var parts []string
	if i.Title != "" {
		parts = append(parts, i.Title)
	}
	if i.Duration > 0 {
		parts = append(parts, fmt.Sprintf("%d:%02d", i.Duration/60, i.Duration%60))
	}
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return fmt.Sprintf("%s (%s)", parts[0], parts[1])
}

// Prober extracts Info from audio files. Failures are soft: a file that
// cannot be probed yields a zero Info.
type Prober struct {
	logger *logrus.Logger
}

// NewProber creates a prober.
func NewProber() *Prober {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Prober{logger: logger}
}

// Probe reads the embedded title tag and calculates the duration. Either
// part may fail independently; whatever was recovered is returned.
func (p *Prober) Probe(path string) Info {
	var info Info

	if f, err := os.Open(path); err == nil {
		if meta, err := tag.ReadFrom(f); err == nil {
			info.Title = meta.Title()
		}
		f.Close()
	}

	duration, err := p.calculateDuration(path)
	if err != nil {
		p.logger.WithError(err).WithField("path", path).Debug("Could not determine audio duration")
	} else {
		info.Duration = duration
	}

	return info
}

// calculateDuration calculates the duration of an audio file in seconds.
func (p *Prober) calculateDuration(path string) (int, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp3":
		return p.durationMP3(path)
	case ".flac":
		return p.durationFLAC(path)
	case ".wav":
		return p.durationWAV(path)
	default:
		return 0, fmt.Errorf("unsupported format: %s", ext)
	}
}

// MP3 duration by decoding frames and summing their durations.
func (p *Prober) durationMP3(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := mp3.NewDecoder(f)
	var total float64
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 {
				return 0, fmt.Errorf("no decodable mp3 frames: %w", err)
			}
			break // partial decode; use what we have
		}
		total += fr.Duration().Seconds()
		frames++
	}
	return int(total), nil
}

// FLAC duration via the STREAMINFO metadata block.
func (p *Prober) durationFLAC(path string) (int, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	si := stream.Info
	if si.NSamples > 0 && si.SampleRate > 0 {
		secs := float64(si.NSamples) / float64(si.SampleRate)
		return int(secs + 0.5), nil
	}
	return 0, fmt.Errorf("flac stream missing sample info")
}

// WAV duration from the header plus file size.
func (p *Prober) durationWAV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return 0, fmt.Errorf("invalid wav header")
	}

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	headerSize := int64(44)
	pcmBytes := st.Size() - headerSize
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	bytesPerSampleFrame := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if bytesPerSampleFrame <= 0 {
		return 0, fmt.Errorf("invalid sample frame size")
	}
	sampleFrames := pcmBytes / bytesPerSampleFrame
	secs := float64(sampleFrames) / float64(dec.SampleRate)
	return int(secs + 0.5), nil
}
