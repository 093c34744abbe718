// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ffmpeg discovers media properties with ffprobe.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/passforge/internal/log"
	"github.com/ManuGH/passforge/internal/pipeline/model"
	"github.com/ManuGH/passforge/internal/procgroup"
)

const maxStderr = 4096

// ErrNoStreams is returned when ffprobe output carries neither audio nor video.
var ErrNoStreams = errors.New("ffprobe returned no playable streams")

// RunFunc executes the probe binary and returns stdout and stderr.
type RunFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// Prober implements the controller Discoverer using ffprobe.
type Prober struct {
	BinaryPath string
	Run        RunFunc
	logger     zerolog.Logger
}

func NewProber(binaryPath string) *Prober {
	if binaryPath == "" {
		binaryPath = "ffprobe"
	}
	return &Prober{
		BinaryPath: binaryPath,
		Run:        execRun,
		logger:     log.WithComponent("ffprobe"),
	}
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := procgroup.CommandContext(ctx, procgroup.DefaultGrace, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	return out, stderr.Bytes(), err
}

// Discover probes uri. Only file URIs and plain paths are supported by ffprobe
// here; other schemes are passed through untouched.
func (p *Prober) Discover(ctx context.Context, uri string) (*model.MediaDescriptor, error) {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		target(uri),
	}
	out, stderr, err := p.Run(ctx, p.BinaryPath, args...)

	logger := log.WithContext(ctx, p.logger)
	desc, parseErr := Parse(out)
	switch {
	case parseErr == nil:
		if err != nil {
			// Non-zero exit with usable JSON: partial files still probe fine.
			logger.Warn().Err(err).Str(log.FieldURI, uri).Str("stderr", truncate(stderr)).Msg("ffprobe non-zero exit but JSON accepted")
		}
	case err != nil:
		return nil, fmt.Errorf("ffprobe failed: %w (stderr: %s)", err, truncate(stderr))
	case errors.Is(parseErr, ErrNoStreams):
		// Readable but not media: reported as a descriptor without streams.
		desc = &model.MediaDescriptor{}
	default:
		return nil, parseErr
	}
	desc.URI = uri
	logger.Debug().
		Str(log.FieldURI, uri).
		Bool("video", desc.HasVideo).
		Bool("audio", desc.HasAudio).
		Dur("duration", desc.Duration()).
		Msg("probe complete")
	return desc, nil
}

// Parse converts ffprobe JSON into a descriptor. The first video and the
// first audio stream are used.
func Parse(out []byte) (*model.MediaDescriptor, error) {
	var data probeData
	if err := json.Unmarshal(out, &data); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}

	desc := &model.MediaDescriptor{Tags: map[string]string{}}
	for _, s := range data.Streams {
		if s.CodecName == "" {
			continue
		}
		switch s.CodecType {
		case "video":
			if desc.HasVideo {
				continue
			}
			desc.HasVideo = true
			desc.Width, desc.Height = s.Width, s.Height
			desc.VideoDuration = seconds(s.Duration)
			desc.FrameRate = frameRate(s.AvgFrameRate, s.RFrameRate)
			if par, ok := aspect(s.SampleAspectRatio); ok {
				desc.PAR = &par
			}
		case "audio":
			if desc.HasAudio {
				continue
			}
			desc.HasAudio = true
			desc.AudioDuration = seconds(s.Duration)
			rate, _ := strconv.Atoi(s.SampleRate)
			desc.Audio = model.AudioInfo{
				Width:    s.BitsPerSample,
				Depth:    s.BitsPerSample,
				Rate:     rate,
				Channels: s.Channels,
			}
		}
	}
	if !desc.HasVideo && !desc.HasAudio {
		return nil, ErrNoStreams
	}

	// Container duration fills streams that do not report their own.
	total := seconds(data.Format.Duration)
	if desc.HasVideo && desc.VideoDuration == 0 {
		desc.VideoDuration = total
	}
	if desc.HasAudio && desc.AudioDuration == 0 {
		desc.AudioDuration = total
	}
	if size, err := strconv.ParseInt(data.Format.Size, 10, 64); err == nil {
		desc.Size = size
	}
	for k, v := range data.Format.Tags {
		desc.Tags[strings.ToLower(k)] = v
	}
	return desc, nil
}

func target(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	return u.Path
}

func seconds(s string) time.Duration {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

// frameRate prefers avg_frame_rate and falls back to r_frame_rate.
func frameRate(candidates ...string) model.Rational {
	for _, c := range candidates {
		if c == "" || c == "0/0" {
			continue
		}
		if r, err := model.ParseRational(c); err == nil && r.Valid() && r.Num > 0 {
			return r
		}
	}
	return model.Rational{}
}

// aspect parses ffprobe's "num:den" ratios.
func aspect(s string) (model.Rational, bool) {
	num, den, ok := strings.Cut(s, ":")
	if !ok {
		return model.Rational{}, false
	}
	n, err1 := strconv.Atoi(num)
	d, err2 := strconv.Atoi(den)
	if err1 != nil || err2 != nil || n <= 0 || d <= 0 {
		return model.Rational{}, false
	}
	return model.R(n, d), true
}

func truncate(b []byte) string {
	s := string(b)
	if len(s) > maxStderr {
		return s[:maxStderr] + "..."
	}
	return s
}

type probeData struct {
	Streams []struct {
		CodecType         string `json:"codec_type"`
		CodecName         string `json:"codec_name"`
		Duration          string `json:"duration,omitempty"`
		Width             int    `json:"width,omitempty"`
		Height            int    `json:"height,omitempty"`
		AvgFrameRate      string `json:"avg_frame_rate,omitempty"`
		RFrameRate        string `json:"r_frame_rate,omitempty"`
		SampleAspectRatio string `json:"sample_aspect_ratio,omitempty"`
		SampleRate        string `json:"sample_rate,omitempty"`
		Channels          int    `json:"channels,omitempty"`
		BitsPerSample     int    `json:"bits_per_sample,omitempty"`
	} `json:"streams"`
	Format struct {
		Duration   string            `json:"duration"`
		FormatName string            `json:"format_name"`
		Size       string            `json:"size"`
		Tags       map[string]string `json:"tags"`
	} `json:"format"`
}
