// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ManuGH/passforge/internal/pipeline/model"
	"github.com/ManuGH/passforge/internal/validate"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

type cliFlags struct {
	configPath  string
	showVersion bool
	presetsPath string
	presetName  string
	reportPath  string
	discovery   string
	ffprobePath string
	listen      string
	speed       float64
	opts        model.TranscodeOptions
}

// optInt is an int flag that stays nil unless given.
type optInt struct{ p **int }

func (o optInt) String() string {
	if o.p == nil || *o.p == nil {
		return ""
	}
	return strconv.Itoa(**o.p)
}

func (o optInt) Set(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*o.p = &v
	return nil
}

// cropFlag parses "top,right,bottom,left".
type cropFlag struct{ p **model.Crop }

func (c cropFlag) String() string {
	if c.p == nil || *c.p == nil {
		return ""
	}
	v := **c.p
	return fmt.Sprintf("%d,%d,%d,%d", v.Top, v.Right, v.Bottom, v.Left)
}

func (c cropFlag) Set(s string) error {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return errors.New("crop needs four comma separated values: top,right,bottom,left")
	}
	var vals [4]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("crop value %q: %w", p, err)
		}
		vals[i] = v
	}
	*c.p = &model.Crop{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[3]}
	return nil
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	f := &cliFlags{opts: model.DefaultOptions()}
	fs := flag.NewFlagSet("passforge", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.configPath, "config", "", "path to config file (YAML)")
	fs.BoolVar(&f.showVersion, "version", false, "print version and exit")
	fs.StringVar(&f.presetsPath, "presets", "", "preset catalog path (overrides config)")
	fs.StringVar(&f.presetName, "preset", "", "preset name")
	fs.StringVar(&f.reportPath, "report", "", "write a JSON job report to this path")
	fs.StringVar(&f.discovery, "discovery", "ffprobe", "discovery service: ffprobe or stub")
	fs.StringVar(&f.ffprobePath, "ffprobe", "ffprobe", "ffprobe binary")
	fs.StringVar(&f.listen, "listen", "", "status server address (overrides metrics.listen)")
	fs.Float64Var(&f.speed, "speed", 1, "simulated engine speed, media seconds per wall second")

	o := &f.opts
	fs.StringVar(&o.URI, "input", "", "source URI")
	fs.StringVar(&o.OutputURI, "output", "", "destination URI")
	fs.Float64Var(&o.Start, "start", 0, "seek start (percent, or seconds with -absolute)")
	fs.Float64Var(&o.Stop, "stop", -1, "seek stop, -1 for end of source")
	fs.BoolVar(&o.Absolute, "absolute", false, "interpret -start/-stop as seconds")
	fs.Float64Var(&o.MaxDuration, "max-duration", 0, "cap output duration in seconds")
	fs.Var(optInt{&o.Width}, "width", "output width, or percent of source width when relative")
	fs.Var(optInt{&o.Height}, "height", "output height, or percent of source height when relative")
	fs.Var(optInt{&o.Framerate}, "framerate", "output framerate percent, or fps when absolute")
	fs.Var(optInt{&o.VideoBitrate}, "video-bitrate", "video bitrate percent, or kbps when absolute")
	fs.Var(cropFlag{&o.Crop}, "crop", "crop top,right,bottom,left in pixels")
	fs.StringVar(&o.SubtitleFile, "subtitle-file", "", "external subtitle file to burn in")
	fs.StringVar(&o.SubtitleCharset, "subtitle-charset", "", "subtitle file character set")
	fs.BoolVar(&o.BurnContainerSubs, "burn-subs", false, "burn in SSA subtitles from the source container")
	fs.StringVar(&o.Font, "font", model.DefaultFont, "subtitle font description")
	fs.BoolVar(&o.Deinterlace, "deinterlace", false, "deinterlace video")
	fs.IntVar(&o.Threads, "threads", 0, "encoder threads, 0 for the host core count")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if f.showVersion {
		return f, nil
	}
	if f.presetName == "" || o.URI == "" || o.OutputURI == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -preset, -input and -output are required")
		fs.Usage()
		return nil, errors.New("missing required flags")
	}
	v := validate.New()
	v.OneOf("discovery", f.discovery, []string{"ffprobe", "stub"})
	v.FileExists("subtitle-file", o.SubtitleFile)
	v.NonNegative("threads", o.Threads)
	if err := v.Err(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, err
	}
	return f, nil
}
