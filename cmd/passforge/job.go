// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/passforge/internal/config"
	"github.com/ManuGH/passforge/internal/health"
	"github.com/ManuGH/passforge/internal/infra/ffmpeg"
	"github.com/ManuGH/passforge/internal/infrastructure/media/stub"
	"github.com/ManuGH/passforge/internal/log"
	"github.com/ManuGH/passforge/internal/pipeline/bus"
	"github.com/ManuGH/passforge/internal/pipeline/controller"
	"github.com/ManuGH/passforge/internal/pipeline/model"
	"github.com/ManuGH/passforge/internal/pipeline/negotiate"
	"github.com/ManuGH/passforge/internal/preset"
	"github.com/ManuGH/passforge/internal/report"
	"github.com/ManuGH/passforge/internal/statusapi"
	"github.com/ManuGH/passforge/internal/telemetry"
	"github.com/ManuGH/passforge/internal/version"
)

const telemetryShutdownTimeout = 5 * time.Second

func runJob(ctx context.Context, cfg config.AppConfig, f *cliFlags, stdout, stderr io.Writer) int {
	log.Configure(log.Config{Level: cfg.LogLevel, Output: stderr, Service: "passforge"})
	logger := log.WithComponent("cli")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "passforge",
		ServiceVersion: version.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Error().Err(err).Msg("telemetry setup failed")
		return exitUsage
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	presetsPath := cfg.Presets.Path
	if f.presetsPath != "" {
		presetsPath = f.presetsPath
	}
	presets, err := preset.NewHolder(presetsPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Preset catalog error: %v\n", err)
		return exitUsage
	}
	p, err := presets.Get(f.presetName)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Preset error: %v\n", err)
		return exitUsage
	}

	var probe stub.Discoverer = ffmpeg.NewProber(f.ffprobePath)
	if f.discovery == "stub" {
		probe = nil
	}
	eng := stub.NewAdapter(stub.Config{Source: probe, Speed: f.speed, Descriptor: &model.MediaDescriptor{
		HasVideo: true, HasAudio: true,
		Width: 1280, Height: 720,
		FrameRate:     model.R(25, 1),
		VideoDuration: 10 * time.Second,
		AudioDuration: 10 * time.Second,
	}})

	ctrl, err := controller.New(p, f.opts, controller.Config{
		WatchdogTimeout: cfg.Pipeline.WatchdogTimeout,
		PollInterval:    cfg.Pipeline.PollInterval,
		HangPolls:       cfg.Pipeline.HangPolls,
		CPUCount:        cfg.Pipeline.CPUCount,
		Quirks: negotiate.Quirks{
			FlipPAREncoders:   cfg.Pipeline.Quirks.FlipPAREncoders,
			ForceSquarePixels: cfg.Pipeline.Quirks.ForceSquarePixels,
		},
	}, controller.Deps{Engine: eng, Discoverer: eng})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Job error: %v\n", err)
		return exitUsage
	}

	events := bus.NewMemoryBus()
	ctrl.Subscribe(controller.BusListener(ctx, events))
	sub, err := events.Subscribe(ctx, bus.JobTopic(ctrl.JobID()))
	if err != nil {
		logger.Error().Err(err).Msg("subscribe to job events")
		return exitFailed
	}
	defer func() { _ = sub.Close() }()

	listen := cfg.Metrics.Listen
	if f.listen != "" {
		listen = f.listen
	}

	jobCtx, cancelJob := context.WithCancel(ctx)
	defer cancelJob()
	g, gctx := errgroup.WithContext(jobCtx)

	var runErr error
	g.Go(func() error {
		// Job failures are reported through runErr; the group only carries infrastructure errors.
		runErr = ctrl.Run(gctx)
		cancelJob()
		return nil
	})
	g.Go(func() error {
		printEvents(gctx, sub, stdout)
		return nil
	})
	if listen != "" {
		hm := health.NewManager(version.Version)
		hm.RegisterChecker(health.NewJobChecker(ctrl))
		hm.RegisterChecker(health.NewCatalogChecker(presets))
		if f.discovery == "ffprobe" {
			hm.RegisterChecker(health.NewBinaryChecker("ffprobe", f.ffprobePath))
		}
		srv := statusapi.New(statusapi.Config{Listen: listen, TracingService: tracingService(cfg), Health: hm})
		srv.SetJob(ctrl)
		g.Go(func() error { return srv.Run(gctx) })
	}
	if cfg.Presets.Watch {
		if err := presets.Watch(gctx); err != nil {
			logger.Warn().Err(err).Msg("preset watcher not started")
		}
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("status server failed")
	}
	presets.Wait()

	if f.reportPath != "" {
		if err := report.Write(f.reportPath, ctrl.Report()); err != nil {
			logger.Error().Err(err).Msg("write job report")
		}
	}

	if runErr != nil {
		var merr *model.Error
		if errors.As(runErr, &merr) && merr.Kind == model.KindCancelled {
			_, _ = fmt.Fprintf(stderr, "Job cancelled: %v\n", runErr)
		} else {
			_, _ = fmt.Fprintf(stderr, "Job failed: %v\n", runErr)
		}
		return exitFailed
	}
	return exitOK
}

func tracingService(cfg config.AppConfig) string {
	if cfg.Telemetry.Enabled {
		return "passforge-status"
	}
	return ""
}

// printEvents renders job events as console lines until ctx is done.
func printEvents(ctx context.Context, sub bus.Subscriber, out io.Writer) {
	for {
		select {
		case <-ctx.Done():
			// Drain what the loop published before it finished.
			for {
				select {
				case msg := <-sub.C():
					printEvent(out, msg)
				default:
					return
				}
			}
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			printEvent(out, msg)
		}
	}
}

func printEvent(out io.Writer, msg bus.Message) {
	ev, ok := msg.(controller.Event)
	if !ok {
		return
	}
	switch ev.Type {
	case controller.EventDiscovered:
		if ev.Descriptor != nil {
			_, _ = fmt.Fprintf(out, "discovered %s (media: %t)\n", ev.Descriptor.URI, ev.IsMedia)
		}
	case controller.EventPassSetup:
		if ev.Spec == nil {
			return
		}
		_, _ = fmt.Fprintf(out, "pass %d/%d: %s %s@%s %dkbps\n", ev.Pass+1, ev.PassCount, ev.Spec.Muxer, ev.Spec.Resolution(), ev.Spec.FrameRate, ev.Spec.Bitrate)
	case controller.EventProgress:
		if ev.Status == nil {
			return
		}
		_, _ = fmt.Fprintf(out, "pass %d/%d: %5.1f%% (remaining %s)\n", ev.Pass+1, ev.PassCount, ev.Status.Percent*100, ev.Status.Remaining)
	case controller.EventPassComplete:
		_, _ = fmt.Fprintf(out, "pass %d/%d complete\n", ev.Pass+1, ev.PassCount)
	case controller.EventComplete:
		_, _ = fmt.Fprintln(out, "job complete")
	case controller.EventError:
		_, _ = fmt.Fprintf(out, "job failed: %s\n", ev.Code)
	}
}
