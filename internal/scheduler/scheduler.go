// Package scheduler drives periodic analysis ticks: every interval it pulls
// the freshest cached frame per active camera and runs the engine over it.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"resto-vision/internal/domain/vision"
	"resto-vision/internal/engine"
	"resto-vision/internal/framecache"
	"resto-vision/internal/repository"
	"resto-vision/internal/service"
)

// ConfigSource supplies the camera and zone configuration, queried fresh
// every tick so changes apply without restart.
type ConfigSource interface {
	ActiveCameras(ctx context.Context) ([]repository.Camera, error)
	ZonesForCamera(ctx context.Context, cameraID int64) ([]vision.Zone, error)
}

type Config struct {
	Interval    time.Duration
	FrameMaxAge time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:    1500 * time.Millisecond,
		FrameMaxAge: 10 * time.Second,
	}
}

type Scheduler struct {
	source  ConfigSource
	frames  *framecache.Cache
	engine  *engine.Engine
	state   *engine.SharedState
	persist *service.AnalysisService
	cfg     Config
	log     zerolog.Logger
}

func New(source ConfigSource, frames *framecache.Cache, eng *engine.Engine, state *engine.SharedState, persist *service.AnalysisService, cfg Config, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		source:  source,
		frames:  frames,
		engine:  eng,
		state:   state,
		persist: persist,
		cfg:     cfg,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Run ticks until the context is cancelled. Cameras within one tick run
// concurrently; a tick that overruns the interval simply delays the next one
// because the patrol joins all camera goroutines first.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.cfg.Interval).Msg("analysis scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("analysis scheduler stopped")
			return
		case <-ticker.C:
			s.patrol(ctx)
		}
	}
}

func (s *Scheduler) patrol(ctx context.Context) {
	cameras, err := s.source.ActiveCameras(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list active cameras")
		return
	}

	var wg sync.WaitGroup
	for _, cam := range cameras {
		wg.Add(1)
		go func(cam repository.Camera) {
			defer wg.Done()
			s.ProcessCamera(ctx, cam.ID)
		}(cam)
	}
	wg.Wait()
}

// ProcessCamera runs one analysis tick for one camera. Failures are logged
// and swallowed; one camera's bad tick never affects the others, and the
// shared zone state keeps its last-known values.
func (s *Scheduler) ProcessCamera(ctx context.Context, cameraID int64) {
	zones, err := s.source.ZonesForCamera(ctx, cameraID)
	if err != nil {
		s.log.Error().Err(err).Int64("camera_id", cameraID).Msg("failed to load zones")
		return
	}
	if len(zones) == 0 {
		return
	}

	frame := s.frames.GetFresh(cameraID, s.cfg.FrameMaxAge, time.Now())
	if frame == nil {
		s.log.Debug().Int64("camera_id", cameraID).Msg("no fresh frame, skipping tick")
		return
	}

	previous := s.state.Snapshot()
	result, err := s.engine.Analyze(ctx, frame, zones, previous, &cameraID)
	if err != nil {
		s.log.Error().Err(err).Int64("camera_id", cameraID).Msg("analysis tick failed")
		return
	}
	if result == nil {
		return
	}

	s.state.Merge(result.ZoneStates)
	s.persist.PersistResult(ctx, cameraID, result)
}
