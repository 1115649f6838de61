package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/draw"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"resto-vision/internal/config"
	"resto-vision/internal/db"
	"resto-vision/internal/domain/vision"
	"resto-vision/internal/engine"
	"resto-vision/internal/framecache"
	httpapi "resto-vision/internal/http"
	"resto-vision/internal/identity"
	"resto-vision/internal/inference"
	"resto-vision/internal/repository"
	"resto-vision/internal/scheduler"
	"resto-vision/internal/service"
)

// decodePhoto loads a staff reference photo into an RGBA frame for the face
// embedder.
func decodePhoto(path string) (*vision.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return &vision.Frame{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pixels: rgba.Pix,
	}, nil
}

func run() error {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	database, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	configRepo := repository.NewConfigRepository(database)
	analysisRepo := repository.NewAnalysisRepository(database)
	customerRepo := repository.NewCustomerRepository(database)

	sidecar := inference.NewClient(cfg.Inference.BaseURL, cfg.Inference.Timeout)
	var stock inference.ObjectDetector
	if cfg.Inference.StockModel != "" {
		stock = inference.NewItemClient(sidecar, cfg.Inference.StockModel, cfg.Inference.StockClassMap())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	staff := identity.NewStaffRegistry(cfg.Staff.PhotoDir, sidecar, decodePhoto, log)
	if err := staff.Reload(ctx); err != nil {
		log.Warn().Err(err).Str("dir", cfg.Staff.PhotoDir).Msg("staff photo load failed, continuing without staff recognition")
	} else {
		log.Info().Int("staff", staff.Size()).Msg("staff photos loaded")
	}

	resolver := identity.NewResolver(staff, customerRepo, identity.Config{
		StaffSimilarity:       cfg.Identity.StaffSimilarity,
		CacheSimilarity:       cfg.Identity.CacheSimilarity,
		CacheMatchWindow:      cfg.Identity.CacheMatchWindow,
		CacheTTL:              cfg.Identity.CacheTTL,
		DuplicateWindow:       cfg.Identity.DuplicateWindow,
		LookbackWindow:        time.Duration(cfg.Identity.LookbackDays) * 24 * time.Hour,
		RetryAttempts:         cfg.Identity.RetryAttempts,
		RetryBackoff:          cfg.Identity.RetryBackoff,
		RegularVisitThreshold: cfg.Identity.RegularVisitThreshold,
	}, log)

	eng := engine.New(sidecar, stock, sidecar, sidecar, resolver, engine.Config{
		ObjectConfidence:   cfg.Analysis.ObjectConfidence,
		PoseConfidence:     cfg.Analysis.PoseConfidence,
		ItemConfidence:     cfg.Analysis.ItemConfidence,
		QueueLimit:         cfg.Analysis.QueueLimit,
		DirtyTickThreshold: cfg.Analysis.DirtyTickThreshold,
		MinStockThreshold:  cfg.Analysis.MinStockThreshold,
	}, log)

	state := engine.NewSharedState()
	frames := framecache.New()

	persist := service.NewAnalysisService(analysisRepo, service.Config{
		BillingDedupWindow:   cfg.Persistence.BillingDedupWindow,
		AlertSuppressWindow:  cfg.Persistence.AlertSuppressWindow,
		QueueSessionMinCount: cfg.Persistence.QueueSessionMinCount,
	}, log)

	sched := scheduler.New(configRepo, frames, eng, state, persist, scheduler.Config{
		Interval:    cfg.Analysis.Interval,
		FrameMaxAge: cfg.Analysis.FrameMaxAge,
	}, log)
	go sched.Run(ctx)

	handler := httpapi.NewHandler(configRepo, analysisRepo, customerRepo, frames, eng, state, sched, staff, log)
	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(handler, httpapi.AuthConfig{
		Secret:        cfg.Auth.JWTSecret,
		TokenTTL:      cfg.Auth.TokenTTL,
		AdminUser:     cfg.Auth.AdminUser,
		AdminPassword: cfg.Auth.AdminPassword,
	}, cfg.HTTP.AllowOrigins)

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}
