package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"resto-vision/internal/domain/vision"
)

// AnalysisStore is the persistence surface the service writes tick results
// through. Implemented by repository.AnalysisRepository.
type AnalysisStore interface {
	AccumulateBilling(ctx context.Context, cameraID int64, zoneName, itemName string, qty int, dedupWindow time.Duration) error
	HasRecentAlert(ctx context.Context, cameraID int64, alertType string, window time.Duration) (bool, error)
	InsertAlert(ctx context.Context, cameraID int64, alertType, message string) error
	InsertStaffLog(ctx context.Context, cameraID int64, staffName, zoneName string) error
	OpenOccupancy(ctx context.Context, cameraID int64, zoneName string, personCount int, items datatypes.JSON) error
	CloseOccupancy(ctx context.Context, cameraID int64, zoneName string) error
	OpenQueueSession(ctx context.Context, cameraID int64, zoneName string, queueCount int) error
	CloseQueueSession(ctx context.Context, cameraID int64, zoneName string) error
}

// Config carries the persistence-side windows. The engine emits raw events
// every tick; suppression and accumulation happen here.
type Config struct {
	BillingDedupWindow   time.Duration
	AlertSuppressWindow  time.Duration
	QueueSessionMinCount int
}

func DefaultConfig() Config {
	return Config{
		BillingDedupWindow:   2 * time.Minute,
		AlertSuppressWindow:  time.Minute,
		QueueSessionMinCount: 4,
	}
}

// AnalysisService turns one tick's AnalysisResult into database rows:
// accumulated billing, suppressed alert events, staff attendance, and
// occupancy/queue duration sessions.
type AnalysisService struct {
	store AnalysisStore
	cfg   Config
	log   zerolog.Logger
}

func NewAnalysisService(store AnalysisStore, cfg Config, log zerolog.Logger) *AnalysisService {
	return &AnalysisService{store: store, cfg: cfg, log: log}
}

// PersistResult writes everything a tick produced. Individual write failures
// are logged and skipped; one bad row must not drop the rest of the tick.
func (s *AnalysisService) PersistResult(ctx context.Context, cameraID int64, result *vision.AnalysisResult) {
	if result == nil {
		return
	}

	for _, bill := range result.BillingEvents {
		if err := s.store.AccumulateBilling(ctx, cameraID, bill.ZoneName, bill.ItemName, bill.Qty, s.cfg.BillingDedupWindow); err != nil {
			s.log.Error().Err(err).
				Str("zone", bill.ZoneName).
				Str("item", bill.ItemName).
				Msg("failed to persist billing event")
		}
	}

	for _, alert := range result.SecurityAlerts {
		s.persistAlert(ctx, cameraID, alert)
	}

	for zoneName, state := range result.ZoneStates {
		s.trackSessions(ctx, cameraID, zoneName, state)
	}
}

func (s *AnalysisService) persistAlert(ctx context.Context, cameraID int64, alert vision.SecurityAlert) {
	if alert.Type == vision.AlertStaffTracking && alert.StaffName != "" {
		if err := s.store.InsertStaffLog(ctx, cameraID, alert.StaffName, alert.ZoneName); err != nil {
			s.log.Error().Err(err).Str("staff", alert.StaffName).Msg("failed to log staff attendance")
		}
	}

	recent, err := s.store.HasRecentAlert(ctx, cameraID, string(alert.Type), s.cfg.AlertSuppressWindow)
	if err != nil {
		s.log.Error().Err(err).Str("type", string(alert.Type)).Msg("alert suppression check failed")
		return
	}
	if recent {
		return
	}
	if err := s.store.InsertAlert(ctx, cameraID, string(alert.Type), alert.Message); err != nil {
		s.log.Error().Err(err).Str("type", string(alert.Type)).Msg("failed to persist alert")
		return
	}
	s.log.Info().
		Int64("camera_id", cameraID).
		Str("type", string(alert.Type)).
		Str("message", alert.Message).
		Msg("security alert")
}

// trackSessions opens and closes occupancy/queue duration sessions off the
// zone-state transitions visible in this tick's replacement state.
func (s *AnalysisService) trackSessions(ctx context.Context, cameraID int64, zoneName string, state vision.ZoneState) {
	switch st := state.(type) {
	case vision.TableState:
		if st.Status == vision.TableOccupied {
			items, err := json.Marshal(st.Items)
			if err != nil {
				items = nil
			}
			if err := s.store.OpenOccupancy(ctx, cameraID, zoneName, st.PersonCount, items); err != nil {
				s.log.Error().Err(err).Str("zone", zoneName).Msg("failed to open occupancy session")
			}
			return
		}
		if err := s.store.CloseOccupancy(ctx, cameraID, zoneName); err != nil {
			s.log.Error().Err(err).Str("zone", zoneName).Msg("failed to close occupancy session")
		}
	case vision.QueueState:
		if st.PersonCount > s.cfg.QueueSessionMinCount {
			if err := s.store.OpenQueueSession(ctx, cameraID, zoneName, st.PersonCount); err != nil {
				s.log.Error().Err(err).Str("zone", zoneName).Msg("failed to open queue session")
			}
			return
		}
		if err := s.store.CloseQueueSession(ctx, cameraID, zoneName); err != nil {
			s.log.Error().Err(err).Str("zone", zoneName).Msg("failed to close queue session")
		}
	}
}
