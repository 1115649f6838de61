// Package identity classifies observed faces as staff, known-recent
// visitors, or new visitors, and maintains persisted visit counts behind a
// short-lived in-memory deduplication cache.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"resto-vision/internal/domain/vision"
	"resto-vision/internal/retry"
)

var (
	// ErrStoreBusy marks transient contention in the identity store; the
	// resolver retries these with backoff.
	ErrStoreBusy = errors.New("identity store busy")
	// ErrDuplicateHash marks an insert that lost the race to a concurrent
	// writer for the same embedding hash.
	ErrDuplicateHash = errors.New("duplicate embedding hash")
)

// CustomerRecord is the persisted identity row keyed by embedding hash.
type CustomerRecord struct {
	EmbeddingHash string
	VisitCount    int
	CustomerType  vision.CustomerType
	FirstSeen     time.Time
	LastSeen      time.Time
	CameraID      *int64
	BranchID      *int64
}

// CustomerStore is the persistent identity storage consumed by the resolver.
// FindLatestByHash returns (nil, nil) when no record matches the window.
type CustomerStore interface {
	FindLatestByHash(ctx context.Context, hash string, since time.Time) (*CustomerRecord, error)
	TouchCustomer(ctx context.Context, hash string, seenAt time.Time, cameraID, branchID *int64) error
	UpdateVisit(ctx context.Context, hash string, visitCount int, customerType vision.CustomerType, seenAt time.Time, cameraID, branchID *int64) error
	InsertCustomer(ctx context.Context, rec *CustomerRecord) error
	BranchForCamera(ctx context.Context, cameraID int64) (*int64, error)
}

// Config carries the resolver's tuning knobs. The duplicate, match, and
// eviction windows are independent values with no implied relationship.
type Config struct {
	StaffSimilarity       float64
	CacheSimilarity       float64
	CacheMatchWindow      time.Duration
	CacheTTL              time.Duration
	DuplicateWindow       time.Duration
	LookbackWindow        time.Duration
	RetryAttempts         int
	RetryBackoff          time.Duration
	RegularVisitThreshold int
}

func DefaultConfig() Config {
	return Config{
		StaffSimilarity:       0.45,
		CacheSimilarity:       0.6,
		CacheMatchWindow:      60 * time.Second,
		CacheTTL:              300 * time.Second,
		DuplicateWindow:       10 * time.Second,
		LookbackWindow:        30 * 24 * time.Hour,
		RetryAttempts:         3,
		RetryBackoff:          200 * time.Millisecond,
		RegularVisitThreshold: 5,
	}
}

// CustomerTypeFor derives the customer type from the visit count. The type is
// never stored independently of the count it was derived from.
func CustomerTypeFor(visitCount, regularThreshold int) vision.CustomerType {
	if visitCount >= regularThreshold {
		return vision.CustomerRegular
	}
	return vision.CustomerNew
}

type Resolver struct {
	staff *StaffRegistry
	cache *FaceCache
	store CustomerStore
	cfg   Config
	log   zerolog.Logger
	now   func() time.Time
}

func NewResolver(staff *StaffRegistry, store CustomerStore, cfg Config, log zerolog.Logger) *Resolver {
	return &Resolver{
		staff: staff,
		cache: NewFaceCache(cfg.CacheMatchWindow, cfg.CacheTTL, cfg.CacheSimilarity),
		store: store,
		cfg:   cfg,
		log:   log.With().Str("component", "identity_resolver").Logger(),
		now:   time.Now,
	}
}

// Resolve classifies one observed face. Storage failures never propagate:
// the face always comes back with a best-effort classification so zone and
// billing logic downstream is unaffected.
func (r *Resolver) Resolve(ctx context.Context, obs vision.FaceObservation, cameraID *int64) vision.ResolvedFace {
	now := r.now()
	defer r.cache.Purge(now)

	if name, ok := r.staff.Match(obs.Embedding, r.cfg.StaffSimilarity); ok {
		return vision.ResolvedFace{
			Name:         name,
			Centroid:     obs.Centroid,
			CustomerType: vision.CustomerStaff,
			IsStaff:      true,
		}
	}

	hash := EmbeddingHash(obs.Embedding)
	if hit, ok := r.cache.Observe(hash, obs.Embedding, now); ok {
		return vision.ResolvedFace{
			Name:         "Unknown",
			Centroid:     obs.Centroid,
			CustomerType: hit.CustomerType,
			VisitCount:   hit.VisitCount,
		}
	}

	visitCount, customerType := r.resolveFromStore(ctx, hash, cameraID, now)
	r.cache.Put(hash, obs.Embedding, visitCount, customerType, now)

	return vision.ResolvedFace{
		Name:         "Unknown",
		Centroid:     obs.Centroid,
		CustomerType: customerType,
		VisitCount:   visitCount,
	}
}

// resolveFromStore runs the persistent read-modify-write under bounded retry.
// On exhaustion or any unexpected error it falls back to cached data or the
// new-visitor default; availability wins over consistency here.
func (r *Resolver) resolveFromStore(ctx context.Context, hash string, cameraID *int64, now time.Time) (int, vision.CustomerType) {
	var visitCount int
	var customerType vision.CustomerType

	var branchID *int64
	if cameraID != nil {
		branch, err := r.store.BranchForCamera(ctx, *cameraID)
		if err != nil {
			r.log.Debug().Err(err).Int64("camera_id", *cameraID).Msg("branch lookup failed")
		} else {
			branchID = branch
		}
	}

	op := func() error {
		rec, err := r.store.FindLatestByHash(ctx, hash, now.Add(-r.cfg.LookbackWindow))
		if err != nil {
			return err
		}

		if rec != nil {
			if now.Sub(rec.LastSeen) < r.cfg.DuplicateWindow {
				// Same continuous appearance sampled again; refresh location
				// only, no visit increment.
				if err := r.store.TouchCustomer(ctx, hash, now, cameraID, branchID); err != nil {
					return err
				}
				visitCount, customerType = rec.VisitCount, rec.CustomerType
				return nil
			}

			visitCount = rec.VisitCount + 1
			customerType = CustomerTypeFor(visitCount, r.cfg.RegularVisitThreshold)
			if err := r.store.UpdateVisit(ctx, hash, visitCount, customerType, now, cameraID, branchID); err != nil {
				return err
			}
			if rec.CustomerType == vision.CustomerNew && customerType == vision.CustomerRegular {
				r.log.Info().
					Str("face_hash", hash).
					Int("visit_count", visitCount).
					Msg("visitor promoted to regular")
			}
			return nil
		}

		// A concurrent writer may have inserted this hash between our lookup
		// and now; a record fresher than the duplicate window means touch,
		// not insert.
		recent, err := r.store.FindLatestByHash(ctx, hash, now.Add(-r.cfg.DuplicateWindow))
		if err != nil {
			return err
		}
		if recent != nil {
			if err := r.store.TouchCustomer(ctx, hash, now, cameraID, branchID); err != nil {
				return err
			}
			visitCount, customerType = recent.VisitCount, recent.CustomerType
			return nil
		}

		err = r.store.InsertCustomer(ctx, &CustomerRecord{
			EmbeddingHash: hash,
			VisitCount:    1,
			CustomerType:  vision.CustomerNew,
			FirstSeen:     now,
			LastSeen:      now,
			CameraID:      cameraID,
			BranchID:      branchID,
		})
		if err != nil {
			return err
		}
		visitCount, customerType = 1, vision.CustomerNew
		r.log.Info().Str("face_hash", hash).Msg("new visitor registered")
		return nil
	}

	err := retry.Do(ctx, r.cfg.RetryAttempts, retry.Linear(r.cfg.RetryBackoff), func(err error) bool {
		return errors.Is(err, ErrStoreBusy) || errors.Is(err, ErrDuplicateHash)
	}, op)
	if err != nil {
		r.log.Warn().Err(err).Str("face_hash", hash).Msg("identity store unavailable, using fallback")
		if hit, ok := r.cache.Lookup(hash); ok {
			return hit.VisitCount, hit.CustomerType
		}
		return 1, vision.CustomerNew
	}
	return visitCount, customerType
}
