package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"resto-vision/internal/domain/vision"
	"resto-vision/internal/identity"
)

// CustomerLog is the persisted identity row, keyed by embedding hash. Only
// the hash is stored, never the embedding itself.
type CustomerLog struct {
	FaceEmbeddingHash string    `gorm:"primaryKey;column:face_embedding_hash"`
	VisitCount        int       `gorm:"not null"`
	CustomerType      string    `gorm:"not null"`
	FirstSeen         time.Time `gorm:"not null"`
	LastSeen          time.Time `gorm:"not null;index"`
	CameraID          *int64
	BranchID          *int64
}

func (CustomerLog) TableName() string { return "customer_log" }

// CustomerRepository implements identity.CustomerStore on postgres. Driver
// contention and duplicate-key races are translated to the identity package
// sentinels so the resolver's retry policy can distinguish them.
type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) FindLatestByHash(ctx context.Context, hash string, since time.Time) (*identity.CustomerRecord, error) {
	var row CustomerLog
	err := r.db.WithContext(ctx).
		Where("face_embedding_hash = ? AND last_seen > ?", hash, since).
		Order("last_seen DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateErr(err)
	}
	return &identity.CustomerRecord{
		EmbeddingHash: row.FaceEmbeddingHash,
		VisitCount:    row.VisitCount,
		CustomerType:  vision.CustomerType(row.CustomerType),
		FirstSeen:     row.FirstSeen,
		LastSeen:      row.LastSeen,
		CameraID:      row.CameraID,
		BranchID:      row.BranchID,
	}, nil
}

func (r *CustomerRepository) TouchCustomer(ctx context.Context, hash string, seenAt time.Time, cameraID, branchID *int64) error {
	err := r.db.WithContext(ctx).Model(&CustomerLog{}).
		Where("face_embedding_hash = ?", hash).
		Updates(map[string]interface{}{
			"last_seen": seenAt,
			"camera_id": cameraID,
			"branch_id": branchID,
		}).Error
	return translateErr(err)
}

func (r *CustomerRepository) UpdateVisit(ctx context.Context, hash string, visitCount int, customerType vision.CustomerType, seenAt time.Time, cameraID, branchID *int64) error {
	err := r.db.WithContext(ctx).Model(&CustomerLog{}).
		Where("face_embedding_hash = ?", hash).
		Updates(map[string]interface{}{
			"visit_count":   visitCount,
			"customer_type": string(customerType),
			"last_seen":     seenAt,
			"camera_id":     cameraID,
			"branch_id":     branchID,
		}).Error
	return translateErr(err)
}

func (r *CustomerRepository) InsertCustomer(ctx context.Context, rec *identity.CustomerRecord) error {
	row := CustomerLog{
		FaceEmbeddingHash: rec.EmbeddingHash,
		VisitCount:        rec.VisitCount,
		CustomerType:      string(rec.CustomerType),
		FirstSeen:         rec.FirstSeen,
		LastSeen:          rec.LastSeen,
		CameraID:          rec.CameraID,
		BranchID:          rec.BranchID,
	}
	return translateErr(r.db.WithContext(ctx).Create(&row).Error)
}

func (r *CustomerRepository) BranchForCamera(ctx context.Context, cameraID int64) (*int64, error) {
	var cam Camera
	err := r.db.WithContext(ctx).Select("branch_id").First(&cam, cameraID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateErr(err)
	}
	return cam.BranchID, nil
}

// CountByType returns how many distinct visitors of each customer type were
// seen since the given time, for the analytics endpoints.
func (r *CustomerRepository) CountByType(ctx context.Context, since time.Time) (map[string]int64, error) {
	type row struct {
		CustomerType string
		N            int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&CustomerLog{}).
		Select("customer_type, COUNT(*) as n").
		Where("last_seen > ?", since).
		Group("customer_type").
		Scan(&rows).Error
	if err != nil {
		return nil, translateErr(err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.CustomerType] = r.N
	}
	return counts, nil
}

// translateErr maps driver errors onto the identity sentinels: contention
// becomes ErrStoreBusy (retryable), unique-key races become ErrDuplicateHash.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return identity.ErrDuplicateHash
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return identity.ErrDuplicateHash
		case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
			return identity.ErrStoreBusy
		}
	}
	return err
}
