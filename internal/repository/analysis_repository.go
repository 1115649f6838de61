package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BillingLog struct {
	ID        int64 `gorm:"primaryKey"`
	CameraID  int64 `gorm:"index"`
	ZoneName  string
	ItemName  string
	Qty       int
	Timestamp time.Time `gorm:"index"`
}

func (BillingLog) TableName() string { return "billing_log" }

type EventLog struct {
	ID        int64 `gorm:"primaryKey"`
	CameraID  int64 `gorm:"index"`
	Type      string
	Message   string
	Timestamp time.Time `gorm:"index"`
}

func (EventLog) TableName() string { return "events_log" }

type StaffLog struct {
	ID        int64 `gorm:"primaryKey"`
	CameraID  int64 `gorm:"index"`
	StaffName string
	ZoneName  string
	Timestamp time.Time
}

func (StaffLog) TableName() string { return "staff_log" }

type TableOccupancyLog struct {
	ID              int64 `gorm:"primaryKey"`
	CameraID        int64 `gorm:"index"`
	ZoneName        string
	StartTime       time.Time `gorm:"not null"`
	EndTime         *time.Time
	DurationSeconds *int64
	PersonCount     int            `gorm:"default:1"`
	Items           datatypes.JSON `gorm:"column:items"`
	Status          string         `gorm:"default:open"`
	CreatedAt       time.Time
}

func (TableOccupancyLog) TableName() string { return "table_occupancy_log" }

type QueueLog struct {
	ID              int64 `gorm:"primaryKey"`
	CameraID        int64 `gorm:"index"`
	ZoneName        string
	StartTime       time.Time `gorm:"not null"`
	EndTime         *time.Time
	DurationSeconds *int64
	MaxQueueCount   int
	Status          string `gorm:"default:open"`
	CreatedAt       time.Time
}

func (QueueLog) TableName() string { return "queue_log" }

// AnalysisRepository persists the outputs of analysis ticks: billing counts,
// alert events, staff attendance, and occupancy/queue duration sessions.
type AnalysisRepository struct {
	db *gorm.DB
}

func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// AccumulateBilling folds a per-tick item count into the running ledger. A
// row for the same camera/zone/item newer than the dedup window is updated in
// place; otherwise a fresh row is inserted.
func (r *AnalysisRepository) AccumulateBilling(ctx context.Context, cameraID int64, zoneName, itemName string, qty int, dedupWindow time.Duration) error {
	now := time.Now()
	var existing BillingLog
	err := r.db.WithContext(ctx).
		Where("camera_id = ? AND zone_name = ? AND item_name = ? AND timestamp > ?",
			cameraID, zoneName, itemName, now.Add(-dedupWindow)).
		First(&existing).Error
	if err == nil {
		return r.db.WithContext(ctx).Model(&existing).
			Updates(map[string]interface{}{"qty": existing.Qty + qty, "timestamp": now}).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.db.WithContext(ctx).Create(&BillingLog{
		CameraID:  cameraID,
		ZoneName:  zoneName,
		ItemName:  itemName,
		Qty:       qty,
		Timestamp: now,
	}).Error
}

// HasRecentAlert reports whether an alert of this type fired for the camera
// within the suppression window.
func (r *AnalysisRepository) HasRecentAlert(ctx context.Context, cameraID int64, alertType string, window time.Duration) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&EventLog{}).
		Where("camera_id = ? AND type = ? AND timestamp > ?", cameraID, alertType, time.Now().Add(-window)).
		Count(&count).Error
	return count > 0, err
}

func (r *AnalysisRepository) InsertAlert(ctx context.Context, cameraID int64, alertType, message string) error {
	return r.db.WithContext(ctx).Create(&EventLog{
		CameraID:  cameraID,
		Type:      alertType,
		Message:   message,
		Timestamp: time.Now(),
	}).Error
}

func (r *AnalysisRepository) InsertStaffLog(ctx context.Context, cameraID int64, staffName, zoneName string) error {
	return r.db.WithContext(ctx).Create(&StaffLog{
		CameraID:  cameraID,
		StaffName: staffName,
		ZoneName:  zoneName,
		Timestamp: time.Now(),
	}).Error
}

// OpenOccupancy starts a table occupancy session unless one is already open
// for the zone.
func (r *AnalysisRepository) OpenOccupancy(ctx context.Context, cameraID int64, zoneName string, personCount int, items datatypes.JSON) error {
	var open TableOccupancyLog
	err := r.db.WithContext(ctx).
		Where("camera_id = ? AND zone_name = ? AND status = ?", cameraID, zoneName, "open").
		First(&open).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.db.WithContext(ctx).Create(&TableOccupancyLog{
		CameraID:    cameraID,
		ZoneName:    zoneName,
		StartTime:   time.Now(),
		PersonCount: personCount,
		Items:       items,
		Status:      "open",
	}).Error
}

// CloseOccupancy completes the open occupancy session for the zone, if any,
// stamping the end time and duration.
func (r *AnalysisRepository) CloseOccupancy(ctx context.Context, cameraID int64, zoneName string) error {
	var open TableOccupancyLog
	err := r.db.WithContext(ctx).
		Where("camera_id = ? AND zone_name = ? AND status = ?", cameraID, zoneName, "open").
		First(&open).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	now := time.Now()
	duration := int64(now.Sub(open.StartTime).Seconds())
	return r.db.WithContext(ctx).Model(&open).Updates(map[string]interface{}{
		"end_time":         now,
		"duration_seconds": duration,
		"status":           "completed",
	}).Error
}

// OpenQueueSession starts a queue-full session unless one is already open;
// when one is open it raises the recorded maximum if exceeded.
func (r *AnalysisRepository) OpenQueueSession(ctx context.Context, cameraID int64, zoneName string, queueCount int) error {
	var open QueueLog
	err := r.db.WithContext(ctx).
		Where("camera_id = ? AND zone_name = ? AND status = ?", cameraID, zoneName, "open").
		First(&open).Error
	if err == nil {
		if queueCount > open.MaxQueueCount {
			return r.db.WithContext(ctx).Model(&open).Update("max_queue_count", queueCount).Error
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.db.WithContext(ctx).Create(&QueueLog{
		CameraID:      cameraID,
		ZoneName:      zoneName,
		StartTime:     time.Now(),
		MaxQueueCount: queueCount,
		Status:        "open",
	}).Error
}

func (r *AnalysisRepository) CloseQueueSession(ctx context.Context, cameraID int64, zoneName string) error {
	var open QueueLog
	err := r.db.WithContext(ctx).
		Where("camera_id = ? AND zone_name = ? AND status = ?", cameraID, zoneName, "open").
		First(&open).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	now := time.Now()
	duration := int64(now.Sub(open.StartTime).Seconds())
	return r.db.WithContext(ctx).Model(&open).Updates(map[string]interface{}{
		"end_time":         now,
		"duration_seconds": duration,
		"status":           "completed",
	}).Error
}

// RecentBilling lists billing rows for a camera within the window, newest
// first, for the live billing endpoint.
func (r *AnalysisRepository) RecentBilling(ctx context.Context, cameraID int64, window time.Duration, limit int) ([]BillingLog, error) {
	var rows []BillingLog
	err := r.db.WithContext(ctx).
		Where("camera_id = ? AND timestamp > ?", cameraID, time.Now().Add(-window)).
		Order("timestamp DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// RecentEvents lists alert events, optionally filtered by camera.
func (r *AnalysisRepository) RecentEvents(ctx context.Context, cameraID *int64, limit int) ([]EventLog, error) {
	query := r.db.WithContext(ctx).Model(&EventLog{})
	if cameraID != nil {
		query = query.Where("camera_id = ?", *cameraID)
	}
	var rows []EventLog
	err := query.Order("timestamp DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
