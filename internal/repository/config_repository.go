package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"resto-vision/internal/domain/vision"
)

type Branch struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"not null;uniqueIndex"`
	Address   *string
	Phone     *string
	IsActive  bool `gorm:"default:true"`
	CreatedAt time.Time
}

func (Branch) TableName() string { return "branches" }

type Camera struct {
	ID       int64 `gorm:"primaryKey"`
	BranchID *int64
	Name     string
	RTSPURL  string `gorm:"column:rtsp_url"`
	IsActive bool   `gorm:"default:true"`
}

func (Camera) TableName() string { return "cameras" }

type ZoneRow struct {
	ID       int64          `gorm:"primaryKey"`
	CameraID int64          `gorm:"not null;index"`
	Name     string         `gorm:"not null"`
	Type     string         `gorm:"not null"`
	Coords   datatypes.JSON `gorm:"not null"`
}

func (ZoneRow) TableName() string { return "zones" }

// ConfigRepository serves camera and zone configuration. Zones are queried
// fresh every tick, so they can change between ticks.
type ConfigRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

func (r *ConfigRepository) ActiveCameras(ctx context.Context) ([]Camera, error) {
	var cams []Camera
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Find(&cams).Error
	return cams, err
}

func (r *ConfigRepository) ZonesForCamera(ctx context.Context, cameraID int64) ([]vision.Zone, error) {
	var rows []ZoneRow
	err := r.db.WithContext(ctx).Where("camera_id = ?", cameraID).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	zones := make([]vision.Zone, 0, len(rows))
	for _, row := range rows {
		zones = append(zones, vision.Zone{
			ID:       row.ID,
			CameraID: row.CameraID,
			Name:     row.Name,
			Type:     vision.ZoneType(row.Type),
			Coords:   []byte(row.Coords),
		})
	}
	return zones, nil
}

func (r *ConfigRepository) CreateZone(ctx context.Context, row *ZoneRow) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *ConfigRepository) DeleteZone(ctx context.Context, zoneID int64) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&ZoneRow{}, zoneID)
	return res.RowsAffected, res.Error
}

func (r *ConfigRepository) CreateCamera(ctx context.Context, cam *Camera) error {
	return r.db.WithContext(ctx).Create(cam).Error
}

func (r *ConfigRepository) FindCamera(ctx context.Context, cameraID int64) (*Camera, error) {
	var cam Camera
	err := r.db.WithContext(ctx).First(&cam, cameraID).Error
	if err != nil {
		return nil, err
	}
	return &cam, nil
}
