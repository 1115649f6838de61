package vision

import (
	"time"

	"github.com/google/uuid"
)

type ZoneType string

const (
	ZoneTable    ZoneType = "table"
	ZoneKasir    ZoneType = "kasir"
	ZoneQueue    ZoneType = "queue"
	ZoneGorengan ZoneType = "gorengan"
	ZoneDapur    ZoneType = "dapur"
)

// Zone is one named region of a camera's field of view. Coords holds the
// fractional [x1,y1,x2,y2] rectangle, either as a JSON string fresh from the
// configuration store or already decoded by the caller.
type Zone struct {
	ID       int64       `json:"id,omitempty"`
	CameraID int64       `json:"camera_id,omitempty"`
	Name     string      `json:"name"`
	Type     ZoneType    `json:"type"`
	Coords   interface{} `json:"coords"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (b BoundingBox) Centroid() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Frame is an opaque decoded image buffer. The engine never mutates it.
type Frame struct {
	Width  int
	Height int
	Pixels []byte
}

// Detection is one dining-related object found in the current frame.
type Detection struct {
	Name       string  `json:"name"`
	Centroid   Point   `json:"centroid"`
	Confidence float64 `json:"confidence"`
}

// FaceObservation is a raw face from the embedder, before identity resolution.
type FaceObservation struct {
	Centroid  Point
	BBox      BoundingBox
	Embedding []float64
}

type CustomerType string

const (
	CustomerNew     CustomerType = "new"
	CustomerRegular CustomerType = "regular"
	CustomerStaff   CustomerType = "staff"
)

// ResolvedFace is a FaceObservation after identity resolution.
type ResolvedFace struct {
	Name         string       `json:"name"`
	Centroid     Point        `json:"centroid"`
	CustomerType CustomerType `json:"customer_type"`
	VisitCount   int          `json:"visit_count"`
	IsStaff      bool         `json:"is_staff"`
}

type CustomerInfo struct {
	RegularCount   int `json:"regular_count"`
	NewCount       int `json:"new_count"`
	StaffCount     int `json:"staff_count"`
	TotalCustomers int `json:"total_customers"`
}

type TableStatus string

const (
	TableOccupied TableStatus = "TERISI"
	TableDirty    TableStatus = "KOTOR"
	TableClean    TableStatus = "BERSIH"
)

type GorenganStatus string

const (
	GorenganBeingTaken GorenganStatus = "SEDANG_DIAMBIL"
	GorenganEmpty      GorenganStatus = "HABIS"
	GorenganStocked    GorenganStatus = "TERSEDIA"
)

// ZoneState is the per-zone state carried across ticks. Exactly one concrete
// variant exists per zone type; the engine fully replaces the entry every tick.
type ZoneState interface {
	Kind() ZoneType
}

type TableState struct {
	Status        TableStatus    `json:"status"`
	Timer         int            `json:"timer"`
	PersonCount   int            `json:"person_count"`
	ItemCount     int            `json:"item_count"`
	Items         map[string]int `json:"items"`
	NeedsCleaning bool           `json:"needs_cleaning"`
	CustomerInfo  CustomerInfo   `json:"customer_info"`
}

func (TableState) Kind() ZoneType { return ZoneTable }

type QueueState struct {
	PersonCount  int          `json:"person_count"`
	CustomerInfo CustomerInfo `json:"customer_info"`
}

func (QueueState) Kind() ZoneType { return ZoneQueue }

type GorenganState struct {
	Status GorenganStatus `json:"status"`
	Total  int            `json:"total"`
	Detail map[string]int `json:"detail,omitempty"`
}

func (GorenganState) Kind() ZoneType { return ZoneGorengan }

type RestrictedState struct {
	StaffCount      int  `json:"staff_count"`
	NonStaffPresent bool `json:"non_staff_present"`
}

func (RestrictedState) Kind() ZoneType { return ZoneDapur }

// BillingEvent is a raw per-tick item count for one zone. Accumulation and
// dedup across ticks belong to the persistence layer.
type BillingEvent struct {
	ZoneName string `json:"zone_name"`
	ItemName string `json:"item_name"`
	Qty      int    `json:"qty"`
}

type AlertType string

const (
	AlertDirtyTable    AlertType = "dirty_table"
	AlertLongQueue     AlertType = "long_queue"
	AlertLowStock      AlertType = "low_stock"
	AlertIntruder      AlertType = "intruder"
	AlertStaffTracking AlertType = "staff_tracking"
)

type SecurityAlert struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"msg"`
	ZoneName  string    `json:"zone_name,omitempty"`
	StaffName string    `json:"staff_name,omitempty"`
}

// AnalysisResult is the aggregate output of one analysis tick.
type AnalysisResult struct {
	RunID          uuid.UUID            `json:"run_id"`
	AnalyzedAt     time.Time            `json:"analyzed_at"`
	BillingEvents  []BillingEvent       `json:"billing_events"`
	SecurityAlerts []SecurityAlert      `json:"security_alerts"`
	ZoneStates     map[string]ZoneState `json:"zone_states"`
	Faces          []ResolvedFace       `json:"faces"`
}
