package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resto-vision/internal/domain/vision"
	"resto-vision/internal/identity"
	"resto-vision/internal/inference"
)

type stubObjects struct {
	dets []inference.ObjectDetection
	err  error
}

func (s stubObjects) Detect(context.Context, *vision.Frame, float64) ([]inference.ObjectDetection, error) {
	return s.dets, s.err
}

type stubPose struct {
	poses []inference.Pose
}

func (s stubPose) EstimatePoses(context.Context, *vision.Frame, float64) ([]inference.Pose, error) {
	return s.poses, nil
}

type stubFaces struct {
	faces []inference.Face
}

func (s stubFaces) DetectFaces(context.Context, *vision.Frame) ([]inference.Face, error) {
	return s.faces, nil
}

// memStore is the minimal identity store: every unseen face becomes a new
// visitor, nothing else.
type memStore struct {
	records map[string]*identity.CustomerRecord
}

func (s *memStore) FindLatestByHash(_ context.Context, hash string, since time.Time) (*identity.CustomerRecord, error) {
	rec, ok := s.records[hash]
	if !ok || !rec.LastSeen.After(since) {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *memStore) TouchCustomer(context.Context, string, time.Time, *int64, *int64) error {
	return nil
}

func (s *memStore) UpdateVisit(context.Context, string, int, vision.CustomerType, time.Time, *int64, *int64) error {
	return nil
}

func (s *memStore) InsertCustomer(_ context.Context, rec *identity.CustomerRecord) error {
	cp := *rec
	s.records[rec.EmbeddingHash] = &cp
	return nil
}

func (s *memStore) BranchForCamera(context.Context, int64) (*int64, error) {
	return nil, nil
}

func boxAt(x, y float64) vision.BoundingBox {
	return vision.BoundingBox{X1: x - 10, Y1: y - 10, X2: x + 10, Y2: y + 10}
}

func newTestEngine(objects stubObjects, stock inference.ObjectDetector, pose stubPose, faces stubFaces) *Engine {
	cfg := identity.DefaultConfig()
	cfg.RetryBackoff = time.Millisecond
	resolver := identity.NewResolver(&identity.StaffRegistry{}, &memStore{records: map[string]*identity.CustomerRecord{}}, cfg, zerolog.Nop())
	return New(objects, stock, pose, faces, resolver, DefaultConfig(), zerolog.Nop())
}

func embedding(axis int) []float64 {
	v := make([]float64, 8)
	v[axis] = 1
	return v
}

func TestAnalyzeNilFrameSkips(t *testing.T) {
	e := newTestEngine(stubObjects{}, nil, stubPose{}, stubFaces{})
	result, err := e.Analyze(context.Background(), nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestAnalyzeEndToEnd(t *testing.T) {
	frame := &vision.Frame{Width: 1000, Height: 800}

	// Left half: table with two bowls, nobody seated. Right half: a five
	// person queue with one recognizable face.
	objects := stubObjects{dets: []inference.ObjectDetection{
		{ClassID: inference.ClassBowl, Box: boxAt(100, 100), Confidence: 0.9},
		{ClassID: inference.ClassBowl, Box: boxAt(150, 120), Confidence: 0.8},
		{ClassID: inference.ClassPerson, Box: boxAt(600, 400), Confidence: 0.9},
		{ClassID: inference.ClassPerson, Box: boxAt(650, 400), Confidence: 0.9},
		{ClassID: inference.ClassPerson, Box: boxAt(700, 400), Confidence: 0.9},
		{ClassID: inference.ClassPerson, Box: boxAt(750, 400), Confidence: 0.9},
		{ClassID: inference.ClassPerson, Box: boxAt(800, 400), Confidence: 0.9},
		// Unknown COCO class is ignored.
		{ClassID: 7, Box: boxAt(100, 100), Confidence: 0.9},
	}}
	faces := stubFaces{faces: []inference.Face{
		{Box: boxAt(600, 300), Embedding: embedding(0)},
	}}

	e := newTestEngine(objects, nil, stubPose{}, faces)

	zones := []vision.Zone{
		{Name: "Meja 1", Type: vision.ZoneTable, Coords: `[0.0,0.0,0.5,1.0]`},
		{Name: "Kasir", Type: vision.ZoneKasir, Coords: `[0.5,0.0,1.0,1.0]`},
		{Name: "Rusak", Type: vision.ZoneTable, Coords: `not json`},
	}
	prev := map[string]vision.ZoneState{
		"Meja 1": vision.TableState{Status: vision.TableClean},
	}

	result, err := e.Analyze(context.Background(), frame, zones, prev, nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", result.RunID.String())

	// Malformed zone skipped, the other two present.
	require.Len(t, result.ZoneStates, 2)

	table, ok := result.ZoneStates["Meja 1"].(vision.TableState)
	require.True(t, ok)
	assert.Equal(t, vision.TableDirty, table.Status)
	assert.Equal(t, 1, table.Timer)
	assert.Equal(t, map[string]int{"mangkok": 2}, table.Items)

	queue, ok := result.ZoneStates["Kasir"].(vision.QueueState)
	require.True(t, ok)
	assert.Equal(t, 5, queue.PersonCount)
	assert.Equal(t, 1, queue.CustomerInfo.NewCount)

	require.Len(t, result.BillingEvents, 1)
	assert.Equal(t, vision.BillingEvent{ZoneName: "Meja 1", ItemName: "mangkok", Qty: 2}, result.BillingEvents[0])

	types := alertTypes(result.SecurityAlerts)
	assert.Equal(t, []vision.AlertType{vision.AlertLongQueue}, types)

	require.Len(t, result.Faces, 1)
	assert.Equal(t, 1, result.Faces[0].VisitCount)
}

func TestAnalyzeStockedItemFailureFallsBack(t *testing.T) {
	frame := &vision.Frame{Width: 1000, Height: 800}

	objects := stubObjects{dets: []inference.ObjectDetection{
		{ClassID: inference.ClassBowl, Box: boxAt(100, 100), Confidence: 0.9},
	}}
	failingStock := stubObjects{err: errors.New("model unavailable")}

	e := newTestEngine(objects, failingStock, stubPose{}, stubFaces{})
	zones := []vision.Zone{{Name: "Etalase", Type: vision.ZoneGorengan, Coords: `[0.0,0.0,1.0,1.0]`}}

	result, err := e.Analyze(context.Background(), frame, zones, nil, nil)
	require.NoError(t, err, "specialized detector failure must not abort the tick")

	state, ok := result.ZoneStates["Etalase"].(vision.GorenganState)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"wadah_mangkok": 1}, state.Detail)
}

func TestAnalyzeShortPosesYieldNoHands(t *testing.T) {
	frame := &vision.Frame{Width: 1000, Height: 800}

	pose := stubPose{poses: []inference.Pose{
		{Keypoints: make([]vision.Point, 8)}, // too few keypoints, skipped
	}}
	e := newTestEngine(stubObjects{}, nil, pose, stubFaces{})
	zones := []vision.Zone{{Name: "Etalase", Type: vision.ZoneGorengan, Coords: `[0.0,0.0,1.0,1.0]`}}

	result, err := e.Analyze(context.Background(), frame, zones, nil, nil)
	require.NoError(t, err)

	state, ok := result.ZoneStates["Etalase"].(vision.GorenganState)
	require.True(t, ok)
	assert.Equal(t, vision.GorenganEmpty, state.Status, "no usable wrists means no SEDANG_DIAMBIL")
}

func TestAnalyzeObjectPassFailure(t *testing.T) {
	e := newTestEngine(stubObjects{err: errors.New("cuda out of memory")}, nil, stubPose{}, stubFaces{})
	_, err := e.Analyze(context.Background(), &vision.Frame{Width: 10, Height: 10}, nil, nil, nil)
	require.Error(t, err)
}

func TestSharedState(t *testing.T) {
	s := NewSharedState()
	s.Merge(map[string]vision.ZoneState{
		"Meja 1": vision.TableState{Status: vision.TableDirty, Timer: 2},
	})

	snap := s.Snapshot()
	require.Len(t, snap, 1)

	// Mutating the snapshot must not leak into the shared map.
	snap["Meja 2"] = vision.QueueState{PersonCount: 1}
	_, ok := s.Get("Meja 2")
	assert.False(t, ok)

	// Merge replaces named entries and keeps the rest.
	s.Merge(map[string]vision.ZoneState{
		"Kasir": vision.QueueState{PersonCount: 3},
	})
	state, ok := s.Get("Meja 1")
	require.True(t, ok)
	assert.Equal(t, 2, state.(vision.TableState).Timer)
	_, ok = s.Get("Kasir")
	assert.True(t, ok)
}
