// Package engine is the per-frame multi-zone analysis core: it fuses the
// object, pose, and face inference passes over one frame, partitions the
// results by configured zone, and drives the per-zone state machines.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"resto-vision/internal/domain/vision"
	"resto-vision/internal/geometry"
	"resto-vision/internal/identity"
	"resto-vision/internal/inference"
)

// Config carries the engine's detection thresholds and zone rule knobs.
type Config struct {
	ObjectConfidence   float64
	PoseConfidence     float64
	ItemConfidence     float64
	QueueLimit         int
	DirtyTickThreshold int
	MinStockThreshold  int
}

func DefaultConfig() Config {
	return Config{
		ObjectConfidence:   0.35,
		PoseConfidence:     0.5,
		ItemConfidence:     0.4,
		QueueLimit:         4,
		DirtyTickThreshold: 3,
		MinStockThreshold:  3,
	}
}

// Engine runs one analysis tick at a time. The shared model instances behind
// the detector interfaces are not assumed safe for concurrent inference, so
// the inference phase is serialized by a mutex; zone logic after it is pure
// computation.
type Engine struct {
	objects  inference.ObjectDetector
	stock    inference.ObjectDetector // optional specialized item detector, nil when absent
	pose     inference.PoseEstimator
	faces    inference.FaceAnalyzer
	resolver *identity.Resolver

	classNames      map[int]string
	proxyContainers map[string]bool

	cfg Config
	log zerolog.Logger

	inferMu sync.Mutex
}

func New(objects inference.ObjectDetector, stock inference.ObjectDetector, pose inference.PoseEstimator, faces inference.FaceAnalyzer, resolver *identity.Resolver, cfg Config, log zerolog.Logger) *Engine {
	return &Engine{
		objects:         objects,
		stock:           stock,
		pose:            pose,
		faces:           faces,
		resolver:        resolver,
		classNames:      inference.DiningClassNames,
		proxyContainers: inference.ProxyContainerNames,
		cfg:             cfg,
		log:             log.With().Str("component", "engine").Logger(),
	}
}

// Analyze runs one tick over a frame. A nil frame means "skip tick" and
// returns (nil, nil). previousStates is read-only here; the caller owns
// merging the returned states back into its shared map.
func (e *Engine) Analyze(ctx context.Context, frame *vision.Frame, zones []vision.Zone, previousStates map[string]vision.ZoneState, cameraID *int64) (*vision.AnalysisResult, error) {
	if frame == nil {
		return nil, nil
	}

	people, items, stockItems, hands, observations, err := e.runInference(ctx, frame)
	if err != nil {
		return nil, err
	}

	faces := make([]vision.ResolvedFace, 0, len(observations))
	for _, obs := range observations {
		faces = append(faces, e.resolver.Resolve(ctx, obs, cameraID))
	}

	result := &vision.AnalysisResult{
		RunID:      uuid.New(),
		AnalyzedAt: time.Now(),
		ZoneStates: make(map[string]vision.ZoneState, len(zones)),
		Faces:      faces,
	}

	for _, zone := range zones {
		rect, err := geometry.DecodeCoords(zone.Coords)
		if err != nil {
			e.log.Warn().Err(err).Str("zone", zone.Name).Msg("skipping zone with malformed coords")
			continue
		}

		obs := zoneObservations{
			personCount: countInside(people, rect, frame),
			items:       filterDetections(items, rect, frame),
			stockItems:  filterDetections(stockItems, rect, frame),
			hands:       filterPoints(hands, rect, frame),
			faces:       filterFaces(faces, rect, frame),
		}

		switch zone.Type {
		case vision.ZoneTable:
			state, billing, alerts := e.evalTable(zone.Name, previousStates[zone.Name], obs)
			result.ZoneStates[zone.Name] = state
			result.BillingEvents = append(result.BillingEvents, billing...)
			result.SecurityAlerts = append(result.SecurityAlerts, alerts...)
		case vision.ZoneKasir, vision.ZoneQueue:
			state, alerts := e.evalQueue(zone.Name, obs)
			result.ZoneStates[zone.Name] = state
			result.SecurityAlerts = append(result.SecurityAlerts, alerts...)
		case vision.ZoneGorengan:
			state, billing, alerts := e.evalGorengan(zone.Name, obs)
			result.ZoneStates[zone.Name] = state
			result.BillingEvents = append(result.BillingEvents, billing...)
			result.SecurityAlerts = append(result.SecurityAlerts, alerts...)
		case vision.ZoneDapur:
			state, alerts := e.evalRestricted(zone.Name, obs)
			result.ZoneStates[zone.Name] = state
			result.SecurityAlerts = append(result.SecurityAlerts, alerts...)
		default:
			e.log.Debug().Str("zone", zone.Name).Str("type", string(zone.Type)).Msg("unknown zone type")
		}
	}

	e.log.Debug().
		Str("run_id", result.RunID.String()).
		Int("zones", len(result.ZoneStates)).
		Int("billing_events", len(result.BillingEvents)).
		Int("alerts", len(result.SecurityAlerts)).
		Msg("analysis tick complete")
	return result, nil
}

// runInference executes the global inference passes once per frame under the
// inference mutex. The optional stocked-item pass is best-effort; its
// failures are logged and the proxy-object fallback takes over.
func (e *Engine) runInference(ctx context.Context, frame *vision.Frame) (people []vision.Point, items, stockItems []vision.Detection, hands []vision.Point, faces []vision.FaceObservation, err error) {
	e.inferMu.Lock()
	defer e.inferMu.Unlock()

	objects, err := e.objects.Detect(ctx, frame, e.cfg.ObjectConfidence)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	for _, det := range objects {
		centroid := det.Box.Centroid()
		if det.ClassID == inference.ClassPerson {
			people = append(people, centroid)
			continue
		}
		if name, ok := e.classNames[det.ClassID]; ok {
			items = append(items, vision.Detection{Name: name, Centroid: centroid, Confidence: det.Confidence})
		}
	}

	if e.stock != nil {
		stockDets, stockErr := e.stock.Detect(ctx, frame, e.cfg.ItemConfidence)
		if stockErr != nil {
			e.log.Warn().Err(stockErr).Msg("stocked-item detection failed, using proxy objects")
		} else {
			for _, det := range stockDets {
				stockItems = append(stockItems, vision.Detection{
					Name:       det.ClassName,
					Centroid:   det.Box.Centroid(),
					Confidence: det.Confidence,
				})
			}
		}
	}

	poses, err := e.pose.EstimatePoses(ctx, frame, e.cfg.PoseConfidence)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	for _, pose := range poses {
		if len(pose.Keypoints) < inference.MinPoseKeypoints {
			continue
		}
		hands = append(hands, pose.Keypoints[inference.KeypointLeftWrist], pose.Keypoints[inference.KeypointRightWrist])
	}

	rawFaces, err := e.faces.DetectFaces(ctx, frame)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	for _, face := range rawFaces {
		faces = append(faces, vision.FaceObservation{
			Centroid:  face.Box.Centroid(),
			BBox:      face.Box,
			Embedding: face.Embedding,
		})
	}
	return people, items, stockItems, hands, faces, nil
}

func countInside(points []vision.Point, rect geometry.Rect, frame *vision.Frame) int {
	n := 0
	for _, p := range points {
		if geometry.Contains(p, rect, frame.Width, frame.Height) {
			n++
		}
	}
	return n
}

func filterPoints(points []vision.Point, rect geometry.Rect, frame *vision.Frame) []vision.Point {
	var inside []vision.Point
	for _, p := range points {
		if geometry.Contains(p, rect, frame.Width, frame.Height) {
			inside = append(inside, p)
		}
	}
	return inside
}

func filterDetections(dets []vision.Detection, rect geometry.Rect, frame *vision.Frame) []vision.Detection {
	var inside []vision.Detection
	for _, d := range dets {
		if geometry.Contains(d.Centroid, rect, frame.Width, frame.Height) {
			inside = append(inside, d)
		}
	}
	return inside
}

func filterFaces(faces []vision.ResolvedFace, rect geometry.Rect, frame *vision.Frame) []vision.ResolvedFace {
	var inside []vision.ResolvedFace
	for _, f := range faces {
		if geometry.Contains(f.Centroid, rect, frame.Width, frame.Height) {
			inside = append(inside, f)
		}
	}
	return inside
}
