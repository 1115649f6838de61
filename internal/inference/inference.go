// Package inference defines the black-box model primitives consumed by the
// analysis engine: object detection, pose estimation, and face embedding.
// Implementations run the actual networks elsewhere; the engine only sees
// boxes, keypoints, and embeddings.
package inference

import (
	"context"

	"resto-vision/internal/domain/vision"
)

// COCO class ids for the objects the engine cares about.
const (
	ClassPerson = 0
	ClassBottle = 39
	ClassCup    = 41
	ClassFork   = 42
	ClassKnife  = 43
	ClassSpoon  = 44
	ClassBowl   = 45
)

// DiningClassNames maps tracked COCO classes to item names used on bills.
var DiningClassNames = map[int]string{
	ClassBottle: "botol",
	ClassCup:    "gelas",
	ClassFork:   "garpu",
	ClassKnife:  "pisau",
	ClassSpoon:  "sendok",
	ClassBowl:   "mangkok",
}

// ProxyContainerNames are generic containers used as stand-in stock
// indicators when no specialized item detector is configured.
var ProxyContainerNames = map[string]bool{
	"mangkok": true,
	"gelas":   true,
}

// Keypoint indices of the wrists in the 17-point COCO pose skeleton.
const (
	KeypointLeftWrist  = 9
	KeypointRightWrist = 10
	// MinPoseKeypoints is the minimum skeleton size for wrist extraction.
	MinPoseKeypoints = 11
)

type ObjectDetection struct {
	ClassID    int                `json:"class_id"`
	ClassName  string             `json:"class_name,omitempty"`
	Box        vision.BoundingBox `json:"box"`
	Confidence float64            `json:"confidence"`
}

type Pose struct {
	Keypoints  []vision.Point `json:"keypoints"`
	Confidence float64        `json:"confidence"`
}

type Face struct {
	Box       vision.BoundingBox `json:"box"`
	Embedding []float64          `json:"embedding"`
}

// ObjectDetector runs one detection pass over a whole frame, returning only
// detections at or above minConfidence.
type ObjectDetector interface {
	Detect(ctx context.Context, frame *vision.Frame, minConfidence float64) ([]ObjectDetection, error)
}

// PoseEstimator returns one pose per detected person.
type PoseEstimator interface {
	EstimatePoses(ctx context.Context, frame *vision.Frame, minConfidence float64) ([]Pose, error)
}

// FaceAnalyzer detects faces and returns an L2-normalized embedding per face.
type FaceAnalyzer interface {
	DetectFaces(ctx context.Context, frame *vision.Frame) ([]Face, error)
}
