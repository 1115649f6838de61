package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"resto-vision/internal/domain/vision"
)

// Client talks to a model-serving sidecar over HTTP. One sidecar instance
// hosts the object, pose, and face models behind separate endpoints; the
// sidecar owns GPU scheduling, so calls from here can overlap safely.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type inferRequest struct {
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Pixels        []byte  `json:"pixels"`
	MinConfidence float64 `json:"min_confidence,omitempty"`
	Model         string  `json:"model,omitempty"`
}

func (c *Client) post(ctx context.Context, path string, req inferRequest, out interface{}) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode inference request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("inference call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference call %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode inference response %s: %w", path, err)
	}
	return nil
}

func (c *Client) Detect(ctx context.Context, frame *vision.Frame, minConfidence float64) ([]ObjectDetection, error) {
	var out struct {
		Detections []ObjectDetection `json:"detections"`
	}
	req := inferRequest{Width: frame.Width, Height: frame.Height, Pixels: frame.Pixels, MinConfidence: minConfidence}
	if err := c.post(ctx, "/v1/detect", req, &out); err != nil {
		return nil, err
	}
	return out.Detections, nil
}

func (c *Client) EstimatePoses(ctx context.Context, frame *vision.Frame, minConfidence float64) ([]Pose, error) {
	var out struct {
		Poses []Pose `json:"poses"`
	}
	req := inferRequest{Width: frame.Width, Height: frame.Height, Pixels: frame.Pixels, MinConfidence: minConfidence}
	if err := c.post(ctx, "/v1/pose", req, &out); err != nil {
		return nil, err
	}
	return out.Poses, nil
}

func (c *Client) DetectFaces(ctx context.Context, frame *vision.Frame) ([]Face, error) {
	var out struct {
		Faces []Face `json:"faces"`
	}
	req := inferRequest{Width: frame.Width, Height: frame.Height, Pixels: frame.Pixels}
	if err := c.post(ctx, "/v1/faces", req, &out); err != nil {
		return nil, err
	}
	return out.Faces, nil
}

// ItemClient is the optional specialized stocked-item detector. It shares the
// sidecar transport but targets a custom model by name.
type ItemClient struct {
	client   *Client
	model    string
	classMap map[int]string
}

func NewItemClient(client *Client, model string, classMap map[int]string) *ItemClient {
	return &ItemClient{client: client, model: model, classMap: classMap}
}

func (c *ItemClient) Detect(ctx context.Context, frame *vision.Frame, minConfidence float64) ([]ObjectDetection, error) {
	var out struct {
		Detections []ObjectDetection `json:"detections"`
	}
	req := inferRequest{
		Width:         frame.Width,
		Height:        frame.Height,
		Pixels:        frame.Pixels,
		MinConfidence: minConfidence,
		Model:         c.model,
	}
	if err := c.client.post(ctx, "/v1/detect", req, &out); err != nil {
		return nil, err
	}
	for i := range out.Detections {
		if name, ok := c.classMap[out.Detections[i].ClassID]; ok {
			out.Detections[i].ClassName = name
		} else if out.Detections[i].ClassName == "" {
			out.Detections[i].ClassName = fmt.Sprintf("gorengan_%d", out.Detections[i].ClassID)
		}
	}
	return out.Detections, nil
}
