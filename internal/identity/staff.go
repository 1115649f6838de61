package identity

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"resto-vision/internal/domain/vision"
	"resto-vision/internal/inference"
	"resto-vision/internal/utils"
)

// StaffRegistry holds one reference embedding per enrolled staff member,
// built from a directory of reference photos at startup. Reload may be called
// at runtime when the directory changes.
type StaffRegistry struct {
	mu     sync.RWMutex
	names  []string
	embeds [][]float64

	dir      string
	analyzer inference.FaceAnalyzer
	decode   PhotoDecoder
	log      zerolog.Logger
}

// PhotoDecoder turns a reference photo file into a frame the face analyzer
// can consume. Image decoding lives outside the identity package.
type PhotoDecoder func(path string) (*vision.Frame, error)

func NewStaffRegistry(dir string, analyzer inference.FaceAnalyzer, decode PhotoDecoder, log zerolog.Logger) *StaffRegistry {
	return &StaffRegistry{
		dir:      dir,
		analyzer: analyzer,
		decode:   decode,
		log:      log.With().Str("component", "staff_registry").Logger(),
	}
}

// Reload rescans the photo directory and rebuilds the registry. A missing
// directory yields an empty registry, not an error; individual photos that
// fail to decode or contain no face are skipped with a warning.
func (r *StaffRegistry) Reload(ctx context.Context) error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			r.mu.Lock()
			r.names, r.embeds = nil, nil
			r.mu.Unlock()
			return nil
		}
		return fmt.Errorf("read staff directory: %w", err)
	}

	var names []string
	var embeds [][]float64
	for _, entry := range entries {
		if entry.IsDir() || !isPhotoFile(entry.Name()) {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		frame, err := r.decode(path)
		if err != nil {
			r.log.Warn().Err(err).Str("file", entry.Name()).Msg("failed to decode staff photo")
			continue
		}
		faces, err := r.analyzer.DetectFaces(ctx, frame)
		if err != nil {
			r.log.Warn().Err(err).Str("file", entry.Name()).Msg("face analysis failed for staff photo")
			continue
		}
		if len(faces) == 0 {
			r.log.Warn().Str("file", entry.Name()).Msg("no face found in staff photo")
			continue
		}
		name := utils.StaffNameFromFile(entry.Name())
		names = append(names, name)
		embeds = append(embeds, faces[0].Embedding)
		r.log.Info().Str("staff", name).Msg("registered staff face")
	}

	r.mu.Lock()
	r.names, r.embeds = names, embeds
	r.mu.Unlock()
	return nil
}

// Register adds a single staff embedding without touching the photo
// directory, for enrollment paths that already hold an embedding.
func (r *StaffRegistry) Register(name string, embedding []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	r.embeds = append(r.embeds, embedding)
}

// Match returns the name of the best-matching enrolled staff member when the
// cosine similarity exceeds the threshold, else ("", false). Embeddings are
// L2-normalized, so the dot product is the cosine similarity.
func (r *StaffRegistry) Match(embedding []float64, threshold float64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bestSim := threshold
	bestIdx := -1
	for i, ref := range r.embeds {
		if len(ref) != len(embedding) {
			continue
		}
		if sim := floats.Dot(ref, embedding); sim > bestSim {
			bestSim = sim
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return "", false
	}
	return r.names[bestIdx], true
}

func (r *StaffRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

func isPhotoFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
