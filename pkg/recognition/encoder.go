// Package recognition wraps the dlib face engine (go-face) behind the
// encoder used by enrollment and live recognition. Given an image region it
// detects faces and produces fixed-length encodings; it never matches or
// persists anything itself.
package recognition

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Kagami/go-face"

	"github.com/attendly/faceattend/pkg/encoding"
	"github.com/attendly/faceattend/pkg/logging"
)

// Face is a detected face within a region.
type Face struct {
	BoundingBox Rectangle
	Encoding    encoding.Encoding
}

// Rectangle is a bounding box in pixel coordinates.
type Rectangle struct {
	X, Y          int
	Width, Height int
}

// ErrNoFace is returned when no face is found in the region.
var ErrNoFace = errors.New("no face detected in region")

// ErrMultipleFaces is returned when a single-face operation sees more than one.
var ErrMultipleFaces = errors.New("multiple faces detected in region")

// ErrInvalidRegion is returned for degenerate input (empty or zero-area).
var ErrInvalidRegion = errors.New("invalid face region")

// ErrModelNotLoaded is returned when the dlib models are not loaded yet.
var ErrModelNotLoaded = errors.New("recognition models not loaded")

// FaceEngine is the slice of go-face the encoder depends on.
type FaceEngine interface {
	Recognize(data []byte) ([]face.Face, error)
	Close()
}

// EngineFactory creates a FaceEngine from a model directory.
type EngineFactory func(modelPath string) (FaceEngine, error)

func dlibFactory(modelPath string) (FaceEngine, error) {
	return face.NewRecognizer(modelPath)
}

// Encoder turns face image regions into encodings using dlib models.
// Encoding is deterministic for a fixed input and model set.
type Encoder struct {
	mu        sync.RWMutex
	engine    FaceEngine
	factory   EngineFactory
	modelPath string
	loaded    bool
}

// NewEncoder creates an Encoder. Models must be loaded before use.
func NewEncoder() *Encoder {
	return &Encoder{factory: dlibFactory}
}

// LoadModels loads the dlib models from the given directory. The directory
// must contain shape_predictor_5_face_landmarks.dat and
// dlib_face_recognition_resnet_model_v1.dat.
func (e *Encoder) LoadModels(modelPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loaded {
		return nil
	}

	logging.Infof("Loading face recognition models from: %s", modelPath)

	engine, err := e.factory(modelPath)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}

	e.engine = engine
	e.modelPath = modelPath
	e.loaded = true
	return nil
}

// IsLoaded reports whether models are loaded.
func (e *Encoder) IsLoaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loaded
}

// Close releases the underlying engine.
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.engine != nil {
		e.engine.Close()
		e.engine = nil
	}
	e.loaded = false
	return nil
}

// DetectFaces finds every face in the region and returns them with their
// bounding boxes and encodings. A region without faces yields ErrNoFace.
func (e *Encoder) DetectFaces(region []byte) ([]Face, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.loaded {
		return nil, ErrModelNotLoaded
	}
	if len(region) == 0 {
		return nil, ErrInvalidRegion
	}

	detected, err := e.engine.Recognize(region)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	if len(detected) == 0 {
		return nil, ErrNoFace
	}

	now := time.Now()
	faces := make([]Face, len(detected))
	for i, f := range detected {
		if f.Rectangle.Dx() <= 0 || f.Rectangle.Dy() <= 0 {
			return nil, ErrInvalidRegion
		}
		faces[i] = Face{
			BoundingBox: Rectangle{
				X:      f.Rectangle.Min.X,
				Y:      f.Rectangle.Min.Y,
				Width:  f.Rectangle.Dx(),
				Height: f.Rectangle.Dy(),
			},
			Encoding: encoding.Encoding{
				Vector:     f.Descriptor,
				Quality:    1.0,
				CapturedAt: now,
			},
		}
	}

	logging.Debugf("Detected %d face(s) in region", len(faces))
	return faces, nil
}

// Encode produces exactly one encoding for the region. Regions with no face
// fail with ErrNoFace, regions with several with ErrMultipleFaces; both are
// per-attempt conditions the caller should re-prompt on.
func (e *Encoder) Encode(region []byte) (encoding.Encoding, error) {
	faces, err := e.DetectFaces(region)
	if err != nil {
		return encoding.Encoding{}, err
	}
	if len(faces) > 1 {
		return encoding.Encoding{}, ErrMultipleFaces
	}
	return faces[0].Encoding, nil
}
