package recognition

import (
	"image"

	"github.com/Kagami/go-face"
)

// MockFaceEngine is a test double for the dlib engine.
type MockFaceEngine struct {
	RecognizeFunc func(data []byte) ([]face.Face, error)
	CloseFunc     func()
	Closed        bool
}

func (m *MockFaceEngine) Recognize(data []byte) ([]face.Face, error) {
	if m.RecognizeFunc != nil {
		return m.RecognizeFunc(data)
	}
	return nil, nil
}

func (m *MockFaceEngine) Close() {
	m.Closed = true
	if m.CloseFunc != nil {
		m.CloseFunc()
	}
}

// testFace builds a go-face result with a plausible bounding box and a
// descriptor whose first component is fill.
func testFace(fill float32) face.Face {
	var desc face.Descriptor
	desc[0] = fill
	return face.Face{
		Rectangle:  image.Rect(100, 100, 250, 250),
		Descriptor: desc,
	}
}

// newTestEncoder returns an Encoder backed by the mock engine, already
// loaded.
func newTestEncoder(engine *MockFaceEngine) *Encoder {
	e := NewEncoder()
	e.factory = func(modelPath string) (FaceEngine, error) {
		return engine, nil
	}
	if err := e.LoadModels("/nonexistent/models"); err != nil {
		panic(err)
	}
	return e
}
