package attend

import (
	"time"

	"github.com/attendly/faceattend/pkg/encoding"
	"github.com/attendly/faceattend/pkg/liveness"
	"github.com/attendly/faceattend/pkg/store"
)

// MockEncoder is a test double for the face encoder.
type MockEncoder struct {
	EncodeFunc func(region []byte) (encoding.Encoding, error)
	Calls      int
}

func (m *MockEncoder) Encode(region []byte) (encoding.Encoding, error) {
	m.Calls++
	if m.EncodeFunc != nil {
		return m.EncodeFunc(region)
	}
	return encoding.Encoding{}, nil
}

// MockLandmarker feeds scripted eye landmarks, one frame per call.
type MockLandmarker struct {
	EyeLandmarksFunc func(frameData []byte) (left, right []liveness.Point, err error)
}

func (m *MockLandmarker) EyeLandmarks(frameData []byte) ([]liveness.Point, []liveness.Point, error) {
	if m.EyeLandmarksFunc != nil {
		return m.EyeLandmarksFunc(frameData)
	}
	return nil, nil, nil
}

// MockStore is an in-memory stand-in for the persistence layer.
type MockStore struct {
	Identities []store.IdentityRecord
	Added      map[int64][]encoding.Encoding
	Marked     []MarkedAttendance

	ListIdentitiesErr error
	AddEncodingErr    error
	MarkAttendanceErr error
}

// MarkedAttendance records one MarkAttendance call.
type MarkedAttendance struct {
	UserID     int64
	Confidence float64
	Action     string
	At         time.Time
}

func NewMockStore() *MockStore {
	return &MockStore{Added: make(map[int64][]encoding.Encoding)}
}

func (m *MockStore) ListIdentities() ([]store.IdentityRecord, error) {
	if m.ListIdentitiesErr != nil {
		return nil, m.ListIdentitiesErr
	}
	return m.Identities, nil
}

func (m *MockStore) AddEncoding(userID int64, enc encoding.Encoding) error {
	if m.AddEncodingErr != nil {
		return m.AddEncodingErr
	}
	m.Added[userID] = append(m.Added[userID], enc)
	return nil
}

func (m *MockStore) UserExists(employeeID string) (bool, error) {
	for _, rec := range m.Identities {
		if rec.ExternalID == employeeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockStore) MarkAttendance(userID int64, confidence float64, action string, at time.Time) error {
	if m.MarkAttendanceErr != nil {
		return m.MarkAttendanceErr
	}
	m.Marked = append(m.Marked, MarkedAttendance{
		UserID:     userID,
		Confidence: confidence,
		Action:     action,
		At:         at,
	})
	return nil
}

// eyeWithEAR builds a 6-point eye whose aspect ratio is exactly ear.
func eyeWithEAR(ear float64) []liveness.Point {
	half := 5.0 * ear
	return []liveness.Point{
		{X: 0, Y: 0},
		{X: 3, Y: half}, {X: 7, Y: half},
		{X: 10, Y: 0},
		{X: 7, Y: -half}, {X: 3, Y: -half},
	}
}

// scriptedLandmarker returns a landmarker that plays back one EAR value per
// frame.
func scriptedLandmarker(ears []float64) *MockLandmarker {
	i := 0
	return &MockLandmarker{
		EyeLandmarksFunc: func(frameData []byte) ([]liveness.Point, []liveness.Point, error) {
			ear := ears[len(ears)-1]
			if i < len(ears) {
				ear = ears[i]
				i++
			}
			eye := eyeWithEAR(ear)
			return eye, eye, nil
		},
	}
}
