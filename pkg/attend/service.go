// Package attend wires the recognition core together for callers: encoder,
// quality filter, liveness gate, matcher, and persistence. Registration and
// live-attendance frontends talk to this facade only.
package attend

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"time"

	"github.com/attendly/faceattend/pkg/config"
	"github.com/attendly/faceattend/pkg/encoding"
	"github.com/attendly/faceattend/pkg/liveness"
	"github.com/attendly/faceattend/pkg/logging"
	"github.com/attendly/faceattend/pkg/match"
	"github.com/attendly/faceattend/pkg/quality"
	"github.com/attendly/faceattend/pkg/store"
)

// ErrInsufficientSamples is returned when an enrollment produced fewer
// usable encodings than the configured minimum. The caller should collect
// more captures.
var ErrInsufficientSamples = errors.New("not enough usable face samples")

// ErrLivenessTimeout is returned when a liveness session timed out without
// a qualifying blink. The caller should reset the session and re-prompt.
var ErrLivenessTimeout = errors.New("liveness check timed out")

// ErrNoLandmarker is returned when liveness is requested without a
// landmark extractor wired in.
var ErrNoLandmarker = errors.New("no landmark extractor configured")

// Encoder produces face encodings from image regions.
type Encoder interface {
	Encode(region []byte) (encoding.Encoding, error)
}

// Landmarker extracts eye landmark coordinates from a frame. It is an
// external collaborator (e.g. a face-mesh model); the core only consumes
// the six points per eye the EAR formula needs.
type Landmarker interface {
	EyeLandmarks(frameData []byte) (left, right []liveness.Point, err error)
}

// Store is the persistence the facade depends on.
type Store interface {
	ListIdentities() ([]store.IdentityRecord, error)
	AddEncoding(userID int64, enc encoding.Encoding) error
	UserExists(employeeID string) (bool, error)
	MarkAttendance(userID int64, confidence float64, action string, at time.Time) error
}

// Service is the attendance core facade.
type Service struct {
	cfg        *config.Config
	encoder    Encoder
	landmarker Landmarker
	store      Store

	roster   *match.Roster
	unknowns *match.UnknownRegistry
	matcher  *match.Matcher
	filter   *quality.Filter
}

// New builds a Service and loads the enrolled roster from the store.
// landmarker may be nil when liveness gating is not used.
func New(cfg *config.Config, enc Encoder, landmarker Landmarker, st Store) (*Service, error) {
	s := &Service{
		cfg:        cfg,
		encoder:    enc,
		landmarker: landmarker,
		store:      st,
		roster:     match.NewRoster(),
		unknowns:   match.NewUnknownRegistry(cfg.Recognition.UnknownThreshold, cfg.UnknownTTL()),
		filter: quality.NewFilter(quality.Config{
			MinAreaFraction: cfg.Quality.MinAreaFraction,
			CenterTolerance: cfg.Quality.CenterTolerance,
			MinSharpness:    cfg.Quality.MinSharpness,
		}),
	}
	s.matcher = match.NewMatcher(s.roster, s.unknowns, cfg.Recognition.Tolerance)

	if err := s.ReloadRoster(); err != nil {
		return nil, err
	}
	return s, nil
}

// ReloadRoster rebuilds the in-memory roster from the store. Aggregates
// are recomputed from the full encoding sets.
func (s *Service) ReloadRoster() error {
	records, err := s.store.ListIdentities()
	if err != nil {
		return fmt.Errorf("failed to load identities: %w", err)
	}

	fresh := match.NewRoster()
	for _, rec := range records {
		fresh.Put(rec.ID, rec.Name, rec.ExternalID, rec.Encodings)
	}
	s.roster = fresh
	s.matcher = match.NewMatcher(s.roster, s.unknowns, s.cfg.Recognition.Tolerance)

	logging.Component("attend").Debugf("roster loaded with %d identities", fresh.Len())
	return nil
}

// Enroll encodes the captured regions for one user, persists the usable
// encodings, and returns the recomputed aggregate. Regions that fail to
// encode are skipped; if none encode the last encoding error is returned,
// and fewer usable samples than the minimum yields ErrInsufficientSamples.
func (s *Service) Enroll(userID int64, regions [][]byte) (encoding.Encoding, error) {
	var encodings []encoding.Encoding
	var lastErr error

	for i, region := range regions {
		enc, err := s.encoder.Encode(region)
		if err != nil {
			logging.Component("attend").Debugf("enroll: region %d unusable: %v", i, err)
			lastErr = err
			continue
		}
		encodings = append(encodings, enc)
		if max := s.cfg.Enrollment.MaxEncodingsPerUser; max > 0 && len(encodings) >= max {
			break
		}
	}

	if len(encodings) == 0 {
		if lastErr == nil {
			lastErr = errors.New("no regions provided")
		}
		return encoding.Encoding{}, fmt.Errorf("enrollment failed: %w", lastErr)
	}
	if len(encodings) < s.cfg.Enrollment.MinSamples {
		return encoding.Encoding{}, fmt.Errorf("%w: got %d, need %d",
			ErrInsufficientSamples, len(encodings), s.cfg.Enrollment.MinSamples)
	}

	for _, enc := range encodings {
		if err := s.store.AddEncoding(userID, enc); err != nil {
			return encoding.Encoding{}, err
		}
	}
	if err := s.ReloadRoster(); err != nil {
		return encoding.Encoding{}, err
	}

	aggregate := encoding.Aggregate(encodings)
	logging.Infof("Enrolled user %d with %d encodings", userID, len(encodings))
	return aggregate, nil
}

// Recognize matches one face region against the roster. An encoding
// failure is an error distinct from an unknown-person result; the core
// never converts a failed encoding into a silent unknown.
func (s *Service) Recognize(region []byte) (match.Result, error) {
	enc, err := s.encoder.Encode(region)
	if err != nil {
		return match.Result{}, fmt.Errorf("recognition failed: %w", err)
	}
	return s.matcher.Match(enc.Vector), nil
}

// NewLivenessSession starts a liveness attempt with the configured blink
// thresholds. Each session belongs to exactly one capture attempt.
func (s *Service) NewLivenessSession() *liveness.Session {
	return liveness.NewSession(liveness.Config{
		CloseThreshold:  s.cfg.Liveness.EARThreshold,
		OpenThreshold:   s.cfg.Liveness.EAROpenThreshold,
		MinClosedFrames: s.cfg.Liveness.MinClosedFrames,
		RecoveryFrames:  s.cfg.Liveness.RecoveryFrames,
		Window:          s.cfg.LivenessWindow(),
		MaxFrames:       s.cfg.Liveness.MaxFrames,
	})
}

// ObserveFrame feeds one frame into a liveness session: eye landmarks are
// extracted, reduced to an EAR sample, and applied to the session. A frame
// whose landmarks cannot be extracted is discarded without advancing the
// session. When liveness is disabled in configuration every frame passes
// immediately, without a landmarker.
func (s *Service) ObserveFrame(session *liveness.Session, frameData []byte, at time.Time) (liveness.State, error) {
	if !s.cfg.Liveness.Enabled {
		return liveness.StateBlinkDetected, nil
	}
	if s.landmarker == nil {
		return session.State(), ErrNoLandmarker
	}

	left, right, err := s.landmarker.EyeLandmarks(frameData)
	if err != nil {
		return session.State(), fmt.Errorf("landmark extraction failed: %w", err)
	}

	state := session.Observe(liveness.AverageEAR(left, right), at)
	if state == liveness.StateTimedOut {
		return state, ErrLivenessTimeout
	}
	return state, nil
}

// LivenessRequired reports whether captures must pass the blink check.
func (s *Service) LivenessRequired() bool {
	return s.cfg.Liveness.Enabled
}

// EnrollmentTarget returns how many capture images an enrollment should
// aim for.
func (s *Service) EnrollmentTarget() int {
	return s.cfg.Enrollment.ImagesPerUser
}

// AssessQuality scores a candidate face crop for capture.
func (s *Service) AssessQuality(crop image.Image, bbox image.Rectangle, frameSize image.Point) quality.Report {
	return s.filter.Assess(crop, bbox, frameSize)
}

// CheckIn recognizes the face and records attendance for the matched user.
// Unknown faces are returned as-is and never recorded.
func (s *Service) CheckIn(region []byte, at time.Time) (match.Result, error) {
	return s.markAttendance(region, "check_in", at)
}

// CheckOut recognizes the face and records a check-out event.
func (s *Service) CheckOut(region []byte, at time.Time) (match.Result, error) {
	return s.markAttendance(region, "check_out", at)
}

func (s *Service) markAttendance(region []byte, action string, at time.Time) (match.Result, error) {
	result, err := s.Recognize(region)
	if err != nil {
		return match.Result{}, err
	}
	if !result.Matched {
		logging.Component("attend").Debugf("%s: unmatched face tracked as %s", action, result.TrackLabel)
		return result, nil
	}

	userID, err := strconv.ParseInt(result.IdentityID, 10, 64)
	if err != nil {
		return result, fmt.Errorf("invalid identity id %q: %w", result.IdentityID, err)
	}
	if err := s.store.MarkAttendance(userID, result.Confidence, action, at); err != nil {
		return result, err
	}

	logging.Infof("Attendance %s: %s (confidence %.2f)", action, result.Label(), result.Confidence)
	return result, nil
}
