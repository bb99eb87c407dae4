package attend

import (
	"errors"
	"time"

	"github.com/attendly/faceattend/pkg/frame"
	"github.com/attendly/faceattend/pkg/logging"
	"github.com/attendly/faceattend/pkg/match"
)

// NewFrameGate builds a frame gate from the configured stream policy.
func (s *Service) NewFrameGate() *FrameGate {
	cacheFor := time.Duration(s.cfg.Stream.CacheSeconds * float64(time.Second))
	return NewFrameGate(s.cfg.Stream.SkipFrames, cacheFor)
}

// ProcessStream runs recognition over a frame source until it closes,
// applying the configured frame-gating policy. handle receives one verdict
// per delivered frame; returning false stops the stream early. Frames the
// gate suppresses reuse the cached verdict, and frames that fail to encode
// are dropped without a verdict.
func (s *Service) ProcessStream(src frame.Source, handle func(frame.Frame, match.Result) bool) error {
	gate := s.NewFrameGate()

	for {
		f, err := src.ReadFrame()
		if errors.Is(err, frame.ErrSourceClosed) {
			return nil
		}
		if errors.Is(err, frame.ErrNoFrame) {
			continue
		}
		if err != nil {
			return err
		}

		at := f.Timestamp
		if at.IsZero() {
			at = time.Now()
		}

		var result match.Result
		if gate.ShouldProcess(at) {
			result, err = s.Recognize(f.Data)
			if err != nil {
				logging.Component("attend").Debugf("stream: frame dropped: %v", err)
				continue
			}
			gate.Remember(result, at)
		} else {
			cached, ok := gate.Cached(at)
			if !ok {
				continue
			}
			result = cached
		}

		if !handle(f, result) {
			return nil
		}
	}
}
