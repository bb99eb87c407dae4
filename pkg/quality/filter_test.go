package quality

import (
	"image"
	"image/color"
	"testing"
)

// checkerboard returns a high-contrast image that scores very high on the
// variance-of-Laplacian measure.
func checkerboard(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

// flat returns a uniform image with zero edge response.
func flat(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: 128})
		}
	}
	return img
}

func hasFailure(r Report, reason Reason) bool {
	for _, f := range r.Failures {
		if f == reason {
			return true
		}
	}
	return false
}

func TestAssessGeometry(t *testing.T) {
	frame := image.Pt(100, 100)

	tests := []struct {
		name       string
		bbox       image.Rectangle
		wantOK     bool
		wantReason Reason
	}{
		{
			name:   "large centered face",
			bbox:   image.Rect(10, 25, 90, 75), // 40% of frame, centered
			wantOK: true,
		},
		{
			name:       "tiny face",
			bbox:       image.Rect(43, 43, 57, 57), // ~2% of frame
			wantOK:     false,
			wantReason: ReasonTooSmall,
		},
		{
			name:       "off-center face",
			bbox:       image.Rect(0, 0, 30, 30),
			wantOK:     false,
			wantReason: ReasonOffCenter,
		},
		{
			name:       "empty bbox",
			bbox:       image.Rectangle{},
			wantOK:     false,
			wantReason: ReasonTooSmall,
		},
	}

	filter := NewFilter(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := filter.Assess(nil, tt.bbox, frame)
			if report.OK != tt.wantOK {
				t.Errorf("OK = %v, want %v (failures: %v)", report.OK, tt.wantOK, report.Failures)
			}
			if tt.wantReason != "" && !hasFailure(report, tt.wantReason) {
				t.Errorf("expected failure %s, got %v", tt.wantReason, report.Failures)
			}
		})
	}
}

func TestAssessSharpness(t *testing.T) {
	frame := image.Pt(100, 100)
	bbox := image.Rect(10, 25, 90, 75)
	filter := NewFilter(DefaultConfig())

	sharp := filter.Assess(checkerboard(80, 50), bbox, frame)
	if !sharp.OK {
		t.Errorf("sharp centered crop rejected: %v", sharp.Failures)
	}
	if sharp.Sharpness < DefaultConfig().MinSharpness {
		t.Errorf("checkerboard sharpness %f below threshold", sharp.Sharpness)
	}

	blurry := filter.Assess(flat(80, 50), bbox, frame)
	if blurry.OK {
		t.Error("flat crop should be rejected as blurry")
	}
	if !hasFailure(blurry, ReasonBlurry) {
		t.Errorf("expected %s, got %v", ReasonBlurry, blurry.Failures)
	}
}

func TestAssessCollectsAllFailures(t *testing.T) {
	filter := NewFilter(DefaultConfig())

	// Tiny, cornered, and flat: every check fails at once.
	report := filter.Assess(flat(10, 10), image.Rect(0, 0, 10, 10), image.Pt(100, 100))
	if report.OK {
		t.Fatal("expected rejection")
	}
	for _, reason := range []Reason{ReasonTooSmall, ReasonOffCenter, ReasonBlurry} {
		if !hasFailure(report, reason) {
			t.Errorf("expected failure %s, got %v", reason, report.Failures)
		}
	}
}

func TestLaplacianVariance(t *testing.T) {
	if v := LaplacianVariance(flat(32, 32)); v != 0 {
		t.Errorf("flat image variance = %f, want 0", v)
	}
	if v := LaplacianVariance(checkerboard(32, 32)); v < 1000 {
		t.Errorf("checkerboard variance = %f, want strong edge response", v)
	}
	if v := LaplacianVariance(flat(2, 2)); v != 0 {
		t.Errorf("sub-minimal image variance = %f, want 0", v)
	}
}

func TestReasonFeedback(t *testing.T) {
	reasons := []Reason{ReasonTooSmall, ReasonOffCenter, ReasonBlurry, Reason("other")}
	for _, r := range reasons {
		if r.Feedback() == "" {
			t.Errorf("no feedback for %s", r)
		}
	}
}
