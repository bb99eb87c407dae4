// Package encoding defines the face encoding vector type and the numeric
// operations the matcher and enrollment paths share: Euclidean distance,
// multi-encoding aggregation, and the distance-to-confidence mapping.
package encoding

import (
	"math"
	"time"

	"github.com/Kagami/go-face"
)

// Size is the dimensionality of a face encoding vector.
const Size = 128

// Vector is a 128-dimensional face descriptor from dlib.
type Vector = face.Descriptor

// Encoding is one face observation. The vector is immutable once produced.
type Encoding struct {
	Vector     Vector    `json:"vector"`
	Quality    float64   `json:"quality"`
	CapturedAt time.Time `json:"captured_at"`
}

// Distance computes the Euclidean distance between two vectors.
// Lower means more similar; dlib descriptors of the same person are
// typically within 0.6 of each other.
func Distance(a, b Vector) float64 {
	var sum float64
	for i := range a {
		diff := float64(a[i] - b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// Confidence maps a distance onto the [0,1] confidence scale used in
// attendance records and operator-facing output. Distance is the canonical
// scale everywhere else; this is the only conversion point.
func Confidence(distance float64) float64 {
	c := 1.0 - distance
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Aggregate combines encodings captured for one identity into a single
// representation: the element-wise arithmetic mean. The result is invariant
// to the order of the inputs, and a single encoding aggregates to itself.
// Aggregate never rejects on count; minimum-sample policy belongs to the
// caller. An empty input yields the zero encoding.
func Aggregate(encodings []Encoding) Encoding {
	if len(encodings) == 0 {
		return Encoding{}
	}
	if len(encodings) == 1 {
		return encodings[0]
	}

	var sum [Size]float64
	var quality float64
	for _, enc := range encodings {
		for i, v := range enc.Vector {
			sum[i] += float64(v)
		}
		quality += enc.Quality
	}

	n := float64(len(encodings))
	var mean Vector
	for i := range mean {
		mean[i] = float32(sum[i] / n)
	}

	return Encoding{
		Vector:     mean,
		Quality:    quality / n,
		CapturedAt: encodings[len(encodings)-1].CapturedAt,
	}
}
