// Package utils contains small numeric helpers shared by the matching packages.
package utils

import (
	"context"
	"encoding/json"
	"math"
	"math/bits"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrDescriptorLengthMismatch is returned when two descriptors of different lengths are compared.
	ErrDescriptorLengthMismatch = errors.New("must have same length")
	// ErrInvalidBinaryWord is returned when a hamming descriptor component is not a whole number in
	// [0, 2^64).
	ErrInvalidBinaryWord = errors.New("binary descriptor components must be whole numbers in [0, 2^64)")
)

// maxWord is 2^64, the first float64 that does not fit in a uint64.
const maxWord float64 = 1 << 64

// DistanceType defines the type of distance used in a function.
type DistanceType int

const (
	// Euclidean is DistanceType 0.
	Euclidean DistanceType = iota
	// Hamming is DistanceType 1.
	Hamming
)

func (dt DistanceType) String() string {
	switch dt {
	case Euclidean:
		return "euclidean"
	case Hamming:
		return "hamming"
	default:
		return "unknown"
	}
}

// DistanceTypeFromString parses "euclidean" or "hamming" (case-insensitive). The empty string is Euclidean.
func DistanceTypeFromString(s string) (DistanceType, error) {
	switch strings.ToLower(s) {
	case "", "euclidean", "l2":
		return Euclidean, nil
	case "hamming":
		return Hamming, nil
	default:
		return Euclidean, errors.Errorf("unknown distance type %q", s)
	}
}

// MarshalJSON encodes the distance type as its name.
func (dt DistanceType) MarshalJSON() ([]byte, error) {
	return json.Marshal(dt.String())
}

// UnmarshalJSON accepts the distance type name.
func (dt *DistanceType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := DistanceTypeFromString(s)
	if err != nil {
		return err
	}
	*dt = parsed
	return nil
}

// UnmarshalText lets text based decoders (yaml, mapstructure text hooks) parse a distance type.
func (dt *DistanceType) UnmarshalText(text []byte) error {
	parsed, err := DistanceTypeFromString(string(text))
	if err != nil {
		return err
	}
	*dt = parsed
	return nil
}

// ComputeDistance computes the distance between two vectors stored in a slice of floats.
func ComputeDistance(p1, p2 []float64, distType DistanceType) (float64, error) {
	switch distType {
	case Euclidean:
		return EuclideanDistance(p1, p2)
	case Hamming:
		return HammingDistance(p1, p2)
	default:
		return EuclideanDistance(p1, p2)
	}
}

// PairwiseDistance computes the pairwise distances between 2 sets of points. Rows are computed in
// parallel.
func PairwiseDistance(pts1, pts2 [][]float64, distType DistanceType) (*mat.Dense, error) {
	m := len(pts1)
	n := len(pts2)
	if m == 0 || n == 0 {
		return nil, errors.New("cannot compute pairwise distances of an empty set")
	}
	distances := mat.NewDense(m, n, nil)

	err := GroupWorkParallel(context.Background(), m, func(_, from, to int) error {
		for i := from; i < to; i++ {
			for j := 0; j < n; j++ {
				d, err := ComputeDistance(pts1[i], pts2[j], distType)
				if err != nil {
					return errors.Wrapf(err, "distance between %d and %d", i, j)
				}
				distances.Set(i, j, d)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return distances, nil
}

// GetArgMinDistancesPerRow returns in a slice of int the index of the point with minimum distance for each row.
func GetArgMinDistancesPerRow(distances *mat.Dense) []int {
	nRows, _ := distances.Dims()
	indices := make([]int, nRows)
	for i := 0; i < nRows; i++ {
		row := mat.Row(nil, i, distances)
		indices[i] = floats.MinIdx(row)
	}
	return indices
}

// HammingDistance computes the hamming distance between two vectors. Each component is treated as a
// packed word of bits, so binary descriptors stored one bit per element and descriptors stored as
// bytes both work.
func HammingDistance(p1, p2 []float64) (float64, error) {
	if len(p1) != len(p2) {
		return -1, ErrDescriptorLengthMismatch
	}
	distance := 0
	for i := range p1 {
		w1, err := binaryWord(p1[i])
		if err != nil {
			return -1, err
		}
		w2, err := binaryWord(p2[i])
		if err != nil {
			return -1, err
		}
		distance += bits.OnesCount64(w1 ^ w2)
	}
	return float64(distance), nil
}

// binaryWord converts a descriptor component to its bits. Converting a negative, fractional or too large
// float to uint64 is implementation defined, so those are rejected.
func binaryWord(v float64) (uint64, error) {
	if !(v >= 0 && v < maxWord) || v != math.Trunc(v) {
		return 0, errors.Wrapf(ErrInvalidBinaryWord, "got %v", v)
	}
	return uint64(v), nil
}

// EuclideanDistance computes the euclidean distance between 2 vectors.
func EuclideanDistance(p1, p2 []float64) (float64, error) {
	if len(p1) != len(p2) {
		return -1, ErrDescriptorLengthMismatch
	}
	return floats.Distance(p1, p2, 2), nil
}
