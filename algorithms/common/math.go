package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// WeightedMean returns sum(w*x)/sum(w) using gonum. A nil weights slice means
// equal weights. Empty input or zero total weight returns 0.
func WeightedMean(data, weights []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	if weights != nil && floats.Sum(weights) == 0 {
		return 0.0
	}
	return stat.Mean(data, weights)
}

// MaxAbs returns the largest absolute sample value
func MaxAbs(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	// max(|x|) = max(max(x), -min(x))
	return math.Max(floats.Max(data), -floats.Min(data))
}

// AmplitudeToDB converts a linear magnitude to decibels (20*log10), clamped
// to floorDB so silent bins do not produce -Inf.
func AmplitudeToDB(amplitude, floorDB float64) float64 {
	if amplitude <= 0 {
		return floorDB
	}
	db := 20 * math.Log10(amplitude)
	if db < floorDB || math.IsNaN(db) {
		return floorDB
	}
	return db
}

// DBToAmplitude is the inverse of AmplitudeToDB
func DBToAmplitude(db float64) float64 {
	return math.Pow(10, db/20)
}

// Clamp constrains a value to a range
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ClampInt is Clamp for indices
func ClampInt(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// IsPowerOfTwo checks if n is a power of 2
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// NextPowerOfTwo finds the next power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
