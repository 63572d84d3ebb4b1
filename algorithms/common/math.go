package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ColumnMeans averages equally sized rows element-wise. rows[t][k] is
// column k of row t; the result has width columns.
func ColumnMeans(rows [][]float64, width int) []float64 {
	means := make([]float64, width)
	if len(rows) == 0 {
		return means
	}

	column := make([]float64, len(rows))
	for k := range width {
		for t, row := range rows {
			column[t] = row[k]
		}
		means[k] = stat.Mean(column, nil)
	}
	return means
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return math.Sqrt(floats.Dot(data, data) / float64(len(data)))
}

// MaxAbs returns the largest absolute value, 0 for an empty slice
func MaxAbs(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return math.Max(math.Abs(floats.Max(data)), math.Abs(floats.Min(data)))
}

// MaxNormalize scales data in place so its largest absolute value is 1.
// All-zero data is left untouched.
func MaxNormalize(data []float64) {
	peak := MaxAbs(data)
	if peak == 0 {
		return
	}
	floats.Scale(1/peak, data)
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
