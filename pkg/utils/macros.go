package utils

import "golang.org/x/exp/constraints"

func Clamp[T constraints.Integer | constraints.Float](min, value, max T) T {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ZeroAdjust returns 1 when v is zero, otherwise v.
func ZeroAdjust[T constraints.Integer](v T) T {
	if v == 0 {
		return 1
	}
	return v
}

// Abs returns the absolute value of v.
func Abs[T constraints.Signed](v T) T {
	if v < 0 {
		return -v
	}
	return v
}
