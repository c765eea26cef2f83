package utility

import (
	"errors"
	"math"
)

var ErrOverflow = errors.New("integer overflow")

func U64ToI64(i uint64) (int64, error) {
	if i <= uint64(math.MaxInt64) {
		return int64(i), nil // #nosec G115
	}
	return 0, ErrOverflow
}

func U64ToI64Unsafe(i uint64) int64 {
	if i <= uint64(math.MaxInt64) {
		return int64(i) // #nosec G115
	}
	panic(ErrOverflow)
}

func IntToU32(i int) (uint32, error) {
	if i >= 0 && uint64(i) <= math.MaxUint32 {
		return uint32(i), nil // #nosec G115
	}
	return 0, ErrOverflow
}

func U32ToI32(i uint32) (int32, error) {
	if i <= uint32(math.MaxInt32) {
		return int32(i), nil // #nosec G115
	}
	return 0, ErrOverflow
}
