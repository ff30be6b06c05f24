package dataitem

import (
	"encoding/binary"
	"math"
)

func asFloat64(raw []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(raw))
}

func asFloat32(raw []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(raw))
}

func mathFloat64bits(v float64) uint64 {
	return math.Float64bits(v)
}

func mathFloat32bits(v float32) uint32 {
	return math.Float32bits(v)
}
