// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package policyrpc

import (
	"encoding/binary"
	"math"

	"gonum.org/v1/gonum/mat"
)

// EncodeInt32Matrix packs an [S,maxC] int32 matrix (total_cores or
// available_cores) into a tensor frame payload.
func EncodeInt32Matrix(rows [][]int32) Tensor {
	s := len(rows)
	c := 0
	if s > 0 {
		c = len(rows[0])
	}
	data := make([]byte, 0, s*c*4)
	for _, row := range rows {
		for _, v := range row {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], uint32(v))
			data = append(data, b[:]...)
		}
	}
	return Tensor{Descr: "<i4", Shape: []int{s, c}, Data: data}
}

// DenseFromFloat64Matrix builds a gonum mat.Dense from an [S,maxC] row
// slice — used for the core_speeds feature matrix, the one
// tensor in the SBMT exchange whose values are genuinely floating point
// and therefore the natural fit for gonum's numeric matrix type.
func DenseFromFloat64Matrix(rows [][]float64) *mat.Dense {
	s := len(rows)
	c := 0
	if s > 0 {
		c = len(rows[0])
	}
	m := mat.NewDense(s, c, nil)
	for i, row := range rows {
		for j, v := range row {
			m.Set(i, j, v)
		}
	}
	return m
}

// EncodeFloat64Dense packs a gonum mat.Dense into a tensor frame payload.
func EncodeFloat64Dense(m *mat.Dense) Tensor {
	r, c := m.Dims()
	data := make([]byte, 0, r*c*8)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(m.At(i, j)))
			data = append(data, b[:]...)
		}
	}
	return Tensor{Descr: "<f8", Shape: []int{r, c}, Data: data}
}

// EncodeFloat64Vector packs a flat []float64 into a [1,len] tensor frame
// payload — used for the per-job feature vector.
func EncodeFloat64Vector(values []float64) Tensor {
	m := mat.NewDense(1, len(values), values)
	return EncodeFloat64Dense(m)
}

// DecodeVector reads a tensor's elements as a flat []float64 regardless
// of whether it is stored as uint8 or float64 on the wire and whether its
// shape is [S] or [1,S]; decision servers send either.
func DecodeVector(t Tensor) ([]float64, error) {
	n := t.ElementCount()
	switch t.Descr {
	case "<u1", "|u1":
		if len(t.Data) < n {
			return nil, &ProtocolError{Reason: "uint8 tensor shorter than its declared shape"}
		}
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			out[i] = float64(t.Data[i])
		}
		return out, nil
	case "<f8":
		if len(t.Data) < n*8 {
			return nil, &ProtocolError{Reason: "float64 tensor shorter than its declared shape"}
		}
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint64(t.Data[i*8 : i*8+8])
			out[i] = math.Float64frombits(bits)
		}
		return out, nil
	default:
		return nil, &ProtocolError{Reason: "unsupported tensor dtype " + t.Descr}
	}
}

// Is1D reports whether shape is a bare [S] vector, as opposed to [1,S].
func Is1D(shape []int) bool { return len(shape) == 1 }
