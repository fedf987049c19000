// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package policyrpc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var npyMagic = []byte("\x93NUMPY")

// Tensor is the decoded/encodable form of a tensor frame's payload: the
// canonical .npy v1.0 serialization (magic, version,
// header length, ASCII header dict, then raw little-endian elements).
type Tensor struct {
	Descr string // "<i4", "<f8", or "<u1" — the dtypes the exchange uses
	Shape []int
	Data  []byte // raw little-endian element bytes, row-major (C order)
}

// EncodeNPY serializes t into a canonical .npy v1.0 byte stream.
func EncodeNPY(t Tensor) []byte {
	shapeParts := make([]string, len(t.Shape))
	for i, n := range t.Shape {
		shapeParts[i] = strconv.Itoa(n)
	}
	shapeStr := strings.Join(shapeParts, ", ")
	if len(t.Shape) == 1 {
		shapeStr += ","
	}

	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%s), }", t.Descr, shapeStr)

	// Total header (10 fixed bytes + dict + trailing newline) must be a
	// multiple of 64 bytes, per the .npy format spec.
	const prefixLen = 10
	unpadded := prefixLen + len(dict) + 1
	pad := 0
	if rem := unpadded % 64; rem != 0 {
		pad = 64 - rem
	}
	dict += strings.Repeat(" ", pad) + "\n"

	var buf bytes.Buffer
	buf.Write(npyMagic)
	buf.WriteByte(1) // major version
	buf.WriteByte(0) // minor version
	var headerLen [2]byte
	binary.LittleEndian.PutUint16(headerLen[:], uint16(len(dict)))
	buf.Write(headerLen[:])
	buf.WriteString(dict)
	buf.Write(t.Data)
	return buf.Bytes()
}

var shapeRe = regexp.MustCompile(`'shape':\s*\(([^)]*)\)`)
var descrRe = regexp.MustCompile(`'descr':\s*'([^']*)'`)

// DecodeNPY parses a canonical .npy v1.0 byte stream into a Tensor.
func DecodeNPY(raw []byte) (Tensor, error) {
	if len(raw) < 10 || !bytes.Equal(raw[:6], npyMagic) {
		return Tensor{}, &ProtocolError{Reason: "tensor frame missing .npy magic"}
	}
	major := raw[6]
	if major != 1 {
		return Tensor{}, &ProtocolError{Reason: fmt.Sprintf("unsupported .npy major version %d", major)}
	}
	headerLen := int(binary.LittleEndian.Uint16(raw[8:10]))
	if len(raw) < 10+headerLen {
		return Tensor{}, &ProtocolError{Reason: "tensor frame truncated header"}
	}
	dict := string(raw[10 : 10+headerLen])
	data := raw[10+headerLen:]

	descrMatch := descrRe.FindStringSubmatch(dict)
	if descrMatch == nil {
		return Tensor{}, &ProtocolError{Reason: "tensor frame header missing descr"}
	}
	shapeMatch := shapeRe.FindStringSubmatch(dict)
	if shapeMatch == nil {
		return Tensor{}, &ProtocolError{Reason: "tensor frame header missing shape"}
	}

	shape, err := parseShape(shapeMatch[1])
	if err != nil {
		return Tensor{}, err
	}

	return Tensor{Descr: descrMatch[1], Shape: shape, Data: data}, nil
}

func parseShape(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	shape := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, &ProtocolError{Reason: fmt.Sprintf("invalid shape component %q", p)}
		}
		shape = append(shape, n)
	}
	return shape, nil
}

// ElementCount returns the product of a tensor's shape dimensions.
func (t Tensor) ElementCount() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}
