// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package policyrpc implements the framed binary protocol the core speaks
// to an external decision server: a
// length-prefixed TCP stream carrying ASCII message frames (CONN, SBMT,
// WAIT, CNFM) and tensor frames (canonical .npy v1.0 payloads) in the
// SBMT/WAIT/CNFM exchange.
package policyrpc

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameBytes bounds a single frame's payload so a malformed or hostile
// peer can't force an unbounded allocation from a corrupted length prefix.
const MaxFrameBytes = 256 << 20 // 256 MiB

// WriteFrame writes a u64-big-endian length prefix followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	var header [8]byte
	binary.BigEndian.PutUint64(header[:], uint64(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("policyrpc: write frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("policyrpc: write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads a u64-big-endian length prefix and exactly that many
// payload bytes.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("policyrpc: read frame length: %w", err)
	}
	n := binary.BigEndian.Uint64(header[:])
	if n > MaxFrameBytes {
		return nil, &ProtocolError{Reason: fmt.Sprintf("frame length %d exceeds %d byte cap", n, MaxFrameBytes)}
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("policyrpc: read frame payload: %w", err)
	}
	return payload, nil
}
