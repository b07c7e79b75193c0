// Package random sources seeds for the dice strategies.
//
// Seeds are drawn from the operating system's entropy pool so separate
// executions never share a roll sequence, while the seed itself can be
// recorded to replay an attempt.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
)

// NewSeed returns a fresh high-entropy seed.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
