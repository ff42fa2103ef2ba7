package model

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes the ordered element listing. Two results with the same
// elements in the same order produce the same fingerprint.
func (r *Result) Fingerprint() uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, e := range r.elements {
		_, _ = h.WriteString(e.RelPath)
		_, _ = h.Write([]byte{0, byte(e.Kind)})
		binary.LittleEndian.PutUint64(buf[:], uint64(e.Size))
		_, _ = h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(e.ModTime.UnixNano()))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

// FingerprintHex returns the fingerprint as 16 hex digits.
func (r *Result) FingerprintHex() string {
	return fmt.Sprintf("%016x", r.Fingerprint())
}
