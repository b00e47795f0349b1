// Package bloom provides the membership filters stored in table sidecars.
// Readers of a day's files use them to skip tables that cannot contain a user.
package bloom

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"

	"github.com/spaolacci/murmur3"
)

// Algorithm names the hashing scheme in serialized metadata.
const Algorithm = "murmur3_128"

// DefaultFPR is the target false positive rate of sidecar filters.
const DefaultFPR = 0.01

// ErrCorrupt is returned when serialized filter data cannot be decoded.
var ErrCorrupt = errors.New("bloom: corrupt filter data")

// Filter is a bloom filter with double hashing over murmur3's 128-bit sum.
// No false negatives: an added item is always reported as present. A Filter is
// not safe for concurrent writes.
type Filter struct {
	bits      []uint64
	numBits   uint64
	numHashes uint64
	count     uint64
}

// New creates a filter sized for expectedItems at the target false positive rate.
func New(expectedItems int, targetFPR float64) *Filter {
	numBits, numHashes := OptimalParameters(expectedItems, targetFPR)
	words := (numBits + 63) / 64
	return &Filter{
		bits:      make([]uint64, words),
		numBits:   uint64(words * 64),
		numHashes: uint64(numHashes),
	}
}

// OptimalParameters returns the bit and hash counts for n items at rate p:
// m = -n*ln(p)/ln(2)^2 and k = (m/n)*ln(2).
func OptimalParameters(expectedItems int, targetFPR float64) (numBits, numHashes int) {
	if expectedItems <= 0 {
		expectedItems = 1
	}
	if targetFPR <= 0 || targetFPR >= 1 {
		targetFPR = DefaultFPR
	}

	n := float64(expectedItems)
	m := -n * math.Log(targetFPR) / (math.Ln2 * math.Ln2)
	numBits = int(math.Ceil(m))
	numHashes = int(math.Ceil(m / n * math.Ln2))

	if numBits < 64 {
		numBits = 64
	}
	if numHashes < 1 {
		numHashes = 1
	}
	return numBits, numHashes
}

// Add inserts item.
func (f *Filter) Add(item string) {
	h1, h2 := murmur3.Sum128([]byte(item))
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		f.bits[pos/64] |= 1 << (pos % 64)
	}
	f.count++
}

// Contains reports whether item may have been added.
func (f *Filter) Contains(item string) bool {
	h1, h2 := murmur3.Sum128([]byte(item))
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// NumBits returns the number of bits in the filter.
func (f *Filter) NumBits() int { return int(f.numBits) }

// NumHashes returns the number of hash functions.
func (f *Filter) NumHashes() int { return int(f.numHashes) }

// Count returns the number of items added.
func (f *Filter) Count() uint64 { return f.count }

// EstimatedFPR returns (1 - e^(-k*n/m))^k for the current fill.
func (f *Filter) EstimatedFPR() float64 {
	if f.count == 0 {
		return 0
	}
	k, n, m := float64(f.numHashes), float64(f.count), float64(f.numBits)
	return math.Pow(1-math.Exp(-k*n/m), k)
}

// header: numBits, numHashes, count as little-endian uint64.
const headerSize = 24

// MarshalBinary encodes the filter.
func (f *Filter) MarshalBinary() ([]byte, error) {
	buf := make([]byte, headerSize+8*len(f.bits))
	binary.LittleEndian.PutUint64(buf[0:], f.numBits)
	binary.LittleEndian.PutUint64(buf[8:], f.numHashes)
	binary.LittleEndian.PutUint64(buf[16:], f.count)
	for i, w := range f.bits {
		binary.LittleEndian.PutUint64(buf[headerSize+8*i:], w)
	}
	return buf, nil
}

// UnmarshalBinary decodes data produced by MarshalBinary.
func (f *Filter) UnmarshalBinary(data []byte) error {
	if len(data) < headerSize {
		return ErrCorrupt
	}
	numBits := binary.LittleEndian.Uint64(data[0:])
	numHashes := binary.LittleEndian.Uint64(data[8:])
	count := binary.LittleEndian.Uint64(data[16:])
	if numBits == 0 || numBits%64 != 0 || numHashes == 0 || uint64(len(data)-headerSize) != numBits/8 {
		return ErrCorrupt
	}

	bits := make([]uint64, numBits/64)
	for i := range bits {
		bits[i] = binary.LittleEndian.Uint64(data[headerSize+8*i:])
	}
	*f = Filter{bits: bits, numBits: numBits, numHashes: numHashes, count: count}
	return nil
}

// Base64 encodes the filter as standard base64.
func (f *Filter) Base64() string {
	data, _ := f.MarshalBinary()
	return base64.StdEncoding.EncodeToString(data)
}

// FromBase64 decodes a filter produced by Base64.
func FromBase64(s string) (*Filter, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrCorrupt
	}
	f := &Filter{}
	if err := f.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return f, nil
}
