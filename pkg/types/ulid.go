package types

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"
)

// Batch id errors.
var (
	ErrInvalidULIDLength    = errors.New("invalid ULID length")
	ErrInvalidULIDCharacter = errors.New("invalid ULID character")
)

// ULID is a lexicographically sortable identifier: a 48-bit millisecond timestamp
// followed by 80 random bits. Run batch ids are ULIDs, so sorting batch ids sorts runs.
type ULID [16]byte

// Crockford's Base32 alphabet
const crockfordBase32 = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// ULIDGenerator generates ULIDs that increase monotonically within a millisecond.
type ULIDGenerator struct {
	mu            sync.Mutex
	lastTimestamp uint64
	lastRandom    [10]byte
}

// NewULIDGenerator creates a ULID generator.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{}
}

// GenerateWithTime creates a ULID stamped with t.
func (g *ULIDGenerator) GenerateWithTime(t time.Time) (ULID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := uint64(t.UnixMilli())
	var u ULID
	for i := 0; i < 6; i++ {
		u[i] = byte(ms >> (40 - 8*i))
	}

	if ms == g.lastTimestamp {
		for i := 9; i >= 0; i-- {
			g.lastRandom[i]++
			if g.lastRandom[i] != 0 {
				break
			}
		}
	} else {
		if _, err := rand.Read(g.lastRandom[:]); err != nil {
			return ULID{}, err
		}
		g.lastTimestamp = ms
	}
	copy(u[6:], g.lastRandom[:])
	return u, nil
}

// Timestamp returns the millisecond timestamp component.
func (u ULID) Timestamp() uint64 {
	var ms uint64
	for i := 0; i < 6; i++ {
		ms = ms<<8 | uint64(u[i])
	}
	return ms
}

// Time returns the timestamp component as a UTC time.
func (u ULID) Time() time.Time {
	return time.UnixMilli(int64(u.Timestamp())).UTC()
}

// String encodes the ULID as 26 Crockford Base32 characters.
func (u ULID) String() string {
	// 128 bits are encoded as 130 bits: two leading zero bits, then 5 bits per character.
	var buf [26]byte
	for i := 0; i < 26; i++ {
		bit := i*5 - 2
		var v byte
		for b := 0; b < 5; b++ {
			v <<= 1
			if pos := bit + b; pos >= 0 && u[pos/8]&(0x80>>(pos%8)) != 0 {
				v |= 1
			}
		}
		buf[i] = crockfordBase32[v]
	}
	return string(buf[:])
}

// ParseULID decodes a 26-character Crockford Base32 string.
func ParseULID(s string) (ULID, error) {
	if len(s) != 26 {
		return ULID{}, ErrInvalidULIDLength
	}
	var u ULID
	for i := 0; i < 26; i++ {
		v := decodeBase32(s[i])
		if v == 0xFF {
			return ULID{}, ErrInvalidULIDCharacter
		}
		if i == 0 && v > 7 {
			return ULID{}, ErrInvalidULIDCharacter
		}
		for b := 0; b < 5; b++ {
			pos := i*5 - 2 + b
			if pos < 0 {
				continue
			}
			if v&(0x10>>b) != 0 {
				u[pos/8] |= 0x80 >> (pos % 8)
			}
		}
	}
	return u, nil
}

// Compare returns -1, 0 or 1 comparing u and other lexicographically.
func (u ULID) Compare(other ULID) int {
	for i := range u {
		switch {
		case u[i] < other[i]:
			return -1
		case u[i] > other[i]:
			return 1
		}
	}
	return 0
}

func decodeBase32(c byte) byte {
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	for i := 0; i < len(crockfordBase32); i++ {
		if crockfordBase32[i] == c {
			return byte(i)
		}
	}
	return 0xFF
}
