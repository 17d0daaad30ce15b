// Package idclock recovers creation instants from time-ordered identifiers.
//
// Records in the catalog carry no separate creation column that callers may
// set. The instant is read back out of the record id instead, so the encoding
// of that id lives here behind Clock and nowhere else.
package idclock

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidFormat is returned when an identifier is not a dashed 36 character
// hex identifier.
var ErrInvalidFormat = errors.New("invalid identifier format")

// gregorianOffset is the number of 100ns ticks between 1582-10-15 and 1970-01-01.
const gregorianOffset = 122192928000000000

const ticksPerMilli = 10000

// Clock decodes and issues time-ordered identifiers.
type Clock interface {
	// Millis returns the creation instant of id in Unix milliseconds.
	Millis(id string) (int64, error)
	// Time returns the creation instant of id as a UTC time.
	Time(id string) (time.Time, error)
	// Ticks returns the creation instant of id at the encoding's full
	// resolution. Ids issued in sequence by one process have increasing
	// ticks even within a millisecond.
	Ticks(id string) (int64, error)
	// NewID issues a fresh identifier in this clock's encoding.
	NewID() (string, error)
}

// TimeUUID handles version 1 (time based) UUIDs as issued by Cassandra's
// now() and uuid.NewUUID.
type TimeUUID struct{}

func (c TimeUUID) Millis(id string) (int64, error) {
	ticks, err := c.Ticks(id)
	if err != nil {
		return 0, err
	}
	return floorDiv(ticks-gregorianOffset, ticksPerMilli), nil
}

// Ticks returns the 60 bit timestamp: 100ns intervals since 1582-10-15.
func (TimeUUID) Ticks(id string) (int64, error) {
	u, err := parse(id)
	if err != nil {
		return 0, err
	}
	low := uint64(binary.BigEndian.Uint32(u[0:4]))
	mid := uint64(binary.BigEndian.Uint16(u[4:6]))
	high := uint64(binary.BigEndian.Uint16(u[6:8]) & 0x0fff)
	return int64(high<<48 | mid<<32 | low), nil
}

func (c TimeUUID) Time(id string) (time.Time, error) {
	ms, err := c.Millis(id)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func (TimeUUID) NewID() (string, error) {
	u, err := uuid.NewUUID()
	if err != nil {
		return "", fmt.Errorf("failed to generate time uuid: %w", err)
	}
	return u.String(), nil
}

// UnixV7 handles version 7 UUIDs, whose first 48 bits are Unix milliseconds.
type UnixV7 struct{}

func (UnixV7) Millis(id string) (int64, error) {
	u, err := parse(id)
	if err != nil {
		return 0, err
	}
	var buf [8]byte
	copy(buf[2:], u[0:6])
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

// Ticks returns the millisecond timestamp followed by the 12 bit rand_a
// field, which uuid.NewV7 fills with a sub-millisecond sequence.
func (UnixV7) Ticks(id string) (int64, error) {
	u, err := parse(id)
	if err != nil {
		return 0, err
	}
	var buf [8]byte
	copy(buf[2:], u[0:6])
	ms := binary.BigEndian.Uint64(buf[:])
	randA := uint64(binary.BigEndian.Uint16(u[6:8]) & 0x0fff)
	return int64(ms<<12 | randA), nil
}

func (c UnixV7) Time(id string) (time.Time, error) {
	ms, err := c.Millis(id)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func (UnixV7) NewID() (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate v7 uuid: %w", err)
	}
	return u.String(), nil
}

// New returns the clock registered under scheme ("timeuuid" or "v7").
func New(scheme string) (Clock, error) {
	switch strings.ToLower(scheme) {
	case "", "timeuuid", "v1":
		return TimeUUID{}, nil
	case "v7", "uuidv7":
		return UnixV7{}, nil
	default:
		return nil, fmt.Errorf("unknown id scheme %q", scheme)
	}
}

// Canonical returns the lower-case dashed form of id when it parses as a UUID
// in any of the accepted spellings, and the trimmed input otherwise.
func Canonical(id string) string {
	id = strings.TrimSpace(id)
	u, err := uuid.Parse(id)
	if err != nil {
		return id
	}
	return u.String()
}

// Validate returns ErrInvalidFormat for the first id that is not a UUID in
// one of the spellings Canonical accepts.
func Validate(ids ...string) error {
	for _, id := range ids {
		if _, err := parse(Canonical(id)); err != nil {
			return err
		}
	}
	return nil
}

// parse only accepts the grouped 8-4-4-4-12 form; uuid.Parse alone would
// also let through urn and braced spellings.
func parse(id string) (uuid.UUID, error) {
	if len(id) != 36 {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidFormat, id)
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q: %w", ErrInvalidFormat, id, err)
	}
	return u, nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
