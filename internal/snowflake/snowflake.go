// Package snowflake orders and dates Discord-style snowflake identifiers.
package snowflake

import (
	"strconv"
	"strings"
	"time"
)

// Epoch is the first millisecond of 2015, the origin of Discord snowflakes.
const Epoch int64 = 1420070400000

// After reports whether id a was minted strictly after id b. An empty or
// malformed b sorts before every valid id.
func After(a, b string) bool {
	av, aok := parse(a)
	if !aok {
		return false
	}
	bv, bok := parse(b)
	if !bok {
		return true
	}
	return av > bv
}

// Max returns the later of two ids.
func Max(a, b string) string {
	if After(b, a) {
		return b
	}
	return a
}

// Time returns the creation time encoded in id.
func Time(id string) (time.Time, bool) {
	v, ok := parse(id)
	if !ok {
		return time.Time{}, false
	}
	ms := int64(v>>22) + Epoch
	return time.UnixMilli(ms).UTC(), true
}

// FromTime returns the smallest id that could have been minted at t.
func FromTime(t time.Time) string {
	ms := t.UnixMilli() - Epoch
	if ms < 0 {
		ms = 0
	}
	return strconv.FormatUint(uint64(ms)<<22, 10)
}

func parse(id string) (uint64, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
