package hook

import (
	"fmt"
)

// Timestamps are exported the way Postgres stores them natively:
// microseconds since 2000-01-01T00:00:00Z, big endian, 8 bytes.
const (
	epochYear = 2000
	maxYear   = 4027

	tsMinLen = 20 // 2019-11-05T11:31:34Z
	tsMaxLen = 31 // 2019-11-05T11:31:34.1234567890Z

	// Postgres only keeps 6 digits after the decimal point.
	fractionDigits = 6

	secondsPerMinute = 60
	secondsPerHour   = 3600
	secondsPerDay    = 86400
	secondsPerYear   = 31536000 // 365 days

	leapTableSize = 2048
)

// Timestamp field offsets, e.g. 2019-11-05T11:31:34.123456Z
const (
	offMonth    = 5
	offDay      = 8
	offHour     = 11
	offMinute   = 14
	offSecond   = 17
	offFraction = 20
)

var pow10 = [fractionDigits + 1]uint64{1, 10, 100, 1000, 10000, 100000, 1000000}

// newLeapTable builds the shared leap day table. Entry i holds the
// number of leap days that occurred strictly before year offset i,
// counting from the epoch year. 2048 entries cover every year the
// converter accepts.
func newLeapTable() []uint32 {
	table := make([]uint32, leapTableSize)
	var acc uint32

	for i := uint32(0); i < leapTableSize-1; i++ {
		if isLeapOffset(i) {
			acc++
		}
		// The table starts with 0 accumulated days
		table[i+1] = acc
	}

	return table
}

// isLeapOffset reports whether the given year offset is a leap year.
// The offset rule matches the Gregorian rule for the real year because
// the epoch year is itself a multiple of 400.
func isLeapOffset(off uint32) bool {
	return (off%4 == 0 && off%100 != 0) || off%400 == 0
}

// parseDigits parses b as an unsigned decimal number. Every byte must
// be a digit.
func parseDigits(b []byte) (uint64, bool) {
	var n uint64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
	}
	return n, true
}

// parseEpochMicros converts a timestamp of the form
// 2000-01-01T00:00:01.000000Z or 2000-01-01T00:00:01Z into microseconds
// since the epoch year. Z stands for Zulu/UTC; no other zone designator
// is accepted.
//
// Dates are normalized arithmetically rather than validated against the
// calendar. A day of 31 is accepted in every month except February, and
// rolls over into the following month. Leap seconds are accepted and
// carried into the next minute.
func parseEpochMicros(ts []byte, leapDays []uint32) (uint64, error) {
	n := len(ts)
	if n < tsMinLen || n > tsMaxLen {
		return 0, fmt.Errorf("timestamp %q not supported", ts)
	}

	if ts[offMonth-1] != '-' || ts[offDay-1] != '-' || ts[offHour-1] != 'T' ||
		ts[offMinute-1] != ':' || ts[offSecond-1] != ':' ||
		!(ts[offFraction-1] == '.' || ts[offFraction-1] == 'Z') ||
		ts[n-1] != 'Z' {
		return 0, fmt.Errorf("timestamp %q not supported", ts)
	}

	year, ok1 := parseDigits(ts[0:4])
	month, ok2 := parseDigits(ts[offMonth : offMonth+2])
	day, ok3 := parseDigits(ts[offDay : offDay+2])
	hour, ok4 := parseDigits(ts[offHour : offHour+2])
	minute, ok5 := parseDigits(ts[offMinute : offMinute+2])
	second, ok6 := parseDigits(ts[offSecond : offSecond+2])
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
		return 0, fmt.Errorf("timestamp %q has non-numeric fields", ts)
	}

	// The fraction-less form ends right after the seconds field; check
	// that byte first so the minimum-length form never indexes past it.
	var micro uint64
	if ts[offFraction-1] != 'Z' && ts[offFraction] != 'Z' {
		frac := ts[offFraction : n-1]
		keep := len(frac)
		if keep > fractionDigits {
			// truncated, not rounded
			keep = fractionDigits
		}
		v, ok := parseDigits(frac)
		if !ok {
			return 0, fmt.Errorf("timestamp %q has a non-numeric fraction", ts)
		}
		v /= pow10[len(frac)-keep]
		micro = v * pow10[fractionDigits-keep]
	}

	if year < epochYear || year > maxYear {
		return 0, fmt.Errorf("timestamp %q out of range", ts)
	}
	// Postgres accepts leap seconds and normalizes them into the next minute
	if month < 1 || month > 12 || day < 1 || day > 31 ||
		hour > 23 || minute > 59 || second > 60 {
		return 0, fmt.Errorf("timestamp %q is not a date", ts)
	}
	if month == 2 && day > 29 {
		return 0, fmt.Errorf("timestamp %q is not a date", ts)
	}

	off := year - epochYear

	// day of year
	var yday uint64
	for i := uint64(1); i < month; i++ {
		switch {
		case i == 2:
			if isLeapOffset(uint32(off)) {
				yday += 29
			} else {
				yday += 28
			}
		case i < 8:
			yday += 30 + i%2
		default:
			// 31sts occur on even months from August on
			yday += 30 + (i+1)%2
		}
	}
	yday += day

	epoch := second + minute*secondsPerMinute + hour*secondsPerHour +
		(yday-1)*secondsPerDay + uint64(leapDays[off])*secondsPerDay +
		off*secondsPerYear

	return epoch*1000000 + micro, nil
}
