// Package deadline converts the deadline representations that reach the sync layer
// (store timestamps, calendar-local strings, epoch milliseconds, time values) into a
// single canonical instant, and computes time remaining against an explicit "now".
//
// The canonical instant is a time.Time in UTC truncated to milliseconds. A nil
// *time.Time means "no deadline".
package deadline

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Forever is what Remaining reports for a goal without a deadline
const Forever = time.Duration(math.MaxInt64)

// ErrParse is matched by every ParseError
var ErrParse = errors.New("unparseable deadline")

// ParseError reports a deadline value that could not be normalized
type ParseError struct {
	Input any
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid deadline %q: %v", fmt.Sprint(e.Input), e.Err)
	}
	return fmt.Sprintf("invalid deadline %q", fmt.Sprint(e.Input))
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrParse) hold for any ParseError
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// Timestamp is the store-native timestamp shape (seconds + nanos since the epoch)
type Timestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int32 `json:"nanos"`
}

// AsTime converts the timestamp to a time.Time
func (ts Timestamp) AsTime() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

// timeLike covers protobuf timestamps and similar wrappers without importing them
type timeLike interface {
	AsTime() time.Time
}

// Calendar-local layouts, tried in order after RFC3339
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Normalizer interprets calendar-local strings in Location
type Normalizer struct {
	Location *time.Location
}

// Normalize converts v with the local time zone of the process
func Normalize(v any) (*time.Time, error) {
	return Normalizer{Location: time.Local}.Normalize(v)
}

// Normalize converts any accepted deadline representation into the canonical instant.
// nil, "", a zero time and a nil pointer all mean "no deadline" and return nil.
func (n Normalizer) Normalize(v any) (*time.Time, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		if val.IsZero() {
			return nil, nil
		}
		return canonical(val), nil
	case *time.Time:
		if val == nil || val.IsZero() {
			return nil, nil
		}
		return canonical(*val), nil
	case Timestamp:
		return canonical(val.AsTime()), nil
	case *Timestamp:
		if val == nil {
			return nil, nil
		}
		return canonical(val.AsTime()), nil
	case int:
		return canonical(FromMillis(int64(val))), nil
	case int64:
		return canonical(FromMillis(val)), nil
	case *int64:
		if val == nil {
			return nil, nil
		}
		return canonical(FromMillis(*val)), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, &ParseError{Input: v, Err: errors.New("not a finite number")}
		}
		return canonical(FromMillis(int64(val))), nil
	case json.Number:
		ms, err := val.Int64()
		if err != nil {
			return nil, &ParseError{Input: v, Err: err}
		}
		return canonical(FromMillis(ms)), nil
	case string:
		return n.parseString(val)
	case timeLike:
		return canonical(val.AsTime()), nil
	default:
		return nil, &ParseError{Input: v, Err: fmt.Errorf("unsupported type %T", v)}
	}
}

func (n Normalizer) parseString(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return canonical(t), nil
	}

	loc := n.Location
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return canonical(t), nil
		}
	}

	return nil, &ParseError{Input: s}
}

func canonical(t time.Time) *time.Time {
	c := t.UTC().Truncate(time.Millisecond)
	return &c
}

// FromMillis converts epoch milliseconds to a UTC time
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ToMillis converts a canonical deadline to epoch milliseconds, nil for no deadline
func ToMillis(d *time.Time) *int64 {
	if d == nil {
		return nil
	}
	ms := d.UnixMilli()
	return &ms
}

// ToTimestamp converts a canonical deadline to the store-native shape
func ToTimestamp(d *time.Time) *Timestamp {
	if d == nil {
		return nil
	}
	return &Timestamp{Seconds: d.Unix(), Nanos: int32(d.Nanosecond())}
}

// Remaining returns d - now. A nil deadline never expires and reports Forever.
func Remaining(d *time.Time, now time.Time) time.Duration {
	if d == nil {
		return Forever
	}
	return d.Sub(now)
}

// Expired reports whether d is at or before now. Goals without a deadline never expire.
func Expired(d *time.Time, now time.Time) bool {
	if d == nil {
		return false
	}
	return Remaining(d, now) <= 0
}

// Less orders deadlines soonest first, with nil deadlines last
func Less(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.Before(*b)
	}
}

// Equal reports whether two deadlines denote the same instant (or are both absent)
func Equal(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
