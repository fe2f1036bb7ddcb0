package validation

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
)

const (
	// CurrentTimestamp is the marker that resolves to "now" at validation time
	CurrentTimestamp = "CURRENT_TIMESTAMP"

	// DatetimeLayout is the storage format for datetime columns
	DatetimeLayout = "2006-01-02 15:04:05"

	// ZeroDatetime is accepted verbatim as an "empty" datetime
	ZeroDatetime = "0000-00-00 00:00:00"

	// UUIDPrefix prefixes every generated identifier
	UUIDPrefix = "urn:uuid:"
)

// Clock returns the current time. Tests replace it to pin timestamps.
type Clock func() time.Time

// UTCNow is the default Clock
func UTCNow() time.Time {
	return time.Now().UTC()
}

// Datetime normalizes a value to DatetimeLayout. The CurrentTimestamp marker
// resolves through now; other strings are parsed best-effort.
func Datetime(value interface{}, now Clock) (string, bool) {
	if now == nil {
		now = UTCNow
	}

	switch v := value.(type) {
	case nil:
		return "", false
	case time.Time:
		if v.IsZero() {
			return ZeroDatetime, true
		}
		return v.Format(DatetimeLayout), true
	case *time.Time:
		if v == nil {
			return "", false
		}
		return Datetime(*v, now)
	}

	s, ok := String(value)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)

	switch {
	case s == "":
		return "", false
	case strings.EqualFold(s, CurrentTimestamp):
		return now().Format(DatetimeLayout), true
	case s == ZeroDatetime:
		return ZeroDatetime, true
	}

	if t, err := time.Parse(DatetimeLayout, s); err == nil {
		return t.Format(DatetimeLayout), true
	}

	t, err := dateparse.ParseAny(s)
	if err != nil {
		return "", false
	}
	return t.Format(DatetimeLayout), true
}

// UUID returns value unchanged when it already carries UUIDPrefix and a
// parseable identifier, otherwise a freshly generated v4 identifier.
func UUID(value interface{}) string {
	if s, ok := String(value); ok && strings.HasPrefix(s, UUIDPrefix) {
		if _, err := uuid.Parse(strings.TrimPrefix(s, UUIDPrefix)); err == nil {
			return s
		}
	}
	return UUIDPrefix + uuid.NewString()
}
