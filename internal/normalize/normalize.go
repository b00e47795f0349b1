// Package normalize maps raw, untyped event fields to canonical values.
//
// Every function is total: a value of the wrong type, an empty value or a value
// that fails its rule yields ok == false and never an error.
package normalize

import (
	"strings"
	"time"

	"github.com/arkilian/weblog/pkg/types"
)

var rejectedSchemes = []string{"http://", "https://", "file://"}

var knownReferrers = map[string]bool{
	"direct":   true,
	"google":   true,
	"facebook": true,
}

// NotSetReferrer is the analytics placeholder for a missing referrer.
const NotSetReferrer = "(not set)"

var devices = map[string]bool{
	types.DeviceMobile:  true,
	types.DeviceDesktop: true,
	types.DeviceTablet:  true,
}

// String trims and lowercases a textual value.
func String(x any) (string, bool) {
	s, ok := x.(string)
	if !ok {
		return "", false
	}
	s = strings.ToLower(strings.TrimSpace(s))
	return s, s != ""
}

// PathLike normalizes a value shared by paths and referrers: the query string is
// dropped, URL schemes are rejected and runs of slashes collapse to one.
func PathLike(x any) (string, bool) {
	s, ok := String(x)
	if !ok {
		return "", false
	}
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	// Checked before collapsing so "http://host" cannot become "http:/host".
	for _, scheme := range rejectedSchemes {
		if strings.HasPrefix(s, scheme) {
			return "", false
		}
	}
	s = collapseSlashes(s)
	return s, s != ""
}

// Path normalizes a page path; the result always starts with "/".
func Path(x any) (string, bool) {
	s, ok := PathLike(x)
	if !ok {
		return "", false
	}
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return s, true
}

// Referrer normalizes a referrer. Known source tokens are kept without a
// leading slash; "(not set)" is absent.
func Referrer(x any) (string, bool) {
	s, ok := PathLike(x)
	if !ok || s == NotSetReferrer {
		return "", false
	}
	if !knownReferrers[s] && !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return s, true
}

// Device keeps mobile, desktop and tablet.
func Device(x any) (string, bool) {
	s, ok := x.(string)
	if !ok {
		return "", false
	}
	s = strings.ToLower(strings.TrimSpace(s))
	return s, devices[s]
}

// UserID normalizes a user identifier.
func UserID(x any) (string, bool) {
	return String(x)
}

// Layouts are tried in order against the upper-cased value. The .999999999
// layouts also match values without fractional seconds.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04Z07",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	types.DateLayout,
}

// Timestamp parses an ISO-8601 instant. Values without an offset are UTC;
// values with one are converted to UTC.
func Timestamp(x any) (time.Time, bool) {
	s, ok := x.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func collapseSlashes(s string) string {
	if !strings.Contains(s, "//") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	prevSlash := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '/' && prevSlash {
			continue
		}
		prevSlash = c == '/'
		b.WriteByte(c)
	}
	return b.String()
}
