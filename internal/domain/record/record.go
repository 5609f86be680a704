package record

import (
	"math"
	"strconv"
	"strings"
)

// Method is the parsed HTTP request method of a record.
type Method int

const (
	MethodUnset Method = iota
	MethodGET
	MethodPOST
	MethodHEAD
	MethodInvalid
)

func (m Method) String() string {
	switch m {
	case MethodGET:
		return "GET"
	case MethodPOST:
		return "POST"
	case MethodHEAD:
		return "HEAD"
	case MethodInvalid:
		return "INVALID"
	default:
		return ""
	}
}

// Valid reports whether m is one of the methods classified by URL.
func (m Method) Valid() bool {
	return m == MethodGET || m == MethodPOST || m == MethodHEAD
}

// CacheOutcome is how the cache handled the request.
type CacheOutcome int

const (
	CacheUnset CacheOutcome = iota
	CacheHit
	CacheMiss
	CachePass
)

func (c CacheOutcome) String() string {
	switch c {
	case CacheHit:
		return "hit"
	case CacheMiss:
		return "miss"
	case CachePass:
		return "pass"
	default:
		return ""
	}
}

// Platform is the mobile platform announced by the client.
type Platform int

const (
	PlatformNone Platform = iota
	PlatformIOS
	PlatformAndroid
)

func (p Platform) String() string {
	switch p {
	case PlatformIOS:
		return "ios"
	case PlatformAndroid:
		return "android"
	default:
		return "none"
	}
}

// Record accumulates the fields of one in-flight request.
type Record struct {
	Error      bool
	Status     int
	StatusText string
	URL        string
	TTFB       float64
	TTLB       float64
	Method     Method
	MethodText string
	Cache      CacheOutcome
	Platform   Platform
}

// Valid reports whether every field holds a sane value. Errored records are never valid.
func (r *Record) Valid() bool {
	return !r.Error &&
		r.Status != 0 &&
		r.URL != "" &&
		saneTiming(r.TTFB) &&
		saneTiming(r.TTLB) &&
		r.Method != MethodUnset &&
		r.Cache != CacheUnset
}

func saneTiming(v float64) bool {
	return v != 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Clear resets the record to its empty state.
func (r *Record) Clear() {
	*r = Record{}
}

// SetCacheOutcome applies a cache announcement. Only the first word counts;
// announcements other than hit, miss and pass leave the record untouched.
func (r *Record) SetCacheOutcome(payload string) {
	switch firstWord(payload) {
	case "hit":
		r.Cache = CacheHit
	case "miss":
		r.Cache = CacheMiss
	case "pass":
		r.Cache = CachePass
	}
}

// SetMethod records the request method and its raw text.
func (r *Record) SetMethod(payload string) {
	text := strings.TrimSpace(payload)
	r.MethodText = text
	switch text {
	case "GET":
		r.Method = MethodGET
	case "POST":
		r.Method = MethodPOST
	case "HEAD":
		r.Method = MethodHEAD
	default:
		r.Method = MethodInvalid
	}
}

// SetURL replaces the request URL.
func (r *Record) SetURL(payload string) {
	r.URL = strings.TrimSpace(payload)
}

// SetStatus parses the leading integer of payload as the status code.
// A malformed status marks the record as errored.
func (r *Record) SetStatus(payload string) {
	text := strings.TrimSpace(payload)
	r.StatusText = text
	code, err := strconv.Atoi(firstWord(text))
	if err != nil {
		r.Status = 0
		r.Error = true
		return
	}
	r.Status = code
}

// SetTimings parses the last two whitespace separated fields of a request
// end payload as time to first byte and time to last byte, in seconds.
func (r *Record) SetTimings(payload string) {
	r.TTFB, r.TTLB = 0, 0

	fields := strings.Fields(payload)
	if len(fields) < 2 {
		r.Error = true
		return
	}
	ttfb, err := strconv.ParseFloat(fields[len(fields)-2], 64)
	if err != nil {
		r.Error = true
		return
	}
	ttlb, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil {
		r.Error = true
		return
	}
	r.TTFB, r.TTLB = ttfb, ttlb
}

// SetHeader inspects a "Name: value" header line and sets the platform when
// the name equals platformHeader. Both comparisons ignore case.
func (r *Record) SetHeader(payload, platformHeader string) {
	if platformHeader == "" {
		return
	}
	name, value, ok := strings.Cut(payload, ":")
	if !ok || !strings.EqualFold(strings.TrimSpace(name), platformHeader) {
		return
	}
	value = strings.TrimSpace(value)
	switch {
	case strings.EqualFold(value, "ios"):
		r.Platform = PlatformIOS
	case strings.EqualFold(value, "android"):
		r.Platform = PlatformAndroid
	}
}

func firstWord(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i]
	}
	return s
}
