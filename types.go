package hemat

import (
	"net/http"
	"time"
)

// Params holds the query parameters of a single API call. Values may be
// strings, numbers, or booleans; nil values are dropped before sending.
type Params map[string]interface{}

// clone returns a shallow copy so callers can add parameters (such as a page
// cursor) without mutating the caller's map.
func (p Params) clone() Params {
	out := make(Params, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Response is a decoded JSON payload returned by the API. Payloads are
// normalized before delivery so the status and msg fields are always present.
type Response map[string]interface{}

// Status returns the payload status field, or the empty string when absent.
func (r Response) Status() string {
	s, _ := r["status"].(string)
	return s
}

// ErrorMessage returns the first of the msg and message fields, used by the
// API to report soft failures inside an HTTP 200 payload.
func (r Response) ErrorMessage() string {
	if s, ok := r["msg"].(string); ok {
		return s
	}
	if s, ok := r["message"].(string); ok {
		return s
	}
	return ""
}

// collectionAt extracts the item objects stored under key. A missing or null
// key yields an empty collection. ok is false when the value is present but
// is not a list of objects.
func (r Response) collectionAt(key string) (items []map[string]interface{}, ok bool) {
	v, exists := r[key]
	if !exists || v == nil {
		return nil, true
	}
	list, isList := v.([]interface{})
	if !isList {
		return nil, false
	}
	items = make([]map[string]interface{}, 0, len(list))
	for _, elem := range list {
		m, isMap := elem.(map[string]interface{})
		if !isMap {
			return nil, false
		}
		items = append(items, m)
	}
	return items, true
}

// TimeWindow restricts a tweet listing to items created inside [Since, Until].
// Zero bounds are open ended.
type TimeWindow struct {
	Since time.Time
	Until time.Time
}

// apply writes the window bounds into p as Unix timestamps.
func (w TimeWindow) apply(p Params) {
	if !w.Since.IsZero() {
		p["sinceTime"] = w.Since.Unix()
	}
	if !w.Until.IsZero() {
		p["untilTime"] = w.Until.Unix()
	}
}

func (w TimeWindow) validate() error {
	if !w.Since.IsZero() && !w.Until.IsZero() && w.Since.After(w.Until) {
		return newValidationError("time window start %s is after end %s",
			w.Since.Format(time.RFC3339), w.Until.Format(time.RFC3339))
	}
	return nil
}

// Limits caps how much a single paginated call may fetch when the caller
// does not say otherwise.
type Limits struct {
	// MaxPages is the default page cap per call.
	MaxPages int
	// MaxResults is the default item cap per call.
	MaxResults int
}

// DefaultLimits returns the standard per-call pagination caps.
func DefaultLimits() Limits {
	return Limits{MaxPages: 10, MaxResults: 100}
}

// RoundTripper matches http.RoundTripper and is the seam middleware wraps.
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc adapts a function to the RoundTripper interface.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements RoundTripper.
func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Middleware wraps the outgoing HTTP exchange. Middleware runs on every
// attempt, inside the retry loop.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)
