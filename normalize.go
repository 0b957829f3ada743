package hemat

import "strings"

// Normalizer rewrites a decoded payload into the documented response shape
// for one endpoint family. Normalizers may mutate the payload they receive
// and must return it.
type Normalizer func(Response) Response

// NormalizerTable maps endpoint suffixes to payload normalizers. The longest
// matching suffix wins. Every payload, matched or not, leaves Apply with a
// "status" field and an error message field so callers never need to probe
// for their presence.
type NormalizerTable struct {
	rules map[string]Normalizer
}

// DefaultNormalizerTable covers the endpoint families whose raw payloads
// deviate from the documented shape.
func DefaultNormalizerTable() *NormalizerTable {
	t := &NormalizerTable{rules: make(map[string]Normalizer)}
	t.Register("user/last_tweets", normalizeUserTweets)
	t.Register("user/info", normalizeUserInfo)
	t.Register("user/batch_info_by_ids", normalizeUserBatch)
	t.Register("tweet/advanced_search", normalizeSearch)
	return t
}

// Register adds or replaces the normalizer for an endpoint suffix.
func (t *NormalizerTable) Register(suffix string, fn Normalizer) {
	t.rules[suffix] = fn
}

// Apply runs the matching normalizer over a copy of payload and guarantees
// the status and msg envelope fields.
func (t *NormalizerTable) Apply(endpoint string, payload Response) Response {
	out := make(Response, len(payload)+2)
	for k, v := range payload {
		out[k] = v
	}
	best := ""
	for suffix := range t.rules {
		if strings.HasSuffix(endpoint, suffix) && len(suffix) > len(best) {
			best = suffix
		}
	}
	if best != "" {
		out = t.rules[best](out)
	}
	ensureEnvelope(out)
	return out
}

// ensureEnvelope fills the fields every normalized payload carries: a
// "status" defaulting to success and a "msg" defaulting to empty unless the
// upstream already reported a message.
func ensureEnvelope(p Response) {
	if _, ok := p["status"]; !ok {
		p["status"] = "success"
	}
	_, hasMsg := p["msg"]
	_, hasMessage := p["message"]
	if !hasMsg && !hasMessage {
		p["msg"] = ""
	}
}

// normalizeUserTweets assembles the "tweets" list a user timeline payload is
// documented to carry. The raw payload nests tweets under "data", sometimes
// alongside a pinned tweet; pinned tweets are marked is_pinned and placed
// first.
func normalizeUserTweets(p Response) Response {
	data, ok := p["data"]
	if !ok {
		return p
	}
	delete(p, "data")

	switch d := data.(type) {
	case map[string]interface{}:
		if rawTweets, hasTweets := d["tweets"]; hasTweets {
			all := make([]interface{}, 0)
			switch pin := d["pin_tweet"].(type) {
			case map[string]interface{}:
				if len(pin) > 0 {
					pin["is_pinned"] = true
					all = append(all, pin)
				}
			case []interface{}:
				for _, item := range pin {
					if m, ok := item.(map[string]interface{}); ok {
						m["is_pinned"] = true
						all = append(all, m)
					}
				}
			}
			switch tweets := rawTweets.(type) {
			case []interface{}:
				all = append(all, tweets...)
			case map[string]interface{}:
				if len(tweets) > 0 {
					all = append(all, tweets)
				}
			}
			p["tweets"] = all
		} else if len(d) > 0 {
			p["tweets"] = []interface{}{data}
		} else {
			p["tweets"] = []interface{}{}
		}
	case []interface{}:
		p["tweets"] = d
	default:
		p["tweets"] = []interface{}{}
	}
	return p
}

// normalizeUserInfo renames the raw "data" field to the documented "user".
func normalizeUserInfo(p Response) Response {
	if data, ok := p["data"]; ok {
		delete(p, "data")
		p["user"] = data
	}
	return p
}

// normalizeUserBatch forces "users" to a list so a degenerate payload cannot
// leak a scalar where callers iterate.
func normalizeUserBatch(p Response) Response {
	if users, ok := p["users"]; ok {
		if _, isList := users.([]interface{}); !isList {
			p["users"] = []interface{}{}
		}
	}
	return p
}

// normalizeSearch backfills the envelope on search payloads that omit it.
func normalizeSearch(p Response) Response {
	if _, ok := p["status"]; !ok {
		p["status"] = "success"
		p["msg"] = ""
	}
	return p
}
