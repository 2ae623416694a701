package eventgraph

import (
	"regexp"
	"strings"
)

// Redacted replaces sensitive material at write time. Redaction never runs
// on the read path: what is on disk is already safe.
const Redacted = "[REDACTED]"

var (
	bearerRE = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`)
	emailRE  = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
)

// Keys whose values are replaced wholesale regardless of content.
var sensitiveKeys = map[string]struct{}{
	"authorization": {},
	"token":         {},
	"access_token":  {},
	"refresh_token": {},
	"api_key":       {},
	"password":      {},
	"secret":        {},
	"cookie":        {},
	"set-cookie":    {},
}

func redactEvent(evt Event) Event {
	evt.Attrs = redactMap(evt.Attrs)
	evt.Payload = redactMap(evt.Payload)
	return evt
}

func redactMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if _, sensitive := sensitiveKeys[strings.ToLower(k)]; sensitive {
			out[k] = Redacted
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch val := v.(type) {
	case string:
		val = bearerRE.ReplaceAllString(val, Redacted)
		return emailRE.ReplaceAllString(val, Redacted)
	case map[string]any:
		return redactMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = redactValue(item)
		}
		return out
	default:
		return v
	}
}
