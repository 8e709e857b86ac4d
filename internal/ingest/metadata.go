// Package ingest authorizes publish attempts reported by the media engine.
package ingest

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// UnknownIP is reported when no source address could be found.
const UnknownIP = "unknown"

// ErrMalformedPath is returned for stream paths without an app and key segment.
var ErrMalformedPath = errors.New("malformed stream path")

var (
	sessionIDFields = []string{"id", "sessionId", "session_id", "playStreamId", "publishStreamId", "clientid", "client_id"}
	pathFields      = []string{"streamPath", "StreamPath", "publishStreamPath", "path", "stream_path", "stream_url"}
	ipFields        = []string{"ip", "addr", "client_ip", "remoteAddress"}
)

// Metadata is the normalized view of an ingest event. Empty strings mean
// the field could not be extracted.
type Metadata struct {
	StreamPath string `json:"streamPath,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
	IPAddress  string `json:"ipAddress"`
}

// Normalize extracts a stream path, session id and source address from
// whatever shape the engine sent. id is usually an object describing the
// session, streamPath and args are optional extras.
func Normalize(id, streamPath, args any) Metadata {
	md := Metadata{IPAddress: UnknownIP}

	if obj, ok := asObject(id); ok {
		md.SessionID = obj.first(sessionIDFields...)
		md.StreamPath = obj.first(pathFields...)
		if ip := obj.first(ipFields...); ip != "" {
			md.IPAddress = ip
		} else if sock, ok := asObject(obj["socket"]); ok {
			if ip := sock.first("remoteAddress"); ip != "" {
				md.IPAddress = ip
			}
		}
		if md.StreamPath == "" {
			app := obj.first("app")
			name := obj.first("stream", "name")
			if app != "" && name != "" {
				md.StreamPath = "/" + app + "/" + name
			}
		}
	} else if s, ok := scalar(id); ok && !strings.HasPrefix(s, "/") {
		md.SessionID = s
	}

	if md.StreamPath == "" {
		if s, ok := streamPath.(string); ok && strings.HasPrefix(s, "/") {
			md.StreamPath = s
		} else if s, ok := id.(string); ok && strings.HasPrefix(s, "/") {
			md.StreamPath = s
		} else if s, ok := args.(string); ok && strings.HasPrefix(s, "/") {
			md.StreamPath = s
		}
	}

	if md.IPAddress == UnknownIP {
		if obj, ok := asObject(args); ok {
			if ip := obj.first("ip"); ip != "" {
				md.IPAddress = ip
			}
		}
	}

	return md
}

// ParseStreamKey returns the key segment of a /<app>/<key> path.
// Any query string is ignored.
func ParseStreamKey(path string) (string, error) {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	if len(parts) < 3 {
		return "", fmt.Errorf("%w: %q", ErrMalformedPath, path)
	}
	return parts[2], nil
}

// splitPath returns the app and name segments of a stream path.
func splitPath(path string) (app, name string) {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	if len(parts) < 3 {
		return "", ""
	}
	return parts[1], parts[2]
}

type object map[string]any

func (o object) first(keys ...string) string {
	for _, k := range keys {
		if s, ok := scalar(o[k]); ok && s != "" {
			return s
		}
	}
	return ""
}

func asObject(v any) (object, bool) {
	switch t := v.(type) {
	case map[string]any:
		return object(t), true
	case object:
		return t, true
	case map[string]string:
		o := make(object, len(t))
		for k, s := range t {
			o[k] = s
		}
		return o, true
	case url.Values:
		o := make(object, len(t))
		for k := range t {
			o[k] = t.Get(k)
		}
		return o, true
	}
	return nil, false
}

// scalar stringifies strings and numbers. Anything else is not a usable value.
func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case fmt.Stringer:
		return t.String(), true
	case int:
		return strconv.Itoa(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint32:
		return strconv.FormatUint(uint64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}
