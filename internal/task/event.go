package task

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// ErrMalformedEvent is returned by ParseEvent for payloads that are not a
// JSON object.
var ErrMalformedEvent = goerr.New("malformed task event")

// Event is a single task state-change notification pushed over the live
// connection. It is treated as opaque: consumers use it to invalidate cached
// collections, never to patch them.
type Event struct {
	TaskID    string          `json:"task_id"`
	Name      string          `json:"name"`
	State     State           `json:"state"`
	Timestamp Timestamp       `json:"timestamp"`
	ParentID  *string         `json:"parent_id"`
	RootID    *string         `json:"root_id"`
	TraceID   *string         `json:"trace_id"`
	Retries   int             `json:"retries"`
	Args      json.RawMessage `json:"args,omitempty"`
	Kwargs    json.RawMessage `json:"kwargs,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Exception *string         `json:"exception"`
	Traceback *string         `json:"traceback"`

	// Ignored lists fields whose values could not be decoded and were left
	// at their zero value.
	Ignored []string `json:"-"`
}

// ParseEvent decodes one live-update payload. Only payloads that are not a
// JSON object are rejected; fields with unexpected types are ignored.
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := ev.UnmarshalJSON(data); err != nil {
		return Event{}, goerr.Wrap(err, "failed to parse task event", goerr.V("size", len(data)))
	}
	return ev, nil
}

// UnmarshalJSON decodes field by field so that one odd value never loses
// the whole event.
func (e *Event) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return goerr.Wrap(ErrMalformedEvent, "payload is not a JSON object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return goerr.Wrap(ErrMalformedEvent, err.Error())
	}

	*e = Event{}
	strs := map[string]*string{
		"task_id": &e.TaskID,
		"name":    &e.Name,
	}
	optional := map[string]**string{
		"parent_id": &e.ParentID,
		"root_id":   &e.RootID,
		"trace_id":  &e.TraceID,
		"exception": &e.Exception,
		"traceback": &e.Traceback,
	}
	raws := map[string]*json.RawMessage{
		"args":   &e.Args,
		"kwargs": &e.Kwargs,
		"result": &e.Result,
	}

	for key, raw := range fields {
		ok := true
		switch {
		case strs[key] != nil:
			*strs[key], ok = decodeText(raw)
		case optional[key] != nil:
			*optional[key], ok = decodeOptionalText(raw)
		case raws[key] != nil:
			*raws[key] = append(json.RawMessage(nil), raw...)
		case key == "state":
			var s string
			s, ok = decodeText(raw)
			e.State = State(s)
		case key == "retries":
			e.Retries, ok = decodeInt(raw)
		case key == "timestamp":
			e.Timestamp.Time, ok = decodeTime(raw)
		}
		if !ok {
			e.Ignored = append(e.Ignored, key)
		}
	}
	sort.Strings(e.Ignored)
	return nil
}

// decodeText accepts strings, numbers and null.
func decodeText(raw json.RawMessage) (string, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case float64:
		return string(bytes.TrimSpace(raw)), true
	default:
		return "", false
	}
}

func decodeOptionalText(raw json.RawMessage) (*string, bool) {
	if string(bytes.TrimSpace(raw)) == "null" {
		return nil, true
	}
	s, ok := decodeText(raw)
	if !ok {
		return nil, false
	}
	return &s, true
}

// decodeInt accepts integral numbers and numeric strings.
func decodeInt(raw json.RawMessage) (int, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	switch t := v.(type) {
	case nil:
		return 0, true
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case string:
		n, err := strconv.Atoi(t)
		return n, err == nil
	default:
		return 0, false
	}
}

// decodeTime accepts timestamp strings and Unix epoch seconds.
func decodeTime(raw json.RawMessage) (time.Time, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case nil:
		return time.Time{}, true
	case float64:
		sec, frac := math.Modf(t)
		return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), true
	case string:
		parsed, err := parseTimestamp(t)
		return parsed, err == nil
	default:
		return time.Time{}, false
	}
}

// Timestamp accepts RFC 3339 as well as naive ISO-8601 timestamps, which
// are interpreted as UTC.
type Timestamp struct {
	time.Time
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z0700",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range zonedLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, nil
		}
	}
	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, goerr.New("unrecognised timestamp format", goerr.V("value", s))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return goerr.Wrap(err, "timestamp must be a string")
	}
	parsed, err := parseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}
