package curriculum

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// knownKeys are the record keys owned by TopicRecord's typed fields.
var knownKeys = []string{
	"topic", "summary", "detailedSummary", "materials", "videoUrl",
	"assignments", "quiz", "quizzes", "why_it_matters", "images",
}

// UnmarshalJSON decodes the typed fields and keeps every other key aside.
func (r *TopicRecord) UnmarshalJSON(data []byte) error {
	type plain TopicRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range knownKeys {
		delete(raw, k)
	}

	*r = TopicRecord(p)
	r.extra = nil
	if len(raw) > 0 {
		r.extra = raw
	}
	r.normalize()
	return nil
}

// MarshalJSON encodes the typed fields merged with the preserved unknown keys.
// Keys are emitted in sorted order so equal records always encode identically.
func (r TopicRecord) MarshalJSON() ([]byte, error) {
	type plain TopicRecord
	b, err := marshalRaw(plain(r))
	if err != nil {
		return nil, err
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(b, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return marshalRaw(merged)
}

// marshalRaw is json.Marshal without HTML escaping, so URLs keep their '&'.
func marshalRaw(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Extra returns a preserved unknown key, if present.
func (r *TopicRecord) Extra(key string) (json.RawMessage, bool) {
	v, ok := r.extra[key]
	return v, ok
}

// DecodeRecord parses a topic file's contents.
func DecodeRecord(data []byte) (*TopicRecord, error) {
	var rec TopicRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode topic record: %w", err)
	}
	return &rec, nil
}

// EncodeRecord renders a record the way topic files are stored on disk:
// two-space indentation and a trailing newline.
func EncodeRecord(rec *TopicRecord) ([]byte, error) {
	return encodeIndented(rec)
}

// EncodeWeeklyUnit renders a weekly unit in the on-disk format.
func EncodeWeeklyUnit(u WeeklyUnit) ([]byte, error) {
	return encodeIndented(u)
}

func encodeIndented(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return buf.Bytes(), nil
}
