package media

import "fmt"

// Key identifies a MetaData entry.
type Key string

const (
	KeyMIMEType     Key = "mime"
	KeyChannelCount Key = "channel-count"
	KeySampleRate   Key = "sample-rate"
	KeyTimeUnits    Key = "time-units"
	KeyTimeScale    Key = "time-scale"
)

// MetaData is a typed key/value container describing a format or a buffer.
// The zero value is ready to use.
type MetaData struct {
	values map[Key]any
}

// NewMetaData returns an empty MetaData.
func NewMetaData() *MetaData {
	return &MetaData{values: make(map[Key]any)}
}

func (m *MetaData) set(k Key, v any) {
	if m.values == nil {
		m.values = make(map[Key]any)
	}
	m.values[k] = v
}

func (m *MetaData) SetInt32(k Key, v int32) {
	m.set(k, v)
}

func (m *MetaData) SetString(k Key, v string) {
	m.set(k, v)
}

// Int32 returns the int32 stored under k. ok is false if k is absent or
// holds another type.
func (m *MetaData) Int32(k Key) (v int32, ok bool) {
	v, ok = m.values[k].(int32)
	return v, ok
}

// String returns the string stored under k.
func (m *MetaData) String(k Key) (v string, ok bool) {
	v, ok = m.values[k].(string)
	return v, ok
}

// Has reports whether k is set.
func (m *MetaData) Has(k Key) bool {
	_, ok := m.values[k]
	return ok
}

// Len returns the number of entries.
func (m *MetaData) Len() int {
	return len(m.values)
}

// Clear removes every entry.
func (m *MetaData) Clear() {
	clear(m.values)
}

// Map returns a copy of the entries keyed by their string form. It is meant
// for logging and serialization.
func (m *MetaData) Map() map[string]string {
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[string(k)] = fmt.Sprint(v)
	}
	return out
}
