package shoutcast

import (
	"bytes"
	"strings"
)

// Metadata represents the stream metadata sent by the server
type Metadata struct {
	StreamTitle string
}

// NewMetadata parses one ICY metadata block, e.g. "StreamTitle='A - B';StreamUrl='';"
// padded with NUL bytes. Titles may contain ';' and '=' so the value is taken
// up to the closing "';".
func NewMetadata(b []byte) *Metadata {
	m := &Metadata{}

	s := string(bytes.TrimRight(b, "\x00"))

	const key = "StreamTitle='"
	i := strings.Index(s, key)
	if i < 0 {
		return m
	}
	v := s[i+len(key):]

	if end := strings.Index(v, "';"); end >= 0 {
		v = v[:end]
	} else {
		v = strings.TrimSuffix(v, "'")
	}
	m.StreamTitle = v

	return m
}

// Equals compares two metadata blocks; a nil block equals nothing.
func (m *Metadata) Equals(other *Metadata) bool {
	if m == nil || other == nil {
		return false
	}
	return m.StreamTitle == other.StreamTitle
}
