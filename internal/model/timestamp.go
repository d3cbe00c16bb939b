package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Timestamp is a UNIX time in seconds.
//
// Stored data carries it either as a plain number, a numeric string, or a wrapped 64-bit
// integer object {"low": ..., "high": ..., "unsigned": ...}. All three decode to the same
// value; encoding always produces a plain number.
type Timestamp int64

type wrappedInt64 struct {
	Low      int32 `json:"low"`
	High     int32 `json:"high"`
	Unsigned bool  `json:"unsigned"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*t = 0
		return nil
	case data[0] == '{':
		var w wrappedInt64
		if err := json.Unmarshal(data, &w); err != nil {
			return fmt.Errorf("timestamp object: %w", err)
		}
		*t = Timestamp(int64(w.High)<<32 | int64(uint32(w.Low)))
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*t = 0
			return nil
		}
		return t.parseNumber(s)
	}
	return t.parseNumber(string(data))
}

func (t *Timestamp) parseNumber(s string) error {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*t = Timestamp(n)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", s, err)
	}
	*t = Timestamp(int64(f))
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, int64(t), 10), nil
}

// Unix returns the normalized value in seconds.
func (t Timestamp) Unix() int64 { return int64(t) }

// Time converts to time.Time; zero stays the zero time.
func (t Timestamp) Time() time.Time {
	if t == 0 {
		return time.Time{}
	}
	return time.Unix(int64(t), 0)
}
