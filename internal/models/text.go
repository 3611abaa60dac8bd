package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Text is a string field that also accepts a JSON number. Numbers keep their
// literal form, so 1.50 is stored as "1.50".
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected a string or a number, got %s", data)
	}
	*t = Text(n.String())
	return nil
}

func (t Text) String() string {
	return string(t)
}
