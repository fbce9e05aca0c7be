package blacket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// flexID принимает id и числом, и строкой ("8424028"), и null.
type flexID int64

func (id *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*id = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("blacket: bad id %q: %w", s, err)
		}
		*id = flexID(n)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*id = flexID(f)
	return nil
}

// idRef: ссылка, пришедшая либо голым id, либо объектом с полем id.
type idRef struct {
	ID  int64
	Set bool
}

func (r *idRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" || string(b) == "false" {
		*r = idRef{}
		return nil
	}
	if b[0] == '{' {
		var obj struct {
			ID flexID `json:"id"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		*r = idRef{ID: int64(obj.ID), Set: true}
		return nil
	}
	var id flexID
	if err := id.UnmarshalJSON(b); err != nil {
		return err
	}
	*r = idRef{ID: int64(id), Set: true}
	return nil
}

// Время на проводе: миллисекунды unix.
func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func idKey(id int64) string { return strconv.FormatInt(id, 10) }
