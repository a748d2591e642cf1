package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is an ordered mapping from column name to Value. Column order is the
// insertion order, which for loaded tables is the header order.
type Row struct {
	keys []string
	vals map[string]Value
}

// NewRow builds a row from parallel column and value slices.
func NewRow(columns []string, values []Value) Row {
	r := Row{}
	for i, c := range columns {
		v := Null()
		if i < len(values) {
			v = values[i]
		}
		r.Set(c, v)
	}
	return r
}

// Set assigns a value, appending the column if it is new.
func (r *Row) Set(column string, v Value) {
	if r.vals == nil {
		r.vals = make(map[string]Value)
	}
	if _, exists := r.vals[column]; !exists {
		r.keys = append(r.keys, column)
	}
	r.vals[column] = v
}

// Get returns the value for column and whether the column exists.
func (r Row) Get(column string) (Value, bool) {
	v, ok := r.vals[column]
	return v, ok
}

func (r Row) Columns() []string {
	return append([]string(nil), r.keys...)
}

func (r Row) Len() int { return len(r.keys) }

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON keeps the key order of the source object.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("row must be a JSON object")
	}

	*r = Row{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("row key must be a string")
		}
		var v Value
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("row column %q: %w", key, err)
		}
		r.Set(key, v)
	}
	_, err = dec.Token()
	return err
}
