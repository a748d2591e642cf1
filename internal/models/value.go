package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
)

// Value is a single spreadsheet or report cell: a string, a number or null.
type Value struct {
	kind Kind
	str  string
	num  float64
}

func String(s string) Value  { return Value{kind: KindString, str: s} }
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }
func Null() Value            { return Value{} }

// FromInterface converts a decoded JSON or API cell into a Value.
func FromInterface(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case string:
		return String(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case bool:
		return String(strconv.FormatBool(t))
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Number(f)
		}
		return String(t.String())
	default:
		return String(fmt.Sprint(t))
	}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// String coerces the value to text. Null becomes "".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

// Float coerces the value to a number. ok is false for null, blank and
// non-numeric text, which callers treat as NaN.
func (v Value) Float() (f float64, ok bool) {
	switch v.kind {
	case KindNumber:
		return v.num, !math.IsNaN(v.num)
	case KindString:
		s := strings.TrimSpace(v.str)
		if s == "" {
			return math.NaN(), false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return math.NaN(), false
		}
		return f, true
	default:
		return math.NaN(), false
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.num)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch raw.(type) {
	case map[string]interface{}, []interface{}:
		return fmt.Errorf("value must be a string, number or null, got %s", string(data))
	}
	*v = FromInterface(raw)
	return nil
}
