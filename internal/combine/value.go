package combine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/toricodesthings/document-processor/internal/jsonio"
)

// Value is a decoded JSON value. Objects keep their key order and numbers
// keep their source text; strings are held decoded so they re-encode without
// escapes. The zero Value is null.
type Value struct {
	v any // nil, bool, json.Number, string, []Value or *Object
}

// Object is a JSON object in source key order. A repeated key keeps its first
// position and its last value.
type Object struct {
	keys []string
	vals map[string]Value
}

func (o *Object) set(key string, v Value) {
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = v
}

// Field returns the value under key, or null when absent.
func (o *Object) Field(key string) Value { return o.vals[key] }

func StringValue(s string) Value { return Value{v: s} }

func (v Value) IsNull() bool { return v.v == nil }

func (v Value) Object() (*Object, bool) {
	o, ok := v.v.(*Object)
	return o, ok
}

func (v Value) Array() ([]Value, bool) {
	a, ok := v.v.([]Value)
	return a, ok
}

func (v Value) Str() (string, bool) {
	s, ok := v.v.(string)
	return s, ok
}

// ParseValue decodes exactly one JSON document.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, fmt.Errorf("unexpected data after JSON document")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	d, ok := tok.(json.Delim)
	if !ok {
		return Value{v: tok}, nil
	}

	switch d {
	case '[':
		arr := []Value{}
		for dec.More() {
			e, err := decodeValue(dec)
			if err != nil {
				return Value{}, err
			}
			arr = append(arr, e)
		}
		if _, err := dec.Token(); err != nil {
			return Value{}, err
		}
		return Value{v: arr}, nil

	case '{':
		obj := &Object{vals: map[string]Value{}}
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return Value{}, err
			}
			key, ok := kt.(string)
			if !ok {
				return Value{}, fmt.Errorf("object key %v is not a string", kt)
			}
			val, err := decodeValue(dec)
			if err != nil {
				return Value{}, err
			}
			obj.set(key, val)
		}
		if _, err := dec.Token(); err != nil {
			return Value{}, err
		}
		return Value{v: obj}, nil
	}
	return Value{}, fmt.Errorf("unexpected %v", d)
}

func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch x := v.v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if x {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(x.String())
	case string:
		return writeString(buf, x)
	case []Value:
		buf.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case *Object:
		buf.WriteByte('{')
		for i, k := range x.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := x.vals[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported JSON value %T", x)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	b, err := jsonio.Marshal(s, false)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
