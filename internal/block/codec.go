package block

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// wireField is the JSON shape of a field: {"name":..,"type":..,"value":..}.
// Null leaves omit "value".
type wireField struct {
	Name  string          `json:"name"`
	Type  Type            `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalField encodes f as a single-line JSON object.
// Strings are written as-is (no NFC normalization, no HTML escaping).
// Use MarshalCanonical for hashing.
func MarshalField(f Field) ([]byte, error) {
	var buf bytes.Buffer
	if err := appendField(&buf, f, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalField decodes one JSON-encoded field.
// Floats, unknown types and unknown keys are rejected.
func UnmarshalField(data []byte) (Field, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var w wireField
	if err := dec.Decode(&w); err != nil {
		return Field{}, err
	}
	if dec.More() {
		return Field{}, fmt.Errorf("trailing data after field %q", w.Name)
	}
	return w.decode()
}

func (w wireField) decode() (Field, error) {
	if w.Name == "" {
		return Field{}, fmt.Errorf("field name is required")
	}

	v, err := decodeValue(w.Type, w.Value)
	if err != nil {
		return Field{}, fmt.Errorf("field %q: %w", w.Name, err)
	}
	return Field{Name: w.Name, Value: v}, nil
}

func decodeValue(t Type, raw json.RawMessage) (Value, error) {
	raw = bytes.TrimSpace(raw)

	switch t {
	case TypeNull:
		if len(raw) > 0 && string(raw) != "null" {
			return nil, fmt.Errorf("null leaf carries a value: %s", raw)
		}
		return Null{}, nil
	case TypeInt:
		n, err := decodeInt(raw)
		if err != nil {
			return nil, err
		}
		return Int(n), nil
	case TypeLargeInt:
		n, err := decodeInt(raw)
		if err != nil {
			return nil, err
		}
		return LargeInt(n), nil
	case TypeUnsigned:
		if len(raw) == 0 {
			return nil, fmt.Errorf("missing value")
		}
		n, err := strconv.ParseUint(string(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an unsigned integer: %s", raw)
		}
		return Unsigned(n), nil
	case TypeString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("not a string: %w", err)
		}
		return String(s), nil
	case TypeBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("not a bool: %w", err)
		}
		return Bool(b), nil
	case TypeDate:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("not a date string: %w", err)
		}
		return NewDate(s)
	case TypeRecord:
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, fmt.Errorf("record value must be an array of fields: %w", err)
		}
		rec := make(Record, 0, len(elems))
		for i, elem := range elems {
			f, err := UnmarshalField(elem)
			if err != nil {
				return nil, fmt.Errorf("record[%d]: %w", i, err)
			}
			rec = append(rec, f)
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("unknown type %q", t)
	}
}

// decodeInt parses a JSON integer without going through float64,
// so values above 2^53 keep full precision.
func decodeInt(raw []byte) (int64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing value")
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer (floats are forbidden): %s", raw)
	}
	return n, nil
}

func appendField(buf *bytes.Buffer, f Field, canonical bool) error {
	if f.Value == nil {
		return fmt.Errorf("field %q: nil value", f.Name)
	}
	t, err := TypeOf(f.Value)
	if err != nil {
		return fmt.Errorf("field %q: %w", f.Name, err)
	}

	buf.WriteString(`{"name":`)
	appendString(buf, f.Name, canonical)
	buf.WriteString(`,"type":"`)
	buf.WriteString(string(t))
	buf.WriteByte('"')

	if t == TypeNull {
		buf.WriteByte('}')
		return nil
	}

	buf.WriteString(`,"value":`)
	if err := appendValue(buf, f.Value, canonical); err != nil {
		return fmt.Errorf("field %q: %w", f.Name, err)
	}
	buf.WriteByte('}')
	return nil
}

func appendValue(buf *bytes.Buffer, v Value, canonical bool) error {
	switch val := v.(type) {
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case LargeInt:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Unsigned:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case String:
		appendString(buf, string(val), canonical)
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Date:
		appendString(buf, string(val), canonical)
	case Record:
		buf.WriteByte('[')
		for i, f := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendField(buf, f, canonical); err != nil {
				return fmt.Errorf("record[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
	return nil
}

// appendString writes s as a JSON string literal.
// Only the quote, backslash and control characters below U+0020 are escaped,
// which is what RFC 8785 requires. In canonical mode s is NFC normalized first.
func appendString(buf *bytes.Buffer, s string, canonical bool) {
	if canonical {
		s = norm.NFC.String(s)
	}

	const hex = "0123456789abcdef"
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r < 0x20:
			buf.WriteString(`\u00`)
			buf.WriteByte(hex[r>>4])
			buf.WriteByte(hex[r&0xf])
		case r == utf8.RuneError && size == 1:
			buf.WriteString(`�`)
		default:
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}
