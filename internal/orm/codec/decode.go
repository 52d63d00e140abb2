package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/conduit-lang/docmap/internal/orm/graph"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// LegacyEnumObserver is told every time an enum value stored in its legacy string form is decoded
type LegacyEnumObserver interface {
	LegacyEnumValue(enumName string)
}

// Decoder decodes JSON column values. A Decoder holds no per-document state and is safe for concurrent use
// as long as its observer is.
type Decoder struct {
	observer LegacyEnumObserver
}

// NewDecoder creates a decoder reporting legacy enum values to observer, which may be nil
func NewDecoder(observer LegacyEnumObserver) *Decoder {
	return &Decoder{observer: observer}
}

// Decode decodes an owned reference with no legacy enum reporting
func Decode(doc []byte, s *schema.DocumentSchema) (graph.Graph, error) {
	return NewDecoder(nil).Decode(doc, s)
}

// DecodeCollection decodes an owned collection with no legacy enum reporting
func DecodeCollection(doc []byte, s *schema.DocumentSchema) ([]graph.Graph, error) {
	return NewDecoder(nil).DecodeCollection(doc, s)
}

// Decode parses an owned reference document. JSON null decodes to a nil graph.
func (d *Decoder) Decode(doc []byte, s *schema.DocumentSchema) (graph.Graph, error) {
	raw, err := validDocument(doc)
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	return d.decodeObject("$", raw, s)
}

// DecodeCollection parses an owned collection document. JSON null decodes to an empty collection.
func (d *Decoder) DecodeCollection(doc []byte, s *schema.DocumentSchema) ([]graph.Graph, error) {
	raw, err := validDocument(doc)
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return []graph.Graph{}, nil
	}
	return d.decodeCollection("$", raw, s)
}

func validDocument(doc []byte) ([]byte, error) {
	raw := bytes.TrimSpace(doc)
	if len(raw) == 0 {
		return nil, &DecodeError{Path: "$", Reason: "empty document", Err: ErrMalformedJSON}
	}
	if !json.Valid(raw) {
		var scratch interface{}
		return nil, &DecodeError{Path: "$", Reason: "invalid JSON text", Err: fmt.Errorf("%w: %v", ErrMalformedJSON, json.Unmarshal(raw, &scratch))}
	}
	return raw, nil
}

// decodeObject walks the members of a JSON object in document order and keeps those the schema knows.
// Unknown members, whatever their shape, are consumed and dropped.
func (d *Decoder) decodeObject(path string, raw []byte, s *schema.DocumentSchema) (graph.Graph, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, mismatch(path, "expected an object for %s", s.Name)
	}

	g := make(graph.Graph, len(s.Properties))
	for _, p := range s.Properties {
		g[p.Name] = graph.DefaultValue(p)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, &DecodeError{Path: path, Reason: "reading object", Err: fmt.Errorf("%w: %v", ErrMalformedJSON, err)}
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, &DecodeError{Path: path, Reason: "reading member name", Err: fmt.Errorf("%w: %v", ErrMalformedJSON, err)}
		}
		member, _ := tok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, &DecodeError{Path: path + "." + member, Reason: "reading member value", Err: fmt.Errorf("%w: %v", ErrMalformedJSON, err)}
		}

		p, known := s.JSONProperty(member)
		if !known {
			continue
		}

		v, err := d.decodeProperty(path+"."+member, value, p)
		if err != nil {
			return nil, err
		}
		g[p.Name] = v
	}

	return g, nil
}

func (d *Decoder) decodeCollection(path string, raw []byte, s *schema.DocumentSchema) ([]graph.Graph, error) {
	elems, err := splitArray(path, raw)
	if err != nil {
		return nil, err
	}
	items := make([]graph.Graph, 0, len(elems))
	for i, elem := range elems {
		elemPath := fmt.Sprintf("%s[%d]", path, i)
		if isNull(elem) {
			return nil, mismatch(elemPath, "null element in owned collection")
		}
		item, err := d.decodeObject(elemPath, elem, s)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (d *Decoder) decodeProperty(path string, raw []byte, p *schema.PropertyNode) (interface{}, error) {
	raw = bytes.TrimSpace(raw)
	null := isNull(raw)

	switch p.Kind {
	case schema.KindReference:
		if null {
			return nil, nil
		}
		return d.decodeObject(path, raw, p.Child)

	case schema.KindCollection:
		if null {
			return []graph.Graph{}, nil
		}
		return d.decodeCollection(path, raw, p.Child)

	case schema.KindPrimitiveArray:
		if null {
			return []interface{}{}, nil
		}
		elems, err := splitArray(path, raw)
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, 0, len(elems))
		for i, elem := range elems {
			elemPath := fmt.Sprintf("%s[%d]", path, i)
			if isNull(elem) {
				return nil, mismatch(elemPath, "null element in array of %s", p.Scalar)
			}
			v, err := d.decodeScalar(elemPath, elem, p)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil

	default:
		if null {
			if !p.Nullable {
				return nil, mismatch(path, "null for non-nullable %s", p.Scalar)
			}
			return nil, nil
		}
		return d.decodeScalar(path, raw, p)
	}
}

func (d *Decoder) decodeScalar(path string, raw []byte, p *schema.PropertyNode) (interface{}, error) {
	raw = bytes.TrimSpace(raw)
	literal := string(raw)

	switch p.Scalar {
	case schema.TypeInt:
		n, err := strconv.ParseInt(literal, 10, 32)
		if err != nil {
			return nil, mismatch(path, "%s is not an int", literal)
		}
		return int32(n), nil

	case schema.TypeLong:
		n, err := strconv.ParseInt(literal, 10, 64)
		if err != nil {
			return nil, mismatch(path, "%s is not a long", literal)
		}
		return n, nil

	case schema.TypeByte:
		n, err := strconv.ParseUint(literal, 10, 8)
		if err != nil {
			return nil, mismatch(path, "%s is not a byte", literal)
		}
		return uint8(n), nil

	case schema.TypeDouble:
		if !isNumber(raw) {
			return nil, mismatch(path, "%s is not a double", literal)
		}
		f, err := strconv.ParseFloat(literal, 64)
		if err != nil {
			return nil, mismatch(path, "%s is not a double", literal)
		}
		return f, nil

	case schema.TypeBool:
		switch literal {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, mismatch(path, "%s is not a bool", literal)

	case schema.TypeString:
		return decodeString(path, raw)

	case schema.TypeBytes:
		s, err := decodeString(path, raw)
		if err != nil {
			return nil, err
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, &DecodeError{Path: path, Reason: "invalid base64", Err: fmt.Errorf("%w: %v", ErrTypeMismatch, err)}
		}
		return b, nil

	case schema.TypeTimestamp:
		s, err := decodeString(path, raw)
		if err != nil {
			return nil, err
		}
		t, err := ParseTimestamp(s)
		if err != nil {
			return nil, &DecodeError{Path: path, Reason: "invalid timestamp", Err: fmt.Errorf("%w: %v", ErrTypeMismatch, err)}
		}
		return t, nil

	case schema.TypeEnum:
		m, legacy, err := p.Enum.Resolve(raw)
		if err != nil {
			return nil, &DecodeError{Path: path, Reason: "invalid enum value", Err: err}
		}
		if legacy && p.EnumFormat != schema.EnumString && d.observer != nil {
			d.observer.LegacyEnumValue(p.Enum.Name)
		}
		return m, nil

	default:
		return nil, mismatch(path, "unknown scalar type %s", p.Scalar)
	}
}

// ParseTimestamp accepts RFC 3339 timestamps and zone-less timestamps, which are read as UTC
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", s)
}

func decodeString(path string, raw []byte) (string, error) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", mismatch(path, "%s is not a string", string(raw))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &DecodeError{Path: path, Reason: "invalid string", Err: fmt.Errorf("%w: %v", ErrMalformedJSON, err)}
	}
	return s, nil
}

func splitArray(path string, raw []byte) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, mismatch(path, "expected an array")
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, &DecodeError{Path: path, Reason: "reading array", Err: fmt.Errorf("%w: %v", ErrMalformedJSON, err)}
	}
	return elems, nil
}

func isNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), nullLiteral)
}

func isNumber(raw []byte) bool {
	return len(raw) > 0 && (raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'))
}
