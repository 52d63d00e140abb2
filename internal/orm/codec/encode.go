// Package codec converts owned entity graphs to and from the JSON text stored in a column.
// Encoding writes object members in schema declaration order. Decoding is schema driven:
// members the schema does not know are skipped at any depth, absent members take defaults.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/conduit-lang/docmap/internal/orm/enums"
	"github.com/conduit-lang/docmap/internal/orm/graph"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// TimestampLayout is used for UTC timestamps; other zones are written as RFC 3339
const TimestampLayout = "2006-01-02T15:04:05.999999999"

var nullLiteral = []byte("null")

// Encode serializes an owned reference. A nil graph encodes as JSON null.
func Encode(g graph.Graph, s *schema.DocumentSchema) ([]byte, error) {
	if g == nil {
		return append([]byte(nil), nullLiteral...), nil
	}
	var buf bytes.Buffer
	if err := encodeObject(&buf, "$", g, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeCollection serializes an owned collection stored at the root of a column.
// A nil collection encodes as an empty array.
func EncodeCollection(items []graph.Graph, s *schema.DocumentSchema) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeCollection(&buf, "$", items, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeObject(buf *bytes.Buffer, path string, g graph.Graph, s *schema.DocumentSchema) error {
	buf.WriteByte('{')
	first := true
	for _, p := range s.Properties {
		v, present := g[p.Name]
		if !present || isUnsetEnum(p, v) {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false

		if err := writeString(buf, p.JSONName); err != nil {
			return err
		}
		buf.WriteByte(':')

		if err := encodeProperty(buf, path+"."+p.JSONName, p, v); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func encodeCollection(buf *bytes.Buffer, path string, items []graph.Graph, s *schema.DocumentSchema) error {
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemPath := fmt.Sprintf("%s[%d]", path, i)
		if item == nil {
			return nonConforming(elemPath, "collection element is nil")
		}
		if err := encodeObject(buf, elemPath, item, s); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func encodeProperty(buf *bytes.Buffer, path string, p *schema.PropertyNode, v interface{}) error {
	switch p.Kind {
	case schema.KindReference:
		switch ref := v.(type) {
		case nil:
			buf.Write(nullLiteral)
			return nil
		case graph.Graph:
			if ref == nil {
				buf.Write(nullLiteral)
				return nil
			}
			return encodeObject(buf, path, ref, p.Child)
		default:
			return nonConforming(path, "expected graph.Graph, got %T", v)
		}

	case schema.KindCollection:
		switch items := v.(type) {
		case nil:
			buf.WriteString("[]")
			return nil
		case []graph.Graph:
			return encodeCollection(buf, path, items, p.Child)
		default:
			return nonConforming(path, "expected []graph.Graph, got %T", v)
		}

	case schema.KindPrimitiveArray:
		var elems []interface{}
		switch arr := v.(type) {
		case nil:
		case []interface{}:
			elems = arr
		default:
			return nonConforming(path, "expected []interface{}, got %T", v)
		}
		buf.WriteByte('[')
		for i, elem := range elems {
			if i > 0 {
				buf.WriteByte(',')
			}
			elemPath := fmt.Sprintf("%s[%d]", path, i)
			if elem == nil {
				return nonConforming(elemPath, "array element is nil")
			}
			if err := encodeScalar(buf, elemPath, p, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil

	default:
		if v == nil {
			if !p.Nullable {
				return nonConforming(path, "nil value for non-nullable %s", p.Scalar)
			}
			buf.Write(nullLiteral)
			return nil
		}
		if b, ok := v.([]byte); ok && b == nil && p.Nullable {
			buf.Write(nullLiteral)
			return nil
		}
		return encodeScalar(buf, path, p, v)
	}
}

func encodeScalar(buf *bytes.Buffer, path string, p *schema.PropertyNode, v interface{}) error {
	wrongType := func(want string) error {
		return nonConforming(path, "expected %s for %s, got %T", want, p.Scalar, v)
	}

	switch p.Scalar {
	case schema.TypeInt:
		n, ok := v.(int32)
		if !ok {
			return wrongType("int32")
		}
		buf.WriteString(strconv.FormatInt(int64(n), 10))

	case schema.TypeLong:
		n, ok := v.(int64)
		if !ok {
			return wrongType("int64")
		}
		buf.WriteString(strconv.FormatInt(n, 10))

	case schema.TypeByte:
		n, ok := v.(uint8)
		if !ok {
			return wrongType("uint8")
		}
		buf.WriteString(strconv.FormatUint(uint64(n), 10))

	case schema.TypeString:
		s, ok := v.(string)
		if !ok {
			return wrongType("string")
		}
		return writeString(buf, s)

	case schema.TypeDouble:
		f, ok := v.(float64)
		if !ok {
			return wrongType("float64")
		}
		out, err := json.Marshal(f)
		if err != nil {
			return nonConforming(path, "%v", err)
		}
		buf.Write(out)

	case schema.TypeBool:
		b, ok := v.(bool)
		if !ok {
			return wrongType("bool")
		}
		buf.WriteString(strconv.FormatBool(b))

	case schema.TypeBytes:
		b, ok := v.([]byte)
		if !ok {
			return wrongType("[]byte")
		}
		return writeString(buf, base64.StdEncoding.EncodeToString(b))

	case schema.TypeTimestamp:
		t, ok := v.(time.Time)
		if !ok {
			return wrongType("time.Time")
		}
		return writeString(buf, FormatTimestamp(t))

	case schema.TypeEnum:
		m, ok := v.(enums.Member)
		if !ok {
			return wrongType("enums.Member")
		}
		return encodeEnum(buf, path, p, m)

	default:
		return nonConforming(path, "unknown scalar type %s", p.Scalar)
	}
	return nil
}

// isUnsetEnum reports whether v is the nameless zero member an absent non-nullable enum
// takes when its type declares no zero ordinal. Such properties are left out of the document
// so that it decodes to the same value again.
func isUnsetEnum(p *schema.PropertyNode, v interface{}) bool {
	if p.Kind != schema.KindScalar || p.Scalar != schema.TypeEnum || p.Nullable {
		return false
	}
	m, ok := v.(enums.Member)
	if !ok || m != graph.ZeroScalar(p.Scalar, p.Enum) {
		return false
	}
	_, declared := p.Enum.ByOrdinal(m.Ordinal)
	return !declared
}

// encodeEnum writes the member name for string-format enums and the ordinal literal otherwise.
// Ordinals without a declared member would not decode again and are rejected.
func encodeEnum(buf *bytes.Buffer, path string, p *schema.PropertyNode, m enums.Member) error {
	if m.Ordinal.Width() != p.Enum.Width {
		return nonConforming(path, "enum %s expects width %s, got %s", p.Enum.Name, p.Enum.Width, m.Ordinal.Width())
	}
	declared, ok := p.Enum.ByOrdinal(m.Ordinal)
	if !ok {
		return nonConforming(path, "enum %s has no member with ordinal %s", p.Enum.Name, m.Ordinal)
	}
	if p.EnumFormat == schema.EnumString {
		return writeString(buf, declared.Name)
	}
	buf.WriteString(m.Ordinal.String())
	return nil
}

// FormatTimestamp renders t the way timestamps are stored in documents
func FormatTimestamp(t time.Time) string {
	if t.Location() == time.UTC {
		return t.Format(TimestampLayout)
	}
	return t.Format(time.RFC3339Nano)
}

func writeString(buf *bytes.Buffer, s string) error {
	out, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(out)
	return nil
}
