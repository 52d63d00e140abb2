package enums

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidEnumValue is wrapped by every EnumDecodeError
var ErrInvalidEnumValue = errors.New("invalid enum value")

// EnumDecodeError reports a stored value that maps to no member of the enum
type EnumDecodeError struct {
	Enum   string
	Raw    string
	Reason string
}

// Error implements the error interface
func (e *EnumDecodeError) Error() string {
	return fmt.Sprintf("cannot decode %s as enum %s: %s", e.Raw, e.Enum, e.Reason)
}

// Unwrap returns ErrInvalidEnumValue
func (e *EnumDecodeError) Unwrap() error {
	return ErrInvalidEnumValue
}

// rawForm classifies a raw JSON value before resolution
type rawForm int

const (
	formInvalid rawForm = iota
	formNumeric
	formLegacyString
)

func classify(raw []byte) rawForm {
	if len(raw) == 0 {
		return formInvalid
	}
	switch c := raw[0]; {
	case c == '"':
		return formLegacyString
	case c == '-' || (c >= '0' && c <= '9'):
		return formNumeric
	default:
		return formInvalid
	}
}

// Resolve maps a raw JSON value to a member of t.
// Numbers are matched by ordinal. Strings are matched by member name and report
// legacy = true so the caller can emit a diagnostic; they are not an error.
// Any other JSON value, an out-of-range number or an unknown name fails with *EnumDecodeError
// and legacy = false.
func (t *Type) Resolve(raw json.RawMessage) (member Member, legacy bool, err error) {
	raw = bytes.TrimSpace(raw)

	switch classify(raw) {
	case formNumeric:
		o, perr := ParseOrdinal(t.Width, string(raw))
		if perr != nil {
			return Member{}, false, &EnumDecodeError{Enum: t.Name, Raw: string(raw), Reason: fmt.Sprintf("not a valid %s ordinal", t.Width)}
		}
		m, ok := t.byOrdinal[o]
		if !ok {
			return Member{}, false, &EnumDecodeError{Enum: t.Name, Raw: string(raw), Reason: "no member has this ordinal"}
		}
		return m, false, nil

	case formLegacyString:
		var name string
		if uerr := json.Unmarshal(raw, &name); uerr != nil {
			return Member{}, false, &EnumDecodeError{Enum: t.Name, Raw: string(raw), Reason: "malformed string"}
		}
		m, ok := t.byName[name]
		if !ok {
			return Member{}, false, &EnumDecodeError{Enum: t.Name, Raw: string(raw), Reason: "no member has this name"}
		}
		return m, true, nil

	default:
		return Member{}, false, &EnumDecodeError{Enum: t.Name, Raw: string(raw), Reason: "expected a number or a member name"}
	}
}
