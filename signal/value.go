// Package signal defines the typed vehicle-signal data model: signal values,
// their kinds and failure states, and the reply type delivered to consumers.
package signal

import (
	"fmt"
	"reflect"
	"time"

	"github.com/c360/signalbridge/errors"
)

// Kind identifies the static type of a signal value. The enumeration is
// closed; every switch over Kind must handle the unknown case by failing.
type Kind int

// Supported signal value kinds
const (
	KindUnspecified Kind = iota
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat
	KindDouble
	KindString
	KindBoolArray
	KindInt8Array
	KindInt16Array
	KindInt32Array
	KindInt64Array
	KindUint8Array
	KindUint16Array
	KindUint32Array
	KindUint64Array
	KindFloatArray
	KindDoubleArray
	KindStringArray
)

var kindNames = map[Kind]string{
	KindBool:        "bool",
	KindInt8:        "int8",
	KindInt16:       "int16",
	KindInt32:       "int32",
	KindInt64:       "int64",
	KindUint8:       "uint8",
	KindUint16:      "uint16",
	KindUint32:      "uint32",
	KindUint64:      "uint64",
	KindFloat:       "float",
	KindDouble:      "double",
	KindString:      "string",
	KindBoolArray:   "bool[]",
	KindInt8Array:   "int8[]",
	KindInt16Array:  "int16[]",
	KindInt32Array:  "int32[]",
	KindInt64Array:  "int64[]",
	KindUint8Array:  "uint8[]",
	KindUint16Array: "uint16[]",
	KindUint32Array: "uint32[]",
	KindUint64Array: "uint64[]",
	KindFloatArray:  "float[]",
	KindDoubleArray: "double[]",
	KindStringArray: "string[]",
}

// String returns the string representation of Kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unspecified"
}

// ParseKind returns the Kind named by s (the same names String produces,
// e.g. "float", "uint8[]"). Unknown names yield KindUnspecified and false.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return KindUnspecified, false
}

// IsArray reports whether the kind is a homogeneous array kind
func (k Kind) IsArray() bool {
	return k >= KindBoolArray && k <= KindStringArray
}

// Elem returns the scalar kind of an array kind. For scalar kinds it
// returns the kind unchanged.
func (k Kind) Elem() Kind {
	if !k.IsArray() {
		return k
	}
	return k - KindBoolArray + KindBool
}

// Array returns the array kind of a scalar kind. For array kinds it
// returns the kind unchanged.
func (k Kind) Array() Kind {
	if k.IsArray() || k == KindUnspecified {
		return k
	}
	return k - KindBool + KindBoolArray
}

// Failure describes why a signal value carries no usable payload
type Failure int

// Possible failure reasons for an invalid signal value
const (
	FailureNone Failure = iota
	FailureInvalidValue
	FailureNotAvailable
	FailureUnknownDatapoint
	FailureAccessDenied
	FailureInternalError
)

// String returns the string representation of Failure
func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureInvalidValue:
		return "invalid_value"
	case FailureNotAvailable:
		return "not_available"
	case FailureUnknownDatapoint:
		return "unknown_datapoint"
	case FailureAccessDenied:
		return "access_denied"
	case FailureInternalError:
		return "internal_error"
	default:
		return "unknown"
	}
}

// Value is one typed signal value: a dotted path, a declared Kind, and
// either a payload of the matching Go type or a Failure reason. The two are
// mutually exclusive; reading the payload of a failed value is an error.
// Values are immutable once constructed.
type Value struct {
	path      string
	kind      Kind
	payload   any
	failure   Failure
	timestamp time.Time
}

// kindOf maps a Go payload to its signal Kind, or KindUnspecified when the
// payload type is not part of the model.
func kindOf(payload any) Kind {
	switch payload.(type) {
	case bool:
		return KindBool
	case int8:
		return KindInt8
	case int16:
		return KindInt16
	case int32:
		return KindInt32
	case int64:
		return KindInt64
	case uint8:
		return KindUint8
	case uint16:
		return KindUint16
	case uint32:
		return KindUint32
	case uint64:
		return KindUint64
	case float32:
		return KindFloat
	case float64:
		return KindDouble
	case string:
		return KindString
	case []bool:
		return KindBoolArray
	case []int8:
		return KindInt8Array
	case []int16:
		return KindInt16Array
	case []int32:
		return KindInt32Array
	case []int64:
		return KindInt64Array
	case []uint8:
		return KindUint8Array
	case []uint16:
		return KindUint16Array
	case []uint32:
		return KindUint32Array
	case []uint64:
		return KindUint64Array
	case []float32:
		return KindFloatArray
	case []float64:
		return KindDoubleArray
	case []string:
		return KindStringArray
	default:
		return KindUnspecified
	}
}

// New constructs a valid signal value. The payload's Go type must match the
// declared kind exactly; a mismatch is a programming error at the boundary
// and fails fast with an invalid-type error.
func New(path string, kind Kind, payload any) (*Value, error) {
	actual := kindOf(payload)
	if actual == KindUnspecified {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: unsupported payload type %T", errors.ErrInvalidType, payload),
			"signal", "New", "payload type check")
	}
	if actual != kind {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: declared %s, stored %s", errors.ErrInvalidType, kind, actual),
			"signal", "New", "kind check")
	}
	return &Value{
		path:      path,
		kind:      kind,
		payload:   payload,
		timestamp: time.Now(),
	}, nil
}

// NewFailed constructs an invalid signal value of the given kind carrying a
// failure reason. This is a representable outcome, not an error.
func NewFailed(path string, kind Kind, failure Failure) *Value {
	if failure == FailureNone {
		failure = FailureInternalError
	}
	return &Value{
		path:      path,
		kind:      kind,
		failure:   failure,
		timestamp: time.Now(),
	}
}

// Path returns the dotted signal path the value belongs to
func (v *Value) Path() string { return v.path }

// Kind returns the declared kind of the value
func (v *Value) Kind() Kind { return v.kind }

// Timestamp returns the construction time of the value
func (v *Value) Timestamp() time.Time { return v.timestamp }

// Failure returns the failure reason, or FailureNone for valid values
func (v *Value) Failure() Failure { return v.failure }

// Valid reports whether the value carries a usable payload
func (v *Value) Valid() bool { return v.failure == FailureNone }

// Payload returns the typed payload. It fails explicitly for invalid values
// instead of substituting a zero default.
func (v *Value) Payload() (any, error) {
	if !v.Valid() {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: value for %q failed with %s", errors.ErrInvalidValue, v.path, v.failure),
			"signal", "Payload", "validity check")
	}
	return v.payload, nil
}

// Equal reports whether two values have the same path, kind, validity and
// payload. Timestamps are ignored.
func (v *Value) Equal(other *Value) bool {
	if v == nil || other == nil {
		return v == other
	}
	return v.path == other.path &&
		v.kind == other.kind &&
		v.failure == other.failure &&
		reflect.DeepEqual(v.payload, other.payload)
}
