package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/c360/signalbridge/errors"
)

// Numbers within epsilon of zero coerce to false; guards floating noise.
const epsilon = 1e-6

func invalidValue(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errors.ErrInvalidValue, fmt.Sprintf(format, args...))
}

// coerceBool converts a generic wire value to bool. Booleans pass through,
// numbers are true iff |n| > epsilon, and the strings "true"/"1" and
// "false"/"0" are accepted case-insensitively.
func coerceBool(v *structpb.Value) (bool, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_BoolValue:
		return k.BoolValue, nil
	case *structpb.Value_NumberValue:
		return math.Abs(k.NumberValue) > epsilon, nil
	case *structpb.Value_StringValue:
		switch strings.ToLower(k.StringValue) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return false, invalidValue("cannot parse %q as boolean", k.StringValue)
	default:
		return false, invalidValue("unsupported wire type for boolean conversion")
	}
}

// coerceSigned converts a generic wire value to a signed integer of the
// given bit width. Numbers are rounded to nearest and range-checked,
// strings are parsed as integer literals with conventional base prefixes.
func coerceSigned(v *structpb.Value, bits int) (int64, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		n, err := strconv.ParseInt(k.StringValue, 0, bits)
		if err != nil {
			return 0, invalidValue("cannot parse %q as int%d: %v", k.StringValue, bits, err)
		}
		return n, nil
	case *structpb.Value_BoolValue:
		if k.BoolValue {
			return 1, nil
		}
		return 0, nil
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, invalidValue("non-finite number for int%d conversion", bits)
		}
		rounded := math.Round(n)
		limit := math.Ldexp(1, bits-1)
		if rounded < -limit || rounded >= limit {
			return 0, invalidValue("number %v out of range for int%d", n, bits)
		}
		return int64(rounded), nil
	default:
		return 0, invalidValue("unsupported wire type for int%d conversion", bits)
	}
}

// coerceUnsigned converts a generic wire value to an unsigned integer of
// the given bit width, with the same rounding and range rules as
// coerceSigned.
func coerceUnsigned(v *structpb.Value, bits int) (uint64, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		n, err := strconv.ParseUint(k.StringValue, 0, bits)
		if err != nil {
			return 0, invalidValue("cannot parse %q as uint%d: %v", k.StringValue, bits, err)
		}
		return n, nil
	case *structpb.Value_BoolValue:
		if k.BoolValue {
			return 1, nil
		}
		return 0, nil
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, invalidValue("non-finite number for uint%d conversion", bits)
		}
		rounded := math.Round(n)
		limit := math.Ldexp(1, bits)
		if rounded < 0 || rounded >= limit {
			return 0, invalidValue("number %v out of range for uint%d", n, bits)
		}
		return uint64(rounded), nil
	default:
		return 0, invalidValue("unsupported wire type for uint%d conversion", bits)
	}
}

// coerceDouble converts a generic wire value to float64. Numbers pass
// through, booleans become 0/1, strings are parsed as floating literals.
func coerceDouble(v *structpb.Value) (float64, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return k.NumberValue, nil
	case *structpb.Value_BoolValue:
		if k.BoolValue {
			return 1.0, nil
		}
		return 0.0, nil
	case *structpb.Value_StringValue:
		n, err := strconv.ParseFloat(k.StringValue, 64)
		if err != nil {
			return 0, invalidValue("cannot parse %q as floating point: %v", k.StringValue, err)
		}
		return n, nil
	default:
		return 0, invalidValue("unsupported wire type for floating point conversion")
	}
}

// coerceString converts a generic wire value to a string. Numbers render
// locale-independently and null becomes the empty string (null only reaches
// this path inside list elements; a bare null leaf is handled before
// coercion).
func coerceString(v *structpb.Value) (string, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue, nil
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(k.BoolValue), nil
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(k.NumberValue, 'g', -1, 64), nil
	case *structpb.Value_NullValue:
		return "", nil
	default:
		return "", invalidValue("unsupported wire type for string conversion")
	}
}

// coerceList applies conv to every element of a wire list. Anything other
// than a list container fails.
func coerceList[T any](v *structpb.Value, conv func(*structpb.Value) (T, error)) ([]T, error) {
	list := v.GetListValue()
	if list == nil {
		return nil, invalidValue("expected list value for array conversion")
	}
	result := make([]T, 0, len(list.Values))
	for i, element := range list.Values {
		converted, err := conv(element)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		result = append(result, converted)
	}
	return result, nil
}
