// Package codec converts between typed signal values and the generic,
// JSON-like value model of the broker wire protocol. It owns the numeric
// coercion rules and the null/failure semantics of decoding.
package codec

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/c360/signalbridge/errors"
	"github.com/c360/signalbridge/signal"
	"github.com/c360/signalbridge/wirepath"
)

type numeric interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

func typeMismatch(v *signal.Value) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: payload does not match declared kind %s", errors.ErrInvalidType, v.Kind()),
		"codec", "Encode", "payload type check")
}

func encodeNumber[T numeric](payload any, v *signal.Value) (*structpb.Value, error) {
	n, ok := payload.(T)
	if !ok {
		return nil, typeMismatch(v)
	}
	return structpb.NewNumberValue(float64(n)), nil
}

func encodeNumberList[T numeric](payload any, v *signal.Value) (*structpb.Value, error) {
	items, ok := payload.([]T)
	if !ok {
		return nil, typeMismatch(v)
	}
	values := make([]*structpb.Value, len(items))
	for i, item := range items {
		values[i] = structpb.NewNumberValue(float64(item))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values}), nil
}

// Encode maps a typed signal value to its generic wire representation.
// Scalars map to the matching wire scalar, arrays to wire lists, and an
// invalid value encodes to wire null. An unknown kind fails fast.
func Encode(v *signal.Value) (*structpb.Value, error) {
	if v == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: nil value", errors.ErrInvalidType),
			"codec", "Encode", "input check")
	}
	if !v.Valid() {
		return structpb.NewNullValue(), nil
	}

	payload, err := v.Payload()
	if err != nil {
		return nil, err
	}

	switch v.Kind() {
	case signal.KindBool:
		b, ok := payload.(bool)
		if !ok {
			return nil, typeMismatch(v)
		}
		return structpb.NewBoolValue(b), nil
	case signal.KindBoolArray:
		items, ok := payload.([]bool)
		if !ok {
			return nil, typeMismatch(v)
		}
		values := make([]*structpb.Value, len(items))
		for i, item := range items {
			values[i] = structpb.NewBoolValue(item)
		}
		return structpb.NewListValue(&structpb.ListValue{Values: values}), nil
	case signal.KindInt8:
		return encodeNumber[int8](payload, v)
	case signal.KindInt8Array:
		return encodeNumberList[int8](payload, v)
	case signal.KindInt16:
		return encodeNumber[int16](payload, v)
	case signal.KindInt16Array:
		return encodeNumberList[int16](payload, v)
	case signal.KindInt32:
		return encodeNumber[int32](payload, v)
	case signal.KindInt32Array:
		return encodeNumberList[int32](payload, v)
	case signal.KindInt64:
		return encodeNumber[int64](payload, v)
	case signal.KindInt64Array:
		return encodeNumberList[int64](payload, v)
	case signal.KindUint8:
		return encodeNumber[uint8](payload, v)
	case signal.KindUint8Array:
		return encodeNumberList[uint8](payload, v)
	case signal.KindUint16:
		return encodeNumber[uint16](payload, v)
	case signal.KindUint16Array:
		return encodeNumberList[uint16](payload, v)
	case signal.KindUint32:
		return encodeNumber[uint32](payload, v)
	case signal.KindUint32Array:
		return encodeNumberList[uint32](payload, v)
	case signal.KindUint64:
		return encodeNumber[uint64](payload, v)
	case signal.KindUint64Array:
		return encodeNumberList[uint64](payload, v)
	case signal.KindFloat:
		return encodeNumber[float32](payload, v)
	case signal.KindFloatArray:
		return encodeNumberList[float32](payload, v)
	case signal.KindDouble:
		return encodeNumber[float64](payload, v)
	case signal.KindDoubleArray:
		return encodeNumberList[float64](payload, v)
	case signal.KindString:
		s, ok := payload.(string)
		if !ok {
			return nil, typeMismatch(v)
		}
		return structpb.NewStringValue(s), nil
	case signal.KindStringArray:
		items, ok := payload.([]string)
		if !ok {
			return nil, typeMismatch(v)
		}
		values := make([]*structpb.Value, len(items))
		for i, item := range items {
			values[i] = structpb.NewStringValue(item)
		}
		return structpb.NewListValue(&structpb.ListValue{Values: values}), nil
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: unsupported kind %d", errors.ErrInvalidType, v.Kind()),
			"codec", "Encode", "kind dispatch")
	}
}

func wrapCoercion(path string, err error) error {
	return errors.WrapInvalid(
		fmt.Errorf("path %q: %w", path, err),
		"codec", "Decode", "value coercion")
}

// Decode locates the leaf named by the dotted path inside root and coerces
// it to the expected kind. A missing leaf is a path-not-found error; a null
// leaf yields an invalid value tagged not-available, which is a
// representable outcome rather than an error.
func Decode(path string, kind signal.Kind, root *structpb.Value) (*signal.Value, error) {
	leaf := wirepath.LocateLeaf(root, path)
	if leaf == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q not present in payload", errors.ErrPathNotFound, path),
			"codec", "Decode", "leaf lookup")
	}
	if _, isNull := leaf.GetKind().(*structpb.Value_NullValue); isNull {
		return signal.NewFailed(path, kind, signal.FailureNotAvailable), nil
	}
	return decodeLeaf(path, kind, leaf)
}

// Coerce coerces a single already-located leaf to the expected kind,
// applying the same null handling as Decode. Callers that hold a bare wire
// value rather than a navigable payload use this directly.
func Coerce(path string, kind signal.Kind, leaf *structpb.Value) (*signal.Value, error) {
	if leaf == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q has no payload", errors.ErrPathNotFound, path),
			"codec", "Coerce", "leaf check")
	}
	if _, isNull := leaf.GetKind().(*structpb.Value_NullValue); isNull {
		return signal.NewFailed(path, kind, signal.FailureNotAvailable), nil
	}
	return decodeLeaf(path, kind, leaf)
}

func decodeLeaf(path string, kind signal.Kind, leaf *structpb.Value) (*signal.Value, error) {
	switch kind {
	case signal.KindBool:
		b, err := coerceBool(leaf)
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, b)
	case signal.KindBoolArray:
		items, err := coerceList(leaf, coerceBool)
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, items)
	case signal.KindInt8:
		n, err := coerceSigned(leaf, 8)
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, int8(n))
	case signal.KindInt8Array:
		items, err := coerceList(leaf, func(e *structpb.Value) (int8, error) {
			n, err := coerceSigned(e, 8)
			return int8(n), err
		})
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, items)
	case signal.KindInt16:
		n, err := coerceSigned(leaf, 16)
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, int16(n))
	case signal.KindInt16Array:
		items, err := coerceList(leaf, func(e *structpb.Value) (int16, error) {
			n, err := coerceSigned(e, 16)
			return int16(n), err
		})
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, items)
	case signal.KindInt32:
		n, err := coerceSigned(leaf, 32)
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, int32(n))
	case signal.KindInt32Array:
		items, err := coerceList(leaf, func(e *structpb.Value) (int32, error) {
			n, err := coerceSigned(e, 32)
			return int32(n), err
		})
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, items)
	case signal.KindInt64:
		n, err := coerceSigned(leaf, 64)
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, n)
	case signal.KindInt64Array:
		items, err := coerceList(leaf, func(e *structpb.Value) (int64, error) {
			return coerceSigned(e, 64)
		})
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, items)
	case signal.KindUint8:
		n, err := coerceUnsigned(leaf, 8)
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, uint8(n))
	case signal.KindUint8Array:
		items, err := coerceList(leaf, func(e *structpb.Value) (uint8, error) {
			n, err := coerceUnsigned(e, 8)
			return uint8(n), err
		})
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, items)
	case signal.KindUint16:
		n, err := coerceUnsigned(leaf, 16)
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, uint16(n))
	case signal.KindUint16Array:
		items, err := coerceList(leaf, func(e *structpb.Value) (uint16, error) {
			n, err := coerceUnsigned(e, 16)
			return uint16(n), err
		})
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, items)
	case signal.KindUint32:
		n, err := coerceUnsigned(leaf, 32)
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, uint32(n))
	case signal.KindUint32Array:
		items, err := coerceList(leaf, func(e *structpb.Value) (uint32, error) {
			n, err := coerceUnsigned(e, 32)
			return uint32(n), err
		})
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, items)
	case signal.KindUint64:
		n, err := coerceUnsigned(leaf, 64)
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, n)
	case signal.KindUint64Array:
		items, err := coerceList(leaf, func(e *structpb.Value) (uint64, error) {
			return coerceUnsigned(e, 64)
		})
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, items)
	case signal.KindFloat:
		n, err := coerceDouble(leaf)
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, float32(n))
	case signal.KindFloatArray:
		items, err := coerceList(leaf, func(e *structpb.Value) (float32, error) {
			n, err := coerceDouble(e)
			return float32(n), err
		})
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, items)
	case signal.KindDouble:
		n, err := coerceDouble(leaf)
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, n)
	case signal.KindDoubleArray:
		items, err := coerceList(leaf, coerceDouble)
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, items)
	case signal.KindString:
		s, err := coerceString(leaf)
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, s)
	case signal.KindStringArray:
		items, err := coerceList(leaf, coerceString)
		if err != nil {
			return nil, wrapCoercion(path, err)
		}
		return signal.New(path, kind, items)
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: unsupported kind %d", errors.ErrInvalidType, kind),
			"codec", "Decode", "kind dispatch")
	}
}

// Infer decodes a leaf without an expected kind, inferring the signal type
// from the wire type: strings stay strings, booleans stay booleans, numbers
// become doubles, null becomes a not-available double. Homogeneous lists
// map to the matching array kind; mixed or nested lists fail as invalid
// values.
func Infer(path string, leaf *structpb.Value) (*signal.Value, error) {
	switch k := leaf.GetKind().(type) {
	case *structpb.Value_StringValue:
		return signal.New(path, signal.KindString, k.StringValue)
	case *structpb.Value_BoolValue:
		return signal.New(path, signal.KindBool, k.BoolValue)
	case *structpb.Value_NumberValue:
		return signal.New(path, signal.KindDouble, k.NumberValue)
	case *structpb.Value_NullValue:
		return signal.NewFailed(path, signal.KindDouble, signal.FailureNotAvailable), nil
	case *structpb.Value_ListValue:
		return inferList(path, k.ListValue)
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: path %q: unsupported wire type in response", errors.ErrInvalidValue, path),
			"codec", "Infer", "type inference")
	}
}

func inferList(path string, list *structpb.ListValue) (*signal.Value, error) {
	if len(list.Values) == 0 {
		return signal.New(path, signal.KindDoubleArray, []float64{})
	}

	switch list.Values[0].GetKind().(type) {
	case *structpb.Value_BoolValue:
		items := make([]bool, len(list.Values))
		for i, element := range list.Values {
			k, ok := element.GetKind().(*structpb.Value_BoolValue)
			if !ok {
				return nil, mixedList(path, i)
			}
			items[i] = k.BoolValue
		}
		return signal.New(path, signal.KindBoolArray, items)
	case *structpb.Value_NumberValue:
		items := make([]float64, len(list.Values))
		for i, element := range list.Values {
			k, ok := element.GetKind().(*structpb.Value_NumberValue)
			if !ok {
				return nil, mixedList(path, i)
			}
			items[i] = k.NumberValue
		}
		return signal.New(path, signal.KindDoubleArray, items)
	case *structpb.Value_StringValue:
		items := make([]string, len(list.Values))
		for i, element := range list.Values {
			k, ok := element.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return nil, mixedList(path, i)
			}
			items[i] = k.StringValue
		}
		return signal.New(path, signal.KindStringArray, items)
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: path %q: unsupported list element type", errors.ErrInvalidValue, path),
			"codec", "Infer", "list inference")
	}
}

func mixedList(path string, index int) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: path %q: mixed element types in list at index %d", errors.ErrInvalidValue, path, index),
		"codec", "Infer", "list inference")
}
