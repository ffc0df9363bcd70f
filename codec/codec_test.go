package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/c360/signalbridge/errors"
	"github.com/c360/signalbridge/signal"
)

func mustValue(t *testing.T, path string, kind signal.Kind, payload any) *signal.Value {
	t.Helper()
	v, err := signal.New(path, kind, payload)
	require.NoError(t, err)
	return v
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		kind    signal.Kind
		payload any
	}{
		{"bool", signal.KindBool, true},
		{"int8", signal.KindInt8, int8(-12)},
		{"int16", signal.KindInt16, int16(-1200)},
		{"int32", signal.KindInt32, int32(70000)},
		{"int64", signal.KindInt64, int64(-9000000)},
		{"uint8", signal.KindUint8, uint8(200)},
		{"uint16", signal.KindUint16, uint16(60000)},
		{"uint32", signal.KindUint32, uint32(4000000)},
		{"uint64", signal.KindUint64, uint64(9000000)},
		{"float", signal.KindFloat, float32(1.5)},
		{"double", signal.KindDouble, 42.25},
		{"string", signal.KindString, "park"},
		{"bool array", signal.KindBoolArray, []bool{true, false, true}},
		{"int8 array", signal.KindInt8Array, []int8{-1, 0, 1}},
		{"int64 array", signal.KindInt64Array, []int64{-5, 5}},
		{"uint16 array", signal.KindUint16Array, []uint16{1, 2, 3}},
		{"float array", signal.KindFloatArray, []float32{0.5, 1.5}},
		{"double array", signal.KindDoubleArray, []float64{1.25, 2.5}},
		{"string array", signal.KindStringArray, []string{"a", "b"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			original := mustValue(t, "Vehicle.Probe", test.kind, test.payload)

			wire, err := Encode(original)
			require.NoError(t, err)

			decoded, err := Decode("Vehicle.Probe", test.kind, wire)
			require.NoError(t, err)
			assert.True(t, original.Equal(decoded),
				"round-trip mismatch: %v vs %v", original, decoded)
		})
	}
}

func TestEncode_InvalidValueBecomesNull(t *testing.T) {
	failed := signal.NewFailed("Vehicle.Probe", signal.KindDouble, signal.FailureNotAvailable)
	wire, err := Encode(failed)
	require.NoError(t, err)
	_, isNull := wire.GetKind().(*structpb.Value_NullValue)
	assert.True(t, isNull)
}

func TestEncode_NilValueFails(t *testing.T) {
	_, err := Encode(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidType)
}

func TestDecode_NullLeafIsNotAvailable(t *testing.T) {
	assertNotAvailable := func(v *signal.Value, kind signal.Kind) {
		t.Helper()
		assert.False(t, v.Valid())
		assert.Equal(t, signal.FailureNotAvailable, v.Failure())
		assert.Equal(t, kind, v.Kind())
	}

	// Bare null leaf
	v, err := Decode("X.Y", signal.KindDouble, structpb.NewNullValue())
	require.NoError(t, err)
	assertNotAvailable(v, signal.KindDouble)

	// Null nested under the requested path
	root, err := structpb.NewValue(map[string]any{
		"X": map[string]any{"Y": nil},
	})
	require.NoError(t, err)
	v, err = Decode("X.Y", signal.KindStringArray, root)
	require.NoError(t, err)
	assertNotAvailable(v, signal.KindStringArray)
}

func TestDecode_PathNotFound(t *testing.T) {
	root, err := structpb.NewValue(map[string]any{
		"X": map[string]any{"Y": 1.0},
	})
	require.NoError(t, err)

	_, err = Decode("X.Missing", signal.KindDouble, root)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPathNotFound)
}

func TestDecode_BooleanCoercion(t *testing.T) {
	tests := []struct {
		name    string
		wire    *structpb.Value
		want    bool
		wantErr bool
	}{
		{"number below epsilon", structpb.NewNumberValue(1e-7), false, false},
		{"number 2.0", structpb.NewNumberValue(2.0), true, false},
		{"negative number", structpb.NewNumberValue(-0.5), true, false},
		{"string TRUE", structpb.NewStringValue("TRUE"), true, false},
		{"string 0", structpb.NewStringValue("0"), false, false},
		{"string False", structpb.NewStringValue("False"), false, false},
		{"string 1", structpb.NewStringValue("1"), true, false},
		{"string maybe", structpb.NewStringValue("maybe"), false, true},
		{"bool passthrough", structpb.NewBoolValue(true), true, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v, err := Decode("A.Flag", signal.KindBool, test.wire)
			if test.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrInvalidValue)
				return
			}
			require.NoError(t, err)
			payload, err := v.Payload()
			require.NoError(t, err)
			assert.Equal(t, test.want, payload)
		})
	}
}

func TestDecode_IntegerCoercion(t *testing.T) {
	// Round to nearest
	v, err := Decode("A.N", signal.KindInt8, structpb.NewNumberValue(3.5))
	require.NoError(t, err)
	payload, err := v.Payload()
	require.NoError(t, err)
	assert.Equal(t, int8(4), payload)

	// Overflow for the target width
	_, err = Decode("A.N", signal.KindInt8, structpb.NewNumberValue(1000))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidValue)

	// Boundary values pass
	v, err = Decode("A.N", signal.KindInt8, structpb.NewNumberValue(-128))
	require.NoError(t, err)
	payload, err = v.Payload()
	require.NoError(t, err)
	assert.Equal(t, int8(-128), payload)

	// Non-finite fails
	_, err = Decode("A.N", signal.KindInt64, structpb.NewStringValue("nope"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidValue)

	// String with base prefix
	v, err = Decode("A.N", signal.KindInt32, structpb.NewStringValue("0x10"))
	require.NoError(t, err)
	payload, err = v.Payload()
	require.NoError(t, err)
	assert.Equal(t, int32(16), payload)

	// Partial parse fails
	_, err = Decode("A.N", signal.KindInt32, structpb.NewStringValue("12abc"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidValue)

	// Bool to integer
	v, err = Decode("A.N", signal.KindUint8, structpb.NewBoolValue(true))
	require.NoError(t, err)
	payload, err = v.Payload()
	require.NoError(t, err)
	assert.Equal(t, uint8(1), payload)

	// Negative to unsigned fails
	_, err = Decode("A.N", signal.KindUint16, structpb.NewNumberValue(-1))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidValue)
}

func TestDecode_FloatCoercion(t *testing.T) {
	v, err := Decode("A.F", signal.KindDouble, structpb.NewStringValue("2.75"))
	require.NoError(t, err)
	payload, err := v.Payload()
	require.NoError(t, err)
	assert.Equal(t, 2.75, payload)

	v, err = Decode("A.F", signal.KindFloat, structpb.NewBoolValue(true))
	require.NoError(t, err)
	payload, err = v.Payload()
	require.NoError(t, err)
	assert.Equal(t, float32(1.0), payload)

	_, err = Decode("A.F", signal.KindDouble, structpb.NewStringValue("2.75kmh"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidValue)
}

func TestDecode_StringCoercion(t *testing.T) {
	v, err := Decode("A.S", signal.KindString, structpb.NewNumberValue(5))
	require.NoError(t, err)
	payload, err := v.Payload()
	require.NoError(t, err)
	assert.Equal(t, "5", payload)

	v, err = Decode("A.S", signal.KindString, structpb.NewBoolValue(false))
	require.NoError(t, err)
	payload, err = v.Payload()
	require.NoError(t, err)
	assert.Equal(t, "false", payload)
}

func TestDecode_ArrayRequiresList(t *testing.T) {
	_, err := Decode("A.L", signal.KindDoubleArray, structpb.NewNumberValue(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidValue)
}

func TestDecode_ArrayElementsCoercedIndependently(t *testing.T) {
	wire := structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{
		structpb.NewNumberValue(1),
		structpb.NewStringValue("2"),
		structpb.NewBoolValue(true),
	}})

	v, err := Decode("A.L", signal.KindInt32Array, wire)
	require.NoError(t, err)
	payload, err := v.Payload()
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 1}, payload)

	// Null elements render as empty strings in string arrays
	wire = structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{
		structpb.NewStringValue("a"),
		structpb.NewNullValue(),
	}})
	v, err = Decode("A.L", signal.KindStringArray, wire)
	require.NoError(t, err)
	payload, err = v.Payload()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", ""}, payload)
}

func TestInfer(t *testing.T) {
	v, err := Infer("A/B", structpb.NewStringValue("x"))
	require.NoError(t, err)
	assert.Equal(t, signal.KindString, v.Kind())

	v, err = Infer("A/B", structpb.NewNumberValue(5))
	require.NoError(t, err)
	assert.Equal(t, signal.KindDouble, v.Kind())

	v, err = Infer("A/B", structpb.NewBoolValue(true))
	require.NoError(t, err)
	assert.Equal(t, signal.KindBool, v.Kind())

	v, err = Infer("A/B", structpb.NewNullValue())
	require.NoError(t, err)
	assert.False(t, v.Valid())
	assert.Equal(t, signal.FailureNotAvailable, v.Failure())

	list, err := structpb.NewValue([]any{1.0, 2.0})
	require.NoError(t, err)
	v, err = Infer("A/B", list)
	require.NoError(t, err)
	assert.Equal(t, signal.KindDoubleArray, v.Kind())

	mixed, err := structpb.NewValue([]any{1.0, "two"})
	require.NoError(t, err)
	_, err = Infer("A/B", mixed)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidValue)

	st, err := structpb.NewValue(map[string]any{"a": 1.0})
	require.NoError(t, err)
	_, err = Infer("A/B", st)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidValue)
}
