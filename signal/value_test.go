package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/signalbridge/errors"
)

func TestNew_MatchingKind(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		payload any
	}{
		{"bool", KindBool, true},
		{"int8", KindInt8, int8(-5)},
		{"uint64", KindUint64, uint64(12)},
		{"float", KindFloat, float32(1.5)},
		{"double", KindDouble, 2.25},
		{"string", KindString, "reverse"},
		{"bool array", KindBoolArray, []bool{true, false}},
		{"double array", KindDoubleArray, []float64{1, 2, 3}},
		{"string array", KindStringArray, []string{"a", "b"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v, err := New("Vehicle.Speed", test.kind, test.payload)
			require.NoError(t, err)
			assert.True(t, v.Valid())
			assert.Equal(t, test.kind, v.Kind())
			assert.Equal(t, "Vehicle.Speed", v.Path())

			got, err := v.Payload()
			require.NoError(t, err)
			assert.Equal(t, test.payload, got)
		})
	}
}

func TestNew_KindMismatchFailsFast(t *testing.T) {
	_, err := New("Vehicle.Speed", KindBool, 3.14)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidType)

	_, err = New("Vehicle.Speed", KindDouble, struct{}{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidType)
}

func TestNewFailed_PayloadInaccessible(t *testing.T) {
	v := NewFailed("Vehicle.Speed", KindDouble, FailureNotAvailable)
	assert.False(t, v.Valid())
	assert.Equal(t, FailureNotAvailable, v.Failure())
	assert.Equal(t, KindDouble, v.Kind())

	_, err := v.Payload()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidValue)
}

func TestKind_ArrayElem(t *testing.T) {
	assert.Equal(t, KindInt16Array, KindInt16.Array())
	assert.Equal(t, KindInt16, KindInt16Array.Elem())
	assert.True(t, KindStringArray.IsArray())
	assert.False(t, KindString.IsArray())
	assert.Equal(t, KindDouble, KindDouble.Elem())
	assert.Equal(t, KindDoubleArray, KindDoubleArray.Array())
}

func TestValue_Equal(t *testing.T) {
	a, err := New("A.B", KindInt32, int32(7))
	require.NoError(t, err)
	b, err := New("A.B", KindInt32, int32(7))
	require.NoError(t, err)
	c, err := New("A.B", KindInt32, int32(8))
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(NewFailed("A.B", KindInt32, FailureNotAvailable)))
}

func TestReply_GetMissingPath(t *testing.T) {
	r := NewReply()
	v, err := New("A.B", KindString, "x")
	require.NoError(t, err)
	r.Add(v)

	got, err := r.Get("A.B")
	require.NoError(t, err)
	assert.True(t, got.Equal(v))

	_, err = r.Get("A.Missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPathNotFound)

	assert.Equal(t, []string{"A.B"}, r.Paths())
	assert.Equal(t, 1, r.Len())
}
