package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected Type
	}{
		{"int", Int(1), TypeInt},
		{"large int", LargeInt(1 << 62), TypeLargeInt},
		{"unsigned", Unsigned(7), TypeUnsigned},
		{"string", String("x"), TypeString},
		{"bool", Bool(true), TypeBool},
		{"date", Date("2024-01-31"), TypeDate},
		{"null", Null{}, TypeNull},
		{"record", Record{}, TypeRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TypeOf(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := TypeOf(nil)
	assert.Error(t, err)
}

func TestNewDate(t *testing.T) {
	d, err := NewDate("1999-12-31")
	require.NoError(t, err)
	assert.Equal(t, Date("1999-12-31"), d)

	_, err = NewDate("31/12/1999")
	assert.Error(t, err)
}

func TestRecordLookupAndSet(t *testing.T) {
	rec := Record{
		{Name: "a", Value: Int(1)},
		{Name: "b", Value: String("two")},
	}

	v, ok := rec.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, String("two"), v)

	_, ok = rec.Lookup("missing")
	assert.False(t, ok)

	rec = rec.Set("a", Int(10))
	assert.Equal(t, 2, len(rec))
	assert.Equal(t, Int(10), rec[0].Value)

	rec = rec.Set("c", Bool(true))
	require.Len(t, rec, 3)
	assert.Equal(t, "c", rec[2].Name, "new fields are appended, order kept")
}

func TestCloneIsDeep(t *testing.T) {
	inner := Record{{Name: "db_unique_id", Value: LargeInt(500)}}
	orig := Record{
		{Name: "value", Value: inner},
		{Name: "x", Value: Int(1)},
	}

	cp := Clone(orig).(Record)
	cp[0].Value.(Record)[0].Value = LargeInt(900)
	cp[1].Value = Int(2)

	assert.Equal(t, LargeInt(500), inner[0].Value, "nested record must not be shared")
	assert.Equal(t, Int(1), orig[1].Value)
}
