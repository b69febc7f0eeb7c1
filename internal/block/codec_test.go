package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalFieldLeaves(t *testing.T) {
	tests := []struct {
		name     string
		field    Field
		expected string
	}{
		{"int", Field{"n", Int(-3)}, `{"name":"n","type":"int","value":-3}`},
		{"large int", Field{"id", LargeInt(9223372036854775806)}, `{"name":"id","type":"large_int","value":9223372036854775806}`},
		{"unsigned", Field{"u", Unsigned(4294967295)}, `{"name":"u","type":"unsigned","value":4294967295}`},
		{"string", Field{"s", String(`a"b<c>`)}, `{"name":"s","type":"string","value":"a\"b<c>"}`},
		{"bool", Field{"b", Bool(false)}, `{"name":"b","type":"bool","value":false}`},
		{"date", Field{"d", Date("2001-02-03")}, `{"name":"d","type":"date","value":"2001-02-03"}`},
		{"null", Field{"z", Null{}}, `{"name":"z","type":"null"}`},
		{"empty record", Field{"r", Record{}}, `{"name":"r","type":"record","value":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalField(tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshalFieldNested(t *testing.T) {
	f := Field{Name: "record", Value: Record{
		{Name: "property", Value: String("create")},
		{Name: "value", Value: Record{{Name: "db_unique_id", Value: LargeInt(500)}}},
	}}

	got, err := MarshalField(f)
	require.NoError(t, err)
	assert.Equal(t,
		`{"name":"record","type":"record","value":[{"name":"property","type":"string","value":"create"},{"name":"value","type":"record","value":[{"name":"db_unique_id","type":"large_int","value":500}]}]}`,
		string(got))

	back, err := UnmarshalField(got)
	require.NoError(t, err)
	assert.Equal(t, f, back)
}

func TestMarshalFieldRejectsNil(t *testing.T) {
	_, err := MarshalField(Field{Name: "x"})
	assert.Error(t, err)
}

func TestUnmarshalFieldKeepsLargeIntegerPrecision(t *testing.T) {
	// 2^63-2 is not representable as float64
	f, err := UnmarshalField([]byte(`{"name":"id","type":"large_int","value":9223372036854775806}`))
	require.NoError(t, err)
	assert.Equal(t, LargeInt(9223372036854775806), f.Value)
}

func TestUnmarshalFieldErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"float", `{"name":"n","type":"int","value":1.5}`},
		{"exponent", `{"name":"n","type":"large_int","value":1e3}`},
		{"negative unsigned", `{"name":"n","type":"unsigned","value":-1}`},
		{"unknown type", `{"name":"n","type":"float","value":1}`},
		{"missing name", `{"type":"int","value":1}`},
		{"unknown key", `{"name":"n","type":"int","value":1,"extra":true}`},
		{"bad date", `{"name":"d","type":"date","value":"yesterday"}`},
		{"record not array", `{"name":"r","type":"record","value":{}}`},
		{"bad nested", `{"name":"r","type":"record","value":[{"name":"x","type":"int","value":"1"}]}`},
		{"null with value", `{"name":"z","type":"null","value":3}`},
		{"missing value", `{"name":"n","type":"int"}`},
		{"trailing data", `{"name":"n","type":"int","value":1} {}`},
		{"not json", `record{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalField([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestStringEscaping(t *testing.T) {
	got, err := MarshalField(Field{"s", String("tab\tnl\n\x01\\")})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"s","type":"string","value":"tab\tnl\n\u0001\\"}`, string(got))

	back, err := UnmarshalField(got)
	require.NoError(t, err)
	assert.Equal(t, String("tab\tnl\n\x01\\"), back.Value)
}
