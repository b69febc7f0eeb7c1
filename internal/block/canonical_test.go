package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalNFC(t *testing.T) {
	// "é" as e + combining acute (NFD) vs precomposed (NFC)
	nfd := Field{"s", String("e\u0301")}
	nfc := Field{"s", String("\u00e9")}

	a, err := MarshalCanonical(nfd)
	require.NoError(t, err)
	b, err := MarshalCanonical(nfc)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))

	plain, err := MarshalField(nfd)
	require.NoError(t, err)
	assert.NotEqual(t, string(a), string(plain), "plain marshaling must not normalize")
}

func TestHashDeterminism(t *testing.T) {
	f := Field{"record", Record{
		{Name: "table_type", Value: String("player")},
		{Name: "db_unique_id", Value: LargeInt(42)},
	}}

	h1, err := Hash(f)
	require.NoError(t, err)
	h2, err := Hash(Field{Name: "record", Value: Clone(f.Value)})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestHashChangesWithContent(t *testing.T) {
	base := Record{
		{Name: "a", Value: Int(1)},
		{Name: "b", Value: Int(2)},
	}
	swapped := Record{
		{Name: "b", Value: Int(2)},
		{Name: "a", Value: Int(1)},
	}
	retyped := Record{
		{Name: "a", Value: LargeInt(1)},
		{Name: "b", Value: Int(2)},
	}

	h := MustHash(Field{"record", base})
	assert.NotEqual(t, h, MustHash(Field{"record", swapped}), "field order is content")
	assert.NotEqual(t, h, MustHash(Field{"record", retyped}), "leaf type is content")
}

func TestHashDomainSeparation(t *testing.T) {
	f := Field{"x", Int(1)}
	data, err := MarshalCanonical(f)
	require.NoError(t, err)

	assert.Equal(t, hashWithDomain(DomainRecord, data), MustHash(f))
	assert.NotEqual(t, hashWithDomain("other/v1", data), MustHash(f))
}
