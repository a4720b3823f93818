package msdp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFlatString(t *testing.T) {
	in := map[string]Value{"NAME": StringValue("Aarnya")}

	encoded := Encode(in)
	out, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeDecodeArray(t *testing.T) {
	in := map[string]Value{
		"COMMANDS": ArrayValue([]Value{
			StringValue("LOOK"),
			StringValue("REPORT"),
			StringValue("UNREPORT"),
		}),
	}

	encoded := Encode(in)
	out, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeDecodeNestedTable(t *testing.T) {
	in := map[string]Value{
		"ROOM": TableValue(map[string]Value{
			"NAME":  StringValue("Temple Of Midgaard"),
			"VNUM":  StringValue("3001"),
			"EXITS": ArrayValue([]Value{StringValue("north"), StringValue("south")}),
		}),
	}

	encoded := Encode(in)
	out, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	_, err := Decode([]byte{Var, 'X'})
	assert.Error(t, err)
}

func TestEncodeVarIsDeterministicPerCall(t *testing.T) {
	got := EncodeVar("HP", StringValue("100"))
	want := append([]byte{Var}, append([]byte("HP"), append([]byte{Val}, []byte("100")...)...)...)
	assert.Equal(t, want, got)
}

func TestJSONRoundTrip(t *testing.T) {
	in := map[string]Value{
		"ROOM": TableValue(map[string]Value{
			"NAME":  StringValue("The Bazaar"),
			"EXITS": ArrayValue([]Value{StringValue("east")}),
		}),
	}

	data, err := ToJSON(in)
	require.NoError(t, err)

	out, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
