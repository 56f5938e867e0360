package parser

import (
	"encoding/base64"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_LegacyShape(t *testing.T) {
	raw := []byte(`{
		"slot": 1234,
		"blockTime": 1709337599,
		"transaction": {
			"message": {
				"accountKeys": ["key1", "key2"],
				"instructions": [
					{"programIdIndex": 1, "data": "` + base58.Encode([]byte{1, 2, 3}) + `"}
				]
			}
		},
		"meta": {
			"logMessages": ["Program key2 invoke [1]"]
		}
	}`)

	tx, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, int64(1234), tx.Slot)
	require.NotNil(t, tx.BlockTime)
	assert.Equal(t, int64(1709337599), *tx.BlockTime)
	assert.Equal(t, []string{"key1", "key2"}, tx.AccountKeys)
	require.Len(t, tx.Instructions, 1)
	assert.Equal(t, 1, tx.Instructions[0].ProgramIDIndex)
	assert.Equal(t, []byte{1, 2, 3}, tx.Instructions[0].Data)
	assert.Equal(t, []string{"Program key2 invoke [1]"}, tx.LogMessages)
}

func TestNormalize_VersionedShapeWithLoadedAddresses(t *testing.T) {
	raw := []byte(`{
		"slot": 99,
		"blockTime": null,
		"transaction": {
			"message": {
				"staticAccountKeys": [{"pubkey": "static1"}, "static2"],
				"compiledInstructions": [
					{"programIdIndex": 0, "data": {"data": "` + base64.StdEncoding.EncodeToString([]byte{9, 9}) + `", "type": "base64"}}
				]
			}
		},
		"meta": {
			"loadedAddresses": {
				"writable": ["loadedW"],
				"readonly": [{"pubkey": "loadedR"}]
			}
		}
	}`)

	tx, err := Normalize(raw)
	require.NoError(t, err)

	assert.Nil(t, tx.BlockTime)
	assert.Equal(t, []string{"static1", "static2", "loadedW", "loadedR"}, tx.AccountKeys)
	require.Len(t, tx.Instructions, 1)
	assert.Equal(t, []byte{9, 9}, tx.Instructions[0].Data)
}

func TestNormalize_ByteArrayInstructionData(t *testing.T) {
	raw := []byte(`{
		"slot": 1,
		"transaction": {
			"message": {
				"accountKeys": ["k"],
				"instructions": [{"programIdIndex": 0, "data": [7, 8, 9]}]
			}
		}
	}`)

	tx, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, tx.Instructions, 1)
	assert.Equal(t, []byte{7, 8, 9}, tx.Instructions[0].Data)
}

func TestNormalize_UnknownDataType(t *testing.T) {
	raw := []byte(`{
		"slot": 1,
		"transaction": {
			"message": {
				"accountKeys": ["k"],
				"instructions": [{"programIdIndex": 0, "data": {"data": "xx", "type": "hex"}}]
			}
		}
	}`)

	_, err := Normalize(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown instruction data type")
}

func TestNormalize_InvalidJSON(t *testing.T) {
	_, err := Normalize([]byte(`{`))
	require.Error(t, err)
}
