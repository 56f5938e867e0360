package parser

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
)

// NormalizedTx is the one canonical transaction shape the decoder works on.
// Upstream nodes emit account keys and instructions under several layouts
// depending on version; all of that variance is absorbed here.
type NormalizedTx struct {
	Slot         int64
	BlockTime    *int64
	AccountKeys  []string
	Instructions []NormalizedInstruction
	LogMessages  []string
}

type NormalizedInstruction struct {
	ProgramIDIndex int
	Data           []byte
}

type rawTx struct {
	Slot        int64  `json:"slot"`
	BlockTime   *int64 `json:"blockTime"`
	Transaction struct {
		Message rawMessage `json:"message"`
	} `json:"transaction"`
	Meta *struct {
		LogMessages     []string `json:"logMessages"`
		LoadedAddresses *struct {
			Writable []accountKey `json:"writable"`
			Readonly []accountKey `json:"readonly"`
		} `json:"loadedAddresses"`
	} `json:"meta"`
}

type rawMessage struct {
	StaticAccountKeys    []accountKey     `json:"staticAccountKeys"`
	AccountKeys          []accountKey     `json:"accountKeys"`
	CompiledInstructions []rawInstruction `json:"compiledInstructions"`
	Instructions         []rawInstruction `json:"instructions"`
}

type rawInstruction struct {
	ProgramIDIndex int    `json:"programIdIndex"`
	Data           ixData `json:"data"`
}

// accountKey accepts both a plain base58 string and a {"pubkey": ...} object.
type accountKey string

func (k *accountKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*k = accountKey(s)
		return nil
	}
	var obj struct {
		Pubkey string `json:"pubkey"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("account key: %w", err)
	}
	*k = accountKey(obj.Pubkey)
	return nil
}

// ixData accepts instruction data as a base58 string, a raw byte array, or a
// tagged {"data": ..., "type": "base64"|"base58"} object.
type ixData []byte

func (d *ixData) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		decoded, err := base58.Decode(s)
		if err != nil {
			return fmt.Errorf("instruction data base58: %w", err)
		}
		*d = decoded
		return nil
	}

	var ints []int
	if err := json.Unmarshal(data, &ints); err == nil {
		buf := make([]byte, len(ints))
		for i, v := range ints {
			buf[i] = byte(v)
		}
		*d = buf
		return nil
	}

	var obj struct {
		Data string `json:"data"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("instruction data: %w", err)
	}
	switch obj.Type {
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(obj.Data)
		if err != nil {
			return fmt.Errorf("instruction data base64: %w", err)
		}
		*d = decoded
		return nil
	case "base58":
		decoded, err := base58.Decode(obj.Data)
		if err != nil {
			return fmt.Errorf("instruction data base58: %w", err)
		}
		*d = decoded
		return nil
	default:
		return fmt.Errorf("unknown instruction data type %q", obj.Type)
	}
}

// Normalize decodes a raw getTransaction payload into the canonical form.
func Normalize(raw json.RawMessage) (*NormalizedTx, error) {
	var tx rawTx
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, fmt.Errorf("normalize transaction: %w", err)
	}

	msg := tx.Transaction.Message

	keys := msg.StaticAccountKeys
	if len(keys) == 0 {
		keys = msg.AccountKeys
	}
	accountKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		accountKeys = append(accountKeys, string(k))
	}
	if tx.Meta != nil && tx.Meta.LoadedAddresses != nil {
		for _, k := range tx.Meta.LoadedAddresses.Writable {
			accountKeys = append(accountKeys, string(k))
		}
		for _, k := range tx.Meta.LoadedAddresses.Readonly {
			accountKeys = append(accountKeys, string(k))
		}
	}

	rawIxs := msg.CompiledInstructions
	if len(rawIxs) == 0 {
		rawIxs = msg.Instructions
	}
	instructions := make([]NormalizedInstruction, 0, len(rawIxs))
	for _, ix := range rawIxs {
		instructions = append(instructions, NormalizedInstruction{
			ProgramIDIndex: ix.ProgramIDIndex,
			Data:           ix.Data,
		})
	}

	var logs []string
	if tx.Meta != nil {
		logs = tx.Meta.LogMessages
	}

	return &NormalizedTx{
		Slot:         tx.Slot,
		BlockTime:    tx.BlockTime,
		AccountKeys:  accountKeys,
		Instructions: instructions,
		LogMessages:  logs,
	}, nil
}
