package parser

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Porostik/dln-dashboard/internal/domain/model"
)

const (
	testSrcProgram = "src11111111111111111111111111111111111111111"
	testDstProgram = "dst11111111111111111111111111111111111111111"
	testDstChainID = 7565164
)

func newTestParser() *Parser {
	return New(testSrcProgram, testDstProgram, testDstChainID)
}

func writeU64LE(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeBytes(buf *bytes.Buffer, data []byte) {
	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(data)))
	buf.Write(l[:])
	buf.Write(data)
}

func writeU256BE(buf *bytes.Buffer, v uint64) {
	b := make([]byte, 32)
	new(big.Int).SetUint64(v).FillBytes(b)
	buf.Write(b)
}

func writeOffer(buf *bytes.Buffer, chainID uint64, token []byte, amount uint64) {
	writeU256BE(buf, chainID)
	writeBytes(buf, token)
	writeU256BE(buf, amount)
}

func createdOrderIDEvent(orderID []byte) []byte {
	var buf bytes.Buffer
	buf.Write(anchorDiscriminator("event", "CreatedOrderId"))
	buf.Write(orderID)
	return buf.Bytes()
}

func createdOrderEvent(giveToken []byte) []byte {
	var buf bytes.Buffer
	buf.Write(anchorDiscriminator("event", "CreatedOrder"))
	writeU64LE(&buf, 42) // maker order nonce
	writeBytes(&buf, make([]byte, 32))
	writeOffer(&buf, 1, giveToken, 500)
	return buf.Bytes()
}

func createIxData(amount uint64) []byte {
	return createIxDataNamed("create_order", amount)
}

func createIxDataNamed(ixName string, amount uint64) []byte {
	var buf bytes.Buffer
	buf.Write(anchorDiscriminator("global", ixName))
	writeU64LE(&buf, amount)
	return buf.Bytes()
}

func fulfillIxData(takeChainID uint64, takeToken []byte, takeAmount uint64, orderID []byte) []byte {
	var buf bytes.Buffer
	buf.Write(anchorDiscriminator("global", "fulfill_order"))
	writeU64LE(&buf, 7) // order nonce
	writeBytes(&buf, make([]byte, 32))
	writeOffer(&buf, 1, make([]byte, 32), 100) // give offer
	writeOffer(&buf, takeChainID, takeToken, takeAmount)
	writeBytes(&buf, make([]byte, 32)) // receiver
	writeBytes(&buf, make([]byte, 32)) // give patch authority
	writeBytes(&buf, make([]byte, 32)) // order authority
	buf.WriteByte(0)                   // allowed taker: none
	buf.WriteByte(0)                   // allowed cancel beneficiary: none
	buf.WriteByte(0)                   // external call: none
	buf.Write(orderID)
	return buf.Bytes()
}

func programLogs(programID, ixName string, eventPayloads ...[]byte) []string {
	logs := []string{
		fmt.Sprintf("Program %s invoke [1]", programID),
		"Program log: Instruction: " + ixName,
	}
	for _, payload := range eventPayloads {
		logs = append(logs, "Program data: "+base64.StdEncoding.EncodeToString(payload))
	}
	logs = append(logs, fmt.Sprintf("Program %s success", programID))
	return logs
}

func TestParseTx_CreateWithZeroTokenAddress(t *testing.T) {
	orderID := bytes.Repeat([]byte{0xAB}, 32)

	tx := &NormalizedTx{
		AccountKeys: []string{"feePayer", testSrcProgram},
		Instructions: []NormalizedInstruction{
			{ProgramIDIndex: 1, Data: createIxData(1_000_000)},
		},
		LogMessages: programLogs(testSrcProgram, "CreateOrder",
			createdOrderIDEvent(orderID),
			createdOrderEvent(make([]byte, 32)),
		),
	}

	events := newTestParser().ParseTx(tx)

	require.Len(t, events, 1)
	assert.Equal(t, model.EventCreate, events[0].Type)
	assert.Equal(t, hex.EncodeToString(orderID), events[0].OrderID)
	assert.Equal(t, SolMint, events[0].TokenMint)
	assert.Equal(t, uint64(1_000_000), events[0].Amount.Uint64())
}

func TestParseTx_CreateWithSPLToken(t *testing.T) {
	token := bytes.Repeat([]byte{0x02}, 32)
	orderID := bytes.Repeat([]byte{0x01}, 32)

	tx := &NormalizedTx{
		AccountKeys: []string{"feePayer", testSrcProgram},
		Instructions: []NormalizedInstruction{
			{ProgramIDIndex: 1, Data: createIxDataNamed("create_order_with_nonce", 5)},
		},
		LogMessages: programLogs(testSrcProgram, "CreateOrderWithNonce",
			createdOrderIDEvent(orderID),
			createdOrderEvent(token),
		),
	}

	events := newTestParser().ParseTx(tx)

	require.Len(t, events, 1)
	assert.Equal(t, base58.Encode(token), events[0].TokenMint)
}

func TestParseTx_CreateMissingOrderIDEvent(t *testing.T) {
	tx := &NormalizedTx{
		AccountKeys: []string{"feePayer", testSrcProgram},
		Instructions: []NormalizedInstruction{
			{ProgramIDIndex: 1, Data: createIxData(1)},
		},
		LogMessages: programLogs(testSrcProgram, "CreateOrder",
			createdOrderEvent(make([]byte, 32)),
		),
	}

	assert.Empty(t, newTestParser().ParseTx(tx))
}

func TestParseTx_Fulfill(t *testing.T) {
	token := bytes.Repeat([]byte{0x03}, 32)
	orderID := bytes.Repeat([]byte{0xCD}, 32)

	tx := &NormalizedTx{
		AccountKeys: []string{"feePayer", testDstProgram},
		Instructions: []NormalizedInstruction{
			{ProgramIDIndex: 1, Data: fulfillIxData(testDstChainID, token, 777, orderID)},
		},
		LogMessages: programLogs(testDstProgram, "FulfillOrder"),
	}

	events := newTestParser().ParseTx(tx)

	require.Len(t, events, 1)
	assert.Equal(t, model.EventFulfill, events[0].Type)
	assert.Equal(t, hex.EncodeToString(orderID), events[0].OrderID)
	assert.Equal(t, base58.Encode(token), events[0].TokenMint)
	assert.Equal(t, uint64(777), events[0].Amount.Uint64())
}

func TestParseTx_FulfillWrongChainDiscarded(t *testing.T) {
	tx := &NormalizedTx{
		AccountKeys: []string{"feePayer", testDstProgram},
		Instructions: []NormalizedInstruction{
			{ProgramIDIndex: 1, Data: fulfillIxData(1, make([]byte, 32), 777, make([]byte, 32))},
		},
		LogMessages: programLogs(testDstProgram, "FulfillOrder"),
	}

	assert.Empty(t, newTestParser().ParseTx(tx))
}

func TestParseTx_UnparseableTokenLengthDiscardsInstruction(t *testing.T) {
	badToken := bytes.Repeat([]byte{0x04}, 20)

	tx := &NormalizedTx{
		AccountKeys: []string{"feePayer", testDstProgram},
		Instructions: []NormalizedInstruction{
			{ProgramIDIndex: 1, Data: fulfillIxData(testDstChainID, badToken, 777, make([]byte, 32))},
		},
		LogMessages: programLogs(testDstProgram, "FulfillOrder"),
	}

	assert.Empty(t, newTestParser().ParseTx(tx))
}

func TestParseTx_IgnoresUnwatchedProgram(t *testing.T) {
	other := "other111111111111111111111111111111111111111"

	tx := &NormalizedTx{
		AccountKeys: []string{"feePayer", other},
		Instructions: []NormalizedInstruction{
			{ProgramIDIndex: 1, Data: createIxData(1)},
		},
		LogMessages: programLogs(other, "CreateOrder",
			createdOrderIDEvent(make([]byte, 32)),
			createdOrderEvent(make([]byte, 32)),
		),
	}

	assert.Empty(t, newTestParser().ParseTx(tx))
}

func TestParseTx_TruncatedFulfillDiscarded(t *testing.T) {
	full := fulfillIxData(testDstChainID, make([]byte, 32), 777, make([]byte, 32))

	tx := &NormalizedTx{
		AccountKeys: []string{"feePayer", testDstProgram},
		Instructions: []NormalizedInstruction{
			{ProgramIDIndex: 1, Data: full[:len(full)-16]},
		},
		LogMessages: programLogs(testDstProgram, "FulfillOrder"),
	}

	assert.Empty(t, newTestParser().ParseTx(tx))
}

func TestParseTx_PairsInstructionsInOrder(t *testing.T) {
	orderID1 := bytes.Repeat([]byte{0x11}, 32)
	orderID2 := bytes.Repeat([]byte{0x22}, 32)

	logs := programLogs(testSrcProgram, "CreateOrder",
		createdOrderIDEvent(orderID1),
		createdOrderEvent(make([]byte, 32)),
	)
	logs = append(logs, programLogs(testSrcProgram, "CreateOrder",
		createdOrderIDEvent(orderID2),
		createdOrderEvent(make([]byte, 32)),
	)...)

	tx := &NormalizedTx{
		AccountKeys: []string{"feePayer", testSrcProgram},
		Instructions: []NormalizedInstruction{
			{ProgramIDIndex: 1, Data: createIxData(10)},
			{ProgramIDIndex: 1, Data: createIxData(20)},
		},
		LogMessages: logs,
	}

	events := newTestParser().ParseTx(tx)

	require.Len(t, events, 2)
	assert.Equal(t, hex.EncodeToString(orderID1), events[0].OrderID)
	assert.Equal(t, uint64(10), events[0].Amount.Uint64())
	assert.Equal(t, hex.EncodeToString(orderID2), events[1].OrderID)
	assert.Equal(t, uint64(20), events[1].Amount.Uint64())
}

func TestParseTx_NoLogsNoEvents(t *testing.T) {
	tx := &NormalizedTx{
		AccountKeys: []string{"feePayer", testSrcProgram},
		Instructions: []NormalizedInstruction{
			{ProgramIDIndex: 1, Data: createIxData(1)},
		},
	}
	assert.Empty(t, newTestParser().ParseTx(tx))
}
