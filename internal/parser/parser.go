package parser

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/Porostik/dln-dashboard/internal/domain/model"
)

// SolMint is the sentinel mint id used when an offer carries the all-zero
// native token address.
const SolMint = "So11111111111111111111111111111111111111112"

const (
	ixNameCreateOrder          = "CreateOrder"
	ixNameCreateOrderWithNonce = "CreateOrderWithNonce"
	ixNameFulfillOrder         = "FulfillOrder"
)

// Event is one decoded order action. Amount is kept as a big integer since
// cross-chain offer amounts are 256-bit values.
type Event struct {
	Type      model.EventType
	OrderID   string
	TokenMint string
	Amount    *big.Int
}

// Parser decodes order instructions of the two watched programs. It is a
// pure decoder with no I/O.
type Parser struct {
	srcProgramID string
	dstProgramID string
	dstChainID   uint64
}

func New(srcProgramID, dstProgramID string, dstChainID uint64) *Parser {
	return &Parser{
		srcProgramID: srcProgramID,
		dstProgramID: dstProgramID,
		dstChainID:   dstChainID,
	}
}

type logFrame struct {
	programID string
	lines     []string
}

type instructionLog struct {
	programID   string
	instruction string
	programData [][]byte
}

// ParseTx extracts order events from one transaction. Decode problems are
// scoped to the offending instruction; the rest of the transaction still
// yields events.
func (p *Parser) ParseTx(tx *NormalizedTx) []Event {
	if tx == nil || len(tx.LogMessages) == 0 {
		return nil
	}

	watched := []string{p.srcProgramID, p.dstProgramID}

	var relevant []NormalizedInstruction
	for _, ix := range tx.Instructions {
		if isRelevantInstruction(ix.Data) {
			relevant = append(relevant, ix)
		}
	}
	if len(relevant) == 0 {
		return nil
	}

	frames := collectProgramLogs(tx.LogMessages, watched)
	ixLogs := parseInstructionLogs(frames)
	if len(ixLogs) == 0 {
		return nil
	}

	var events []Event
	logCursor := 0

	for _, ix := range relevant {
		if ix.ProgramIDIndex < 0 || ix.ProgramIDIndex >= len(tx.AccountKeys) {
			continue
		}
		programID := tx.AccountKeys[ix.ProgramIDIndex]
		if programID != p.srcProgramID && programID != p.dstProgramID {
			continue
		}

		picked, nextIdx := takeNextInstructionLog(ixLogs, logCursor, programID)
		if picked == nil {
			continue
		}
		logCursor = nextIdx

		switch picked.instruction {
		case ixNameCreateOrder, ixNameCreateOrderWithNonce:
			if ev, ok := p.parseCreate(ix.Data, picked.programData); ok {
				events = append(events, ev)
			}
		case ixNameFulfillOrder:
			if ev, ok := p.parseFulfill(ix.Data); ok {
				events = append(events, ev)
			}
		}
	}

	return events
}

// collectProgramLogs groups raw log lines into per-invocation frames bounded
// by "Program <id> invoke" and "Program <id> success" markers.
func collectProgramLogs(logs []string, programIDs []string) []logFrame {
	var frames []logFrame
	current := -1

	for _, line := range logs {
		for _, pid := range programIDs {
			if strings.HasPrefix(line, "Program "+pid+" invoke") {
				frames = append(frames, logFrame{programID: pid})
				current = len(frames) - 1
				break
			}
		}

		if current >= 0 {
			frames[current].lines = append(frames[current].lines, line)
			if strings.HasPrefix(line, "Program "+frames[current].programID+" success") {
				current = -1
			}
		}
	}

	return frames
}

// parseInstructionLogs splits each frame on "Program log: Instruction: X"
// markers and attaches every "Program data: <b64>" payload to the
// instruction it follows.
func parseInstructionLogs(frames []logFrame) []instructionLog {
	var result []instructionLog

	for _, frame := range frames {
		var current *instructionLog

		for _, line := range frame.lines {
			if name, ok := strings.CutPrefix(line, "Program log: Instruction: "); ok {
				if current != nil {
					result = append(result, *current)
				}
				current = &instructionLog{
					programID:   frame.programID,
					instruction: name,
				}
				continue
			}

			if encoded, ok := strings.CutPrefix(line, "Program data: "); ok && current != nil {
				decoded, err := base64.StdEncoding.DecodeString(encoded)
				if err != nil {
					continue
				}
				current.programData = append(current.programData, decoded)
			}
		}

		if current != nil {
			result = append(result, *current)
		}
	}

	return result
}

// takeNextInstructionLog advances a forward-only cursor over the parsed
// instruction logs so each log frame pairs with at most one instruction.
func takeNextInstructionLog(ixLogs []instructionLog, fromIdx int, programID string) (*instructionLog, int) {
	for i := fromIdx; i < len(ixLogs); i++ {
		l := ixLogs[i]
		if l.programID != programID {
			continue
		}
		switch l.instruction {
		case ixNameCreateOrder, ixNameCreateOrderWithNonce, ixNameFulfillOrder:
			return &ixLogs[i], i + 1
		}
	}
	return nil, fromIdx
}

func (p *Parser) parseCreate(ixData []byte, programData [][]byte) (Event, bool) {
	orderID, ok := parseCreatedOrderIDEvent(programData)
	if !ok {
		return Event{}, false
	}
	tokenMint, ok := parseCreatedOrderEvent(programData)
	if !ok {
		return Event{}, false
	}

	r := newByteReader(ixData, 8)
	amount, err := r.u64()
	if err != nil {
		return Event{}, false
	}

	return Event{
		Type:      model.EventCreate,
		OrderID:   orderID,
		TokenMint: tokenMint,
		Amount:    new(big.Int).SetUint64(amount),
	}, true
}

type offer struct {
	chainID      []byte
	tokenAddress []byte
	amount       []byte
}

func readOffer(r *byteReader) (offer, error) {
	chainID, err := r.fixed(32)
	if err != nil {
		return offer{}, err
	}
	tokenAddress, err := r.bytes()
	if err != nil {
		return offer{}, err
	}
	amount, err := r.fixed(32)
	if err != nil {
		return offer{}, err
	}
	return offer{chainID: chainID, tokenAddress: tokenAddress, amount: amount}, nil
}

func (p *Parser) parseFulfill(ixData []byte) (Event, bool) {
	r := newByteReader(ixData, 8)

	// order nonce
	if _, err := r.u64(); err != nil {
		return Event{}, false
	}
	// maker address
	if _, err := r.bytes(); err != nil {
		return Event{}, false
	}
	// give offer
	if _, err := readOffer(r); err != nil {
		return Event{}, false
	}

	takeOffer, err := readOffer(r)
	if err != nil {
		return Event{}, false
	}

	chainID := new(big.Int).SetBytes(takeOffer.chainID)
	if !chainID.IsUint64() || chainID.Uint64() != p.dstChainID {
		return Event{}, false
	}

	skipBytes := func() error {
		_, err := r.bytes()
		return err
	}
	// receiver, give patch authority, order authority
	for i := 0; i < 3; i++ {
		if err := skipBytes(); err != nil {
			return Event{}, false
		}
	}
	// allowed taker, allowed cancel beneficiary
	for i := 0; i < 2; i++ {
		if err := r.option(skipBytes); err != nil {
			return Event{}, false
		}
	}
	// external call shortcut
	if err := r.option(func() error {
		_, err := r.fixed(32)
		return err
	}); err != nil {
		return Event{}, false
	}

	orderIDBytes, err := r.fixed(32)
	if err != nil {
		return Event{}, false
	}

	tokenMint, ok := resolveTokenMint(takeOffer.tokenAddress)
	if !ok {
		return Event{}, false
	}

	return Event{
		Type:      model.EventFulfill,
		OrderID:   hex.EncodeToString(orderIDBytes),
		TokenMint: tokenMint,
		Amount:    new(big.Int).SetBytes(takeOffer.amount),
	}, true
}

// parseCreatedOrderIDEvent scans emitted event payloads for the
// CreatedOrderId record and returns its hex-encoded 32-byte order id.
func parseCreatedOrderIDEvent(programData [][]byte) (string, bool) {
	for _, payload := range programData {
		if len(payload) < 8+32 {
			continue
		}
		if !bytes.Equal(payload[:8], discCreatedOrderIDEvent) {
			continue
		}
		return hex.EncodeToString(payload[8 : 8+32]), true
	}
	return "", false
}

// parseCreatedOrderEvent scans for the CreatedOrder record and resolves the
// give offer's token mint.
func parseCreatedOrderEvent(programData [][]byte) (string, bool) {
	for _, payload := range programData {
		if len(payload) < 8+32 {
			continue
		}
		if !bytes.Equal(payload[:8], discCreatedOrderEvent) {
			continue
		}

		r := newByteReader(payload, 8)
		// maker order nonce
		if _, err := r.u64(); err != nil {
			return "", false
		}
		// maker source address
		if _, err := r.bytes(); err != nil {
			return "", false
		}
		giveOffer, err := readOffer(r)
		if err != nil {
			return "", false
		}
		return resolveTokenMint(giveOffer.tokenAddress)
	}
	return "", false
}

// resolveTokenMint maps an offer token address to a mint id. The all-zero
// address means the native token; 32-byte addresses base58-encode; anything
// else is unparseable.
func resolveTokenMint(tokenAddress []byte) (string, bool) {
	if isAllZero(tokenAddress) {
		return SolMint, true
	}
	if len(tokenAddress) != 32 {
		return "", false
	}
	return base58.Encode(tokenAddress), true
}

func isAllZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}
