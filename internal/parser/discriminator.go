package parser

import (
	"bytes"
	"crypto/sha256"
)

// Anchor tags instructions and events with the first 8 bytes of
// sha256("<prefix>:<name>").
func anchorDiscriminator(prefix, name string) []byte {
	sum := sha256.Sum256([]byte(prefix + ":" + name))
	return sum[:8]
}

var (
	discCreateOrder          = anchorDiscriminator("global", "create_order")
	discCreateOrderWithNonce = anchorDiscriminator("global", "create_order_with_nonce")
	discFulfillOrder         = anchorDiscriminator("global", "fulfill_order")

	discCreatedOrderIDEvent = anchorDiscriminator("event", "CreatedOrderId")
	discCreatedOrderEvent   = anchorDiscriminator("event", "CreatedOrder")

	instructionDiscriminators = [][]byte{
		discCreateOrder,
		discCreateOrderWithNonce,
		discFulfillOrder,
	}
)

func isRelevantInstruction(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	for _, disc := range instructionDiscriminators {
		if bytes.Equal(data[:8], disc) {
			return true
		}
	}
	return false
}
