package rpc

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetSignaturesForAddress returns transaction signatures for an address,
// newest-first. Before/Until bound the page for backfill/forward paging.
func (c *Client) GetSignaturesForAddress(ctx context.Context, address string, opts *GetSignaturesOpts) ([]SignatureInfo, error) {
	config := map[string]interface{}{
		"commitment": commitmentFinalized,
	}
	if opts != nil {
		if opts.Limit > 0 {
			config["limit"] = opts.Limit
		}
		if opts.Before != "" {
			config["before"] = opts.Before
		}
		if opts.Until != "" {
			config["until"] = opts.Until
		}
	}

	params := []interface{}{address, config}
	result, err := c.call(ctx, "getSignaturesForAddress", params)
	if err != nil {
		return nil, fmt.Errorf("getSignaturesForAddress: %w", err)
	}

	var sigs []SignatureInfo
	if err := json.Unmarshal(result, &sigs); err != nil {
		return nil, fmt.Errorf("unmarshal signatures: %w", err)
	}
	return sigs, nil
}

// GetTransaction returns a transaction by signature, or nil when the node no
// longer has it (pruned or not yet finalized).
func (c *Client) GetTransaction(ctx context.Context, signature string) (json.RawMessage, error) {
	result, err := c.call(ctx, "getTransaction", buildGetTransactionParams(signature))
	if err != nil {
		return nil, fmt.Errorf("getTransaction(%s): %w", signature, err)
	}
	if isNullResult(result) {
		return nil, nil
	}
	return result, nil
}

// GetTransactions resolves several signatures in one JSON-RPC batch.
// Missing transactions come back as nil entries.
func (c *Client) GetTransactions(ctx context.Context, signatures []string) ([]json.RawMessage, error) {
	if len(signatures) == 0 {
		return []json.RawMessage{}, nil
	}

	requests := make([]Request, len(signatures))
	for i, signature := range signatures {
		requests[i] = c.newRequest("getTransaction", buildGetTransactionParams(signature))
	}

	responses, err := c.callBatch(ctx, requests)
	if err != nil {
		return nil, fmt.Errorf("getTransaction batch: %w", err)
	}

	results := make([]json.RawMessage, len(signatures))
	for i, response := range responses {
		if response.Error != nil {
			return nil, fmt.Errorf("getTransaction(%s): %w", signatures[i], response.Error)
		}
		if isNullResult(response.Result) {
			continue
		}
		results[i] = response.Result
	}
	return results, nil
}

func buildGetTransactionParams(signature string) []interface{} {
	return []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "json",
			"commitment":                     commitmentFinalized,
			"maxSupportedTransactionVersion": 0,
		},
	}
}

func isNullResult(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
