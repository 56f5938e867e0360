package indexing

import (
	"context"
	"encoding/json"

	"github.com/Porostik/dln-dashboard/internal/chain/rpcpolicy"
	"github.com/Porostik/dln-dashboard/internal/chain/solana/rpc"
)

// Client runs every RPC call through the shared policy so all sources share
// the same per-class concurrency gates and retry behavior.
type Client struct {
	rpc    *rpc.Client
	policy *rpcpolicy.Policy
}

func NewClient(rpcClient *rpc.Client, policy *rpcpolicy.Policy) *Client {
	return &Client{rpc: rpcClient, policy: policy}
}

func (c *Client) GetSignatures(ctx context.Context, address string, opts *rpc.GetSignaturesOpts) ([]rpc.SignatureInfo, error) {
	var sigs []rpc.SignatureInfo
	err := c.policy.Run(ctx, rpcpolicy.MethodSignatures, func(ctx context.Context) error {
		var err error
		sigs, err = c.rpc.GetSignaturesForAddress(ctx, address, opts)
		return err
	})
	return sigs, err
}

func (c *Client) GetTransaction(ctx context.Context, signature string) (json.RawMessage, error) {
	var tx json.RawMessage
	err := c.policy.Run(ctx, rpcpolicy.MethodTransaction, func(ctx context.Context) error {
		var err error
		tx, err = c.rpc.GetTransaction(ctx, signature)
		return err
	})
	return tx, err
}

func (c *Client) GetTransactions(ctx context.Context, signatures []string) ([]json.RawMessage, error) {
	var txs []json.RawMessage
	err := c.policy.Run(ctx, rpcpolicy.MethodTransactionBatch, func(ctx context.Context) error {
		var err error
		txs, err = c.rpc.GetTransactions(ctx, signatures)
		return err
	})
	return txs, err
}
