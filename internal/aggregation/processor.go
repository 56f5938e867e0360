package aggregation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Porostik/dln-dashboard/internal/domain/model"
	"github.com/Porostik/dln-dashboard/internal/parser"
	"github.com/Porostik/dln-dashboard/internal/price"
	"github.com/Porostik/dln-dashboard/internal/store"
)

// ErrNoEvents means the transaction carries no decodable order activity.
// Jobs failing with it resolve as skipped, not failed.
var ErrNoEvents = errors.New("no order events")

// PriceSource resolves the pinned daily USD quote for a token.
type PriceSource interface {
	GetDailyPriceUsd(ctx context.Context, mint string, day time.Time) (*price.TokenPrice, error)
}

// Processor turns one stored transaction into priced order events.
type Processor struct {
	rawTxs store.RawTransactionRepository
	parser *parser.Parser
	prices PriceSource
}

func NewProcessor(rawTxs store.RawTransactionRepository, txParser *parser.Parser, prices PriceSource) *Processor {
	return &Processor{rawTxs: rawTxs, parser: txParser, prices: prices}
}

// Process loads, decodes and prices one signature. Any price lookup failure
// fails the whole job so stats never mix priced and unpriced events.
func (p *Processor) Process(ctx context.Context, signature string) ([]*model.OrderEvent, error) {
	rawTx, err := p.rawTxs.GetBySignature(ctx, signature)
	if err != nil {
		return nil, err
	}
	if rawTx == nil {
		return nil, fmt.Errorf("raw transaction %s not found", signature)
	}

	tx, err := parser.Normalize(rawTx.TxData)
	if err != nil {
		return nil, err
	}

	blockTime := rawTx.BlockTime
	if blockTime <= 0 && tx.BlockTime != nil {
		blockTime = *tx.BlockTime
	}
	if blockTime <= 0 {
		return nil, fmt.Errorf("transaction %s has no block time", signature)
	}
	day := model.DayFromBlockTime(blockTime)

	parsed := p.parser.ParseTx(tx)
	if len(parsed) == 0 {
		return nil, ErrNoEvents
	}

	events := make([]*model.OrderEvent, 0, len(parsed))
	for _, ev := range parsed {
		quote, err := p.prices.GetDailyPriceUsd(ctx, ev.TokenMint, day)
		if err != nil {
			return nil, fmt.Errorf("price for %s: %w", ev.TokenMint, err)
		}

		amountUSD, err := amountToUSD(ev.Amount.String(), quote)
		if err != nil {
			return nil, fmt.Errorf("amount for %s: %w", ev.TokenMint, err)
		}

		events = append(events, &model.OrderEvent{
			OrderID:   ev.OrderID,
			Type:      ev.Type,
			Signature: signature,
			Slot:      rawTx.Slot,
			BlockTime: blockTime,
			TokenMint: ev.TokenMint,
			AmountUSD: amountUSD,
			Day:       day,
		})
	}
	return events, nil
}

// amountToUSD scales a raw integer amount by the token's decimals and the
// daily USD quote. Decimal arithmetic throughout; float64 only at the quote
// boundary.
func amountToUSD(rawAmount string, quote *price.TokenPrice) (string, error) {
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return "", err
	}
	scaled := amount.Shift(int32(-quote.Decimals))
	usd := scaled.Mul(decimal.NewFromFloat(quote.Price))
	return usd.StringFixed(2), nil
}
