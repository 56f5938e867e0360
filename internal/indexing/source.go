package indexing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Porostik/dln-dashboard/internal/chain/solana/rpc"
	"github.com/Porostik/dln-dashboard/internal/domain/model"
	"github.com/Porostik/dln-dashboard/internal/metrics"
	"github.com/Porostik/dln-dashboard/internal/store"
)

type TickStatus string

const (
	// TickProcessed means transactions were persisted and the cursor advanced.
	TickProcessed TickStatus = "processed"
	// TickEmpty means nothing new this tick; retry later from the same position.
	TickEmpty TickStatus = "empty"
	// TickExhausted means a backfill source reached the start of history.
	TickExhausted TickStatus = "exhausted"
	// TickFailed means an RPC or storage error; the cursor did not move.
	TickFailed TickStatus = "failed"
)

type TickResult struct {
	Status    TickStatus
	NewCursor *string
	TxCount   int
}

// SourceConfig bounds one source's page fetching.
type SourceConfig struct {
	ProgramID string
	Mode      model.IndexerMode
	BatchSize int
	// MaxEmptyPages bounds consecutive backfill pages where signatures exist
	// but no transaction resolves, before the cursor is forced forward.
	MaxEmptyPages int
}

// Ledger is the slice of the RPC surface a source needs.
type Ledger interface {
	GetSignatures(ctx context.Context, address string, opts *rpc.GetSignaturesOpts) ([]rpc.SignatureInfo, error)
	GetTransactions(ctx context.Context, signatures []string) ([]json.RawMessage, error)
}

// Source owns one persisted cursor and walks the ledger for one program in
// one mode. Backfill pages older signatures until history is exhausted;
// forward pages newer ones indefinitely.
type Source struct {
	cfg       SourceConfig
	client    Ledger
	states    store.IndexerStateRepository
	ingestion store.IngestionRepository
	logger    *slog.Logger

	state      *model.IndexerState
	emptyPages int
}

func NewSource(cfg SourceConfig, client Ledger, states store.IndexerStateRepository, ingestion store.IngestionRepository, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		cfg:       cfg,
		client:    client,
		states:    states,
		ingestion: ingestion,
		logger: logger.With(
			"component", "source",
			"program", cfg.ProgramID,
			"mode", cfg.Mode,
		),
	}
}

// Init loads or creates the persisted cursor row.
func (s *Source) Init(ctx context.Context) error {
	state, err := s.states.GetOrCreate(ctx, s.cfg.ProgramID, s.cfg.Mode)
	if err != nil {
		return fmt.Errorf("init source %s/%s: %w", s.cfg.ProgramID, s.cfg.Mode, err)
	}
	s.state = state
	if state.IsStopped {
		s.logger.Info("source already exhausted")
	}
	return nil
}

func (s *Source) Stopped() bool {
	return s.state != nil && s.state.IsStopped
}

func (s *Source) ProgramID() string       { return s.cfg.ProgramID }
func (s *Source) Mode() model.IndexerMode { return s.cfg.Mode }

// Tick performs one page fetch. Errors never advance the cursor; the next
// tick retries from the same position.
func (s *Source) Tick(ctx context.Context) TickResult {
	var result TickResult
	var err error

	switch s.cfg.Mode {
	case model.ModeBackfill:
		result, err = s.tickBackfill(ctx)
	case model.ModeForward:
		result, err = s.tickForward(ctx)
	default:
		err = fmt.Errorf("unknown indexer mode %q", s.cfg.Mode)
	}

	if err != nil {
		s.logger.Error("tick failed", "error", err)
		result = TickResult{Status: TickFailed}
	}

	metrics.IndexerTicksTotal.WithLabelValues(s.cfg.ProgramID, string(s.cfg.Mode), string(result.Status)).Inc()
	if result.TxCount > 0 {
		metrics.IndexerTxIngested.WithLabelValues(s.cfg.ProgramID, string(s.cfg.Mode)).Add(float64(result.TxCount))
	}
	return result
}

func (s *Source) tickBackfill(ctx context.Context) (TickResult, error) {
	opts := &rpc.GetSignaturesOpts{Limit: s.cfg.BatchSize}
	if s.state.Cursor != nil {
		opts.Before = *s.state.Cursor
	}

	sigs, err := s.client.GetSignatures(ctx, s.cfg.ProgramID, opts)
	if err != nil {
		return TickResult{}, err
	}

	if len(sigs) == 0 {
		if err := s.states.MarkStopped(ctx, s.state.ID); err != nil {
			return TickResult{}, err
		}
		s.state.IsStopped = true
		s.logger.Info("backfill exhausted", "cursor", cursorValue(s.state.Cursor))
		return TickResult{Status: TickExhausted}, nil
	}

	// Results are newest-first; the oldest signature becomes the new cursor.
	newCursor := sigs[len(sigs)-1].Signature

	txs, err := s.resolveTransactions(ctx, sigs)
	if err != nil {
		return TickResult{}, err
	}

	if len(txs) == 0 {
		s.emptyPages++
		if s.emptyPages < s.cfg.MaxEmptyPages {
			s.logger.Warn("page resolved no transactions",
				"signatures", len(sigs),
				"consecutive_empty", s.emptyPages)
			return TickResult{Status: TickEmpty}, nil
		}
		// Too many consecutive gaps; advance anyway to avoid a permanent stall.
		s.logger.Warn("empty page bound reached, advancing cursor",
			"consecutive_empty", s.emptyPages,
			"new_cursor", newCursor)
	}

	if err := s.ingestion.IngestPage(ctx, s.state.ID, txs, &newCursor); err != nil {
		return TickResult{}, err
	}

	s.state.Cursor = &newCursor
	s.emptyPages = 0
	return TickResult{Status: TickProcessed, NewCursor: &newCursor, TxCount: len(txs)}, nil
}

func (s *Source) tickForward(ctx context.Context) (TickResult, error) {
	opts := &rpc.GetSignaturesOpts{Limit: s.cfg.BatchSize}
	if s.state.Cursor != nil {
		opts.Until = *s.state.Cursor
	}

	sigs, err := s.client.GetSignatures(ctx, s.cfg.ProgramID, opts)
	if err != nil {
		return TickResult{}, err
	}

	if len(sigs) == 0 {
		return TickResult{Status: TickEmpty}, nil
	}

	// Results are newest-first; the newest signature becomes the new cursor.
	newCursor := sigs[0].Signature

	txs, err := s.resolveTransactions(ctx, sigs)
	if err != nil {
		return TickResult{}, err
	}

	// A transient gap: signatures exist but none resolved yet. Hold the
	// cursor so the next tick retries the same page.
	if len(txs) == 0 {
		s.logger.Warn("page resolved no transactions", "signatures", len(sigs))
		return TickResult{Status: TickEmpty}, nil
	}

	if err := s.ingestion.IngestPage(ctx, s.state.ID, txs, &newCursor); err != nil {
		return TickResult{}, err
	}

	s.state.Cursor = &newCursor
	return TickResult{Status: TickProcessed, NewCursor: &newCursor, TxCount: len(txs)}, nil
}

// resolveTransactions fetches full transactions for a signature page.
// Signatures the node no longer has are skipped.
func (s *Source) resolveTransactions(ctx context.Context, sigs []rpc.SignatureInfo) ([]*model.RawTransaction, error) {
	signatures := make([]string, len(sigs))
	for i, sig := range sigs {
		signatures[i] = sig.Signature
	}

	payloads, err := s.client.GetTransactions(ctx, signatures)
	if err != nil {
		return nil, err
	}

	txs := make([]*model.RawTransaction, 0, len(payloads))
	for i, payload := range payloads {
		if payload == nil {
			continue
		}

		slot := sigs[i].Slot
		var blockTime int64
		if sigs[i].BlockTime != nil {
			blockTime = *sigs[i].BlockTime
		}

		var envelope rpc.TransactionEnvelope
		if err := json.Unmarshal(payload, &envelope); err == nil {
			if envelope.Slot > 0 {
				slot = envelope.Slot
			}
			if envelope.BlockTime != nil {
				blockTime = *envelope.BlockTime
			}
		}

		txs = append(txs, &model.RawTransaction{
			Signature: sigs[i].Signature,
			Slot:      slot,
			BlockTime: blockTime,
			TxData:    payload,
		})
	}
	return txs, nil
}

func cursorValue(cursor *string) string {
	if cursor == nil {
		return ""
	}
	return *cursor
}
