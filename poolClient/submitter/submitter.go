// Package submitter validates user commands and hands them to the ledger.
package submitter

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	chaincommon "github.com/pushchain/push-pool-client/poolClient/chains/common"
	"github.com/pushchain/push-pool-client/poolClient/errors"
	"github.com/pushchain/push-pool-client/poolClient/ledger"
	"github.com/pushchain/push-pool-client/poolClient/metrics"
	"github.com/pushchain/push-pool-client/poolClient/store"
)

// Submitter turns CommandRequests into contract calls
type Submitter struct {
	ledger     ledger.Ledger
	catalog    Catalog
	chainStore *chaincommon.ChainStore
	metrics    *metrics.PoolMetrics
	chain      string
	logger     zerolog.Logger
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithChainStore persists every accepted command.
func WithChainStore(cs *chaincommon.ChainStore) Option {
	return func(s *Submitter) { s.chainStore = cs }
}

// WithMetrics records command outcomes.
func WithMetrics(m *metrics.PoolMetrics) Option {
	return func(s *Submitter) { s.metrics = m }
}

// WithCatalog replaces the default command catalog.
func WithCatalog(c Catalog) Option {
	return func(s *Submitter) { s.catalog = c }
}

// New creates a submitter over the default catalog.
func New(l ledger.Ledger, chain string, logger zerolog.Logger, opts ...Option) *Submitter {
	s := &Submitter{
		ledger:  l,
		catalog: DefaultCatalog(),
		chain:   chain,
		logger:  logger.With().Str("component", "submitter").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Commands returns the catalog ordered by target slot.
func (s *Submitter) Commands() []Command {
	out := make([]Command, 0, len(s.catalog))
	for _, c := range s.catalog {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetSlot < out[j].TargetSlot })
	return out
}

// Validate checks a request against the catalog and returns the method and
// typed arguments. It never touches the ledger.
func (s *Submitter) Validate(req ledger.CommandRequest) (string, []any, error) {
	if req.TargetSlot == "" {
		return "", nil, errors.NewValidationError(s.chain, "target slot is required")
	}
	cmd, ok := s.catalog[req.TargetSlot]
	if !ok {
		return "", nil, errors.NewValidationError(s.chain, fmt.Sprintf("unknown target slot %q", req.TargetSlot))
	}
	args, err := cmd.Encode(req.Parameters)
	if err != nil {
		return "", nil, errors.NewValidationError(s.chain, err.Error()).
			WithContext("target_slot", req.TargetSlot)
	}
	return cmd.Method, args, nil
}

// Submit validates and sends a command. It returns Submitted(requestID) as
// soon as the ledger accepted it; confirmation is tracked separately.
func (s *Submitter) Submit(ctx context.Context, req ledger.CommandRequest) (ledger.CommandOutcome, error) {
	_, outcome, err := s.SubmitWithRef(ctx, req)
	return outcome, err
}

// SubmitWithRef is Submit that also returns the client reference under which
// the command is tracked.
func (s *Submitter) SubmitWithRef(ctx context.Context, req ledger.CommandRequest) (string, ledger.CommandOutcome, error) {
	method, args, err := s.Validate(req)
	if err != nil {
		s.metrics.RecordCommand(req.TargetSlot, "invalid")
		return "", ledger.CommandOutcome{}, err
	}

	ref := uuid.NewString()
	log := s.logger.With().
		Str("ref", ref).
		Str("target_slot", req.TargetSlot).
		Str("method", method).
		Logger()

	requestID, err := s.ledger.SubmitCommand(ctx, method, args...)
	if err != nil {
		err = asSubmissionFailure(s.chain, err)
		log.Warn().Err(err).Msg("command rejected")
		s.metrics.RecordCommand(req.TargetSlot, "failed")
		s.persist(log, &store.Command{
			Ref:        ref,
			TargetSlot: req.TargetSlot,
			Method:     method,
			Parameters: encodeParams(req.Parameters),
			Status:     store.CommandStatusFailed,
			ErrorMsg:   err.Error(),
		})
		return ref, ledger.CommandOutcome{}, err
	}

	log.Info().Str("request_id", requestID).Msg("command submitted")
	s.metrics.RecordCommand(req.TargetSlot, "submitted")
	s.persist(log, &store.Command{
		Ref:        ref,
		TargetSlot: req.TargetSlot,
		Method:     method,
		Parameters: encodeParams(req.Parameters),
		TxHash:     requestID,
		Status:     store.CommandStatusSubmitted,
	})
	return ref, ledger.Submitted(requestID), nil
}

// Status returns the tracked outcome of a command by reference.
func (s *Submitter) Status(ref string) (*store.Command, ledger.CommandOutcome, error) {
	if s.chainStore == nil {
		return nil, ledger.CommandOutcome{}, errors.NewInternalError(s.chain, "command tracking is disabled", nil)
	}
	cmd, err := s.chainStore.GetCommand(ref)
	if err != nil {
		return nil, ledger.CommandOutcome{}, errors.NewDatabaseError(s.chain, "failed to load command", err)
	}
	if cmd == nil {
		return nil, ledger.CommandOutcome{}, nil
	}
	return cmd, OutcomeOf(cmd), nil
}

// OutcomeOf maps a stored command to its outcome.
func OutcomeOf(cmd *store.Command) ledger.CommandOutcome {
	switch cmd.Status {
	case store.CommandStatusConfirmed:
		out := ledger.Confirmed(cmd.BlockHeight)
		out.RequestID = cmd.TxHash
		return out
	case store.CommandStatusFailed:
		out := ledger.Failed(cmd.ErrorMsg)
		out.RequestID = cmd.TxHash
		return out
	default:
		return ledger.Submitted(cmd.TxHash)
	}
}

func (s *Submitter) persist(log zerolog.Logger, cmd *store.Command) {
	if s.chainStore == nil {
		return
	}
	if err := s.chainStore.InsertCommand(cmd); err != nil {
		log.Error().Err(err).Msg("failed to persist command")
	}
}

// asSubmissionFailure keeps validation and submission errors as they are and
// reports anything else that stopped the broadcast as a submission failure.
func asSubmissionFailure(chain string, err error) error {
	if errors.IsValidation(err) || errors.IsSubmission(err) {
		return err
	}
	return errors.NewSubmissionError(chain, "command was not accepted by the ledger", err)
}

func encodeParams(params []any) []byte {
	b, err := json.Marshal(params)
	if err != nil {
		return nil
	}
	return b
}
