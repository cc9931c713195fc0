package evm

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/pushchain/push-pool-client/poolClient/errors"
)

// isNodeRejection reports whether the node answered with a JSON-RPC error,
// as opposed to the request never reaching it.
func isNodeRejection(err error) bool {
	var rpcErr rpc.Error
	return stderrors.As(err, &rpcErr)
}

// classifyRead maps a failed read to the transient network family.
func classifyRead(chain, operation string, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewTimeoutError(chain, operation+" timed out").WithContext("cause", err.Error())
	}
	if isNodeRejection(err) {
		return errors.NewRPCError(chain, operation+" rejected by node", err)
	}
	return errors.NewNetworkError(chain, operation+" failed", err)
}

// classifySubmit maps a failed broadcast. A node answer is a submission
// failure carrying its reason; anything else stays transient.
func classifySubmit(chain string, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) {
		return err
	}
	if isNodeRejection(err) || looksLikeRejection(err) {
		return errors.NewSubmissionError(chain, rejectionReason(err), err)
	}
	return classifyRead(chain, "send transaction", err)
}

var rejectionMarkers = []string{
	"nonce too low",
	"replacement transaction underpriced",
	"insufficient funds",
	"execution reverted",
	"intrinsic gas too low",
	"gas limit",
	"already known",
}

func looksLikeRejection(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, m := range rejectionMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func rejectionReason(err error) string {
	var rpcErr rpc.Error
	if stderrors.As(err, &rpcErr) {
		return rpcErr.Error()
	}
	return err.Error()
}
