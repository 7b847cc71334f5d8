// Package safeapi declares the contract this engine expects from a Safe
// Transaction Service indexer and a sanctions-screening provider. No
// concrete implementation ships here — spec.md's Non-goals exclude
// third-party indexer/RPC/sanctions clients. The worker's tests fake
// only its Notifier; no test implements these interfaces.
package safeapi

import (
	"context"
	"math/big"

	"github.com/rawblock/safe-monitor/internal/assessment"
	"github.com/rawblock/safe-monitor/internal/engine"
)

// SafeTransaction is one transaction as the indexer reports it,
// including execution/confirmation metadata the rule engine's
// TransactionContext doesn't carry (that context is the narrower view
// conditions evaluate against; this is the full indexer row).
type SafeTransaction struct {
	SafeTxHash          string
	To                  string
	Value               *string
	Data                *string
	DataDecoded         *engine.DataDecodedContext
	Operation           *uint8
	SafeTxGas           *string
	BaseGas             *string
	GasPrice            *string
	GasToken            *string
	RefundReceiver      *string
	Nonce               uint64
	IsExecuted          *bool
	IsSuccessful        *bool
	SubmissionDate      *string
	ExecutionDate       *string
	Executor            *string
	Confirmations       int
	ConfirmationsRequired int
	Signatures          *string
	Trusted             *bool
	Origin              *string
}

// ToContext narrows a SafeTransaction down to the fields the rule
// engine evaluates conditions against, stamping in the chain ID and
// Safe version the worker resolved separately.
func (t SafeTransaction) ToContext(safeAddress string, chainID uint64, safeVersion string) *engine.TransactionContext {
	nonce := t.Nonce
	hash := t.SafeTxHash
	return &engine.TransactionContext{
		To:             t.To,
		Value:          t.Value,
		Data:           t.Data,
		DataDecoded:    t.DataDecoded,
		Operation:      t.Operation,
		GasToken:       t.GasToken,
		SafeTxGas:      t.SafeTxGas,
		BaseGas:        t.BaseGas,
		GasPrice:       t.GasPrice,
		RefundReceiver: t.RefundReceiver,
		Nonce:          &nonce,
		SafeTxHash:     &hash,
		Trusted:        t.Trusted,
		ChainID:        &chainID,
		SafeVersion:    &safeVersion,
		SafeAddress:    &safeAddress,
	}
}

// SafeInfo is a Safe's on-chain configuration as the indexer reports
// it — the input to the Assessment Engine.
type SafeInfo struct {
	Address         string
	Nonce           uint64
	Threshold       uint32
	Owners          []string
	MasterCopy      *string
	Modules         []string
	FallbackHandler *string
	Guard           *string
	Version         *string
}

// SafeAPIClient is the indexer contract the Monitor Worker polls.
type SafeAPIClient interface {
	FetchTransactions(ctx context.Context, safeAddress, network string, limit int) ([]SafeTransaction, error)
	FetchSafeInfo(ctx context.Context, safeAddress, network string) (SafeInfo, error)
	FetchChainID(ctx context.Context, network string) (*big.Int, error)
}

// SanctionsClient is the sanctions-screening contract.
type SanctionsClient interface {
	CheckAddresses(ctx context.Context, addresses []string) (assessment.SanctionsResults, error)
}
