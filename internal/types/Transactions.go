/*

This file contains the types describing submitted transactions and their outcomes.

*/

package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Action names a mutating operation.
type Action string

const (
	ActionCreateFund Action = "CREATE_FUND"
	ActionApprove    Action = "APPROVE"
	ActionDeposit    Action = "DEPOSIT"
	ActionRedeem     Action = "REDEEM"
)

// Broadcast is returned as soon as a transaction has been accepted by the node.
type Broadcast struct {
	ID          string         `json:"id"`
	Action      Action         `json:"action"`
	Hash        common.Hash    `json:"tx_hash"`
	From        common.Address `json:"from"`
	To          common.Address `json:"to"`
	Amount      string         `json:"amount,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
	ExplorerURL string         `json:"explorer_url,omitempty"`

	// Input is the call data, kept to replay the call when it reverts.
	Input []byte `json:"-"`
}

// OutcomeStatus is the final state of a broadcast transaction.
type OutcomeStatus string

const (
	OutcomeConfirmed OutcomeStatus = "CONFIRMED"
	OutcomeReverted  OutcomeStatus = "REVERTED"
	OutcomeAbandoned OutcomeStatus = "ABANDONED" // the waiter was cancelled before a receipt arrived
)

// Outcome is the result of waiting for a broadcast transaction.
type Outcome struct {
	Status      OutcomeStatus `json:"status"`
	BlockNumber uint64        `json:"block_number,omitempty"`
	GasUsed     uint64        `json:"gas_used,omitempty"`
	Message     string        `json:"message,omitempty"`
	ResolvedAt  time.Time     `json:"resolved_at"`
	Err         error         `json:"-"`
}
