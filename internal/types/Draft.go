/*

This file contains the manager-editable fund configuration draft.

A draft lives only in memory: it is built by the configuration form (or loaded from a YAML file by
the CLI), handed to the lifecycle orchestrator once, and discarded afterwards.

Fees and policies are kept as ordered slices rather than maps. The protocol applies fee modules in
list order, so the order in which the manager enabled them is part of the configuration.

*/

package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FeeKind identifies a fee module.
type FeeKind string

const (
	FeeManagement  FeeKind = "management"
	FeePerformance FeeKind = "performance"
	FeeEntrance    FeeKind = "entrance"
	FeeExit        FeeKind = "exit"
)

// PolicyKind identifies a policy module.
type PolicyKind string

const (
	PolicyDepositorWhitelist     PolicyKind = "depositor_whitelist"
	PolicyDepositLimits          PolicyKind = "deposit_limits"
	PolicyShareTransferWhitelist PolicyKind = "share_transfer_whitelist"
)

// FeeSetting is one fee toggle of the draft. Rate is a percentage in [0, 100].
type FeeSetting struct {
	Kind    FeeKind         `json:"kind" yaml:"kind"`
	Enabled bool            `json:"enabled" yaml:"enabled"`
	Rate    decimal.Decimal `json:"rate" yaml:"rate"`

	// HighWaterMark is only read for the performance fee. Zero means the default of 1.0.
	HighWaterMark decimal.Decimal `json:"high_water_mark,omitempty" yaml:"high_water_mark,omitempty"`
	// Recipient receives the fee shares. Empty means the vault owner.
	Recipient string `json:"recipient,omitempty" yaml:"recipient,omitempty"`
}

// PolicySetting is one policy toggle of the draft.
type PolicySetting struct {
	Kind    PolicyKind `json:"kind" yaml:"kind"`
	Enabled bool       `json:"enabled" yaml:"enabled"`

	// Addresses is free text, one address per line (whitelist policies).
	Addresses string `json:"addresses,omitempty" yaml:"addresses,omitempty"`

	// Min and Max are denomination-asset amounts (deposit limits). Max of zero means unbounded.
	Min decimal.Decimal `json:"min,omitempty" yaml:"min,omitempty"`
	Max decimal.Decimal `json:"max,omitempty" yaml:"max,omitempty"`
}

// FundDraft is the full manager input for a vault deployment.
type FundDraft struct {
	Name              string          `json:"name" yaml:"name"`
	Symbol            string          `json:"symbol" yaml:"symbol"`
	DenominationAsset string          `json:"denomination_asset" yaml:"denomination_asset"`
	Fees              []FeeSetting    `json:"fees,omitempty" yaml:"fees,omitempty"`
	Policies          []PolicySetting `json:"policies,omitempty" yaml:"policies,omitempty"`
}

// EnableFee turns a fee on. Re-enabling an already enabled fee only updates its rate and keeps
// its position; enabling a disabled or unknown fee moves it to the end of the list.
func (d *FundDraft) EnableFee(setting FeeSetting) {
	setting.Enabled = true
	for i, existing := range d.Fees {
		if existing.Kind != setting.Kind {
			continue
		}
		if existing.Enabled {
			d.Fees[i] = setting
			return
		}
		d.Fees = append(d.Fees[:i], d.Fees[i+1:]...)
		break
	}
	d.Fees = append(d.Fees, setting)
}

// DisableFee turns a fee off without forgetting its parameters.
func (d *FundDraft) DisableFee(kind FeeKind) {
	for i := range d.Fees {
		if d.Fees[i].Kind == kind {
			d.Fees[i].Enabled = false
		}
	}
}

// EnablePolicy follows the same ordering rules as EnableFee.
func (d *FundDraft) EnablePolicy(setting PolicySetting) {
	setting.Enabled = true
	for i, existing := range d.Policies {
		if existing.Kind != setting.Kind {
			continue
		}
		if existing.Enabled {
			d.Policies[i] = setting
			return
		}
		d.Policies = append(d.Policies[:i], d.Policies[i+1:]...)
		break
	}
	d.Policies = append(d.Policies, setting)
}

// DisablePolicy turns a policy off without forgetting its parameters.
func (d *FundDraft) DisablePolicy(kind PolicyKind) {
	for i := range d.Policies {
		if d.Policies[i].Kind == kind {
			d.Policies[i].Enabled = false
		}
	}
}

// EnabledFees returns the enabled fees in declaration order.
func (d FundDraft) EnabledFees() []FeeSetting {
	enabled := make([]FeeSetting, 0, len(d.Fees))
	for _, fee := range d.Fees {
		if fee.Enabled {
			enabled = append(enabled, fee)
		}
	}
	return enabled
}

// EnabledPolicies returns the enabled policies in declaration order.
func (d FundDraft) EnabledPolicies() []PolicySetting {
	enabled := make([]PolicySetting, 0, len(d.Policies))
	for _, policy := range d.Policies {
		if policy.Enabled {
			enabled = append(enabled, policy)
		}
	}
	return enabled
}

// TrimmedIdentity returns the name and symbol with surrounding whitespace removed.
func (d FundDraft) TrimmedIdentity() (string, string) {
	return strings.TrimSpace(d.Name), strings.TrimSpace(d.Symbol)
}
