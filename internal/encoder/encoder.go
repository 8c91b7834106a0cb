package encoder

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/onchainfund/fundops/internal/contracts"
	"github.com/onchainfund/fundops/internal/logger"
	"github.com/onchainfund/fundops/internal/types"
	"github.com/onchainfund/fundops/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ModuleResolver is the part of the registry the encoder needs.
type ModuleResolver interface {
	Asset(symbol string) (types.Asset, error)
	FeeModule(kind types.FeeKind) (common.Address, error)
	PolicyModule(kind types.PolicyKind) (common.Address, error)
}

// Encoder turns a fund draft into the fee and policy manager configuration blobs.
type Encoder struct {
	resolver ModuleResolver
	log      zerolog.Logger
}

func New(resolver ModuleResolver) *Encoder {
	return &Encoder{
		resolver: resolver,
		log:      logger.GetForComponent("encoder"),
	}
}

// Encode produces both configuration blobs. Disabled entries are skipped, enabled entries keep
// their declaration order. Any problem yields a *ConfigurationError and no partial output.
func (e *Encoder) Encode(draft types.FundDraft) (types.EncodedConfig, error) {
	asset, err := e.resolver.Asset(draft.DenominationAsset)
	if err != nil {
		return types.EncodedConfig{}, configErr("denomination_asset", fmt.Errorf("%w: %v", ErrDenominationAsset, err))
	}

	fees, err := e.encodeFees(draft.EnabledFees())
	if err != nil {
		return types.EncodedConfig{}, err
	}
	policies, err := e.encodePolicies(draft.EnabledPolicies(), asset)
	if err != nil {
		return types.EncodedConfig{}, err
	}

	feeBlob, err := compose(fees)
	if err != nil {
		return types.EncodedConfig{}, configErr("fees", err)
	}
	policyBlob, err := compose(policies)
	if err != nil {
		return types.EncodedConfig{}, configErr("policies", err)
	}

	e.log.Debug().
		Int("fees", len(fees)).
		Int("policies", len(policies)).
		Int("feeConfigBytes", len(feeBlob)).
		Int("policyConfigBytes", len(policyBlob)).
		Msg("Encoded fund configuration")

	return types.EncodedConfig{
		FeeManagerConfig:    feeBlob,
		PolicyManagerConfig: policyBlob,
		Fees:                fees,
		Policies:            policies,
	}, nil
}

func (e *Encoder) encodeFees(fees []types.FeeSetting) ([]types.EncodedModuleSetting, error) {
	out := make([]types.EncodedModuleSetting, 0, len(fees))
	seen := make(map[types.FeeKind]struct{}, len(fees))

	for _, fee := range fees {
		field := "fees." + string(fee.Kind)
		if _, dup := seen[fee.Kind]; dup {
			return nil, configErr(field, ErrDuplicateKind)
		}
		seen[fee.Kind] = struct{}{}

		rate, err := utils.PercentToFixedPoint(fee.Rate)
		if err != nil {
			return nil, configErr(field+".rate", err)
		}
		recipient, err := parseRecipient(fee.Recipient)
		if err != nil {
			return nil, configErr(field+".recipient", err)
		}

		var settings []byte
		switch fee.Kind {
		case types.FeeManagement, types.FeeEntrance:
			settings, err = contracts.EncodeRateFee(rate.BigInt(), recipient)
		case types.FeePerformance:
			hwm, hwmErr := highWaterMark(fee.HighWaterMark)
			if hwmErr != nil {
				return nil, configErr(field+".high_water_mark", hwmErr)
			}
			settings, err = contracts.EncodePerformanceFee(rate.BigInt(), hwm, recipient)
		case types.FeeExit:
			settings, err = contracts.EncodeExitFee(rate.BigInt(), rate.BigInt(), recipient)
		default:
			return nil, configErr(field, ErrUnknownKind)
		}
		if err != nil {
			return nil, configErr(field, err)
		}

		module, err := e.resolver.FeeModule(fee.Kind)
		if err != nil {
			return nil, configErr(field, fmt.Errorf("%w: %v", ErrModuleUnresolvable, err))
		}
		out = append(out, types.EncodedModuleSetting{Module: module, Settings: settings})
	}
	return out, nil
}

func (e *Encoder) encodePolicies(policies []types.PolicySetting, asset types.Asset) ([]types.EncodedModuleSetting, error) {
	out := make([]types.EncodedModuleSetting, 0, len(policies))
	seen := make(map[types.PolicyKind]struct{}, len(policies))

	for _, policy := range policies {
		field := "policies." + string(policy.Kind)
		if _, dup := seen[policy.Kind]; dup {
			return nil, configErr(field, ErrDuplicateKind)
		}
		seen[policy.Kind] = struct{}{}

		var (
			settings []byte
			err      error
		)
		switch policy.Kind {
		case types.PolicyDepositorWhitelist, types.PolicyShareTransferWhitelist:
			addresses, rejected := ParseAddressList(policy.Addresses)
			if len(rejected) > 0 {
				e.log.Warn().Str("policy", string(policy.Kind)).Strs("rejected", rejected).Msg("Discarded malformed whitelist entries")
			}
			if len(addresses) == 0 {
				return nil, configErr(field+".addresses", ErrEmptyAddressList)
			}
			settings, err = contracts.EncodeNewAddressList(contracts.ListUpdateNone, addresses)
		case types.PolicyDepositLimits:
			min, max, limitErr := depositLimits(policy.Min, policy.Max, asset.Decimals)
			if limitErr != nil {
				return nil, configErr(field, limitErr)
			}
			settings, err = contracts.EncodeMinMaxInvestment(min, max)
		default:
			return nil, configErr(field, ErrUnknownKind)
		}
		if err != nil {
			return nil, configErr(field, err)
		}

		module, err := e.resolver.PolicyModule(policy.Kind)
		if err != nil {
			return nil, configErr(field, fmt.Errorf("%w: %v", ErrModuleUnresolvable, err))
		}
		out = append(out, types.EncodedModuleSetting{Module: module, Settings: settings})
	}
	return out, nil
}

func compose(entries []types.EncodedModuleSetting) ([]byte, error) {
	modules := make([]common.Address, len(entries))
	settings := make([][]byte, len(entries))
	for i, entry := range entries {
		modules[i] = entry.Module
		settings[i] = entry.Settings
	}
	return contracts.EncodeModuleList(modules, settings)
}

func parseRecipient(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return common.Address{}, nil
	}
	if !isPrefixedHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidRecipient, raw)
	}
	return common.HexToAddress(raw), nil
}

func highWaterMark(value decimal.Decimal) (*big.Int, error) {
	if value.IsZero() {
		value = decimal.NewFromInt(1)
	}
	if value.IsNegative() {
		return nil, ErrInvalidWaterMark
	}
	scaled, err := utils.ToBaseUnits(value, utils.FixedPointDecimals)
	if err != nil {
		return nil, err
	}
	return scaled.BigInt(), nil
}

// depositLimits scales the bounds to the denomination asset's precision. A max of zero is unbounded.
func depositLimits(min, max decimal.Decimal, decimals uint8) (*big.Int, *big.Int, error) {
	if min.IsNegative() || max.IsNegative() {
		return nil, nil, fmt.Errorf("%w: bounds must not be negative", ErrInvalidLimits)
	}
	if min.IsZero() && max.IsZero() {
		return nil, nil, fmt.Errorf("%w: at least one bound is required", ErrInvalidLimits)
	}
	if !max.IsZero() && min.GreaterThan(max) {
		return nil, nil, fmt.Errorf("%w: min %s exceeds max %s", ErrInvalidLimits, min, max)
	}
	minUnits, err := utils.ToBaseUnits(min, decimals)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: min: %v", ErrInvalidLimits, err)
	}
	maxUnits, err := utils.ToBaseUnits(max, decimals)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: max: %v", ErrInvalidLimits, err)
	}
	return minUnits.BigInt(), maxUnits.BigInt(), nil
}
