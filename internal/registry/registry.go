package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/onchainfund/fundops/internal/config"
	"github.com/onchainfund/fundops/internal/logger"
	"github.com/onchainfund/fundops/internal/types"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownNetwork      = errors.New("network is not in the registry")
	ErrUnsupportedAsset    = errors.New("asset is not supported on this network")
	ErrModuleNotConfigured = errors.New("module address is not configured for this network")
	ErrInvalidAddress      = errors.New("registry entry is not a valid address")
)

// Registry resolves assets and protocol contracts for the selected network.
type Registry interface {
	Network() string
	ChainID() uint64
	Asset(symbol string) (types.Asset, error)
	Assets() []types.Asset
	FundDeployer() (common.Address, error)
	FeeModule(kind types.FeeKind) (common.Address, error)
	PolicyModule(kind types.PolicyKind) (common.Address, error)
	ExplorerTxURL(hash common.Hash) string
}

// Static is a Registry backed by an in-memory table.
type Static struct {
	network     string
	chainID     uint64
	explorer    string
	deployer    common.Address
	assets      map[string]types.Asset
	feeModules  map[types.FeeKind]common.Address
	policyMods  map[types.PolicyKind]common.Address
	assetsOrder []string
}

var _ Registry = (*Static)(nil)

// Load builds the registry for network from the built-in table, then applies the optional YAML
// overlay. A network absent from the built-in table must be fully declared in the overlay.
func Load(network, overlayPath string) (*Static, error) {
	log := logger.GetForComponent("registry")
	network = strings.ToLower(strings.TrimSpace(network))

	entry, known := config.Networks[network]
	if overlayPath != "" {
		overlay, err := readOverlay(overlayPath)
		if err != nil {
			return nil, err
		}
		if o, ok := overlay[network]; ok {
			entry = merge(entry, o)
			known = true
		}
		log.Info().Str("path", overlayPath).Str("network", network).Msg("Applied registry overlay")
	}
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, network)
	}
	return New(network, entry)
}

// New validates entry and builds a Static registry from it.
func New(network string, entry config.NetworkEntry) (*Static, error) {
	s := &Static{
		network:    network,
		chainID:    entry.ChainID,
		explorer:   strings.TrimRight(entry.ExplorerURL, "/"),
		assets:     make(map[string]types.Asset, len(entry.Assets)),
		feeModules: make(map[types.FeeKind]common.Address, len(entry.FeeModules)),
		policyMods: make(map[types.PolicyKind]common.Address, len(entry.PolicyModule)),
	}

	if entry.FundDeployer != "" {
		addr, err := parseAddress("fundDeployer", entry.FundDeployer)
		if err != nil {
			return nil, err
		}
		s.deployer = addr
	}

	for _, a := range entry.Assets {
		addr, err := parseAddress("asset "+a.Symbol, a.Address)
		if err != nil {
			return nil, err
		}
		symbol := strings.ToUpper(strings.TrimSpace(a.Symbol))
		if _, dup := s.assets[symbol]; !dup {
			s.assetsOrder = append(s.assetsOrder, symbol)
		}
		s.assets[symbol] = types.Asset{Symbol: symbol, Address: addr, Decimals: a.Decimals}
	}

	for kind, raw := range entry.FeeModules {
		addr, err := parseAddress("fee module "+kind, raw)
		if err != nil {
			return nil, err
		}
		s.feeModules[types.FeeKind(strings.ToLower(kind))] = addr
	}
	for kind, raw := range entry.PolicyModule {
		addr, err := parseAddress("policy module "+kind, raw)
		if err != nil {
			return nil, err
		}
		s.policyMods[types.PolicyKind(strings.ToLower(kind))] = addr
	}

	return s, nil
}

func (s *Static) Network() string { return s.network }

func (s *Static) ChainID() uint64 { return s.chainID }

// Asset looks up an asset by symbol, case-insensitively.
func (s *Static) Asset(symbol string) (types.Asset, error) {
	asset, ok := s.assets[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return types.Asset{}, fmt.Errorf("%w: %q on %s", ErrUnsupportedAsset, symbol, s.network)
	}
	return asset, nil
}

// Assets returns the supported assets in table order.
func (s *Static) Assets() []types.Asset {
	out := make([]types.Asset, 0, len(s.assetsOrder))
	for _, symbol := range s.assetsOrder {
		out = append(out, s.assets[symbol])
	}
	return out
}

func (s *Static) FundDeployer() (common.Address, error) {
	if s.deployer == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: fund deployer on %s", ErrModuleNotConfigured, s.network)
	}
	return s.deployer, nil
}

func (s *Static) FeeModule(kind types.FeeKind) (common.Address, error) {
	addr, ok := s.feeModules[kind]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s fee on %s", ErrModuleNotConfigured, kind, s.network)
	}
	return addr, nil
}

func (s *Static) PolicyModule(kind types.PolicyKind) (common.Address, error) {
	addr, ok := s.policyMods[kind]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s policy on %s", ErrModuleNotConfigured, kind, s.network)
	}
	return addr, nil
}

// ExplorerTxURL returns a link to the transaction, or "" when no explorer is declared.
func (s *Static) ExplorerTxURL(hash common.Hash) string {
	if s.explorer == "" {
		return ""
	}
	return s.explorer + "/tx/" + hash.Hex()
}

// WithExplorer overrides the explorer base, used for the EXPLORER_URL setting.
func (s *Static) WithExplorer(base string) *Static {
	if base != "" {
		s.explorer = strings.TrimRight(base, "/")
	}
	return s
}

// FeeKinds lists the fee kinds that have a module configured, sorted.
func (s *Static) FeeKinds() []types.FeeKind {
	kinds := make([]types.FeeKind, 0, len(s.feeModules))
	for kind := range s.feeModules {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func readOverlay(path string) (map[string]config.NetworkEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry overlay: %w", err)
	}
	var overlay struct {
		Networks map[string]config.NetworkEntry `yaml:"networks"`
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("failed to parse registry overlay %s: %w", path, err)
	}
	out := make(map[string]config.NetworkEntry, len(overlay.Networks))
	for name, entry := range overlay.Networks {
		out[strings.ToLower(name)] = entry
	}
	return out, nil
}

// merge applies non-empty overlay fields on top of base. Assets are merged by symbol.
func merge(base, overlay config.NetworkEntry) config.NetworkEntry {
	out := base
	if overlay.ChainID != 0 {
		out.ChainID = overlay.ChainID
	}
	if overlay.ExplorerURL != "" {
		out.ExplorerURL = overlay.ExplorerURL
	}
	if overlay.FundDeployer != "" {
		out.FundDeployer = overlay.FundDeployer
	}

	out.Assets = append([]config.AssetEntry(nil), base.Assets...)
	for _, a := range overlay.Assets {
		replaced := false
		for i := range out.Assets {
			if strings.EqualFold(out.Assets[i].Symbol, a.Symbol) {
				out.Assets[i] = a
				replaced = true
			}
		}
		if !replaced {
			out.Assets = append(out.Assets, a)
		}
	}

	out.FeeModules = mergeMap(base.FeeModules, overlay.FeeModules)
	out.PolicyModule = mergeMap(base.PolicyModule, overlay.PolicyModule)
	return out
}

func mergeMap(base, overlay map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

func parseAddress(what, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %s = %q", ErrInvalidAddress, what, raw)
	}
	return common.HexToAddress(raw), nil
}
