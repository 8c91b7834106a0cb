package encoder

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddressList reads a free-text, newline-separated address list.
// Lines are trimmed, lines that are not 0x-prefixed 20-byte hex addresses are discarded
// and returned as rejected, and duplicates are dropped (case-insensitively) keeping the
// first occurrence.
func ParseAddressList(text string) (addresses []common.Address, rejected []string) {
	seen := make(map[common.Address]struct{})
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !isPrefixedHexAddress(line) {
			rejected = append(rejected, line)
			continue
		}
		addr := common.HexToAddress(line)
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		addresses = append(addresses, addr)
	}
	return addresses, rejected
}

func isPrefixedHexAddress(s string) bool {
	return (strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) && common.IsHexAddress(s)
}
