package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseSettlementHeader parses the value of the X-Payment header, which
// has the format "<txHash>:<chainId>". The split happens on the LAST
// colon, since txHash never contains one but is always "0x"-prefixed hex
// and chainId is always a decimal integer. Hex comparison is
// case-insensitive.
//
// Returns (ref, true) on success, or (SettlementReference{}, false) when
// the value is malformed: missing colon, txHash not 0x-prefixed 32 bytes,
// or chainId not a valid decimal uint64.
func ParseSettlementHeader(value string) (SettlementReference, bool) {
	idx := strings.LastIndex(value, ":")
	if idx < 0 {
		return SettlementReference{}, false
	}

	txHashPart := value[:idx]
	chainIDPart := value[idx+1:]

	if !strings.HasPrefix(strings.ToLower(txHashPart), "0x") {
		return SettlementReference{}, false
	}
	// common.HexToHash never errors on malformed input (it ignores decode
	// errors and left-pads short input with zeros), so validate shape
	// ourselves first.
	hexDigits := txHashPart[2:]
	if len(hexDigits) != 64 {
		return SettlementReference{}, false
	}
	for _, c := range hexDigits {
		if !isHexDigit(c) {
			return SettlementReference{}, false
		}
	}

	chainID, err := strconv.ParseUint(chainIDPart, 10, 64)
	if err != nil {
		return SettlementReference{}, false
	}

	return SettlementReference{
		TxHash:  common.HexToHash(txHashPart),
		ChainID: chainID,
	}, true
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// FormatSettlementHeader renders a SettlementReference back into the
// "<txHash>:<chainId>" wire format. FormatSettlementHeader(ref) always
// parses back to an equal ref: format(parse(h)) == h for well-formed h
// up to hex case normalization.
func FormatSettlementHeader(ref SettlementReference) string {
	return fmt.Sprintf("%s:%d", ref.TxHash.Hex(), ref.ChainID)
}
