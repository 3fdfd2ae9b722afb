// Package ton holds the TON-specific encodings used to verify wallet
// signatures: account addresses, state init cells and the byte layouts
// signed for TonProof and sign-data requests.
package ton

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xssnick/tonutils-go/address"
)

var ErrInvalidAddress = errors.New("invalid address")

// ParseAddress accepts both raw ("0:<hex>") and user-friendly (EQ.../UQ...) forms
func ParseAddress(s string) (*address.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}

	wc, hash, ok := strings.Cut(s, ":")
	if !ok {
		addr, err := address.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		return addr, nil
	}

	workchain, err := strconv.ParseInt(wc, 10, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: bad workchain %q", ErrInvalidAddress, wc)
	}
	data, err := hex.DecodeString(hash)
	if err != nil || len(data) != 32 {
		return nil, fmt.Errorf("%w: account id must be 32 bytes of hex", ErrInvalidAddress)
	}
	return address.NewAddress(0, byte(int8(workchain)), data), nil
}

// RawAddress renders an address as "<workchain>:<hex>"
func RawAddress(addr *address.Address) string {
	return fmt.Sprintf("%d:%x", addr.Workchain(), addr.Data())
}

// SameAddress compares two addresses by workchain and account id, ignoring flags
func SameAddress(a, b *address.Address) bool {
	return a.Workchain() == b.Workchain() && bytes.Equal(a.Data(), b.Data())
}

// DecodeBase64 accepts standard and URL-safe alphabets, padded or not
func DecodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("invalid base64")
}
