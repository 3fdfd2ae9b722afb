package ton

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// StateInit is a parsed account state init
type StateInit struct {
	Code *cell.Cell
	Data *cell.Cell
	hash []byte
}

// ParseStateInit decodes a base64 BOC holding a StateInit cell:
// split_depth:(Maybe (## 5)) special:(Maybe TickTock) code:(Maybe ^Cell)
// data:(Maybe ^Cell) library:(HashmapE 256 SimpleLib)
func ParseStateInit(b64 string) (*StateInit, error) {
	raw, err := DecodeBase64(b64)
	if err != nil {
		return nil, fmt.Errorf("state init: %w", err)
	}
	root, err := cell.FromBOC(raw)
	if err != nil {
		return nil, fmt.Errorf("state init: %w", err)
	}

	s := root.BeginParse()
	if has, err := s.LoadBoolBit(); err != nil {
		return nil, fmt.Errorf("state init split depth: %w", err)
	} else if has {
		if _, err := s.LoadUInt(5); err != nil {
			return nil, fmt.Errorf("state init split depth: %w", err)
		}
	}
	if has, err := s.LoadBoolBit(); err != nil {
		return nil, fmt.Errorf("state init special: %w", err)
	} else if has {
		if _, err := s.LoadUInt(2); err != nil {
			return nil, fmt.Errorf("state init special: %w", err)
		}
	}

	si := &StateInit{hash: root.Hash()}
	if has, err := s.LoadBoolBit(); err != nil {
		return nil, fmt.Errorf("state init code: %w", err)
	} else if has {
		if si.Code, err = s.LoadRefCell(); err != nil {
			return nil, fmt.Errorf("state init code: %w", err)
		}
	}
	if has, err := s.LoadBoolBit(); err != nil {
		return nil, fmt.Errorf("state init data: %w", err)
	} else if has {
		if si.Data, err = s.LoadRefCell(); err != nil {
			return nil, fmt.Errorf("state init data: %w", err)
		}
	}
	return si, nil
}

// Hash is the representation hash of the state init cell, i.e. the account id
func (s *StateInit) Hash() []byte {
	return s.hash
}

// MatchesAddress reports whether the state init deploys to addr
func (s *StateInit) MatchesAddress(addr *address.Address) bool {
	return bytes.Equal(s.hash, addr.Data())
}

// keyOffsets are the bit offsets of the public key in wallet data cells:
// v1/v2 seqno; v3/v4 seqno+wallet_id; v5 signature_allowed+seqno+wallet_id.
var keyOffsets = []uint{32, 64, 65}

// HasPublicKey reports whether the data cell stores key under a known wallet layout
func (s *StateInit) HasPublicKey(key ed25519.PublicKey) bool {
	if s.Data == nil {
		return false
	}
	for _, off := range keyOffsets {
		sl := s.Data.BeginParse()
		if _, err := sl.LoadSlice(off); err != nil {
			continue
		}
		candidate, err := sl.LoadSlice(256)
		if err != nil {
			continue
		}
		if bytes.Equal(candidate, key) {
			return true
		}
	}
	return false
}

// walletCode stands in for wallet contract code in simulated wallets
var walletCode = cell.BeginCell().MustStoreUInt(0xFF00F4A413F4BCF2, 64).EndCell()

// NewWalletStateInit builds a v4-layout state init for key and returns it
// with the address it deploys to on workchain 0.
func NewWalletStateInit(key ed25519.PublicKey, walletID uint32) (*cell.Cell, *address.Address) {
	data := cell.BeginCell().
		MustStoreUInt(0, 32).
		MustStoreUInt(uint64(walletID), 32).
		MustStoreSlice(key, 256).
		MustStoreBoolBit(false).
		EndCell()

	si := cell.BeginCell().
		MustStoreBoolBit(false).
		MustStoreBoolBit(false).
		MustStoreBoolBit(true).
		MustStoreRef(walletCode).
		MustStoreBoolBit(true).
		MustStoreRef(data).
		MustStoreBoolBit(false).
		EndCell()

	return si, address.NewAddress(0, 0, si.Hash())
}
