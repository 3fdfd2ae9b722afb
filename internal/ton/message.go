package ton

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/layer-3/tonauth/core"
)

const (
	proofItemPrefix = "ton-proof-item-v2/"
	connectPrefix   = "ton-connect"
	signDataPrefix  = "ton-connect/sign-data/"

	signDataCellTag = 0x75569022
)

// ProofMessage is the inner TonProof message:
// prefix ‖ workchain (BE u32) ‖ account id ‖ domain length (LE u32) ‖ domain
// ‖ timestamp (LE u64) ‖ payload.
func ProofMessage(addr *address.Address, domain string, timestamp int64, payload string) []byte {
	msg := make([]byte, 0, len(proofItemPrefix)+4+32+4+len(domain)+8+len(payload))
	msg = append(msg, proofItemPrefix...)
	msg = binary.BigEndian.AppendUint32(msg, uint32(addr.Workchain()))
	msg = append(msg, addr.Data()...)
	msg = binary.LittleEndian.AppendUint32(msg, uint32(len(domain)))
	msg = append(msg, domain...)
	msg = binary.LittleEndian.AppendUint64(msg, uint64(timestamp))
	msg = append(msg, payload...)
	return msg
}

// ProofDigest is the value the wallet signs with Ed25519:
// sha256(0xFFFF ‖ "ton-connect" ‖ sha256(message))
func ProofDigest(addr *address.Address, domain string, timestamp int64, payload string) []byte {
	inner := sha256.Sum256(ProofMessage(addr, domain, timestamp, payload))

	full := make([]byte, 0, 2+len(connectPrefix)+len(inner))
	full = append(full, 0xff, 0xff)
	full = append(full, connectPrefix...)
	full = append(full, inner[:]...)

	digest := sha256.Sum256(full)
	return digest[:]
}

// SignDataDigest is the value the wallet signs for a sign-data request
func SignDataDigest(addr *address.Address, domain string, timestamp int64, payload core.SignDataPayload) ([]byte, error) {
	switch payload.Type {
	case core.SignDataText:
		return signDataBytesDigest(addr, domain, timestamp, "txt", []byte(payload.Text)), nil
	case core.SignDataBinary:
		raw, err := DecodeBase64(payload.Bytes)
		if err != nil {
			return nil, fmt.Errorf("binary payload: %w", err)
		}
		return signDataBytesDigest(addr, domain, timestamp, "bin", raw), nil
	case core.SignDataCell:
		return signDataCellHash(addr, domain, timestamp, payload)
	default:
		return nil, fmt.Errorf("unknown sign-data type %q", payload.Type)
	}
}

func signDataBytesDigest(addr *address.Address, domain string, timestamp int64, prefix string, data []byte) []byte {
	msg := make([]byte, 0, 2+len(signDataPrefix)+4+32+4+len(domain)+8+len(prefix)+4+len(data))
	msg = append(msg, 0xff, 0xff)
	msg = append(msg, signDataPrefix...)
	msg = binary.BigEndian.AppendUint32(msg, uint32(addr.Workchain()))
	msg = append(msg, addr.Data()...)
	msg = binary.BigEndian.AppendUint32(msg, uint32(len(domain)))
	msg = append(msg, domain...)
	msg = binary.BigEndian.AppendUint64(msg, uint64(timestamp))
	msg = append(msg, prefix...)
	msg = binary.BigEndian.AppendUint32(msg, uint32(len(data)))
	msg = append(msg, data...)

	digest := sha256.Sum256(msg)
	return digest[:]
}

// signDataCellHash builds
// message#75569022 schema_hash:uint32 timestamp:uint64 userAddress:MsgAddress
// appDomain:^(SnakeData) payload:^Cell
// and returns its representation hash.
func signDataCellHash(addr *address.Address, domain string, timestamp int64, payload core.SignDataPayload) ([]byte, error) {
	if payload.Schema == "" {
		return nil, fmt.Errorf("cell payload: schema is required")
	}
	raw, err := DecodeBase64(payload.Cell)
	if err != nil {
		return nil, fmt.Errorf("cell payload: %w", err)
	}
	body, err := cell.FromBOC(raw)
	if err != nil {
		return nil, fmt.Errorf("cell payload: %w", err)
	}

	domainCell := cell.BeginCell().MustStoreStringSnake(domain).EndCell()

	msg := cell.BeginCell().
		MustStoreUInt(signDataCellTag, 32).
		MustStoreUInt(uint64(crc32.ChecksumIEEE([]byte(payload.Schema))), 32).
		MustStoreUInt(uint64(timestamp), 64).
		MustStoreAddr(addr).
		MustStoreRef(domainCell).
		MustStoreRef(body).
		EndCell()

	return msg.Hash(), nil
}
