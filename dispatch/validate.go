package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/layer-3/tonauth/core"
	"github.com/layer-3/tonauth/internal/ton"
)

// MaxMessages is the most messages a wallet accepts in one transaction
const MaxMessages = 4

// ValidateTransaction checks a transaction before it is sent to the wallet.
// chain is the connected wallet's network; empty skips the network match.
func ValidateTransaction(tx core.Transaction, chain string, now time.Time) error {
	if len(tx.Messages) == 0 {
		return core.Invalid("messages", "at least one message is required")
	}
	if len(tx.Messages) > MaxMessages {
		return core.Invalid("messages", "at most %d messages are allowed, got %d", MaxMessages, len(tx.Messages))
	}
	if tx.ValidUntil <= now.Unix() {
		return core.Invalid("validUntil", "%d is not in the future", tx.ValidUntil)
	}

	if tx.Network != "" {
		if tx.Network != core.NetworkMainnet && tx.Network != core.NetworkTestnet {
			return core.Invalid("network", "unknown network %q", tx.Network)
		}
		if chain != "" && tx.Network != chain {
			return core.Invalid("network", "wallet is on %s, transaction targets %s", chain, tx.Network)
		}
	}
	if tx.From != "" {
		if _, err := ton.ParseAddress(tx.From); err != nil {
			return core.Invalid("from", "%v", err)
		}
	}

	for i, msg := range tx.Messages {
		if err := validateMessage(msg); err != nil {
			var ve *core.ValidationError
			if errors.As(err, &ve) {
				ve.Field = fmt.Sprintf("messages[%d].%s", i, ve.Field)
			}
			return err
		}
	}
	return nil
}

func validateMessage(msg core.Message) error {
	if _, err := ton.ParseAddress(msg.Address); err != nil {
		return core.Invalid("address", "%v", err)
	}

	amount, err := decimal.NewFromString(msg.Amount)
	if err != nil {
		return core.Invalid("amount", "%q is not a number", msg.Amount)
	}
	if !amount.IsInteger() || amount.IsNegative() {
		return core.Invalid("amount", "%q must be a non-negative whole number of nanotons", msg.Amount)
	}

	if msg.Payload != "" {
		if err := checkBOC(msg.Payload); err != nil {
			return core.Invalid("payload", "%v", err)
		}
	}
	if msg.StateInit != "" {
		if err := checkBOC(msg.StateInit); err != nil {
			return core.Invalid("stateInit", "%v", err)
		}
	}
	return nil
}

// ValidateSignData checks a sign-data payload before it is sent to the wallet
func ValidateSignData(p core.SignDataPayload) error {
	switch p.Type {
	case core.SignDataText:
		if p.Text == "" {
			return core.Invalid("text", "text payload is empty")
		}
	case core.SignDataBinary:
		if p.Bytes == "" {
			return core.Invalid("bytes", "binary payload is empty")
		}
		if _, err := ton.DecodeBase64(p.Bytes); err != nil {
			return core.Invalid("bytes", "not base64")
		}
	case core.SignDataCell:
		if p.Schema == "" {
			return core.Invalid("schema", "cell payload needs a TL-B schema")
		}
		if err := checkBOC(p.Cell); err != nil {
			return core.Invalid("cell", "%v", err)
		}
	default:
		return core.Invalid("type", "unknown sign-data type %q", p.Type)
	}
	return nil
}

func checkBOC(b64 string) error {
	raw, err := ton.DecodeBase64(b64)
	if err != nil {
		return fmt.Errorf("not base64")
	}
	if _, err := cell.FromBOC(raw); err != nil {
		return fmt.Errorf("not a valid BOC: %v", err)
	}
	return nil
}
