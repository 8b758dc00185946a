package events

import (
	"strconv"
	"strings"

	"steadrent/core/types"
	"steadrent/crypto"
)

const (
	// TypeTransfer is emitted for native balance movements.
	TypeTransfer = "transfer.native"
	// TypeAssetTransfer is emitted when a unit of an asset changes holding account.
	TypeAssetTransfer = "transfer.asset"
)

// Transfer describes one payment leg.
type Transfer struct {
	From   crypto.Identity
	To     crypto.Identity
	Amount uint64
	Memo   string
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{
		"from":   e.From.String(),
		"to":     e.To.String(),
		"amount": strconv.FormatUint(e.Amount, 10),
	}
	if memo := strings.TrimSpace(e.Memo); memo != "" {
		attrs["memo"] = memo
	}
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}

// AssetTransfer describes a unit of an asset moving between holding accounts.
type AssetTransfer struct {
	Asset  crypto.Identity
	From   crypto.Identity
	To     crypto.Identity
	Amount uint64
}

func (AssetTransfer) EventType() string { return TypeAssetTransfer }

func (e AssetTransfer) Event() *types.Event {
	return &types.Event{Type: TypeAssetTransfer, Attributes: map[string]string{
		"asset":  e.Asset.String(),
		"from":   e.From.String(),
		"to":     e.To.String(),
		"amount": strconv.FormatUint(e.Amount, 10),
	}}
}
