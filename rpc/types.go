package rpc

import (
	"strconv"

	"steadrent/core"
	"steadrent/core/events"
	"steadrent/core/types"
	"steadrent/crypto"
	"steadrent/native/exhibition"
)

// Amounts are rendered as decimal strings so u64 values survive JSON clients
// that parse numbers as doubles.

type ConfigResult struct {
	Address      string `json:"address"`
	FeeRecipient string `json:"feeRecipient"`
	FeeRateBps   uint16 `json:"feeRateBps"`
	Bump         uint8  `json:"bump"`
}

type ExhibitionResult struct {
	ID              string   `json:"id"`
	Renter          string   `json:"renter"`
	RentedProperty  string   `json:"rentedProperty"`
	RenterFeeBps    uint16   `json:"renterFeeBps"`
	Exhibitor       string   `json:"exhibitor"`
	ItemCount       uint64   `json:"itemCount"`
	TotalVolume     string   `json:"totalVolume"`
	Status          string   `json:"status"`
	EscrowAuthority string   `json:"escrowAuthority,omitempty"`
	PropertyCustody string   `json:"propertyCustody,omitempty"`
	Items           []string `json:"items,omitempty"`
}

type ItemResult struct {
	ID         string `json:"id"`
	Exhibition string `json:"exhibition"`
	Asset      string `json:"asset"`
	Price      string `json:"price"`
}

type ReceiptResult struct {
	Exhibition      string `json:"exhibition"`
	Item            string `json:"item"`
	Asset           string `json:"asset"`
	Buyer           string `json:"buyer"`
	Destination     string `json:"destination"`
	Price           string `json:"price"`
	RenterAmount    string `json:"renterAmount"`
	PlatformAmount  string `json:"platformAmount"`
	ExhibitorAmount string `json:"exhibitorAmount"`
}

type BalanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type HoldingResult struct {
	Address   string `json:"address"`
	Owner     string `json:"owner"`
	Asset     string `json:"asset"`
	Authority string `json:"authority"`
	Amount    string `json:"amount"`
}

type DeriveResult struct {
	Exhibition      string `json:"exhibition"`
	EscrowAuthority string `json:"escrowAuthority"`
	PropertyCustody string `json:"propertyCustody"`
}

type EventResult struct {
	Sequence   int64             `json:"sequence,omitempty"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func formatAmount(v uint64) string { return strconv.FormatUint(v, 10) }

func configResult(addr crypto.Identity, cfg *exhibition.GlobalConfig) ConfigResult {
	return ConfigResult{
		Address:      addr.String(),
		FeeRecipient: cfg.FeeRecipient.String(),
		FeeRateBps:   cfg.FeeRateBps,
		Bump:         cfg.Bump,
	}
}

func exhibitionResult(id crypto.Identity, ex *exhibition.Exhibition) ExhibitionResult {
	return ExhibitionResult{
		ID:             id.String(),
		Renter:         ex.Renter.String(),
		RentedProperty: ex.RentedProperty.String(),
		RenterFeeBps:   ex.RenterFeeBps,
		Exhibitor:      ex.Exhibitor.String(),
		ItemCount:      ex.ItemCount,
		TotalVolume:    formatAmount(ex.TotalVolume),
		Status:         ex.Status.String(),
	}
}

func exhibitionViewResult(view *core.ExhibitionView) ExhibitionResult {
	out := exhibitionResult(view.ID, view.Exhibition)
	out.EscrowAuthority = view.EscrowAuthority.String()
	out.PropertyCustody = view.PropertyCustody.String()
	out.Items = make([]string, 0, len(view.Items))
	for _, item := range view.Items {
		out.Items = append(out.Items, item.String())
	}
	return out
}

func itemResult(id crypto.Identity, item *exhibition.ExhibitionItem) ItemResult {
	return ItemResult{
		ID:         id.String(),
		Exhibition: item.ExhibitionRef.String(),
		Asset:      item.AssetID.String(),
		Price:      formatAmount(item.Price),
	}
}

func receiptResult(r *exhibition.Receipt) ReceiptResult {
	return ReceiptResult{
		Exhibition:      r.Exhibition.String(),
		Item:            r.Item.String(),
		Asset:           r.Asset.String(),
		Buyer:           r.Buyer.String(),
		Destination:     r.Destination.String(),
		Price:           formatAmount(r.Price),
		RenterAmount:    formatAmount(r.Split.Renter),
		PlatformAmount:  formatAmount(r.Split.Platform),
		ExhibitorAmount: formatAmount(r.Split.Exhibitor),
	}
}

func holdingResult(addr, owner crypto.Identity, h *types.HoldingAccount) HoldingResult {
	return HoldingResult{
		Address:   addr.String(),
		Owner:     owner.String(),
		Asset:     h.Asset.String(),
		Authority: h.Authority.String(),
		Amount:    formatAmount(h.Amount),
	}
}

func eventResult(entry events.LogEntry) EventResult {
	return EventResult{Sequence: entry.Sequence, Type: entry.Event.Type, Attributes: entry.Event.Attributes}
}
