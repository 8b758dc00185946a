package exhibition

import (
	"strconv"

	"steadrent/core/types"
	"steadrent/crypto"
)

const (
	EventTypeConfigInitialized = "exhibition.config.initialized"
	EventTypeConfigUpdated     = "exhibition.config.updated"
	EventTypeOpened            = "exhibition.opened"
	EventTypeCancelled         = "exhibition.cancelled"
	EventTypeClosed            = "exhibition.closed"
	EventTypePropertyReclaimed = "exhibition.property.reclaimed"
	EventTypeItemDeposited     = "exhibition.item.deposited"
	EventTypeItemWithdrawn     = "exhibition.item.withdrawn"
	EventTypeItemPurchased     = "exhibition.item.purchased"
)

// NewConfigEvent returns the payload emitted when the config is created or
// replaced.
func NewConfigEvent(eventType string, c *GlobalConfig) *types.Event {
	attrs := make(map[string]string)
	if c != nil {
		attrs["feeRecipient"] = c.FeeRecipient.String()
		attrs["feeRateBps"] = strconv.FormatUint(uint64(c.FeeRateBps), 10)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewExhibitionEvent returns the canonical payload for an exhibition state
// change.
func NewExhibitionEvent(eventType string, id crypto.Identity, e *Exhibition) *types.Event {
	attrs := map[string]string{"id": id.String()}
	if e == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["renter"] = e.Renter.String()
	attrs["exhibitor"] = e.Exhibitor.String()
	attrs["property"] = e.RentedProperty.String()
	attrs["renterFeeBps"] = strconv.FormatUint(uint64(e.RenterFeeBps), 10)
	attrs["itemCount"] = strconv.FormatUint(e.ItemCount, 10)
	attrs["totalVolume"] = strconv.FormatUint(e.TotalVolume, 10)
	attrs["status"] = e.Status.String()
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewItemEvent returns the payload for a deposit or withdrawal.
func NewItemEvent(eventType string, id crypto.Identity, item *ExhibitionItem) *types.Event {
	attrs := map[string]string{"item": id.String()}
	if item != nil {
		attrs["exhibition"] = item.ExhibitionRef.String()
		attrs["asset"] = item.AssetID.String()
		attrs["price"] = strconv.FormatUint(item.Price, 10)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewPurchasedEvent returns the payload for a completed purchase.
func NewPurchasedEvent(r *Receipt) *types.Event {
	attrs := make(map[string]string)
	if r == nil {
		return &types.Event{Type: EventTypeItemPurchased, Attributes: attrs}
	}
	attrs["exhibition"] = r.Exhibition.String()
	attrs["item"] = r.Item.String()
	attrs["asset"] = r.Asset.String()
	attrs["buyer"] = r.Buyer.String()
	attrs["destination"] = r.Destination.String()
	attrs["price"] = strconv.FormatUint(r.Price, 10)
	attrs["renterAmount"] = strconv.FormatUint(r.Split.Renter, 10)
	attrs["platformAmount"] = strconv.FormatUint(r.Split.Platform, 10)
	attrs["exhibitorAmount"] = strconv.FormatUint(r.Split.Exhibitor, 10)
	return &types.Event{Type: EventTypeItemPurchased, Attributes: attrs}
}
