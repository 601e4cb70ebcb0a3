package gateway

import (
	"encoding/json"
	"time"

	"github.com/mattiabrun/fantalega/go/internal/auction/events"
)

// AuctionEvent is the frame pushed to WebSocket clients.
type AuctionEvent struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// ParseEventPayload decodes the event data into its typed payload. Unknown
// event types return nil so the gateway forwards them untouched.
func ParseEventPayload(event *AuctionEvent) (interface{}, error) {
	switch event.Type {
	case events.TypeSessionCreated:
		return decode[events.SessionCreatedPayload](event.Data)
	case events.TypePhaseChanged:
		return decode[events.PhaseChangedPayload](event.Data)
	case events.TypeNominationPending:
		return decode[events.NominationPendingPayload](event.Data)
	case events.TypeNominationCancelled:
		return decode[events.NominationCancelledPayload](event.Data)
	case events.TypeReadyCheckStarted:
		return decode[events.ReadyCheckStartedPayload](event.Data)
	case events.TypeReadyUpdated:
		return decode[events.ReadyUpdatedPayload](event.Data)
	case events.TypeBiddingStarted:
		return decode[events.BiddingStartedPayload](event.Data)
	case events.TypeBidPlaced:
		return decode[events.BidPlacedPayload](event.Data)
	case events.TypeAuctionResolved:
		return decode[events.AuctionResolvedPayload](event.Data)
	case events.TypeAckUpdated:
		return decode[events.AckUpdatedPayload](event.Data)
	case events.TypeTurnAdvanced:
		return decode[events.TurnAdvancedPayload](event.Data)
	case events.TypeRoleAdvanced:
		return decode[events.RoleAdvancedPayload](event.Data)
	case events.TypeTurnPassed:
		return decode[events.TurnPassedPayload](event.Data)
	case events.TypeSessionFrozen:
		return decode[events.SessionFrozenPayload](event.Data)
	default:
		return nil, nil
	}
}

func decode[T any](data json.RawMessage) (T, error) {
	var payload T
	err := json.Unmarshal(data, &payload)
	return payload, err
}
