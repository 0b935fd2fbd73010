package steamgw

import "time"

// DTOs de wire para la REST API del gateway.

type offerDTO struct {
	ID             string    `json:"id"`
	PartnerID      string    `json:"partner_id"`
	PartnerName    string    `json:"partner_name"`
	ItemsToGive    []itemDTO `json:"items_to_give"`
	ItemsToReceive []itemDTO `json:"items_to_receive"`
	CreatedAt      time.Time `json:"created_at"`
}

type itemDTO struct {
	AssetID   string `json:"asset_id"`
	CatalogID string `json:"catalog_id"`
	Kind      string `json:"kind"`
}

type offersResponse struct {
	Offers []offerDTO `json:"offers"`
}

type offerStateResponse struct {
	State string `json:"state"`
}

type declineRequest struct {
	Reason string `json:"reason"`
}

type sendOfferRequest struct {
	PartnerID  string   `json:"partner_id"`
	AssetIDs   []string `json:"asset_ids"`
	Message    string   `json:"message"`
	DispatchID string   `json:"dispatch_id"`
}

type sendOfferResponse struct {
	OfferID string `json:"offer_id"`
}

type inventoryResponse struct {
	Items []itemDTO `json:"items"`
}

type profileResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Public bool   `json:"public"`
}

type priceDTO struct {
	Kind       string    `json:"kind"`
	ValueCents int64     `json:"value_cents"`
	Liquidity  int       `json:"liquidity"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type pricesResponse struct {
	Prices []priceDTO `json:"prices"`
}

type chatRequest struct {
	Message string `json:"message"`
}
