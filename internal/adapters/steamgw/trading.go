package steamgw

import (
	"context"
	"fmt"
	"net/url"

	"github.com/alejandrodnm/potbot/internal/domain"
	"github.com/alejandrodnm/potbot/internal/ports"
)

// ListIncomingOffers devuelve las ofertas pendientes dirigidas al bot.
func (c *Client) ListIncomingOffers(ctx context.Context) ([]ports.TradeOffer, error) {
	var resp offersResponse
	if err := c.get(ctx, c.offersLimiter, "/offers/incoming", &resp); err != nil {
		return nil, fmt.Errorf("steamgw.ListIncomingOffers: %w", err)
	}
	offers := make([]ports.TradeOffer, 0, len(resp.Offers))
	for _, o := range resp.Offers {
		offers = append(offers, ports.TradeOffer{
			ID:             o.ID,
			PartnerID:      o.PartnerID,
			PartnerName:    o.PartnerName,
			ItemsToGive:    mapItems(o.ItemsToGive),
			ItemsToReceive: mapItems(o.ItemsToReceive),
			CreatedAt:      o.CreatedAt,
		})
	}
	return offers, nil
}

// AcceptOffer acepta una oferta pendiente.
func (c *Client) AcceptOffer(ctx context.Context, offerID string) error {
	path := "/offers/" + url.PathEscape(offerID) + "/accept"
	if err := c.post(ctx, c.offersLimiter, path, nil, nil); err != nil {
		return fmt.Errorf("steamgw.AcceptOffer: %s: %w", offerID, err)
	}
	return nil
}

// DeclineOffer rechaza una oferta pendiente con una razón legible.
func (c *Client) DeclineOffer(ctx context.Context, offerID, reason string) error {
	path := "/offers/" + url.PathEscape(offerID) + "/decline"
	if err := c.post(ctx, c.offersLimiter, path, declineRequest{Reason: reason}, nil); err != nil {
		return fmt.Errorf("steamgw.DeclineOffer: %s: %w", offerID, err)
	}
	return nil
}

// SendOffer despacha una oferta saliente. El gateway deduplica por
// dispatchID, así un reenvío tras un crash devuelve la oferta original.
func (c *Client) SendOffer(ctx context.Context, targetID string, assetIDs []string, message, dispatchID string) (string, error) {
	req := sendOfferRequest{PartnerID: targetID, AssetIDs: assetIDs, Message: message, DispatchID: dispatchID}
	var resp sendOfferResponse
	if err := c.post(ctx, c.offersLimiter, "/offers/send", req, &resp); err != nil {
		return "", fmt.Errorf("steamgw.SendOffer: to %s: %w", targetID, err)
	}
	return resp.OfferID, nil
}

// OfferState devuelve el estado externo de una oferta.
func (c *Client) OfferState(ctx context.Context, offerID string) (ports.OfferState, error) {
	var resp offerStateResponse
	if err := c.get(ctx, c.offersLimiter, "/offers/"+url.PathEscape(offerID), &resp); err != nil {
		return ports.OfferUnknown, fmt.Errorf("steamgw.OfferState: %s: %w", offerID, err)
	}
	return ports.OfferState(resp.State), nil
}

// LoadInventory devuelve el inventario propio del bot para un catálogo.
func (c *Client) LoadInventory(ctx context.Context, catalogID string) ([]domain.Item, error) {
	var resp inventoryResponse
	if err := c.get(ctx, c.generalLimiter, "/inventory/"+url.PathEscape(catalogID), &resp); err != nil {
		return nil, fmt.Errorf("steamgw.LoadInventory: catalog %s: %w", catalogID, err)
	}
	return mapItems(resp.Items), nil
}

// GetProfile devuelve el perfil de una contraparte.
func (c *Client) GetProfile(ctx context.Context, userID string) (ports.Profile, error) {
	var resp profileResponse
	if err := c.get(ctx, c.generalLimiter, "/profiles/"+url.PathEscape(userID), &resp); err != nil {
		return ports.Profile{}, fmt.Errorf("steamgw.GetProfile: %s: %w", userID, err)
	}
	return ports.Profile{ID: resp.ID, Name: resp.Name, Public: resp.Public}, nil
}

// SendChatMessage entrega un mensaje de chat a un usuario.
func (c *Client) SendChatMessage(ctx context.Context, userID, message string) error {
	path := "/chat/" + url.PathEscape(userID)
	if err := c.post(ctx, c.generalLimiter, path, chatRequest{Message: message}, nil); err != nil {
		return fmt.Errorf("steamgw.SendChatMessage: %s: %w", userID, err)
	}
	return nil
}

func mapItems(dtos []itemDTO) []domain.Item {
	if len(dtos) == 0 {
		return nil
	}
	items := make([]domain.Item, 0, len(dtos))
	for _, d := range dtos {
		items = append(items, domain.Item{AssetID: d.AssetID, CatalogID: d.CatalogID, Kind: d.Kind})
	}
	return items
}
