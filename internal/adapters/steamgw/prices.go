package steamgw

import (
	"context"
	"fmt"
	"net/url"

	"github.com/alejandrodnm/potbot/internal/domain"
)

// FetchAllValuations implementa ports.PriceFeed contra el endpoint de
// precios de mercado del gateway.
func (c *Client) FetchAllValuations(ctx context.Context, catalogID string) (map[string]domain.Valuation, error) {
	var resp pricesResponse
	if err := c.get(ctx, c.generalLimiter, "/prices/"+url.PathEscape(catalogID), &resp); err != nil {
		return nil, fmt.Errorf("steamgw.FetchAllValuations: catalog %s: %w", catalogID, err)
	}
	vals := make(map[string]domain.Valuation, len(resp.Prices))
	for _, p := range resp.Prices {
		vals[p.Kind] = domain.Valuation{
			Kind:      p.Kind,
			Value:     p.ValueCents,
			Liquidity: p.Liquidity,
			UpdatedAt: p.UpdatedAt,
		}
	}
	return vals, nil
}
