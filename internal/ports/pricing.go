package ports

import (
	"context"

	"github.com/alejandrodnm/potbot/internal/domain"
)

// PriceFeed obtiene las valuaciones de mercado actuales de un catálogo.
type PriceFeed interface {
	// FetchAllValuations devuelve la última valuación por tipo de item.
	FetchAllValuations(ctx context.Context, catalogID string) (map[string]domain.Valuation, error)
}
