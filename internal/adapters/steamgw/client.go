// Package steamgw es el HTTP client del sidecar gateway de trades: el
// proceso que posee la sesión de Steam y expone ofertas, inventario,
// perfiles, chat y el feed de precios por una REST API local.
package steamgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBase = "http://127.0.0.1:7030"

	// El gateway proxea llamadas web de Steam, muy limitadas aguas
	// arriba; quedarse bien por debajo de su presupuesto documentado.
	offersRatePerSec  = 1
	generalRatePerSec = 5

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client es el HTTP client del gateway con rate limiting y retries.
type Client struct {
	http           *http.Client
	base           string
	token          string
	offersLimiter  *rate.Limiter
	generalLimiter *rate.Limiter
}

// NewClient crea un Client para el base URL del gateway dado.
// Si base está vacío, usa el default local.
func NewClient(base, token string) *Client {
	if base == "" {
		base = defaultBase
	}
	return &Client{
		http:           &http.Client{Timeout: 15 * time.Second},
		base:           base,
		token:          token,
		offersLimiter:  rate.NewLimiter(offersRatePerSec, 2),
		generalLimiter: rate.NewLimiter(generalRatePerSec, 5),
	}
}

// get hace un GET con rate limiting y retries.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, path string, out any) error {
	return c.doWithRetry(ctx, limiter, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)
		return c.http.Do(req)
	}, out)
}

// post hace un POST JSON con rate limiting y retries.
func (c *Client) post(ctx context.Context, limiter *rate.Limiter, path string, body, out any) error {
	return c.doWithRetry(ctx, limiter, func() (*http.Response, error) {
		var buf bytes.Buffer
		if body != nil {
			if err := json.NewEncoder(&buf).Encode(body); err != nil {
				return nil, fmt.Errorf("marshal body: %w", err)
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, &buf)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)
		req.Header.Set("Content-Type", "application/json")
		return c.http.Do(req)
	}, out)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// doWithRetry ejecuta el request hasta maxRetries+1 veces, reintentando
// 429, 5xx y errores de transporte con backoff fijo. 4xx es terminal.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by gateway", "attempt", attempt+1)
			c.sleep(ctx)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("gateway error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera el backoff fijo, respetando el contexto.
func (c *Client) sleep(ctx context.Context) {
	select {
	case <-time.After(baseRetryWait):
	case <-ctx.Done():
	}
}
