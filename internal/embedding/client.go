// Package embedding fetches item embedding vectors from the embedding
// service used by the distance indicator.
package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/novelty/internal/config"
)

type ClientInterface interface {
	Vector(ctx context.Context, id string) ([]float64, bool, error)
}

// Client is a caching HTTP client for the embedding service. Vectors and
// misses are cached for the lifetime of the client.
type Client struct {
	cfg    *config.EmbeddingEnvConfig
	client *resty.Client

	mu    sync.RWMutex
	cache map[string][]float64
}

func NewClient(cfg *config.EmbeddingEnvConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	client := resty.New().
		SetBaseURL(cfg.EmbeddingURL).
		SetTimeout(cfg.EmbeddingTimeout).
		SetRetryCount(cfg.EmbeddingRetries).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	return &Client{
		cfg:    cfg,
		client: client,
		cache:  make(map[string][]float64),
	}, nil
}

// Vector returns the embedding of id. An unknown id yields ok false.
func (c *Client) Vector(ctx context.Context, id string) ([]float64, bool, error) {
	c.mu.RLock()
	vec, cached := c.cache[id]
	c.mu.RUnlock()
	if cached {
		return vec, vec != nil, nil
	}

	var out VectorResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/embeddings/" + url.PathEscape(id))
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("embedding request failed")
		return nil, false, fmt.Errorf("get embedding: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		vec = nil
	case resp.IsError():
		log.Error().Int("status", resp.StatusCode()).Str("body", resp.String()).Msg("embedding non-2xx")
		return nil, false, fmt.Errorf("embedding status %d: %s", resp.StatusCode(), resp.String())
	case !out.Success:
		return nil, false, fmt.Errorf("embedding api returned success=false for %s", id)
	default:
		vec = out.Vector
	}

	c.mu.Lock()
	c.cache[id] = vec
	c.mu.Unlock()
	return vec, vec != nil, nil
}
