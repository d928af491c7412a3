package llms

import (
	"context"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/cespare/xxhash/v2"
	"github.com/smallnest/agentgraph/errs"
	"github.com/smallnest/agentgraph/log"
)

// CachedModel answers repeated requests from an LlmCache.
type CachedModel struct {
	model  ChatModel
	cache  LlmCache
	logger log.Logger
}

var _ ChatModel = (*CachedModel)(nil)

// NewCachedModel wraps model with cache. Cache failures are logged and
// the call falls through to the model.
func NewCachedModel(model ChatModel, cache LlmCache) *CachedModel {
	return &CachedModel{model: model, cache: cache, logger: log.GetDefaultLogger()}
}

// WithLogger replaces the logger used for cache failures.
func (c *CachedModel) WithLogger(l log.Logger) *CachedModel {
	c.logger = l
	return c
}

// RequestKey fingerprints the canonical JSON encoding of req.
func RequestKey(req *ChatRequest) (string, error) {
	data, err := sonic.ConfigStd.Marshal(req)
	if err != nil {
		return "", errs.Newf(errs.KindCache, "encode request: %w", err)
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16), nil
}

func (c *CachedModel) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	key, err := RequestKey(req)
	if err != nil {
		return nil, err
	}

	resp, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.Warn("llm cache get %s: %v", key, err)
	case ok:
		return resp, nil
	}

	resp, err = c.model.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Put(ctx, key, resp); err != nil {
		c.logger.Warn("llm cache put %s: %v", key, err)
	}
	return resp, nil
}

// Profile forwards to the wrapped model.
func (c *CachedModel) Profile() Profile {
	return ProfileOf(c.model)
}
