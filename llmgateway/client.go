package llmgateway

import (
	"context"
	"fmt"
	"sync"
)

// Middleware wraps a provider call. It receives the request and a next
// function that calls the downstream handler, and returns the reply.
type Middleware func(ctx context.Context, req Request, next func(context.Context, Request) (*Reply, error)) (*Reply, error)

// Client routes requests to registered provider adapters through middleware.
// It implements Gateway and is safe for concurrent use by multiple runs.
type Client struct {
	adapters       map[string]ProviderAdapter
	defaultProfile string
	middleware     []Middleware
	mu             sync.RWMutex
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAdapter registers a provider adapter under a profile name.
func WithAdapter(profile string, adapter ProviderAdapter) ClientOption {
	return func(c *Client) {
		c.adapters[profile] = adapter
	}
}

// WithDefaultProfile sets the profile used when a request names none.
func WithDefaultProfile(profile string) ClientOption {
	return func(c *Client) {
		c.defaultProfile = profile
	}
}

// WithMiddleware adds middleware to the client.
func WithMiddleware(mw ...Middleware) ClientOption {
	return func(c *Client) {
		c.middleware = append(c.middleware, mw...)
	}
}

// RetryMiddleware returns middleware that retries transient failures with
// the given policy.
func RetryMiddleware(policy RetryPolicy) Middleware {
	return func(ctx context.Context, req Request, next func(context.Context, Request) (*Reply, error)) (*Reply, error) {
		return Retry(ctx, policy, func(ctx context.Context) (*Reply, error) {
			return next(ctx, req)
		})
	}
}

// NewClient creates a Client with the given options.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		adapters: make(map[string]ProviderAdapter),
	}
	for _, opt := range opts {
		opt(c)
	}
	// If no default and exactly one adapter, use it.
	if c.defaultProfile == "" && len(c.adapters) == 1 {
		for profile := range c.adapters {
			c.defaultProfile = profile
		}
	}
	return c
}

// RegisterAdapter adds a provider adapter to the client.
func (c *Client) RegisterAdapter(profile string, adapter ProviderAdapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adapters[profile] = adapter
	if c.defaultProfile == "" {
		c.defaultProfile = profile
	}
}

// resolveAdapter determines which adapter serves a request.
func (c *Client) resolveAdapter(req Request) (ProviderAdapter, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	profile := req.Profile
	if profile == "" {
		profile = c.defaultProfile
	}
	if profile == "" {
		if info := LookupModel(req.Model); info != nil {
			profile = info.Provider
		}
	}
	if profile == "" {
		return nil, &ConfigurationError{GatewayError: GatewayError{
			Message: "no profile specified and no default profile configured",
		}}
	}

	adapter, ok := c.adapters[profile]
	if !ok {
		return nil, &ConfigurationError{GatewayError: GatewayError{
			Message: fmt.Sprintf("profile %q has no registered adapter", profile),
		}}
	}
	return adapter, nil
}

// Call routes the request through middleware to the resolved adapter.
func (c *Client) Call(ctx context.Context, req Request) (*Reply, error) {
	adapter, err := c.resolveAdapter(req)
	if err != nil {
		return nil, err
	}

	if req.Profile == "" {
		req.Profile = adapter.Name()
	}

	handler := func(ctx context.Context, r Request) (*Reply, error) {
		return adapter.Call(ctx, r)
	}

	// Apply middleware in reverse order so first registered runs first.
	c.mu.RLock()
	mws := c.middleware
	c.mu.RUnlock()
	for i := len(mws) - 1; i >= 0; i-- {
		mw := mws[i]
		next := handler
		handler = func(ctx context.Context, r Request) (*Reply, error) {
			return mw(ctx, r, next)
		}
	}

	return handler(ctx, req)
}

// Close releases resources held by all registered adapters.
func (c *Client) Close() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var firstErr error
	for _, adapter := range c.adapters {
		if closer, ok := adapter.(Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// NewClientFromEnv creates a Client by probing the environment for provider
// API keys and creating gollm adapters for each detected provider.
func NewClientFromEnv() *Client {
	c := NewClient(WithMiddleware(RetryMiddleware(DefaultRetryPolicy())))

	// The gollm adapter handles provider-specific env var lookup internally.
	for _, provider := range []string{"openai", "anthropic"} {
		adapter, err := NewGollmAdapter(provider, "")
		if err == nil {
			c.RegisterAdapter(provider, adapter)
		}
	}

	return c
}
