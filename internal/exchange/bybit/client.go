package bybit

import (
	"context"
	"net/http"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/safety"
)

// DemoBaseURL is Bybit's demo trading host.
const DemoBaseURL = "https://api-demo.bybit.com"

// Client wraps the Bybit v5 API client. Every request carries the caller's
// context, passes the shared rate limiter and goes through the circuit breaker.
type Client struct {
	httpClient *bybit_api.Client
	category   string
	testnet    bool
	demo       bool
	limiter    *safety.RateLimiter
	breaker    *safety.CircuitBreaker
	retry      RetryConfig
}

// Config holds the configuration for the Bybit client
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool
	Category  string        // spot unless set
	Timeout   time.Duration // HTTP client timeout
	RateLimit int           // requests per second
	Retry     *RetryConfig  // read-only calls only; nil uses DefaultRetryConfig
}

// NewClient creates a new Bybit client
func NewClient(config Config) *Client {
	baseURL := bybit_api.MAINNET
	if config.Demo {
		baseURL = DemoBaseURL
	} else if config.Testnet {
		baseURL = bybit_api.TESTNET
	}
	if config.Category == "" {
		config.Category = "spot"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 10
	}
	retry := DefaultRetryConfig()
	if config.Retry != nil {
		retry = *config.Retry
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)
	httpClient.HTTPClient = &http.Client{Timeout: config.Timeout}

	return &Client{
		httpClient: httpClient,
		category:   config.Category,
		testnet:    config.Testnet,
		demo:       config.Demo,
		limiter:    safety.NewRateLimiter("bybit", config.RateLimit, config.RateLimit),
		breaker:    safety.NewCircuitBreaker("bybit", safety.CircuitBreakerConfig{}),
		retry:      retry,
	}
}

func (c *Client) IsTestnet() bool { return c.testnet }

func (c *Client) IsDemo() bool { return c.demo }

// Category is the product line requests default to.
func (c *Client) Category() string { return c.category }

// Breaker exposes the circuit breaker so callers can observe its state.
func (c *Client) Breaker() *safety.CircuitBreaker { return c.breaker }

// GetEnvironment returns a string describing the current environment
func (c *Client) GetEnvironment() string {
	if c.demo {
		return "demo"
	} else if c.testnet {
		return "testnet"
	}
	return "mainnet"
}

// apiCall is one SDK request.
type apiCall func(ctx context.Context) (*bybit_api.ServerResponse, error)

// do runs call and decodes its result into out. Errors come back as BotError.
func (c *Client) do(ctx context.Context, operation string, call apiCall, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return toBotError(operation, err)
	}
	return c.breaker.Call(func() error {
		resp, err := call(ctx)
		if err != nil {
			return toBotError(operation, err)
		}
		if err := decodeResult(resp, out); err != nil {
			return toBotError(operation, err)
		}
		return nil
	})
}

func (c *Client) params(symbol string) map[string]interface{} {
	p := map[string]interface{}{"category": c.category}
	if symbol != "" {
		p["symbol"] = symbol
	}
	return p
}
