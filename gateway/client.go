package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/Rajtiwari0202/AgriConnect-Platform/apierr"
)

// API is the payment provider surface the services depend on. The provider
// exposes manual-capture payment intents: an authorized intent holds funds
// until it is either captured (funds move) or cancelled (hold released).
type API interface {
	CreateCustomer(ctx context.Context, params CustomerParams) (string, error)
	CreateIntent(ctx context.Context, params IntentParams) (*Intent, error)
	CreateHold(ctx context.Context, params HoldParams) (*Hold, error)
	CaptureHold(ctx context.Context, holdRef string, amount int64) error
	CancelHold(ctx context.Context, holdRef string) error
	CreateSubscription(ctx context.Context, params SubscriptionParams) (*Subscription, error)
	CancelSubscription(ctx context.Context, subRef string) error
}

type CustomerParams struct {
	Email    string            `json:"email"`
	Name     string            `json:"name"`
	Phone    string            `json:"phone,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type HoldParams struct {
	// Amount in paise.
	Amount     int64             `json:"amount"`
	Currency   string            `json:"currency"`
	CustomerID string            `json:"customer"`
	Reference  string            `json:"reference"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type IntentParams struct {
	// Amount in paise.
	Amount     int64             `json:"amount"`
	Currency   string            `json:"currency"`
	CustomerID string            `json:"customer"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Intent is an automatic-capture payment intent; the client confirms it
// with the ClientSecret and the provider reports the outcome by webhook.
type Intent struct {
	Ref          string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

// Hold is an authorized, uncaptured payment intent.
type Hold struct {
	Ref          string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

type SubscriptionParams struct {
	CustomerID string            `json:"customer"`
	PlanRef    string            `json:"plan"`
	Interval   string            `json:"interval"` // month or year
	Amount     int64             `json:"amount"`
	Currency   string            `json:"currency"`
	TrialDays  int               `json:"trial_period_days,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type Subscription struct {
	Ref          string     `json:"id"`
	Status       string     `json:"status"` // incomplete, trialing, active
	ClientSecret string     `json:"client_secret,omitempty"`
	PeriodStart  *time.Time `json:"current_period_start,omitempty"`
	PeriodEnd    *time.Time `json:"current_period_end,omitempty"`
}

const defaultBaseURL = "https://api.stripe-sim.agriconnect.in/v1"

// Client talks to the provider's REST API with the secret key from the
// environment, one HTTP call per operation and an explicit timeout.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

// NewClientFromEnv builds a client from PAYMENT_SECRET_KEY and the optional
// PAYMENT_API_URL override. A missing key means the provider is not
// configured; callers fail fast instead of degrading to a no-payment path.
func NewClientFromEnv() (*Client, error) {
	key := os.Getenv("PAYMENT_SECRET_KEY")
	if key == "" {
		return nil, apierr.New(apierr.KindProviderUnavailable, "payment provider not configured")
	}
	base := os.Getenv("PAYMENT_API_URL")
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		baseURL:   base,
		secretKey: key,
		http:      &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (c *Client) CreateCustomer(ctx context.Context, params CustomerParams) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/customers", params, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) CreateIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	var out Intent
	if err := c.post(ctx, "/payment_intents", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateHold(ctx context.Context, params HoldParams) (*Hold, error) {
	body := map[string]interface{}{
		"amount":         params.Amount,
		"currency":       params.Currency,
		"customer":       params.CustomerID,
		"capture_method": "manual",
		"reference":      params.Reference,
		"metadata":       params.Metadata,
	}
	var out Hold
	if err := c.post(ctx, "/payment_intents", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CaptureHold(ctx context.Context, holdRef string, amount int64) error {
	body := map[string]interface{}{"amount_to_capture": amount}
	return c.post(ctx, "/payment_intents/"+holdRef+"/capture", body, nil)
}

func (c *Client) CancelHold(ctx context.Context, holdRef string) error {
	return c.post(ctx, "/payment_intents/"+holdRef+"/cancel", map[string]interface{}{}, nil)
}

func (c *Client) CreateSubscription(ctx context.Context, params SubscriptionParams) (*Subscription, error) {
	var out Subscription
	if err := c.post(ctx, "/subscriptions", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelSubscription(ctx context.Context, subRef string) error {
	return c.post(ctx, "/subscriptions/"+subRef+"/cancel", map[string]interface{}{}, nil)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return apierr.Wrap(apierr.KindInternal, "encoding provider request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(payload))
	if err != nil {
		return apierr.Wrap(apierr.KindInternal, "building provider request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apierr.Wrap(apierr.KindProviderUnavailable, "payment provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := readProviderError(resp.Body)
		return apierr.New(apierr.KindProviderFailed,
			fmt.Sprintf("provider rejected %s (%d): %s", path, resp.StatusCode, msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apierr.Wrap(apierr.KindProviderFailed, "decoding provider response", err)
	}
	return nil
}

func readProviderError(r io.Reader) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return "unreadable error body"
	}
	if body.Error.Message != "" {
		return body.Error.Message
	}
	if body.Message != "" {
		return body.Message
	}
	return "no error detail"
}
