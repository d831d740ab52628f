package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"minibank-core/internal/config"
	"minibank-core/internal/domain"
	"minibank-core/internal/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

const (
	serviceName  = "ledger"
	secretHeader = "X-Internal-Secret"
)

// Client calls the ledger HTTP surface. It never retries: a failed balance
// call is reported to the caller as is. Business rejections do not count
// against the circuit breaker.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

func New(cfg config.LedgerClientConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return NewWithHTTPClient(cfg, &http.Client{Timeout: timeout})
}

func NewWithHTTPClient(cfg config.LedgerClientConfig, httpClient *http.Client) *Client {
	failures := cfg.Breaker.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	settings := gobreaker.Settings{
		Name:        serviceName,
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    time.Duration(cfg.Breaker.IntervalSeconds) * time.Second,
		Timeout:     time.Duration(cfg.Breaker.TimeoutSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A caller that gave up says nothing about the ledger's health.
		IsSuccessful: func(err error) bool {
			return err == nil || domain.KindOf(err) != domain.KindRemoteService || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		secret:     cfg.InternalSecret,
		httpClient: httpClient,
		breaker:    gobreaker.NewCircuitBreaker(settings),
	}
}

type updateBalanceRequest struct {
	Amount    decimal.Decimal         `json:"amount"`
	Operation domain.BalanceOperation `json:"operation"`
}

type transferRequest struct {
	FromAccountID uuid.UUID       `json:"fromAccountId"`
	ToAccountID   uuid.UUID       `json:"toAccountId"`
	Amount        decimal.Decimal `json:"amount"`
}

type transferResponse struct {
	FromAccount domain.Account `json:"fromAccount"`
	ToAccount   domain.Account `json:"toAccount"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) GetAccountByUser(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	var acc domain.Account
	if err := c.do(ctx, http.MethodGet, "/accounts/by-user/"+userID.String(), nil, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (c *Client) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var acc domain.Account
	if err := c.do(ctx, http.MethodGet, "/accounts/"+id.String(), nil, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (c *Client) UpdateBalance(ctx context.Context, id uuid.UUID, op domain.BalanceOperation, amount decimal.Decimal) (*domain.Account, error) {
	var acc domain.Account
	body := updateBalanceRequest{Amount: amount, Operation: op}
	if err := c.do(ctx, http.MethodPatch, "/accounts/"+id.String()+"/update-balance", body, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (c *Client) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal) (*domain.Account, error) {
	var resp transferResponse
	body := transferRequest{FromAccountID: fromID, ToAccountID: toID, Amount: amount}
	if err := c.do(ctx, http.MethodPost, "/accounts/transfer", body, &resp); err != nil {
		return nil, err
	}
	return &resp.FromAccount, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	logger.ExternalServiceCall(serviceName, method+" "+path)

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, in, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = domain.RemoteService(err, "ledger unavailable")
	}

	logger.ExternalServiceResult(serviceName, method+" "+path, err)
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return domain.Internal(err, "failed to encode ledger request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return domain.Internal(err, "failed to build ledger request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.secret != "" {
		req.Header.Set(secretHeader, c.secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RemoteService(err, "ledger request failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.RemoteService(err, "failed to read ledger response")
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return domain.RemoteService(err, "malformed ledger response")
		}
		return nil
	}
	return classify(resp.StatusCode, payload)
}

// classify maps a ledger error response onto the orchestrator's error kinds.
// The ledger reports business rejections as 400 with a code in the envelope.
func classify(status int, payload []byte) error {
	var env errorEnvelope
	_ = json.Unmarshal(payload, &env)
	msg := env.Error.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch status {
	case http.StatusNotFound:
		return domain.NotFound("%s", msg)
	case http.StatusBadRequest:
		switch domain.ErrorKind(env.Error.Code) {
		case domain.KindInsufficientFunds:
			return domain.InsufficientFunds("%s", msg)
		case domain.KindValidation:
			return domain.Validation("%s", msg)
		default:
			return domain.Conflict("%s", msg)
		}
	}
	return domain.RemoteService(fmt.Errorf("ledger returned %d", status), "%s", msg)
}
