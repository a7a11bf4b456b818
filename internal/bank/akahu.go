package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://api.akahu.io/v1"

// AkahuClient talks to the Akahu open-banking API.
type AkahuClient struct {
	baseURL    string
	appToken   string
	appSecret  string
	httpClient *http.Client
}

// NewAkahuClient builds a client with a bounded per-call timeout. baseURL may
// be empty for the production endpoint.
func NewAkahuClient(baseURL, appToken, appSecret string, timeout time.Duration) *AkahuClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AkahuClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		appToken:   appToken,
		appSecret:  appSecret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type akahuAccount struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Bank string `json:"bank"`
	Type string `json:"type"`
}

type akahuTransaction struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
}

// Accounts implements Client.
func (a *AkahuClient) Accounts(ctx context.Context, token string) ([]Account, error) {
	var body struct {
		Accounts []akahuAccount `json:"accounts"`
	}
	if err := a.get(ctx, token, "/accounts", nil, &body); err != nil {
		return nil, err
	}

	accounts := make([]Account, 0, len(body.Accounts))
	for _, acc := range body.Accounts {
		accounts = append(accounts, Account{ID: acc.ID, Name: acc.Name, Bank: acc.Bank, Type: acc.Type})
	}
	return accounts, nil
}

// Transactions implements Client. Only credits are returned; debits can never
// be rent payments.
func (a *AkahuClient) Transactions(ctx context.Context, token string, since, until time.Time) ([]Transaction, error) {
	params := url.Values{}
	params.Set("start", since.Format(time.RFC3339))
	params.Set("end", until.Format(time.RFC3339))

	var body struct {
		Transactions []akahuTransaction `json:"transactions"`
	}
	if err := a.get(ctx, token, "/transactions", params, &body); err != nil {
		return nil, err
	}

	txns := make([]Transaction, 0, len(body.Transactions))
	for _, raw := range body.Transactions {
		if raw.Amount <= 0 {
			continue
		}
		date, err := time.Parse(time.RFC3339, raw.Date)
		if err != nil {
			// some institutions send plain dates
			date, err = time.Parse("2006-01-02", raw.Date)
			if err != nil {
				continue
			}
		}
		txns = append(txns, Transaction{
			ID:          raw.ID,
			Date:        date,
			Amount:      decimal.NewFromFloat(raw.Amount),
			Description: raw.Description,
		})
	}
	return txns, nil
}

// ExchangeCode implements Client.
func (a *AkahuClient) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("client_id", a.appToken)
	form.Set("client_secret", a.appSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return "", err
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrAuthFailed)
	}
	return body.AccessToken, nil
}

func (a *AkahuClient) get(ctx context.Context, token, path string, params url.Values, out interface{}) error {
	u := a.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// classifyStatus maps HTTP statuses onto the error taxonomy.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuthFailed, status)
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: status %d", ErrTransient, status)
	default:
		return fmt.Errorf("bank request failed: status %d", status)
	}
}
