package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"

	"github.com/zanwyyy/contractsync/model"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	defaultMaxTries    = 3
	maxBodyBytes       = 8 << 20
)

// Esplora is the live network provider. It talks to an Esplora compatible
// REST API (GET /address/{address}/utxo).
//
// Transient failures are retried inside the provider; the caller only sees
// the final outcome.
type Esplora struct {
	baseURL  string
	client   *http.Client
	maxTries uint
	backoff  func() backoff.BackOff
}

type EsploraOption func(*Esplora)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) EsploraOption {
	return func(e *Esplora) {
		if c != nil {
			e.client = c
		}
	}
}

// WithMaxTries bounds attempts per query. 1 disables retries.
func WithMaxTries(n uint) EsploraOption {
	return func(e *Esplora) {
		if n > 0 {
			e.maxTries = n
		}
	}
}

// WithBackOff sets the retry schedule.
func WithBackOff(fn func() backoff.BackOff) EsploraOption {
	return func(e *Esplora) {
		if fn != nil {
			e.backoff = fn
		}
	}
}

func NewEsplora(baseURL string, opts ...EsploraOption) (*Esplora, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("esplora: invalid base url %q", baseURL)
	}
	e := &Esplora{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: defaultHTTPTimeout},
		maxTries: defaultMaxTries,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

func (e *Esplora) Name() string { return "esplora" }

type esploraUTXO struct {
	Txid   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Value  int64  `json:"value"`
	Status struct {
		Confirmed   bool  `json:"confirmed"`
		BlockHeight int64 `json:"block_height"`
	} `json:"status"`
}

func (e *Esplora) GetUtxos(ctx context.Context, address string) ([]model.UTXO, error) {
	endpoint := e.baseURL + "/address/" + url.PathEscape(address) + "/utxo"

	return backoff.Retry(ctx, func() ([]model.UTXO, error) {
		return e.fetch(ctx, endpoint)
	},
		backoff.WithBackOff(e.backoff()),
		backoff.WithMaxTries(e.maxTries),
	)
}

// fetch performs one attempt. Errors wrapped in backoff.Permanent are not retried.
func (e *Esplora) fetch(ctx context.Context, endpoint string) ([]model.UTXO, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, backoff.Permanent(ctxErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s: status %d", ErrUnavailable, endpoint, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("esplora %s: status %d: %s",
			endpoint, resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var raw []esploraUTXO
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, backoff.Permanent(errors.Join(ErrBadResponse, err))
	}

	out := make([]model.UTXO, 0, len(raw))
	for _, r := range raw {
		out = append(out, model.UTXO{Txid: r.Txid, Vout: r.Vout, Satoshis: r.Value})
	}
	return out, nil
}
