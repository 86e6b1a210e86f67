package upload

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/amq10717-bit/SkillUp-sub001/internal/apperr"
)

// Credential is the short-lived, folder-scoped authorization the
// backend issues for one direct upload.
type Credential struct {
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
	APIKey    string `json:"apiKey"`
	CloudName string `json:"cloudName"`
	Folder    string `json:"folder"`
}

func (c *Credential) complete() bool {
	return c.Timestamp != 0 && c.Signature != "" && c.APIKey != "" && c.CloudName != ""
}

// SignatureClient fetches upload credentials from the trusted backend.
// Transient failures are retried with exponential backoff; a tripping
// breaker short-circuits a flapping endpoint.
type SignatureClient struct {
	base    string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	maxWait time.Duration
}

func NewSignatureClient(baseURL string, timeout time.Duration) *SignatureClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "cloudinary-signature",
		Timeout: 30 * time.Second,
	})
	return &SignatureClient{
		base:    baseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: cb,
		maxWait: 10 * time.Second,
	}
}

// Fetch requests a credential scoped to folder.
func (c *SignatureClient) Fetch(ctx context.Context, folder string) (*Credential, error) {
	res, err := c.breaker.Execute(func() (any, error) {
		return c.fetchWithRetry(ctx, folder)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, apperr.Wrap(apperr.KindNetwork, "signature endpoint unavailable", err)
		}
		return nil, err
	}
	return res.(*Credential), nil
}

func (c *SignatureClient) fetchWithRetry(ctx context.Context, folder string) (*Credential, error) {
	var cred *Credential
	operation := func() error {
		got, err := c.fetchOnce(ctx, folder)
		if err != nil {
			if apperr.IsAuth(err) {
				// a malformed credential will not heal with retries
				return backoff.Permanent(err)
			}
			return err
		}
		cred = got
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.maxWait
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return cred, nil
}

func (c *SignatureClient) fetchOnce(ctx context.Context, folder string) (*Credential, error) {
	u := c.base + "/api/cloudinary-signature"
	if folder != "" {
		u += "?folder=" + url.QueryEscape(folder)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, "signature request", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, "signature fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, apperr.Newf(apperr.KindAuth, "signature endpoint returned %d", resp.StatusCode)
	}
	var cred Credential
	if err := json.NewDecoder(resp.Body).Decode(&cred); err != nil {
		return nil, apperr.Wrap(apperr.KindAuth, "malformed signature response", err)
	}
	if !cred.complete() {
		return nil, apperr.New(apperr.KindAuth, "incomplete signature response")
	}
	return &cred, nil
}
