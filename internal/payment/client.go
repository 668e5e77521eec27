// Package payment talks to the hosted-checkout payment provider and
// classifies the redirects its checkout page performs.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pageone/kundeklubb-backend/internal/fault"
)

type Config struct {
	TokenURL     string
	Audience     string
	SessionURL   string
	ClientID     string
	ClientSecret string
}

// Client performs the two-step token + session protocol. It keeps no token
// between calls; every checkout authenticates again.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, http: httpClient}
}

type tokenRequest struct {
	GrantType string `json:"grant_type"`
	Audience  string `json:"audience"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// FetchAccessToken exchanges the client credentials for a bearer token.
func (c *Client) FetchAccessToken(ctx context.Context) (string, error) {
	const op = "payment.fetch_token"

	body, err := json.Marshal(tokenRequest{GrantType: "client_credentials", Audience: c.cfg.Audience})
	if err != nil {
		return "", fault.Wrap(fault.KindAuth, op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, bytes.NewReader(body))
	if err != nil {
		return "", fault.Wrap(fault.KindAuth, op, err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fault.Wrap(fault.KindAuth, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fault.New(fault.KindAuth, op, "unexpected status").WithStatus(resp.StatusCode)
	}
	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fault.Wrap(fault.KindAuth, op, err).WithStatus(resp.StatusCode)
	}
	if out.AccessToken == "" {
		return "", fault.New(fault.KindAuth, op, "response has no access_token").WithStatus(resp.StatusCode)
	}
	return out.AccessToken, nil
}

type sessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateSession registers the order with the provider and returns the hosted
// checkout URL.
func (c *Client) CreateSession(ctx context.Context, session SessionRequest, token string) (string, error) {
	const op = "payment.create_session"

	body, err := json.Marshal(session)
	if err != nil {
		return "", fault.Wrap(fault.KindSession, op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SessionURL, bytes.NewReader(body))
	if err != nil {
		return "", fault.Wrap(fault.KindSession, op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fault.Wrap(fault.KindSession, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fault.New(fault.KindSession, op, "unexpected status").WithStatus(resp.StatusCode)
	}
	var out sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fault.Wrap(fault.KindSession, op, err).WithStatus(resp.StatusCode)
	}
	u, err := url.Parse(out.URL)
	if out.URL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		return "", fault.New(fault.KindSession, op, fmt.Sprintf("response has no usable url %q", out.URL)).WithStatus(resp.StatusCode)
	}
	return out.URL, nil
}
