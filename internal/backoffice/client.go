// Package backoffice wraps the retail back-office REST API used to
// materialize paid orders.
package backoffice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pageone/kundeklubb-backend/internal/fault"
	"github.com/pageone/kundeklubb-backend/internal/metrics"
)

// StatusParked marks an order as having all items attached and awaiting pickup.
const StatusParked = "PARKED"

type Config struct {
	BaseURL string
	Tenant  string
	Store   string
	Token   string
}

// Client issues one request per operation. It never retries.
type Client struct {
	cfg     Config
	http    *http.Client
	metrics *metrics.Metrics
}

func NewClient(cfg Config, httpClient *http.Client, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: httpClient, metrics: m}
}

type Customer struct {
	FirstName    string `json:"firstname"`
	LastName     string `json:"lastname"`
	Email        string `json:"email"`
	Mobile       string `json:"mobile"`
	Address      string `json:"address"`
	CustomerType string `json:"customerType"`
}

type CustomerAddress struct {
	FirstName   string `json:"firstname"`
	LastName    string `json:"lastname"`
	Email       string `json:"email"`
	Mobile      string `json:"mobile"`
	Address     string `json:"address"`
	PostalCode  string `json:"postalCode"`
	City        string `json:"city"`
	CountryCode string `json:"countryCode"`
}

type Order struct {
	CustomerAddress     CustomerAddress `json:"customerAddress"`
	CustomerUID         string          `json:"customerUid"`
	ExternalOrderNumber string          `json:"externalOrderNumber"`
	Note                string          `json:"note"`
	Type                string          `json:"type"`
	SystemOrigin        string          `json:"systemOrigin"`
}

// Item quantities use the back-office convention of hundredths.
type Item struct {
	ProductUID      string `json:"productUid"`
	QuantityOrdered int    `json:"quantityOrdered"`
	UnitPrice       int64  `json:"unitPrice"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// CreateCustomer succeeds only on HTTP 201 with a customerUid in the body.
func (c *Client) CreateCustomer(ctx context.Context, customer Customer) (string, error) {
	const op = "backoffice.create_customer"
	var out struct {
		CustomerUID string `json:"customerUid"`
	}
	status, err := c.do(ctx, op, http.MethodPost, c.tenantPath("customers"), customer, &out)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fault.New(fault.KindUpstream, op, "expected 201 Created").WithStatus(status)
	}
	if out.CustomerUID == "" {
		return "", fault.New(fault.KindUpstream, op, "response has no customerUid").WithStatus(status)
	}
	return out.CustomerUID, nil
}

func (c *Client) CreateOrder(ctx context.Context, order Order) (string, error) {
	const op = "backoffice.create_order"
	var out struct {
		OrderUID string `json:"orderUid"`
	}
	status, err := c.do(ctx, op, http.MethodPost, c.storePath("orders"), order, &out)
	if err != nil {
		return "", err
	}
	if out.OrderUID == "" {
		return "", fault.New(fault.KindUpstream, op, "response has no orderUid").WithStatus(status)
	}
	return out.OrderUID, nil
}

func (c *Client) AddItem(ctx context.Context, orderUID string, item Item) error {
	const op = "backoffice.add_item"
	_, err := c.do(ctx, op, http.MethodPost, c.storePath("orders", orderUID, "items"), item, nil)
	return err
}

func (c *Client) SetStatus(ctx context.Context, orderUID, status string) error {
	const op = "backoffice.set_status"
	_, err := c.do(ctx, op, http.MethodPut, c.storePath("orders", orderUID, "status"), statusRequest{Status: status}, nil)
	return err
}

func (c *Client) tenantPath(parts ...string) string {
	return c.path(append([]string{"v2", "tenants", c.cfg.Tenant}, parts...)...)
}

func (c *Client) storePath(parts ...string) string {
	return c.path(append([]string{"v2", "tenants", c.cfg.Tenant, "stores", c.cfg.Store}, parts...)...)
}

func (c *Client) path(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.cfg.BaseURL + "/" + strings.Join(escaped, "/")
}

// do sends body as JSON and decodes a 2xx response into out when out is
// non-nil. Transport failures are network errors; everything else is upstream.
func (c *Client) do(ctx context.Context, op, method, target string, body, out any) (int, error) {
	start := time.Now()
	defer func() { c.metrics.ObserveBackOffice(strings.TrimPrefix(op, "backoffice."), time.Since(start)) }()

	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fault.Wrap(fault.KindUpstream, op, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
	if err != nil {
		return 0, fault.Wrap(fault.KindNetwork, op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fault.Wrap(fault.KindNetwork, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fault.New(fault.KindUpstream, op, fmt.Sprintf("%s %s", method, req.URL.Path)).WithStatus(resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fault.Wrap(fault.KindUpstream, op, err).WithStatus(resp.StatusCode)
		}
	}
	return resp.StatusCode, nil
}
