// Package notify sends the best-effort staff email for every paid order.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pageone/kundeklubb-backend/internal/fault"
	"github.com/pageone/kundeklubb-backend/internal/logging"
	"github.com/pageone/kundeklubb-backend/internal/metrics"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Summary is serialized into the email body.
type Summary struct {
	OrderID       string        `json:"orderId"`
	Amount        int64         `json:"amount"`
	Currency      string        `json:"currency"`
	CustomerEmail string        `json:"customer_email"`
	CustomerName  string        `json:"customer_name"`
	Items         []SummaryItem `json:"items"`
}

type SummaryItem struct {
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Quantity    int    `json:"quantity"`
}

type Config struct {
	APIURL    string
	APIKey    string
	From      string
	Recipient string
	Timeout   time.Duration
}

// Notifier never reports failures to its callers' flow; they are logged and
// counted. A run of failures opens the breaker and later sends fail fast.
type Notifier struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func New(cfg Config, httpClient *http.Client, m *metrics.Metrics, logger *zap.Logger) *Notifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "staff-mail",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &Notifier{cfg: cfg, http: httpClient, breaker: breaker, metrics: m, logger: logging.OrNop(logger).Named("notify")}
}

type address struct {
	Email string `json:"email"`
}

type personalization struct {
	To []address `json:"to"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

// Send delivers one notification through the breaker.
func (n *Notifier) Send(ctx context.Context, summary Summary) error {
	_, err := n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.send(ctx, summary)
	})
	if err != nil {
		if !errors.Is(err, fault.ErrNotification) {
			err = fault.Wrap(fault.KindNotification, "notify.send", err)
		}
		return err
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, summary Summary) error {
	const op = "notify.send"

	encoded, err := json.Marshal(summary)
	if err != nil {
		return fault.Wrap(fault.KindNotification, op, err)
	}
	body, err := json.Marshal(mailRequest{
		Personalizations: []personalization{{To: []address{{Email: n.cfg.Recipient}}}},
		From:             address{Email: n.cfg.From},
		Subject:          "New Order Notification",
		Content:          []content{{Type: "text/plain", Value: "New Order Received: " + string(encoded)}},
	})
	if err != nil {
		return fault.Wrap(fault.KindNotification, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return fault.Wrap(fault.KindNotification, op, err)
	}
	req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return fault.Wrap(fault.KindNotification, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fault.New(fault.KindNotification, op, fmt.Sprintf("mail api rejected order %s", summary.OrderID)).WithStatus(resp.StatusCode)
	}
	return nil
}

// Dispatch sends summary on a detached goroutine bounded by the configured
// timeout. The returned channel is closed when the attempt finished.
func (n *Notifier) Dispatch(summary Summary) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), n.cfg.Timeout)
		defer cancel()

		start := time.Now()
		err := n.Send(ctx, summary)
		fields := []zap.Field{
			zap.String("order_id", summary.OrderID),
			zap.Duration("elapsed", time.Since(start)),
		}
		if err != nil {
			n.metrics.ObserveNotification("failed")
			n.logger.Error("staff notification not delivered", append(fields, zap.Error(err))...)
			return
		}
		n.metrics.ObserveNotification("sent")
		n.logger.Info("staff notification sent", fields...)
	}()
	return done
}
