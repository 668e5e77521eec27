package checkout

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pageone/kundeklubb-backend/internal/cart"
	"github.com/pageone/kundeklubb-backend/internal/fault"
	"github.com/pageone/kundeklubb-backend/internal/logging"
	"github.com/pageone/kundeklubb-backend/internal/metrics"
	"github.com/pageone/kundeklubb-backend/internal/notify"
	"github.com/pageone/kundeklubb-backend/internal/order"
	"github.com/pageone/kundeklubb-backend/internal/payment"
	"github.com/pageone/kundeklubb-backend/internal/product"
	"go.uber.org/zap"
)

type CartSource interface {
	Get(ctx context.Context, userID int) (cart.Cart, error)
}

// Catalog prices cart lines at checkout time.
type Catalog interface {
	GetByUIDs(uids []string) ([]product.Product, error)
}

type PaymentGateway interface {
	FetchAccessToken(ctx context.Context) (string, error)
	CreateSession(ctx context.Context, session payment.SessionRequest, token string) (string, error)
}

type Submitter interface {
	Submit(ctx context.Context, sub order.Submission) order.Result
}

type Notifier interface {
	Dispatch(summary notify.Summary) <-chan struct{}
}

// Settings are the merchant constants stamped on every session.
type Settings struct {
	Currency    string
	VATPercent  int
	ReturnURL   string
	CallbackURL string
	TermsURL    string
	Shipping    order.ShippingPolicy
}

// Request is the contact form submitted with the checkout.
type Request struct {
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	Address        string `json:"address"`
	PostCode       string `json:"postcode"`
	PostPlace      string `json:"postPlace"`
	ShippingMethod string `json:"shippingMethod"`
}

// Deps are the collaborators of a Service. Store, Notifier, Metrics and
// Logger are optional.
type Deps struct {
	Carts    CartSource
	Catalog  Catalog
	Payments PaymentGateway
	Orders   Submitter
	Notifier Notifier
	Store    Store
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

type Service struct {
	carts    CartSource
	catalog  Catalog
	payments PaymentGateway
	orders   Submitter
	notifier Notifier
	store    Store
	settings Settings
	metrics  *metrics.Metrics
	logger   *zap.Logger

	newID func() string
	now   func() time.Time
}

func NewService(deps Deps, settings Settings) *Service {
	store := deps.Store
	if store == nil {
		store = NewInMemoryStore(DefaultAttemptTTL)
	}
	return &Service{
		carts:    deps.Carts,
		catalog:  deps.Catalog,
		payments: deps.Payments,
		orders:   deps.Orders,
		notifier: deps.Notifier,
		store:    store,
		settings: settings,
		metrics:  deps.Metrics,
		logger:   logging.OrNop(deps.Logger).Named("checkout"),
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

func (r Request) contact() order.Contact {
	return order.Contact{
		Name:      strings.TrimSpace(r.Name),
		Phone:     strings.TrimSpace(r.Phone),
		Email:     strings.TrimSpace(r.Email),
		Address:   strings.TrimSpace(r.Address),
		PostCode:  strings.TrimSpace(r.PostCode),
		PostPlace: strings.TrimSpace(r.PostPlace),
	}
}

func validate(c order.Contact, method order.ShippingMethod) error {
	required := []struct{ field, value string }{
		{"name", c.Name},
		{"phone", c.Phone},
		{"email", c.Email},
		{"postcode", c.PostCode},
		{"postPlace", c.PostPlace},
	}
	for _, r := range required {
		if r.value == "" {
			return fault.Validation(r.field, "is required")
		}
	}
	if !method.Valid() {
		return fault.Validation("shippingMethod", "must be pickup or ship")
	}
	return nil
}

// StartCheckout validates the form against the cart, opens a hosted payment
// session and registers the attempt. Nothing reaches the network when
// validation fails.
func (s *Service) StartCheckout(ctx context.Context, userID int, req Request) (Status, error) {
	contact := req.contact()
	method := order.ShippingMethod(strings.TrimSpace(req.ShippingMethod))
	if err := validate(contact, method); err != nil {
		return Status{}, err
	}

	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	if c.IsEmpty() {
		return Status{}, fault.Validation("cart", "is empty")
	}

	lines, err := s.reprice(c.Snapshot())
	if err != nil {
		return Status{}, err
	}

	draft := order.NewDraft(contact, method, lines, s.settings.Shipping)
	a := newAttempt(s.newID(), userID, draft, s.now())
	a.listener = payment.NewListener(func(success bool) { s.onOutcome(a, success) })

	start := time.Now()
	token, err := s.payments.FetchAccessToken(ctx)
	if err != nil {
		s.sessionFailed(a, "auth_failed", err, start)
		return Status{}, err
	}
	url, err := s.payments.CreateSession(ctx, s.sessionRequest(a), token)
	if err != nil {
		s.sessionFailed(a, "session_failed", err, start)
		return Status{}, err
	}
	a.SessionURL = url

	if err := s.store.Save(a); err != nil {
		return Status{}, err
	}
	s.metrics.ObserveSession("created")
	s.logger.Info("payment session created",
		zap.Int("user_id", userID),
		zap.String("checkout_id", a.ID),
		zap.Int64("total", draft.Total),
		zap.Duration("elapsed", time.Since(start)),
	)
	return a.Status(), nil
}

// reprice replaces the cart's stored names and prices with the catalog's
// current ones. A product gone from the catalog fails validation.
func (s *Service) reprice(lines []cart.Line) ([]cart.Line, error) {
	uids := make([]string, len(lines))
	for i, l := range lines {
		uids[i] = l.ProductUID
	}
	products, err := s.catalog.GetByUIDs(uids)
	if err != nil {
		return nil, err
	}
	current := make(map[string]product.Product, len(products))
	for _, p := range products {
		current[p.UID] = p
	}

	var priced cart.Cart
	for _, l := range lines {
		p, ok := current[l.ProductUID]
		if !ok {
			return nil, fault.Validation("cart", "product "+l.ProductUID+" is no longer available")
		}
		if err := priced.Add(cart.Line{ProductUID: p.UID, Name: p.Name, UnitPrice: p.Price}, l.Quantity); err != nil {
			return nil, fault.Validation("cart", err.Error())
		}
	}
	return priced.Lines, nil
}

func (s *Service) sessionFailed(a *Attempt, result string, err error, start time.Time) {
	s.metrics.ObserveSession(result)
	s.logger.Error("payment session failed",
		zap.Int("user_id", a.UserID),
		zap.String("checkout_id", a.ID),
		zap.String("result", result),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)
}

func (s *Service) sessionRequest(a *Attempt) payment.SessionRequest {
	items := make([]payment.Item, 0, len(a.Draft.Lines))
	for _, line := range a.Draft.Lines {
		items = append(items, payment.Item{
			ID:          line.ProductUID,
			LineID:      s.newID(),
			Description: line.Name,
			Amount:      line.Amount(),
			Quantity:    line.Quantity,
			VAT:         s.settings.VATPercent,
		})
	}
	return payment.SessionRequest{
		URL: payment.SessionURLs{
			ReturnURL:        s.settings.ReturnURL,
			CallbackURL:      s.settings.CallbackURL,
			MerchantTermsURL: s.settings.TermsURL,
		},
		Customer: payment.Customer{
			Email:       a.Draft.Contact.Email,
			PhoneNumber: a.Draft.Contact.Phone,
		},
		Order: payment.Order{
			Amount:            a.Draft.Total,
			Currency:          s.settings.Currency,
			MerchantReference: a.ID,
			Items:             items,
		},
		Configuration: payment.DefaultPaymentTypes(),
	}
}

// ReportNavigation feeds one navigation of the hosted checkout to the
// attempt's listener. The first success starts the back-office submission
// and the staff notification in the background.
func (s *Service) ReportNavigation(userID int, checkoutID, rawURL string) (payment.Outcome, error) {
	a, err := s.owned(userID, checkoutID)
	if err != nil {
		return payment.OutcomePending, err
	}
	return a.listener.Observe(rawURL), nil
}

func (s *Service) onOutcome(a *Attempt, success bool) {
	outcome := payment.OutcomeFailure
	if success {
		outcome = payment.OutcomeSuccess
	}
	s.logger.Info("payment outcome", zap.Int("user_id", a.UserID), zap.String("checkout_id", a.ID), zap.Stringer("outcome", outcome))
	if !success {
		s.metrics.ObserveSession("payment_failed")
		return
	}
	s.metrics.ObserveSession("paid")

	a.mu.Lock()
	a.ExternalOrderNumber = s.newID()
	a.mu.Unlock()

	sub := order.Submission{
		CheckoutID:          a.ID,
		UserID:              a.UserID,
		Draft:               a.Draft,
		Currency:            s.settings.Currency,
		ExternalOrderNumber: a.ExternalOrderNumber,
		OnTransition:        a.setState,
	}
	go func() {
		a.finish(s.orders.Submit(context.Background(), sub))
	}()
	if s.notifier != nil {
		s.notifier.Dispatch(s.summary(a))
	}
}

func (s *Service) summary(a *Attempt) notify.Summary {
	items := make([]notify.SummaryItem, 0, len(a.Draft.Lines))
	for _, line := range a.Draft.Lines {
		items = append(items, notify.SummaryItem{Description: line.Name, Amount: line.Amount(), Quantity: line.Quantity})
	}
	return notify.Summary{
		OrderID:       a.ExternalOrderNumber,
		Amount:        a.Draft.Total,
		Currency:      s.settings.Currency,
		CustomerEmail: a.Draft.Contact.Email,
		CustomerName:  a.Draft.Contact.Name,
		Items:         items,
	}
}

func (s *Service) Status(userID int, checkoutID string) (Status, error) {
	a, err := s.owned(userID, checkoutID)
	if err != nil {
		return Status{}, err
	}
	return a.Status(), nil
}

// Abandon forgets an attempt. A submission that already started keeps
// running.
func (s *Service) Abandon(userID int, checkoutID string) error {
	a, err := s.owned(userID, checkoutID)
	if err != nil {
		return err
	}
	s.logger.Info("checkout abandoned", zap.Int("user_id", userID), zap.String("checkout_id", a.ID), zap.Stringer("outcome", a.listener.Outcome()))
	return s.store.Delete(a.ID)
}

func (s *Service) owned(userID int, checkoutID string) (*Attempt, error) {
	a, err := s.store.Get(checkoutID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, ErrAttemptNotFound
	}
	return a, nil
}

// IsNotFound reports whether err means the attempt is unknown to the caller.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAttemptNotFound)
}
