package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pageone/kundeklubb-backend/internal/cart"
	"github.com/pageone/kundeklubb-backend/internal/fault"
	"github.com/pageone/kundeklubb-backend/internal/notify"
	"github.com/pageone/kundeklubb-backend/internal/order"
	"github.com/pageone/kundeklubb-backend/internal/payment"
	"github.com/pageone/kundeklubb-backend/internal/product"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakePayments struct {
	mu         sync.Mutex
	tokenCalls int
	sessions   []payment.SessionRequest
	tokens     []string
	tokenErr   error
	sessionErr error
	sessionURL string
}

func (f *fakePayments) FetchAccessToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenCalls++
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return fmt.Sprintf("tok-%d", f.tokenCalls), nil
}

func (f *fakePayments) CreateSession(_ context.Context, s payment.SessionRequest, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, s)
	f.tokens = append(f.tokens, token)
	if f.sessionErr != nil {
		return "", f.sessionErr
	}
	if f.sessionURL != "" {
		return f.sessionURL, nil
	}
	return "https://checkout.example/v1/view/" + s.Order.MerchantReference, nil
}

type fakeSubmitter struct {
	mu   sync.Mutex
	subs []order.Submission
}

func (f *fakeSubmitter) Submit(_ context.Context, sub order.Submission) order.Result {
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	if sub.OnTransition != nil {
		sub.OnTransition(order.StateCustomerResolving)
		sub.OnTransition(order.StateDone)
	}
	return order.Result{State: order.StateDone, ExternalOrderNumber: sub.ExternalOrderNumber, OrderUID: "ord-1"}
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type fakeNotifier struct {
	mu        sync.Mutex
	summaries []notify.Summary
}

func (f *fakeNotifier) Dispatch(s notify.Summary) <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, s)
	done := make(chan struct{})
	close(done)
	return done
}

type fixture struct {
	svc      *Service
	carts    *cart.Service
	catalog  *product.InMemoryRepository
	payments *fakePayments
	orders   *fakeSubmitter
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog := product.NewInMemoryRepository([]product.Product{
		{UID: "A", Name: "Deksel", Price: 10000},
		{UID: "B", Name: "Lader", Price: 50000},
	})
	products := product.NewService(catalog)
	f := &fixture{
		carts:    cart.NewService(cart.NewInMemoryRepository(), products),
		catalog:  catalog,
		payments: &fakePayments{},
		orders:   &fakeSubmitter{},
		notifier: &fakeNotifier{},
	}
	f.svc = NewService(Deps{
		Carts:    f.carts,
		Catalog:  products,
		Payments: f.payments,
		Orders:   f.orders,
		Notifier: f.notifier,
	}, Settings{
		Currency:    "NOK",
		VATPercent:  25,
		ReturnURL:   "https://shop.example/accept?status=success",
		CallbackURL: "https://shop.example/callback?method=GET",
		TermsURL:    "https://shop.example/terms",
		Shipping:    order.ShippingPolicy{FreeThreshold: 150000, Surcharge: 19900, ProductUID: "ship-uid"},
	})
	n := 0
	f.svc.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return f
}

var validRequest = Request{
	Name:           "Ola Nordmann",
	Phone:          "+4791234567",
	Email:          "ola@example.no",
	Address:        "Storgata 1",
	PostCode:       "0155",
	PostPlace:      "Oslo",
	ShippingMethod: "pickup",
}

func waitSubmitted(t *testing.T, svc *Service, id string) {
	t.Helper()
	a, err := svc.store.Get(id)
	require.NoError(t, err)
	select {
	case <-a.submitted:
	case <-time.After(2 * time.Second):
		t.Fatal("submission did not finish")
	}
}

func TestStartCheckout_ValidationBeforeNetwork(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.carts.Add(ctx, 1, "A", 1)
	require.NoError(t, err)

	cases := map[string]func(r *Request){
		"missing name":      func(r *Request) { r.Name = " " },
		"missing phone":     func(r *Request) { r.Phone = "" },
		"missing email":     func(r *Request) { r.Email = "" },
		"missing postcode":  func(r *Request) { r.PostCode = "" },
		"missing postPlace": func(r *Request) { r.PostPlace = "" },
		"unknown method":    func(r *Request) { r.ShippingMethod = "drone" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validRequest
			mutate(&req)
			_, err := f.svc.StartCheckout(ctx, 1, req)
			assert.ErrorIs(t, err, fault.ErrValidation)
		})
	}

	_, err = f.svc.StartCheckout(ctx, 2, validRequest)
	assert.ErrorIs(t, err, fault.ErrValidation, "empty cart")
	assert.Equal(t, 0, f.payments.tokenCalls)
}

func TestStartCheckout_BuildsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.carts.Add(ctx, 1, "B", 2)
	require.NoError(t, err)

	req := validRequest
	req.ShippingMethod = "ship"
	st, err := f.svc.StartCheckout(ctx, 1, req)
	require.NoError(t, err)

	assert.Equal(t, "id-1", st.CheckoutID)
	assert.Equal(t, int64(100000+19900), st.Total)
	assert.Equal(t, "https://checkout.example/v1/view/id-1", st.URL)
	assert.Equal(t, "pending", st.Outcome)

	require.Len(t, f.payments.sessions, 1)
	s := f.payments.sessions[0]
	assert.Equal(t, []string{"tok-1"}, f.payments.tokens)
	assert.Equal(t, int64(119900), s.Order.Amount)
	assert.Equal(t, "NOK", s.Order.Currency)
	assert.Equal(t, "id-1", s.Order.MerchantReference)
	assert.Equal(t, "ola@example.no", s.Customer.Email)
	assert.Equal(t, "+4791234567", s.Customer.PhoneNumber)
	assert.Equal(t, "https://shop.example/terms", s.URL.MerchantTermsURL)
	assert.True(t, s.Configuration.ActivePaymentTypes.CreditCard.Enabled)
	assert.Equal(t, []payment.Item{{ID: "B", LineID: "id-2", Description: "Lader", Amount: 100000, Quantity: 2, VAT: 25}}, s.Order.Items)
}

func TestStartCheckout_ReauthenticatesEveryTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.carts.Add(ctx, 1, "A", 1)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := f.svc.StartCheckout(ctx, 1, validRequest)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.payments.tokenCalls)
	assert.Equal(t, []string{"tok-1", "tok-2"}, f.payments.tokens)
}

func TestStartCheckout_ProviderErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.carts.Add(ctx, 1, "A", 1)
	require.NoError(t, err)

	f.payments.tokenErr = fault.Wrap(fault.KindAuth, "payment.token", errors.New("dial tcp: refused"))
	_, err = f.svc.StartCheckout(ctx, 1, validRequest)
	assert.ErrorIs(t, err, fault.ErrAuth)
	assert.Empty(t, f.payments.sessions)

	f.payments.tokenErr = nil
	f.payments.sessionErr = fault.New(fault.KindSession, "payment.session", "missing url")
	_, err = f.svc.StartCheckout(ctx, 1, validRequest)
	assert.ErrorIs(t, err, fault.ErrSession)
	assert.Equal(t, 0, f.orders.count())
}

func TestStartCheckout_RepricesFromCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.carts.Add(ctx, 1, "B", 2)
	require.NoError(t, err)

	f.catalog.Put(product.Product{UID: "B", Name: "Lader 65W", Price: 60000})
	st, err := f.svc.StartCheckout(ctx, 1, validRequest)
	require.NoError(t, err)

	assert.Equal(t, int64(120000), st.Total)
	require.Len(t, f.payments.sessions, 1)
	assert.Equal(t, int64(120000), f.payments.sessions[0].Order.Amount)
	assert.Equal(t, "Lader 65W", f.payments.sessions[0].Order.Items[0].Description)
}

func TestStartCheckout_RejectsRemovedProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.carts.Add(ctx, 1, "A", 1)
	require.NoError(t, err)

	f.catalog.Delete("A")
	_, err = f.svc.StartCheckout(ctx, 1, validRequest)
	assert.ErrorIs(t, err, fault.ErrValidation)
	assert.Contains(t, err.Error(), "no longer available")
	assert.Equal(t, 0, f.payments.tokenCalls)
}

func TestStartCheckout_LogsSessionFailure(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zapcore.InfoLevel)
	f.svc.logger = zap.New(core)
	ctx := context.Background()
	_, err := f.carts.Add(ctx, 1, "A", 1)
	require.NoError(t, err)

	f.payments.tokenErr = fault.Wrap(fault.KindAuth, "payment.token", errors.New("dial tcp: refused"))
	_, err = f.svc.StartCheckout(ctx, 1, validRequest)
	require.Error(t, err)

	entries := logs.FilterMessage("payment session failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "auth_failed", fields["result"])
	assert.Equal(t, "id-1", fields["checkout_id"])
	assert.Equal(t, int64(1), fields["user_id"])
}

func TestReportNavigation_SuccessSubmitsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.carts.Add(ctx, 1, "A", 2)
	require.NoError(t, err)
	st, err := f.svc.StartCheckout(ctx, 1, validRequest)
	require.NoError(t, err)

	out, err := f.svc.ReportNavigation(1, st.CheckoutID, "https://checkout.example/v1/view/x")
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomePending, out)
	assert.Equal(t, 0, f.orders.count())

	out, err = f.svc.ReportNavigation(1, st.CheckoutID, "https://shop.example/accept?status=success&transaction_id=T1")
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeSuccess, out)
	waitSubmitted(t, f.svc, st.CheckoutID)

	out, err = f.svc.ReportNavigation(1, st.CheckoutID, "https://shop.example/accept?status=failure")
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeSuccess, out)
	_, _ = f.svc.ReportNavigation(1, st.CheckoutID, "https://shop.example/accept?status=success")

	assert.Equal(t, 1, f.orders.count())
	sub := f.orders.subs[0]
	assert.Equal(t, st.CheckoutID, sub.CheckoutID)
	assert.Equal(t, 1, sub.UserID)
	assert.Equal(t, "NOK", sub.Currency)
	assert.Equal(t, int64(20000), sub.Draft.Total)

	require.Len(t, f.notifier.summaries, 1)
	summary := f.notifier.summaries[0]
	assert.Equal(t, sub.ExternalOrderNumber, summary.OrderID)
	assert.Equal(t, int64(20000), summary.Amount)
	assert.Equal(t, "Ola Nordmann", summary.CustomerName)
	assert.Equal(t, []notify.SummaryItem{{Description: "Deksel", Amount: 20000, Quantity: 2}}, summary.Items)

	status, err := f.svc.Status(1, st.CheckoutID)
	require.NoError(t, err)
	assert.Equal(t, "success", status.Outcome)
	assert.Equal(t, "done", status.Submission)
	assert.Equal(t, sub.ExternalOrderNumber, status.ExternalOrderNumber)
	require.NotNil(t, status.Result)
	assert.Equal(t, "ord-1", status.Result.OrderUID)
}

func TestReportNavigation_FailureHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.carts.Add(ctx, 1, "A", 1)
	require.NoError(t, err)
	st, err := f.svc.StartCheckout(ctx, 1, validRequest)
	require.NoError(t, err)

	out, err := f.svc.ReportNavigation(1, st.CheckoutID, "https://shop.example/accept?status=failure")
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeFailure, out)

	out, _ = f.svc.ReportNavigation(1, st.CheckoutID, "https://shop.example/accept?status=success")
	assert.Equal(t, payment.OutcomeFailure, out)
	assert.Equal(t, 0, f.orders.count())
	assert.Empty(t, f.notifier.summaries)
}

func TestAttemptsAreOwned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.carts.Add(ctx, 1, "A", 1)
	require.NoError(t, err)
	st, err := f.svc.StartCheckout(ctx, 1, validRequest)
	require.NoError(t, err)

	_, err = f.svc.Status(2, st.CheckoutID)
	assert.True(t, IsNotFound(err))
	_, err = f.svc.ReportNavigation(2, st.CheckoutID, "https://shop.example/accept?status=success")
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(f.svc.Abandon(2, st.CheckoutID)))
	assert.Equal(t, 0, f.orders.count())
}

func TestAbandon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.carts.Add(ctx, 1, "A", 1)
	require.NoError(t, err)
	st, err := f.svc.StartCheckout(ctx, 1, validRequest)
	require.NoError(t, err)

	require.NoError(t, f.svc.Abandon(1, st.CheckoutID))
	_, err = f.svc.Status(1, st.CheckoutID)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 0, f.orders.count())

	// the cart is left for the client to clear
	c, err := f.carts.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, c.IsEmpty())
}
