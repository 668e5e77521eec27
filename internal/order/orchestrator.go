package order

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pageone/kundeklubb-backend/internal/backoffice"
	"github.com/pageone/kundeklubb-backend/internal/events"
	"github.com/pageone/kundeklubb-backend/internal/fault"
	"github.com/pageone/kundeklubb-backend/internal/logging"
	"github.com/pageone/kundeklubb-backend/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	orderNote     = "Online order via app"
	orderType     = "ORDER"
	systemOrigin  = "APP"
	countryCode   = "NO"
	customerType  = "PERSON"
	quantityScale = 100
)

// MinSettleDelay is the shortest wait between issuing the item requests and
// the status update. Shorter configured delays are raised to it.
const MinSettleDelay = 100 * time.Millisecond

// BackOffice is the subset of the back-office API the submission needs.
type BackOffice interface {
	CreateCustomer(ctx context.Context, customer backoffice.Customer) (string, error)
	CreateOrder(ctx context.Context, order backoffice.Order) (string, error)
	AddItem(ctx context.Context, orderUID string, item backoffice.Item) error
	SetStatus(ctx context.Context, orderUID, status string) error
}

// CustomerCache reads and writes the back-office customer uid cached on a
// user's profile.
type CustomerCache interface {
	BackOfficeCustomerUID(userID int) (string, error)
	SetBackOfficeCustomerUID(userID int, uid string) error
}

// Submission is one paid checkout to materialize in the back-office.
type Submission struct {
	CheckoutID string
	UserID     int
	Draft      Draft
	Currency   string

	// ExternalOrderNumber is generated when empty.
	ExternalOrderNumber string

	// OnTransition, when set, is called for every state entered.
	OnTransition func(State)
}

// Result describes how far a submission got.
type Result struct {
	State               State  `json:"state"`
	ExternalOrderNumber string `json:"externalOrderNumber"`
	CustomerUID         string `json:"customerUid,omitempty"`
	OrderUID            string `json:"orderUid,omitempty"`
	FailedItems         int    `json:"failedItems,omitempty"`
	Err                 error  `json:"-"`
}

type Orchestrator struct {
	backOffice  BackOffice
	customers   CustomerCache
	settleDelay time.Duration
	metrics     *metrics.Metrics
	publisher   events.Publisher
	logger      *zap.Logger

	newID func() string
	sleep func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(bo BackOffice, customers CustomerCache, settleDelay time.Duration, m *metrics.Metrics, pub events.Publisher, logger *zap.Logger) *Orchestrator {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if settleDelay < MinSettleDelay {
		settleDelay = MinSettleDelay
	}
	return &Orchestrator{
		backOffice:  bo,
		customers:   customers,
		settleDelay: settleDelay,
		metrics:     m,
		publisher:   pub,
		logger:      logging.OrNop(logger).Named("order"),
		newID:       uuid.NewString,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit runs customer -> order -> items -> status. Item requests are issued
// concurrently and not awaited before the status update; the status update
// follows the fixed settle delay. Item results are only collected afterwards
// for logging, so a Done result may still carry FailedItems.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) Result {
	run := &submissionRun{
		o:     o,
		sub:   sub,
		start: time.Now(),
		log:   o.logger.With(zap.String("checkout_id", sub.CheckoutID), zap.Int("user_id", sub.UserID)),
	}
	run.execute(ctx)
	res := run.res
	o.finish(ctx, run, res, time.Since(run.start))
	return res
}

type submissionRun struct {
	o     *Orchestrator
	sub   Submission
	start time.Time
	res   Result
	log   *zap.Logger
}

func (r *submissionRun) enter(s State) {
	r.res.State = s
	if r.sub.OnTransition != nil {
		r.sub.OnTransition(s)
	}
	r.log.Info("state entered",
		zap.Stringer("state", s),
		zap.String("customer_uid", r.res.CustomerUID),
		zap.String("order_uid", r.res.OrderUID),
		zap.Duration("elapsed", time.Since(r.start)),
	)
}

func (r *submissionRun) fail(step string, err error) {
	r.res.Err = fmt.Errorf("%s: %w", step, err)
	r.enter(StateFailed)
}

func (r *submissionRun) execute(ctx context.Context) {
	o, sub := r.o, r.sub
	contact := sub.Draft.Contact
	r.res.ExternalOrderNumber = sub.ExternalOrderNumber
	if r.res.ExternalOrderNumber == "" {
		r.res.ExternalOrderNumber = o.newID()
	}

	cached, err := o.customers.BackOfficeCustomerUID(sub.UserID)
	if err != nil {
		r.log.Warn("customer lookup failed, treating profile as uncached", zap.Error(err))
	}

	if cached != "" {
		r.res.CustomerUID = cached
		r.enter(StateCustomerResolved)
	} else {
		r.enter(StateCustomerResolving)
		first, last := SplitName(contact.Name)
		uid, err := o.backOffice.CreateCustomer(ctx, backoffice.Customer{
			FirstName:    first,
			LastName:     last,
			Email:        contact.Email,
			Mobile:       contact.Phone,
			Address:      fmt.Sprintf("%s, %s, %s, %s", contact.Address, contact.PostPlace, contact.PostCode, countryCode),
			CustomerType: customerType,
		})
		if err != nil {
			r.fail("create customer", err)
			return
		}
		r.res.CustomerUID = uid
		if err := o.customers.SetBackOfficeCustomerUID(sub.UserID, uid); err != nil {
			r.log.Warn("caching customer uid failed", zap.String("customer_uid", uid), zap.Error(err))
		}
		r.enter(StateCustomerResolved)
	}

	r.enter(StateOrderCreating)
	orderUID, err := o.backOffice.CreateOrder(ctx, backoffice.Order{
		CustomerAddress: backoffice.CustomerAddress{
			FirstName:   contact.Name,
			LastName:    "",
			Email:       contact.Email,
			Mobile:      contact.Phone,
			Address:     contact.Address,
			PostalCode:  contact.PostCode,
			City:        contact.PostPlace,
			CountryCode: countryCode,
		},
		CustomerUID:         r.res.CustomerUID,
		ExternalOrderNumber: r.res.ExternalOrderNumber,
		Note:                orderNote,
		Type:                orderType,
		SystemOrigin:        systemOrigin,
	})
	if err != nil {
		r.fail("create order", err)
		return
	}
	r.res.OrderUID = orderUID
	r.enter(StateOrderCreated)

	r.enter(StateItemsAttaching)
	lines := sub.Draft.ItemLines()
	var failed int32
	var items errgroup.Group
	var issued sync.WaitGroup
	issued.Add(len(lines))
	for _, line := range lines {
		line := line
		items.Go(func() error {
			issued.Done()
			err := o.backOffice.AddItem(ctx, orderUID, backoffice.Item{
				ProductUID:      line.ProductUID,
				QuantityOrdered: line.Quantity * quantityScale,
				UnitPrice:       line.UnitPrice,
			})
			if err != nil {
				atomic.AddInt32(&failed, 1)
				r.log.Error("add item failed", zap.String("order_uid", orderUID), zap.String("product_uid", line.ProductUID), zap.Error(err))
			}
			return nil
		})
	}
	// Item results are joined after the status request on every path below.
	defer func() {
		_ = items.Wait()
		r.res.FailedItems = int(atomic.LoadInt32(&failed))
	}()

	// Every item request is under way before the settle delay starts; their
	// completion is not awaited.
	// TODO: gate the status update on items.Wait() once the back-office
	// owners confirm a PARKED order must never miss lines.
	issued.Wait()
	if err := o.sleep(ctx, o.settleDelay); err != nil {
		r.fail("settle delay", err)
		return
	}

	r.enter(StateStatusUpdating)
	if err := o.backOffice.SetStatus(ctx, orderUID, backoffice.StatusParked); err != nil {
		r.fail("set status", err)
		return
	}
	r.enter(StateDone)
}

func (o *Orchestrator) finish(ctx context.Context, run *submissionRun, res Result, elapsed time.Duration) {
	sub := run.sub
	o.metrics.ObserveSubmission(res.State.String())

	fields := []zap.Field{
		zap.Stringer("state", res.State),
		zap.String("external_order_number", res.ExternalOrderNumber),
		zap.String("customer_uid", res.CustomerUID),
		zap.String("order_uid", res.OrderUID),
		zap.Duration("elapsed", elapsed),
	}
	switch {
	case res.Err != nil:
		fields = append(fields, zap.Error(res.Err))
		if kind, ok := fault.KindOf(res.Err); ok {
			fields = append(fields, zap.Stringer("error_kind", kind))
		}
		run.log.Error("submission failed", fields...)
	case res.FailedItems > 0:
		run.log.Warn("submission done with incomplete items", append(fields, zap.Int("failed_items", res.FailedItems))...)
	default:
		run.log.Info("submission done", fields...)
	}

	event := events.SubmissionEvent{
		CheckoutID:          sub.CheckoutID,
		UserID:              sub.UserID,
		ExternalOrderNumber: res.ExternalOrderNumber,
		CustomerUID:         res.CustomerUID,
		OrderUID:            res.OrderUID,
		State:               res.State.String(),
		FailedItems:         res.FailedItems,
		Total:               sub.Draft.Total,
		Currency:            sub.Currency,
		OccurredAt:          time.Now().UTC(),
	}
	if res.Err != nil {
		event.Reason = res.Err.Error()
	}
	if err := o.publisher.Publish(ctx, sub.CheckoutID, event); err != nil {
		run.log.Warn("publish submission event failed", zap.Error(err))
	}
}
