package order

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/chezflora/internal/domain/apperr"
	"github.com/xenking/chezflora/internal/domain/user"
	"github.com/xenking/chezflora/internal/notify"
	"github.com/xenking/chezflora/pkg/paging"
)

const (
	instrumentationName = "github.com/xenking/chezflora/internal/domain/order"
	numberAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	numberAttempts      = 5
)

// Notifier schedules an email for delivery.
type Notifier interface {
	Enqueue(ctx context.Context, msg notify.Message)
}

// Customers resolves order owners for notifications.
type Customers interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// CreateRequest is the checkout input. BillingAddressID defaults to
// ShippingAddressID.
type CreateRequest struct {
	ShippingAddressID string
	BillingAddressID  string
	PaymentMethod     string
	Notes             string
}

// StatusUpdate is an admin status change. Empty fields are left untouched.
type StatusUpdate struct {
	Status        Status
	PaymentStatus PaymentStatus
}

// Service implements checkout and order lifecycle operations.
type Service struct {
	repo      Repository
	customers Customers
	notifier  Notifier
	tracer    trace.Tracer
	placed    metric.Int64Counter
	cancelled metric.Int64Counter
	now       func() time.Time
	suffix    func() string
}

// NewService creates an order Service.
func NewService(
	repo Repository,
	customers Customers,
	notifier Notifier,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Service, error) {
	meter := mp.Meter(instrumentationName)
	placed, err := meter.Int64Counter("flora.orders.placed",
		metric.WithDescription("Orders created from carts"))
	if err != nil {
		return nil, errors.Wrap(err, "orders placed counter")
	}
	cancelled, err := meter.Int64Counter("flora.orders.cancelled",
		metric.WithDescription("Orders cancelled by customers"))
	if err != nil {
		return nil, errors.Wrap(err, "orders cancelled counter")
	}
	return &Service{
		repo:      repo,
		customers: customers,
		notifier:  notifier,
		tracer:    tp.Tracer(instrumentationName),
		placed:    placed,
		cancelled: cancelled,
		now:       time.Now,
		suffix:    randomSuffix,
	}, nil
}

// Create converts the user's cart into an order. Stock is verified for every
// line before anything is written. The order, its items, the stock
// decrements and the cart purge commit together.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Create",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer func() { endSpan(span, rerr) }()

	if req.ShippingAddressID == "" {
		return nil, apperr.Invalid("Shipping address is required")
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return nil, apperr.Invalid("Payment method is required")
	}
	if req.BillingAddressID == "" {
		req.BillingAddressID = req.ShippingAddressID
	}

	var o *Order
	err := s.repo.WithinTx(ctx, func(tx Tx) error {
		if err := checkAddress(ctx, tx, userID, req.ShippingAddressID, "Shipping address not found"); err != nil {
			return err
		}
		if err := checkAddress(ctx, tx, userID, req.BillingAddressID, "Billing address not found"); err != nil {
			return err
		}

		lines, err := tx.CartLines(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "load cart")
		}
		if len(lines) == 0 {
			return apperr.NotFound("Your cart is empty")
		}
		for _, l := range lines {
			if l.Quantity > l.Stock {
				return apperr.Invalidf("Not enough stock for %s", l.ProductName)
			}
		}

		o = &Order{
			UserID:            userID,
			Status:            StatusPending,
			PaymentStatus:     PaymentPending,
			PaymentMethod:     strings.TrimSpace(req.PaymentMethod),
			ShippingAddressID: req.ShippingAddressID,
			BillingAddressID:  req.BillingAddressID,
			Notes:             req.Notes,
			Items:             make([]Item, 0, len(lines)),
		}
		total := decimal.Zero
		for _, l := range lines {
			it := Item{
				ProductID:   l.ProductID,
				ProductName: l.ProductName,
				Quantity:    l.Quantity,
				UnitPrice:   l.UnitPrice,
			}
			total = total.Add(it.Subtotal())
			o.Items = append(o.Items, it)
		}
		o.TotalAmount = total.Round(2)

		if err := s.insert(ctx, tx, o); err != nil {
			return err
		}
		for _, l := range lines {
			if err := tx.AdjustStock(ctx, l.ProductID, -l.Quantity); err != nil {
				return errors.Wrapf(err, "decrement stock of %s", l.ProductID)
			}
		}
		return errors.Wrap(tx.ClearCart(ctx, userID), "clear cart")
	})
	if err != nil {
		return nil, err
	}

	s.placed.Add(ctx, 1)
	span.SetAttributes(attribute.String("order.number", o.OrderNumber))
	s.notify(ctx, o, notify.TemplateOrderConfirmation, "Your ChezFlora order "+o.OrderNumber)
	return o, nil
}

func (s *Service) insert(ctx context.Context, tx Tx, o *Order) error {
	for range numberAttempts {
		o.OrderNumber = FormatNumber(s.now(), s.suffix())
		err := tx.Insert(ctx, o)
		if errors.Is(err, ErrDuplicateNumber) {
			continue
		}
		return errors.Wrap(err, "insert order")
	}
	return errors.Wrapf(ErrDuplicateNumber, "after %d attempts", numberAttempts)
}

// Cancel moves a pending or processing order to cancelled and puts the
// ordered quantities back in stock.
func (s *Service) Cancel(ctx context.Context, userID, id string) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Cancel",
		trace.WithAttributes(attribute.String("order.id", id)))
	defer func() { endSpan(span, rerr) }()

	var o *Order
	err := s.repo.WithinTx(ctx, func(tx Tx) error {
		var err error
		o, err = tx.Lock(ctx, id)
		if err != nil {
			return mapErr(err)
		}
		if o.UserID != userID {
			return apperr.NotFound("Order not found")
		}
		if !o.Status.Cancellable() {
			return apperr.Invalid("Order cannot be cancelled at this stage")
		}
		if err := tx.SetStatus(ctx, id, StatusCancelled, o.PaymentStatus); err != nil {
			return errors.Wrap(err, "set status")
		}
		for _, it := range o.Items {
			if err := tx.AdjustStock(ctx, it.ProductID, it.Quantity); err != nil {
				return errors.Wrapf(err, "restore stock of %s", it.ProductID)
			}
		}
		o.Status = StatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cancelled.Add(ctx, 1)
	s.notify(ctx, o, notify.TemplateOrderCancelled, "Your ChezFlora order "+o.OrderNumber+" was cancelled")
	return o, nil
}

// ListForUser returns a page of the user's orders.
func (s *Service) ListForUser(ctx context.Context, userID string, status Status, page paging.Page) ([]Order, paging.Meta, error) {
	return s.List(ctx, Filter{UserID: userID, Status: status}, page)
}

// List returns a page of orders matching f.
func (s *Service) List(ctx context.Context, f Filter, page paging.Page) ([]Order, paging.Meta, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, paging.Meta{}, apperr.Invalid("Invalid order status")
	}
	if f.PaymentStatus != "" && !f.PaymentStatus.Valid() {
		return nil, paging.Meta{}, apperr.Invalid("Invalid payment status")
	}
	list, total, err := s.repo.List(ctx, f, page)
	if err != nil {
		return nil, paging.Meta{}, errors.Wrap(err, "list orders")
	}
	return list, paging.NewMeta(page, total), nil
}

// GetForUser returns an order owned by the user.
func (s *Service) GetForUser(ctx context.Context, userID, id string) (*Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, apperr.NotFound("Order not found")
	}
	return o, nil
}

// Get returns any order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return o, nil
}

// UpdateStatus sets status and payment status without a transition table.
// Stock is not touched.
func (s *Service) UpdateStatus(ctx context.Context, id string, upd StatusUpdate) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateStatus",
		trace.WithAttributes(attribute.String("order.id", id)))
	defer func() { endSpan(span, rerr) }()

	if upd.Status != "" && !upd.Status.Valid() {
		return nil, apperr.Invalid("Invalid order status")
	}
	if upd.PaymentStatus != "" && !upd.PaymentStatus.Valid() {
		return nil, apperr.Invalid("Invalid payment status")
	}

	var o *Order
	err := s.repo.WithinTx(ctx, func(tx Tx) error {
		var err error
		o, err = tx.Lock(ctx, id)
		if err != nil {
			return mapErr(err)
		}
		if upd.Status != "" {
			o.Status = upd.Status
		}
		if upd.PaymentStatus != "" {
			o.PaymentStatus = upd.PaymentStatus
		}
		return errors.Wrap(tx.SetStatus(ctx, id, o.Status, o.PaymentStatus), "set status")
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, o, notify.TemplateOrderStatusUpdate, "ChezFlora order "+o.OrderNumber+" update")
	return o, nil
}

func (s *Service) notify(ctx context.Context, o *Order, tmpl notify.Template, subject string) {
	u, err := s.customers.GetByID(ctx, o.UserID)
	if err != nil {
		// The order is committed; a missing recipient only skips the email.
		return
	}
	lines := make([]notify.OrderLine, len(o.Items))
	for i, it := range o.Items {
		lines[i] = notify.OrderLine{Name: it.ProductName, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	s.notifier.Enqueue(ctx, notify.Message{
		To:       u.Email,
		Subject:  subject,
		Template: tmpl,
		Data: notify.OrderEmail{
			CustomerName:  u.FullName(),
			OrderNumber:   o.OrderNumber,
			Status:        string(o.Status),
			PaymentStatus: string(o.PaymentStatus),
			Total:         o.TotalAmount,
			Lines:         lines,
		},
	})
}

func checkAddress(ctx context.Context, tx Tx, userID, id, msg string) error {
	ok, err := tx.AddressOwned(ctx, userID, id)
	if err != nil {
		return errors.Wrap(err, "check address")
	}
	if !ok {
		return apperr.NotFound(msg)
	}
	return nil
}

// FormatNumber builds an order number of the form FL-YYMMDD-XXXX.
func FormatNumber(at time.Time, suffix string) string {
	return "FL-" + at.Format("060102") + "-" + suffix
}

func randomSuffix() string {
	var b [4]byte
	for i := range b {
		b[i] = numberAlphabet[rand.IntN(len(numberAlphabet))]
	}
	return string(b[:])
}

func mapErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("Order not found")
	}
	return errors.Wrap(err, "order")
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		if _, ok := apperr.As(err); !ok {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
