package quote

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/chezflora/internal/domain/apperr"
	"github.com/xenking/chezflora/internal/domain/user"
	"github.com/xenking/chezflora/internal/notify"
	"github.com/xenking/chezflora/pkg/paging"
)

const instrumentationName = "github.com/xenking/chezflora/internal/domain/quote"

// Notifier schedules an email for delivery.
type Notifier interface {
	Enqueue(ctx context.Context, msg notify.Message)
}

// Customers resolves quote owners for notifications.
type Customers interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// Config holds quote workflow settings.
type Config struct {
	// AdminEmail receives client-side quote events.
	AdminEmail string
}

// RequestInput carries client editable fields. Nil fields are left untouched
// on update.
type RequestInput struct {
	Description   *string
	EventType     *string
	EventDate     *time.Time
	Budget        *decimal.Decimal
	ClientComment *string
}

// AdminInput carries shop side changes. A non-nil Items replaces every item.
type AdminInput struct {
	Status       *Status
	AdminComment *string
	ValidityDate *time.Time
	Items        *[]Item
}

// Service implements the quote state machine.
type Service struct {
	repo        Repository
	customers   Customers
	notifier    Notifier
	cfg         Config
	transitions metric.Int64Counter
}

// NewService creates a quote Service.
func NewService(repo Repository, customers Customers, notifier Notifier, mp metric.MeterProvider, cfg Config) (*Service, error) {
	transitions, err := mp.Meter(instrumentationName).Int64Counter("flora.quotes.transitions",
		metric.WithDescription("Quote status changes by target status"))
	if err != nil {
		return nil, errors.Wrap(err, "quote transitions counter")
	}
	return &Service{
		repo:        repo,
		customers:   customers,
		notifier:    notifier,
		cfg:         cfg,
		transitions: transitions,
	}, nil
}

// Request creates a quote in the requested state.
func (s *Service) Request(ctx context.Context, userID string, in RequestInput) (*Quote, error) {
	q := &Quote{UserID: userID, Status: StatusRequested}
	if err := applyRequest(q, in); err != nil {
		return nil, err
	}
	if q.Description == "" {
		return nil, apperr.Invalid("Description is required")
	}
	if q.EventType == "" {
		return nil, apperr.Invalid("Event type is required")
	}
	if err := s.repo.Insert(ctx, q); err != nil {
		return nil, errors.Wrap(err, "insert quote")
	}
	s.record(ctx, q.Status)
	s.notifyAdmin(ctx, q, notify.TemplateQuoteRequested, "New Quote Request")
	return q, nil
}

// ListForUser returns a page of the user's quotes.
func (s *Service) ListForUser(ctx context.Context, userID string, status Status, page paging.Page) ([]Quote, paging.Meta, error) {
	return s.List(ctx, Filter{UserID: userID, Status: status}, page)
}

// List returns a page of quotes matching f.
func (s *Service) List(ctx context.Context, f Filter, page paging.Page) ([]Quote, paging.Meta, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, paging.Meta{}, apperr.Invalid("Invalid quote status")
	}
	list, total, err := s.repo.List(ctx, f, page)
	if err != nil {
		return nil, paging.Meta{}, errors.Wrap(err, "list quotes")
	}
	return list, paging.NewMeta(page, total), nil
}

// GetForUser returns a quote owned by the user.
func (s *Service) GetForUser(ctx context.Context, userID, id string) (*Quote, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.UserID != userID {
		return nil, apperr.NotFound("Quote not found")
	}
	return q, nil
}

// Get returns any quote.
func (s *Service) Get(ctx context.Context, id string) (*Quote, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return q, nil
}

// Update edits a quote the client still owns in the requested state.
func (s *Service) Update(ctx context.Context, userID, id string, in RequestInput) (*Quote, error) {
	q, err := s.clientTransition(ctx, userID, id, func(q *Quote) error {
		if q.Status != StatusRequested {
			return apperr.Invalid("Quote can only be updated when in requested status")
		}
		return applyRequest(q, in)
	})
	if err != nil {
		return nil, err
	}
	s.notifyAdmin(ctx, q, notify.TemplateQuoteUpdated, "Quote Request Updated")
	return q, nil
}

// Accept moves a sent quote with at least one item to accepted.
func (s *Service) Accept(ctx context.Context, userID, id string) (*Quote, error) {
	q, err := s.clientTransition(ctx, userID, id, func(q *Quote) error {
		if q.Status != StatusSent {
			return apperr.Invalid(`Only quotes in "sent" status can be accepted`)
		}
		if len(q.Items) == 0 {
			return apperr.Invalid("Quote does not have any items to accept")
		}
		q.Status = StatusAccepted
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, q.Status)
	s.notifyAdmin(ctx, q, notify.TemplateQuoteAccepted, "Quote Accepted")
	return q, nil
}

// Decline moves a sent quote to declined. The reason is kept as the client
// comment.
func (s *Service) Decline(ctx context.Context, userID, id, reason string) (*Quote, error) {
	q, err := s.clientTransition(ctx, userID, id, func(q *Quote) error {
		if q.Status != StatusSent {
			return apperr.Invalid(`Only quotes in "sent" status can be declined`)
		}
		q.Status = StatusDeclined
		if reason = strings.TrimSpace(reason); reason != "" {
			q.ClientComment = reason
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, q.Status)
	s.notifyAdmin(ctx, q, notify.TemplateQuoteDeclined, "Quote Declined")
	return q, nil
}

func (s *Service) clientTransition(ctx context.Context, userID, id string, fn func(q *Quote) error) (*Quote, error) {
	var q *Quote
	err := s.repo.WithinTx(ctx, func(st Store) error {
		var err error
		q, err = st.Lock(ctx, id)
		if err != nil {
			return mapErr(err)
		}
		if q.UserID != userID {
			return apperr.NotFound("Quote not found")
		}
		if err := fn(q); err != nil {
			return err
		}
		return errors.Wrap(st.Update(ctx, q), "update quote")
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// AdminUpdate sets any status, the admin comment, the validity date and,
// when given, the full item list. The customer is emailed when the quote
// becomes sent.
func (s *Service) AdminUpdate(ctx context.Context, id string, in AdminInput) (*Quote, error) {
	if in.Status != nil && !in.Status.Valid() {
		return nil, apperr.Invalid("Invalid quote status")
	}
	if in.Items != nil {
		for _, it := range *in.Items {
			if strings.TrimSpace(it.Description) == "" {
				return nil, apperr.Invalid("Item description is required")
			}
			if it.Quantity < 1 {
				return nil, apperr.Invalid("Item quantity must be at least 1")
			}
			if it.UnitPrice.IsNegative() {
				return nil, apperr.Invalid("Item unit price must be a positive number")
			}
		}
	}

	var prev Status
	err := s.repo.WithinTx(ctx, func(st Store) error {
		q, err := st.Lock(ctx, id)
		if err != nil {
			return mapErr(err)
		}
		prev = q.Status
		if in.Status != nil {
			q.Status = *in.Status
		}
		if in.AdminComment != nil {
			q.AdminComment = *in.AdminComment
		}
		if in.ValidityDate != nil {
			q.ValidityDate = in.ValidityDate
		}
		if err := st.Update(ctx, q); err != nil {
			return errors.Wrap(err, "update quote")
		}
		if in.Items != nil {
			return errors.Wrap(st.ReplaceItems(ctx, id, *in.Items), "replace items")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Status != prev {
		s.record(ctx, q.Status)
	}
	if in.Status != nil && *in.Status == StatusSent {
		s.notifyCustomer(ctx, q)
	}
	return q, nil
}

func (s *Service) record(ctx context.Context, st Status) {
	s.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(st))))
}

func (s *Service) notifyAdmin(ctx context.Context, q *Quote, tmpl notify.Template, subject string) {
	if s.cfg.AdminEmail == "" {
		return
	}
	data := emailData(q)
	if u, err := s.customers.GetByID(ctx, q.UserID); err == nil {
		data.CustomerName = u.FullName()
		data.CustomerEmail = u.Email
	}
	s.notifier.Enqueue(ctx, notify.Message{
		To:       s.cfg.AdminEmail,
		Subject:  subject,
		Template: tmpl,
		Data:     data,
	})
}

func (s *Service) notifyCustomer(ctx context.Context, q *Quote) {
	u, err := s.customers.GetByID(ctx, q.UserID)
	if err != nil {
		return
	}
	data := emailData(q)
	data.CustomerName = u.FirstName
	data.CustomerEmail = u.Email
	s.notifier.Enqueue(ctx, notify.Message{
		To:       u.Email,
		Subject:  "Quote Ready for Review",
		Template: notify.TemplateQuoteSent,
		Data:     data,
	})
}

func emailData(q *Quote) notify.QuoteEmail {
	return notify.QuoteEmail{
		QuoteID:      q.ID,
		EventType:    q.EventType,
		Description:  q.Description,
		Status:       string(q.Status),
		Comment:      q.ClientComment,
		ValidityDate: q.ValidityDate,
		Total:        q.Total(),
	}
}

func applyRequest(q *Quote, in RequestInput) error {
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		if d == "" {
			return apperr.Invalid("Description cannot be empty")
		}
		q.Description = d
	}
	if in.EventType != nil {
		e := strings.TrimSpace(*in.EventType)
		if e == "" {
			return apperr.Invalid("Event type cannot be empty")
		}
		q.EventType = e
	}
	if in.EventDate != nil {
		q.EventDate = in.EventDate
	}
	if in.Budget != nil {
		if in.Budget.IsNegative() {
			return apperr.Invalid("Budget must be a positive number")
		}
		q.Budget = in.Budget
	}
	if in.ClientComment != nil {
		q.ClientComment = *in.ClientComment
	}
	return nil
}

func mapErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("Quote not found")
	}
	return errors.Wrap(err, "quote")
}
