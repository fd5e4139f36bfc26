// Package testimonial collects customer reviews of the shop.
package testimonial

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/chezflora/internal/domain/apperr"
	"github.com/xenking/chezflora/pkg/paging"
)

var (
	// ErrNotFound is returned when no testimonial matches.
	ErrNotFound = errors.New("testimonial not found")
	// ErrDuplicate is returned when the user already has a testimonial.
	ErrDuplicate = errors.New("testimonial already submitted")
)

// Author is the user behind a testimonial. Email is only filled on admin
// reads.
type Author struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
}

// Testimonial is a rated customer review.
type Testimonial struct {
	ID         string
	UserID     string
	Author     Author
	Content    string
	Rating     int
	IsApproved bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Filter narrows admin listings.
type Filter struct {
	IsApproved *bool
}

// Repository persists testimonials.
type Repository interface {
	List(ctx context.Context, f Filter, page paging.Page) ([]Testimonial, int, error)
	ExistsForUser(ctx context.Context, userID string) (bool, error)
	// Create returns ErrDuplicate when the user already has one.
	Create(ctx context.Context, t *Testimonial) error
	SetApproved(ctx context.Context, id string, approved bool) (*Testimonial, error)
	Delete(ctx context.Context, id string) error
}

// Service implements testimonial submission and moderation.
type Service struct {
	repo Repository
}

// NewService creates a testimonial Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Approved lists approved testimonials, newest first.
func (s *Service) Approved(ctx context.Context, page paging.Page) ([]Testimonial, paging.Meta, error) {
	approved := true
	return s.List(ctx, Filter{IsApproved: &approved}, page)
}

// List returns a page of testimonials matching f.
func (s *Service) List(ctx context.Context, f Filter, page paging.Page) ([]Testimonial, paging.Meta, error) {
	list, total, err := s.repo.List(ctx, f, page)
	if err != nil {
		return nil, paging.Meta{}, errors.Wrap(err, "list testimonials")
	}
	return list, paging.NewMeta(page, total), nil
}

// Submit stores the user's single testimonial awaiting approval.
func (s *Service) Submit(ctx context.Context, userID, content string, rating int) (*Testimonial, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Invalid("Content is required")
	}
	if rating < 1 || rating > 5 {
		return nil, apperr.Invalid("Rating must be between 1 and 5")
	}
	exists, err := s.repo.ExistsForUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "check existing testimonial")
	}
	if exists {
		return nil, apperr.Invalid("You have already submitted a testimonial")
	}

	t := &Testimonial{UserID: userID, Content: content, Rating: rating}
	if err := s.repo.Create(ctx, t); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, apperr.Invalid("You have already submitted a testimonial")
		}
		return nil, errors.Wrap(err, "create testimonial")
	}
	return t, nil
}

// SetApproved approves or hides a testimonial.
func (s *Service) SetApproved(ctx context.Context, id string, approved bool) (*Testimonial, error) {
	t, err := s.repo.SetApproved(ctx, id, approved)
	if err != nil {
		return nil, mapErr(err)
	}
	return t, nil
}

// Delete removes a testimonial.
func (s *Service) Delete(ctx context.Context, id string) error {
	return mapErr(s.repo.Delete(ctx, id))
}

func mapErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("Testimonial not found")
	}
	return errors.Wrap(err, "testimonial")
}
