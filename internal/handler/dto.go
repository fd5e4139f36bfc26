package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/chezflora/internal/domain/address"
	"github.com/xenking/chezflora/internal/domain/blog"
	"github.com/xenking/chezflora/internal/domain/cart"
	"github.com/xenking/chezflora/internal/domain/catalog"
	"github.com/xenking/chezflora/internal/domain/offering"
	"github.com/xenking/chezflora/internal/domain/order"
	"github.com/xenking/chezflora/internal/domain/pricing"
	"github.com/xenking/chezflora/internal/domain/promotion"
	"github.com/xenking/chezflora/internal/domain/quote"
	"github.com/xenking/chezflora/internal/domain/testimonial"
	"github.com/xenking/chezflora/internal/domain/user"
)

// Money is rendered as a string with two decimals.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func moneyPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := money(*d)
	return &s
}

func mapSlice[T, V any](in []T, fn func(T) V) []V {
	out := make([]V, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}

type userView struct {
	ID        string      `json:"id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone,omitempty"`
	Role      user.Role   `json:"role"`
	Status    user.Status `json:"status"`
	LastLogin *time.Time  `json:"last_login,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

func toUser(u *user.User) userView {
	return userView{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		Status:    u.Status,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}

type imageView struct {
	ID        string `json:"id,omitempty"`
	ImageURL  string `json:"image_url"`
	IsPrimary bool   `json:"is_primary"`
	SortOrder int    `json:"sort_order"`
}

type pricingView struct {
	OriginalPrice  string               `json:"original_price"`
	DiscountAmount string               `json:"discount_amount"`
	FinalPrice     string               `json:"final_price"`
	PromotionID    string               `json:"promotion_id"`
	PromotionName  string               `json:"promotion_name"`
	DiscountType   pricing.DiscountType `json:"discount_type"`
	DiscountValue  string               `json:"discount_value"`
	EndDate        time.Time            `json:"end_date"`
}

type productView struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Price        string       `json:"price"`
	Stock        int          `json:"stock"`
	CategoryID   *string      `json:"category_id"`
	CategoryName string       `json:"category_name,omitempty"`
	IsActive     bool         `json:"is_active"`
	SKU          string       `json:"sku"`
	Images       []imageView  `json:"images"`
	Promotion    *pricingView `json:"promotion"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func toProduct(p catalog.Product) productView {
	v := productView{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Price:        money(p.Price),
		Stock:        p.Stock,
		CategoryID:   p.CategoryID,
		CategoryName: p.CategoryName,
		IsActive:     p.IsActive,
		SKU:          p.SKU,
		Images: mapSlice(p.Images, func(i catalog.Image) imageView {
			return imageView{ID: i.ID, ImageURL: i.URL, IsPrimary: i.IsPrimary, SortOrder: i.SortOrder}
		}),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if pr := p.Pricing; pr != nil {
		v.Promotion = &pricingView{
			OriginalPrice:  money(pr.OriginalPrice),
			DiscountAmount: money(pr.DiscountAmount),
			FinalPrice:     money(pr.FinalPrice),
			PromotionID:    pr.PromotionID,
			PromotionName:  pr.PromotionName,
			DiscountType:   pr.DiscountType,
			DiscountValue:  money(pr.DiscountValue),
			EndDate:        pr.EndDate,
		}
	}
	return v
}

type categoryView struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	ImageURL    string         `json:"image_url"`
	ParentID    *string        `json:"parent_id"`
	IsActive    bool           `json:"is_active"`
	SortOrder   int            `json:"sort_order"`
	Children    []categoryView `json:"children,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func toCategory(c catalog.Category) categoryView {
	v := categoryView{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		ImageURL:    c.ImageURL,
		ParentID:    c.ParentID,
		IsActive:    c.IsActive,
		SortOrder:   c.SortOrder,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if len(c.Children) > 0 {
		v.Children = mapSlice(c.Children, toCategory)
	}
	return v
}

type promotionProductView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
	Stock int    `json:"stock"`
}

type promotionView struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	Description   string                 `json:"description"`
	DiscountType  pricing.DiscountType   `json:"discount_type"`
	DiscountValue string                 `json:"discount_value"`
	StartDate     time.Time              `json:"start_date"`
	EndDate       time.Time              `json:"end_date"`
	IsActive      bool                   `json:"is_active"`
	Products      []promotionProductView `json:"products"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

func toPromotion(p promotion.Promotion) promotionView {
	return promotionView{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		DiscountType:  p.DiscountType,
		DiscountValue: money(p.DiscountValue),
		StartDate:     p.StartDate,
		EndDate:       p.EndDate,
		IsActive:      p.IsActive,
		Products: mapSlice(p.Products, func(s promotion.ProductSummary) promotionProductView {
			return promotionProductView{ID: s.ID, Name: s.Name, Price: money(s.Price), Stock: s.Stock}
		}),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type cartProductView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Stock    int    `json:"stock"`
	IsActive bool   `json:"is_active"`
	ImageURL string `json:"image_url,omitempty"`
}

type cartItemView struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice string          `json:"unit_price"`
	Subtotal  string          `json:"subtotal"`
	Product   cartProductView `json:"product"`
}

type cartView struct {
	ID        string         `json:"id"`
	Items     []cartItemView `json:"items"`
	Total     string         `json:"total"`
	ItemCount int            `json:"item_count"`
}

func toCart(c *cart.Cart) cartView {
	return cartView{
		ID: c.ID,
		Items: mapSlice(c.Items, func(it cart.Item) cartItemView {
			return cartItemView{
				ID:        it.ID,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				UnitPrice: money(it.UnitPrice),
				Subtotal:  money(it.Subtotal()),
				Product: cartProductView{
					ID:       it.Product.ID,
					Name:     it.Product.Name,
					Price:    money(it.Product.Price),
					Stock:    it.Product.Stock,
					IsActive: it.Product.IsActive,
					ImageURL: it.Product.ImageURL,
				},
			}
		}),
		Total:     money(c.Total()),
		ItemCount: c.ItemCount(),
	}
}

type addressView struct {
	ID           string    `json:"id"`
	AddressName  string    `json:"address_name"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	AddressLine1 string    `json:"address_line1"`
	AddressLine2 string    `json:"address_line2,omitempty"`
	City         string    `json:"city"`
	PostalCode   string    `json:"postal_code"`
	Country      string    `json:"country"`
	Phone        string    `json:"phone,omitempty"`
	IsDefault    bool      `json:"is_default"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toAddress(a address.Address) addressView {
	return addressView{
		ID:           a.ID,
		AddressName:  a.AddressName,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
		Phone:        a.Phone,
		IsDefault:    a.IsDefault,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func toAddressPtr(a *address.Address) *addressView {
	if a == nil {
		return nil
	}
	v := toAddress(*a)
	return &v
}

type orderItemView struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	ImageURL    string `json:"image_url,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}

type orderView struct {
	ID                string              `json:"id"`
	UserID            string              `json:"user_id"`
	OrderNumber       string              `json:"order_number"`
	Status            order.Status        `json:"status"`
	PaymentStatus     order.PaymentStatus `json:"payment_status"`
	PaymentMethod     string              `json:"payment_method"`
	TotalAmount       string              `json:"total_amount"`
	ShippingAddressID string              `json:"shipping_address_id"`
	BillingAddressID  string              `json:"billing_address_id"`
	Notes             string              `json:"notes,omitempty"`
	Items             []orderItemView     `json:"items"`
	ShippingAddress   *addressView        `json:"shipping_address,omitempty"`
	BillingAddress    *addressView        `json:"billing_address,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func toOrder(o order.Order) orderView {
	return orderView{
		ID:                o.ID,
		UserID:            o.UserID,
		OrderNumber:       o.OrderNumber,
		Status:            o.Status,
		PaymentStatus:     o.PaymentStatus,
		PaymentMethod:     o.PaymentMethod,
		TotalAmount:       money(o.TotalAmount),
		ShippingAddressID: o.ShippingAddressID,
		BillingAddressID:  o.BillingAddressID,
		Notes:             o.Notes,
		Items: mapSlice(o.Items, func(it order.Item) orderItemView {
			return orderItemView{
				ID:          it.ID,
				ProductID:   it.ProductID,
				ProductName: it.ProductName,
				ImageURL:    it.ImageURL,
				Quantity:    it.Quantity,
				UnitPrice:   money(it.UnitPrice),
				Subtotal:    money(it.Subtotal()),
			}
		}),
		ShippingAddress: toAddressPtr(o.ShippingAddress),
		BillingAddress:  toAddressPtr(o.BillingAddress),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

type quoteItemView struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}

type customerView struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type quoteView struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Status        quote.Status    `json:"status"`
	Description   string          `json:"description"`
	EventType     string          `json:"event_type"`
	EventDate     *time.Time      `json:"event_date"`
	Budget        *string         `json:"budget"`
	ClientComment string          `json:"client_comment,omitempty"`
	AdminComment  string          `json:"admin_comment,omitempty"`
	ValidityDate  *time.Time      `json:"validity_date"`
	Items         []quoteItemView `json:"items"`
	Total         string          `json:"total"`
	Customer      *customerView   `json:"customer,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func toQuote(q quote.Quote) quoteView {
	v := quoteView{
		ID:            q.ID,
		UserID:        q.UserID,
		Status:        q.Status,
		Description:   q.Description,
		EventType:     q.EventType,
		EventDate:     q.EventDate,
		Budget:        moneyPtr(q.Budget),
		ClientComment: q.ClientComment,
		AdminComment:  q.AdminComment,
		ValidityDate:  q.ValidityDate,
		Items: mapSlice(q.Items, func(it quote.Item) quoteItemView {
			return quoteItemView{
				ID:          it.ID,
				Description: it.Description,
				Quantity:    it.Quantity,
				UnitPrice:   money(it.UnitPrice),
				Subtotal:    money(it.Subtotal()),
			}
		}),
		Total:     money(q.Total()),
		CreatedAt: q.CreatedAt,
		UpdatedAt: q.UpdatedAt,
	}
	if c := q.Customer; c != nil {
		v.Customer = &customerView{FirstName: c.FirstName, LastName: c.LastName, Email: c.Email}
	}
	return v
}

type authorView struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func toAuthor(a blog.Author) authorView {
	return authorView{ID: a.ID, FirstName: a.FirstName, LastName: a.LastName}
}

type replyView struct {
	ID        string     `json:"id"`
	CommentID string     `json:"comment_id"`
	Author    authorView `json:"author"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
}

func toReply(r blog.Reply) replyView {
	return replyView{
		ID:        r.ID,
		CommentID: r.CommentID,
		Author:    toAuthor(r.Author),
		Content:   r.Content,
		CreatedAt: r.CreatedAt,
	}
}

type commentView struct {
	ID        string             `json:"id"`
	PostID    string             `json:"blog_id"`
	Author    authorView         `json:"user"`
	Content   string             `json:"content"`
	Status    blog.CommentStatus `json:"status"`
	Replies   []replyView        `json:"replies"`
	CreatedAt time.Time          `json:"created_at"`
}

func toComment(c blog.Comment) commentView {
	return commentView{
		ID:        c.ID,
		PostID:    c.PostID,
		Author:    toAuthor(c.Author),
		Content:   c.Content,
		Status:    c.Status,
		Replies:   mapSlice(c.Replies, toReply),
		CreatedAt: c.CreatedAt,
	}
}

type postView struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Slug          string          `json:"slug"`
	Content       string          `json:"content,omitempty"`
	Excerpt       string          `json:"excerpt"`
	Author        authorView      `json:"author"`
	FeaturedImage string          `json:"featured_image,omitempty"`
	Status        blog.PostStatus `json:"status"`
	Category      string          `json:"category,omitempty"`
	Tags          []string        `json:"tags"`
	PublishedAt   *time.Time      `json:"published_at"`
	Comments      []commentView   `json:"comments,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func toPost(p blog.Post) postView {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return postView{
		ID:            p.ID,
		Title:         p.Title,
		Slug:          p.Slug,
		Content:       p.Content,
		Excerpt:       p.Excerpt,
		Author:        toAuthor(p.Author),
		FeaturedImage: p.FeaturedImage,
		Status:        p.Status,
		Category:      p.Category,
		Tags:          tags,
		PublishedAt:   p.PublishedAt,
		Comments:      mapSlice(p.Comments, toComment),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type testimonialAuthorView struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

type testimonialView struct {
	ID         string                `json:"id"`
	UserID     string                `json:"user_id,omitempty"`
	User       testimonialAuthorView `json:"user"`
	Content    string                `json:"content"`
	Rating     int                   `json:"rating"`
	IsApproved bool                  `json:"is_approved"`
	CreatedAt  time.Time             `json:"created_at"`
}

// toTestimonial renders a testimonial. Public views show the first name only.
func toTestimonial(admin bool) func(testimonial.Testimonial) testimonialView {
	return func(t testimonial.Testimonial) testimonialView {
		v := testimonialView{
			ID:         t.ID,
			User:       testimonialAuthorView{FirstName: t.Author.FirstName},
			Content:    t.Content,
			Rating:     t.Rating,
			IsApproved: t.IsApproved,
			CreatedAt:  t.CreatedAt,
		}
		if admin {
			v.UserID = t.UserID
			v.User.LastName = t.Author.LastName
			v.User.Email = t.Author.Email
		}
		return v
	}
}

type offeringView struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	BasePrice   string      `json:"base_price"`
	IsAvailable bool        `json:"is_available"`
	Images      []imageView `json:"images"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func toOffering(o offering.Offering) offeringView {
	return offeringView{
		ID:          o.ID,
		Name:        o.Name,
		Description: o.Description,
		BasePrice:   money(o.BasePrice),
		IsAvailable: o.IsAvailable,
		Images: mapSlice(o.Images, func(i offering.Image) imageView {
			return imageView{ID: i.ID, ImageURL: i.URL, IsPrimary: i.IsPrimary, SortOrder: i.SortOrder}
		}),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}
