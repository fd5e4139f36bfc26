// Package handler exposes the shop as a JSON REST API on gin.
//
// Every response uses the envelope {success, data, message, pagination}.
// Domain errors carrying an apperr kind map to 4xx statuses; anything else is
// logged and reported as a 500.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/xenking/chezflora/internal/domain/address"
	"github.com/xenking/chezflora/internal/domain/auth"
	"github.com/xenking/chezflora/internal/domain/blog"
	"github.com/xenking/chezflora/internal/domain/cart"
	"github.com/xenking/chezflora/internal/domain/catalog"
	"github.com/xenking/chezflora/internal/domain/offering"
	"github.com/xenking/chezflora/internal/domain/order"
	"github.com/xenking/chezflora/internal/domain/promotion"
	"github.com/xenking/chezflora/internal/domain/quote"
	"github.com/xenking/chezflora/internal/domain/testimonial"
	"github.com/xenking/chezflora/internal/domain/user"
	"github.com/xenking/chezflora/pkg/paging"
	"github.com/xenking/chezflora/pkg/respcache"
)

// AuthService covers account workflows and bearer token checks.
type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.Tokens, error)
	Authenticate(ctx context.Context, accessToken string) (*user.User, error)
	Me(ctx context.Context, id string) (*user.User, error)
	UpdateProfile(ctx context.Context, id string, p user.Profile) (*user.User, error)
	ChangePassword(ctx context.Context, id, current, next string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
}

// CatalogService covers products and categories.
type CatalogService interface {
	ListProducts(ctx context.Context, f catalog.ProductFilter, page paging.Page) ([]catalog.Product, paging.Meta, error)
	SearchProducts(ctx context.Context, query string, page paging.Page) ([]catalog.Product, paging.Meta, error)
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
	CreateProduct(ctx context.Context, in catalog.ProductInput) (*catalog.Product, error)
	UpdateProduct(ctx context.Context, id string, in catalog.ProductInput) (*catalog.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListCategories(ctx context.Context, page paging.Page) ([]catalog.Category, paging.Meta, error)
	Tree(ctx context.Context) ([]catalog.Category, error)
	GetCategory(ctx context.Context, id string) (*catalog.Category, error)
	CategoryProducts(ctx context.Context, id string, page paging.Page) ([]catalog.Product, paging.Meta, error)
	CreateCategory(ctx context.Context, in catalog.CategoryInput) (*catalog.Category, error)
	UpdateCategory(ctx context.Context, id string, in catalog.CategoryInput) (*catalog.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// PromotionService covers promotions.
type PromotionService interface {
	Active(ctx context.Context) ([]promotion.Promotion, error)
	Get(ctx context.Context, id string) (*promotion.Promotion, error)
	Products(ctx context.Context, id string, page paging.Page) ([]catalog.Product, paging.Meta, error)
	List(ctx context.Context, f promotion.Filter, page paging.Page) ([]promotion.Promotion, paging.Meta, error)
	Create(ctx context.Context, in promotion.Input) (*promotion.Promotion, error)
	Update(ctx context.Context, id string, in promotion.Input) (*promotion.Promotion, error)
	Delete(ctx context.Context, id string) error
	AddProducts(ctx context.Context, id string, productIDs []string) (*promotion.Promotion, error)
	RemoveProducts(ctx context.Context, id string, productIDs []string) (*promotion.Promotion, error)
}

// CartService covers the shopping cart.
type CartService interface {
	Get(ctx context.Context, userID string) (*cart.Cart, error)
	Add(ctx context.Context, userID, productID string, quantity int) (*cart.Cart, error)
	Update(ctx context.Context, userID, itemID string, quantity int) (*cart.Cart, error)
	Remove(ctx context.Context, userID, itemID string) (*cart.Cart, error)
	Clear(ctx context.Context, userID string) (*cart.Cart, error)
}

// OrderService covers checkout and order management.
type OrderService interface {
	Create(ctx context.Context, userID string, req order.CreateRequest) (*order.Order, error)
	Cancel(ctx context.Context, userID, id string) (*order.Order, error)
	ListForUser(ctx context.Context, userID string, status order.Status, page paging.Page) ([]order.Order, paging.Meta, error)
	List(ctx context.Context, f order.Filter, page paging.Page) ([]order.Order, paging.Meta, error)
	GetForUser(ctx context.Context, userID, id string) (*order.Order, error)
	Get(ctx context.Context, id string) (*order.Order, error)
	UpdateStatus(ctx context.Context, id string, upd order.StatusUpdate) (*order.Order, error)
}

// QuoteService covers event quotes.
type QuoteService interface {
	Request(ctx context.Context, userID string, in quote.RequestInput) (*quote.Quote, error)
	ListForUser(ctx context.Context, userID string, status quote.Status, page paging.Page) ([]quote.Quote, paging.Meta, error)
	List(ctx context.Context, f quote.Filter, page paging.Page) ([]quote.Quote, paging.Meta, error)
	GetForUser(ctx context.Context, userID, id string) (*quote.Quote, error)
	Get(ctx context.Context, id string) (*quote.Quote, error)
	Update(ctx context.Context, userID, id string, in quote.RequestInput) (*quote.Quote, error)
	Accept(ctx context.Context, userID, id string) (*quote.Quote, error)
	Decline(ctx context.Context, userID, id, reason string) (*quote.Quote, error)
	AdminUpdate(ctx context.Context, id string, in quote.AdminInput) (*quote.Quote, error)
}

// AddressService covers the address book.
type AddressService interface {
	List(ctx context.Context, userID string, page paging.Page) ([]address.Address, paging.Meta, error)
	Get(ctx context.Context, userID, id string) (*address.Address, error)
	Create(ctx context.Context, userID string, in address.Input) (*address.Address, error)
	Update(ctx context.Context, userID, id string, in address.Input) (*address.Address, error)
	Delete(ctx context.Context, userID, id string) error
	SetDefault(ctx context.Context, userID, id string) (*address.Address, error)
}

// BlogService covers posts, comments and replies.
type BlogService interface {
	Published(ctx context.Context, f blog.Filter, page paging.Page) ([]blog.Post, paging.Meta, error)
	List(ctx context.Context, f blog.Filter, page paging.Page) ([]blog.Post, paging.Meta, error)
	BySlug(ctx context.Context, slug string) (*blog.Post, error)
	Categories(ctx context.Context) ([]string, error)
	Create(ctx context.Context, authorID string, in blog.PostInput) (*blog.Post, error)
	Update(ctx context.Context, id string, in blog.PostInput) (*blog.Post, error)
	Delete(ctx context.Context, id string) error
	Comment(ctx context.Context, userID, postID, content string) (*blog.Comment, error)
	SetCommentStatus(ctx context.Context, id string, status blog.CommentStatus) (*blog.Comment, error)
	Reply(ctx context.Context, authorID, commentID, content string) (*blog.Reply, error)
}

// TestimonialService covers customer reviews.
type TestimonialService interface {
	Approved(ctx context.Context, page paging.Page) ([]testimonial.Testimonial, paging.Meta, error)
	List(ctx context.Context, f testimonial.Filter, page paging.Page) ([]testimonial.Testimonial, paging.Meta, error)
	Submit(ctx context.Context, userID, content string, rating int) (*testimonial.Testimonial, error)
	SetApproved(ctx context.Context, id string, approved bool) (*testimonial.Testimonial, error)
	Delete(ctx context.Context, id string) error
}

// OfferingService covers floral services.
type OfferingService interface {
	Available(ctx context.Context) ([]offering.Offering, error)
	Get(ctx context.Context, id string) (*offering.Offering, error)
	Create(ctx context.Context, in offering.Input) (*offering.Offering, error)
	Update(ctx context.Context, id string, in offering.Input) (*offering.Offering, error)
	Delete(ctx context.Context, id string) error
}

// CORSConfig lists the origins allowed to call the API. No origins or "*"
// allows any origin.
type CORSConfig struct {
	Origins          []string
	AllowCredentials bool
}

// Deps are the services behind the API.
type Deps struct {
	Auth         AuthService
	Catalog      CatalogService
	Promotions   PromotionService
	Cart         CartService
	Orders       OrderService
	Quotes       QuoteService
	Addresses    AddressService
	Blog         BlogService
	Testimonials TestimonialService
	Offerings    OfferingService

	// Cache stores anonymous catalog and promotion reads. Nil disables it.
	Cache *respcache.Cache
	CORS  CORSConfig
}

// Handler serves the REST API.
type Handler struct {
	Deps
	engine *gin.Engine
}

// New builds the API router. Routes live under /api.
func New(d Deps) *Handler {
	registerValidation()

	h := &Handler{Deps: d, engine: gin.New()}
	h.engine.HandleMethodNotAllowed = false
	h.engine.Use(routeLabel(), newCORS(d.CORS))
	h.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, envelope{Message: "Not Found - " + c.Request.URL.Path})
	})
	h.routes(h.engine.Group("/api"))
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.engine.ServeHTTP(w, r)
}

func (h *Handler) routes(api *gin.RouterGroup) {
	admin := []gin.HandlerFunc{h.protect, adminOnly}
	cached := h.cacheAnonymous

	a := api.Group("/auth")
	a.POST("/register", h.register)
	a.POST("/login", h.login)
	a.POST("/refresh-token", h.refreshToken)
	a.POST("/forgot-password", h.forgotPassword)
	a.POST("/reset-password", h.resetPassword)
	a.GET("/me", h.protect, h.me)
	a.PUT("/me", h.protect, h.updateMe)
	a.PUT("/change-password", h.protect, h.changePassword)
	a.POST("/logout", h.protect, h.logout)

	cat := api.Group("/categories")
	cat.GET("", h.listCategories)
	cat.GET("/tree", h.categoryTree)
	cat.GET("/:id", h.getCategory)
	cat.GET("/:id/products", cached, h.categoryProducts)
	cat.POST("", append(admin, h.createCategory)...)
	cat.PUT("/:id", append(admin, h.updateCategory)...)
	cat.DELETE("/:id", append(admin, h.deleteCategory)...)

	p := api.Group("/products")
	p.GET("", cached, h.listProducts)
	p.GET("/search", cached, h.searchProducts)
	p.GET("/:id", cached, h.getProduct)
	p.POST("", append(admin, h.createProduct)...)
	p.PUT("/:id", append(admin, h.updateProduct)...)
	p.DELETE("/:id", append(admin, h.deleteProduct)...)

	promo := api.Group("/promotions")
	promo.GET("", cached, h.activePromotions)
	promo.GET("/:id", cached, h.getPromotion)
	promo.GET("/:id/products", cached, h.promotionProducts)
	promoAdmin := promo.Group("/admin", admin...)
	promoAdmin.GET("", h.listPromotions)
	promoAdmin.POST("", h.createPromotion)
	promoAdmin.PUT("/:id", h.updatePromotion)
	promoAdmin.DELETE("/:id", h.deletePromotion)
	promoAdmin.POST("/:id/products", h.addPromotionProducts)
	promoAdmin.DELETE("/:id/products", h.removePromotionProducts)

	c := api.Group("/cart", h.protect)
	c.GET("", h.getCart)
	c.POST("/items", h.addCartItem)
	c.PUT("/items/:id", h.updateCartItem)
	c.DELETE("/items/:id", h.removeCartItem)
	c.DELETE("", h.clearCart)

	o := api.Group("/orders", h.protect)
	o.POST("", h.createOrder)
	o.GET("", h.listOrders)
	o.GET("/:id", h.getOrder)
	o.PUT("/:id/cancel", h.cancelOrder)
	oAdmin := o.Group("/admin", adminOnly)
	oAdmin.GET("", h.adminListOrders)
	oAdmin.GET("/:id", h.adminGetOrder)
	oAdmin.PUT("/:id/status", h.updateOrderStatus)

	q := api.Group("/quotes", h.protect)
	q.POST("", h.requestQuote)
	q.GET("", h.listQuotes)
	q.GET("/:id", h.getQuote)
	q.PUT("/:id", h.updateQuote)
	q.PUT("/:id/accept", h.acceptQuote)
	q.PUT("/:id/decline", h.declineQuote)
	qAdmin := q.Group("/admin", adminOnly)
	qAdmin.GET("", h.adminListQuotes)
	qAdmin.GET("/:id", h.adminGetQuote)
	qAdmin.PUT("/:id", h.adminUpdateQuote)

	addr := api.Group("/addresses", h.protect)
	addr.GET("", h.listAddresses)
	addr.GET("/:id", h.getAddress)
	addr.POST("", h.createAddress)
	addr.PUT("/:id", h.updateAddress)
	addr.DELETE("/:id", h.deleteAddress)
	addr.PUT("/:id/default", h.setDefaultAddress)

	b := api.Group("/blog")
	b.GET("", h.listPosts)
	b.GET("/categories", h.blogCategories)
	b.GET("/:post", h.getPost)
	b.POST("/:post/comments", h.protect, h.createComment)
	bAdmin := b.Group("/admin", admin...)
	bAdmin.GET("", h.adminListPosts)
	bAdmin.POST("", h.createPost)
	bAdmin.PUT("/:id", h.updatePost)
	bAdmin.DELETE("/:id", h.deletePost)
	bAdmin.PUT("/comments/:id", h.setCommentStatus)
	bAdmin.POST("/comments/:id/reply", h.replyToComment)

	t := api.Group("/testimonials")
	t.GET("", h.listTestimonials)
	t.POST("", h.protect, h.submitTestimonial)
	tAdmin := t.Group("/admin", admin...)
	tAdmin.GET("", h.adminListTestimonials)
	tAdmin.PUT("/:id", h.setTestimonialApproval)
	tAdmin.DELETE("/:id", h.deleteTestimonial)

	s := api.Group("/services")
	s.GET("", h.listOfferings)
	s.GET("/:id", h.getOffering)
	sAdmin := s.Group("/admin", admin...)
	sAdmin.POST("", h.createOffering)
	sAdmin.PUT("/:id", h.updateOffering)
	sAdmin.DELETE("/:id", h.deleteOffering)
}

func newCORS(cfg CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-Cache", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}
	origins := make([]string, 0, len(cfg.Origins))
	for _, o := range cfg.Origins {
		if o == "*" {
			origins = nil
			break
		}
		origins = append(origins, o)
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return cors.New(c)
}
