package handler

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xenking/chezflora/internal/domain/apperr"
	"github.com/xenking/chezflora/internal/domain/user"
	"github.com/xenking/chezflora/pkg/httpmiddleware"
	"github.com/xenking/chezflora/pkg/respcache"
)

const userKey = "flora.user"

// routeLabel reports the matched route template to the logging and
// instrumentation middlewares wrapping the engine.
func routeLabel() gin.HandlerFunc {
	return func(c *gin.Context) {
		httpmiddleware.SetRoute(c.Request.Context(), c.Request.Method, c.FullPath())
		c.Next()
	}
}

// protect requires a valid bearer access token of an active user.
func (h *Handler) protect(c *gin.Context) {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		fail(c, apperr.Unauthorized("Not authorized to access this route"))
		return
	}
	u, err := h.Auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		fail(c, err)
		return
	}
	c.Set(userKey, u)
	c.Next()
}

func adminOnly(c *gin.Context) {
	if u := currentUser(c); u == nil || !u.Role.IsAdmin() {
		fail(c, apperr.Forbidden("Not authorized as an admin"))
		return
	}
	c.Next()
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// currentUser returns the user set by protect.
func currentUser(c *gin.Context) *user.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*user.User)
	return u
}

// cacheAnonymous serves anonymous GETs from the response cache and stores
// successful ones. Requests with an Authorization header bypass it.
func (h *Handler) cacheAnonymous(c *gin.Context) {
	if h.Cache == nil || c.Request.Method != http.MethodGet || c.GetHeader("Authorization") != "" {
		c.Next()
		return
	}
	key := c.Request.URL.RequestURI()
	if e, ok := h.Cache.Get(key); ok {
		c.Header("X-Cache", "HIT")
		c.Data(e.Status, e.ContentType, e.Body)
		c.Abort()
		return
	}

	rec := &bodyRecorder{ResponseWriter: c.Writer}
	c.Writer = rec
	c.Header("X-Cache", "MISS")
	c.Next()

	if rec.Status() == http.StatusOK {
		h.Cache.Set(key, respcache.Entry{
			Status:      rec.Status(),
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.buf.Bytes(),
		})
	}
}

type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
