package handler

import (
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/chezflora/internal/domain/apperr"
	"github.com/xenking/chezflora/pkg/paging"
)

type envelope struct {
	Success    bool         `json:"success"`
	Data       any          `json:"data,omitempty"`
	Message    string       `json:"message,omitempty"`
	Count      *int         `json:"count,omitempty"`
	Pagination *paging.Meta `json:"pagination,omitempty"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func respondList(c *gin.Context, data any, meta paging.Meta) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data, Pagination: &meta})
}

func respondCount(c *gin.Context, data any, n int) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data, Count: &n})
}

func respondMessage(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, envelope{Success: true, Message: msg})
}

func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalid:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as an error envelope and aborts the chain. Errors without
// an apperr kind are logged and hidden behind a generic message.
func fail(c *gin.Context, err error) {
	if e, ok := apperr.As(err); ok {
		c.AbortWithStatusJSON(statusOf(e.Kind), envelope{Message: e.Message})
		return
	}
	zctx.From(c.Request.Context()).Error("Request failed",
		zap.String("method", c.Request.Method),
		zap.String("route", c.FullPath()),
		zap.Error(err),
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, envelope{Message: "Server Error"})
}

// bind decodes the JSON body into dst and validates its binding tags. On
// failure it has already answered 400.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, apperr.Invalid(bindMessage(err)))
		return false
	}
	return true
}

func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, ", ")
}

func fieldMessage(fe validator.FieldError) string {
	f := fe.Field()
	switch fe.Tag() {
	case "required":
		return f + " is required"
	case "email":
		return f + " must be a valid email"
	case "min":
		if fe.Kind().String() == "string" {
			return f + " must be at least " + fe.Param() + " characters long"
		}
		return f + " must be at least " + fe.Param()
	case "max":
		if fe.Kind().String() == "string" {
			return f + " must be at most " + fe.Param() + " characters long"
		}
		return f + " must be at most " + fe.Param()
	case "gte":
		return f + " must be at least " + fe.Param()
	case "lte":
		return f + " must be at most " + fe.Param()
	case "oneof":
		return f + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return f + " is invalid"
	}
}

var validationOnce sync.Once

// registerValidation makes validation messages use JSON field names.
func registerValidation() {
	validationOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
}
