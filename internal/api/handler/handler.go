package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/d60-Lab/free99/internal/service"
	"github.com/d60-Lab/free99/pkg/response"
)

// Pinger 健康检查依赖，*sql.DB 即满足
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	users    service.UserService
	listings service.ListingService
	messages service.MessageService
	db       Pinger
}

func NewHandler(users service.UserService, listings service.ListingService, messages service.MessageService, db Pinger) *Handler {
	return &Handler{users: users, listings: listings, messages: messages, db: db}
}

// RegisterValidators 注册 campusemail 校验规则（邮箱须属于允许的校园域名）
func RegisterValidators(allowedDomain string) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	return v.RegisterValidation("campusemail", func(fl validator.FieldLevel) bool {
		return service.EmailAllowed(fl.Field().String(), allowedDomain)
	})
}

// bindError 把 validator 的错误压成一行可读信息
func bindError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

// fail 统一的业务错误到 HTTP 状态码映射
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		response.Unauthorized(c, "unknown user")
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, "email verification required")
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, "not found")
	case errors.Is(err, service.ErrAlreadyClaimed):
		response.Conflict(c, "listing already claimed")
	case errors.Is(err, service.ErrConflict):
		response.Conflict(c, "conflict")
	default:
		response.InternalError(c, err)
	}
}

// Health 存活检查
// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, response.Response{Code: http.StatusServiceUnavailable, Message: "database unavailable"})
			return
		}
	}
	response.Success(c, gin.H{"status": "ok"})
}
