package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func write(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Code: status, Message: message, Data: data})
}

// Success 200
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, "ok", data)
}

// Created 201
func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, "created", data)
}

func BadRequest(c *gin.Context, message string) {
	write(c, http.StatusBadRequest, message, nil)
}

func Unauthorized(c *gin.Context, message string) {
	write(c, http.StatusUnauthorized, message, nil)
}

func Forbidden(c *gin.Context, message string) {
	write(c, http.StatusForbidden, message, nil)
}

func NotFound(c *gin.Context, message string) {
	write(c, http.StatusNotFound, message, nil)
}

func Conflict(c *gin.Context, message string) {
	write(c, http.StatusConflict, message, nil)
}

// InternalError 500；错误细节留给日志，不回传给客户端
func InternalError(c *gin.Context, err error) {
	_ = c.Error(err)
	write(c, http.StatusInternalServerError, "internal server error", nil)
}
