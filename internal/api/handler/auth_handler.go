package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/free99/internal/api/middleware"
	"github.com/d60-Lab/free99/internal/service"
	"github.com/d60-Lab/free99/pkg/response"
)

type registerRequest struct {
	FullName         string `json:"full_name" binding:"required,max=120"`
	Email            string `json:"email" binding:"required,email,campusemail"`
	ResidenceHall    string `json:"residence_hall" binding:"required,max=120"`
	PickupPreference string `json:"pickup_preference" binding:"required,max=120"`
}

type verifyEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
}

type loginRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// Register 注册（同一邮箱重复注册返回已有用户）
// @Summary 注册校园用户
// @Tags 用户
// @Accept json
// @Produce json
// @Param request body registerRequest true "注册信息"
// @Success 201 {object} response.Response{data=service.AuthResult}
// @Failure 400 {object} response.Response
// @Router /api/v1/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindError(err))
		return
	}
	res, err := h.users.Register(c.Request.Context(), service.RegisterInput{
		FullName:         req.FullName,
		Email:            req.Email,
		ResidenceHall:    req.ResidenceHall,
		PickupPreference: req.PickupPreference,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, res)
}

// VerifyEmail 提交邮箱验证码
// @Summary 验证邮箱
// @Tags 用户
// @Accept json
// @Produce json
// @Param request body verifyEmailRequest true "邮箱与验证码"
// @Success 200 {object} response.Response{data=model.User}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/auth/verify-email [post]
func (h *Handler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindError(err))
		return
	}
	u, err := h.users.VerifyEmail(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, u)
}

// Login 按邮箱签发访问令牌
// @Summary 登录
// @Tags 用户
// @Accept json
// @Produce json
// @Param request body loginRequest true "邮箱"
// @Success 200 {object} response.Response{data=service.AuthResult}
// @Failure 404 {object} response.Response
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindError(err))
		return
	}
	res, err := h.users.Login(c.Request.Context(), req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, res)
}

// Me 当前登录用户
// @Summary 当前用户
// @Tags 用户
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Response{data=model.User}
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	u, err := h.users.GetUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, u)
}

// GetUserProfile 公开资料（不含邮箱）
// @Summary 用户公开资料
// @Tags 用户
// @Produce json
// @Param id path string true "用户ID"
// @Success 200 {object} response.Response{data=model.UserProfile}
// @Failure 404 {object} response.Response
// @Router /api/v1/users/{id} [get]
func (h *Handler) GetUserProfile(c *gin.Context) {
	u, err := h.users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, u.Profile())
}
