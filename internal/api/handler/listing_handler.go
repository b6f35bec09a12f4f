package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/free99/internal/api/middleware"
	"github.com/d60-Lab/free99/internal/service"
	"github.com/d60-Lab/free99/pkg/response"
)

type createListingRequest struct {
	Title             string   `json:"title" binding:"required,max=200"`
	Description       string   `json:"description" binding:"required"`
	ImageURL          string   `json:"image_url" binding:"required,url,max=500"`
	Tags              []string `json:"tags" binding:"omitempty,max=20,dive,max=80"`
	ResidenceHall     string   `json:"residence_hall" binding:"required,max=120"`
	Condition         string   `json:"condition" binding:"required,max=80"`
	DeliveryAvailable bool     `json:"delivery_available"`
	PickupOnly        *bool    `json:"pickup_only"`
}

// ListFeed 全部物品，最新发布在前
// @Summary 物品信息流
// @Tags 物品
// @Produce json
// @Success 200 {object} response.Response{data=[]service.FeedItem}
// @Router /api/v1/listings [get]
func (h *Handler) ListFeed(c *gin.Context) {
	items, err := h.listings.ListFeed(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, items)
}

// CreateListing 发布物品
// @Summary 发布物品
// @Tags 物品
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body createListingRequest true "物品信息"
// @Success 201 {object} response.Response{data=service.FeedItem}
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/v1/listings [post]
func (h *Handler) CreateListing(c *gin.Context) {
	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindError(err))
		return
	}
	pickupOnly := true
	if req.PickupOnly != nil {
		pickupOnly = *req.PickupOnly
	}
	item, err := h.listings.CreateListing(c.Request.Context(), middleware.UserID(c), service.CreateListingInput{
		Title:             req.Title,
		Description:       req.Description,
		ImageURL:          req.ImageURL,
		Tags:              req.Tags,
		ResidenceHall:     req.ResidenceHall,
		Condition:         req.Condition,
		DeliveryAvailable: req.DeliveryAvailable,
		PickupOnly:        pickupOnly,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, item)
}

// GetListing 单个物品
// @Summary 物品详情
// @Tags 物品
// @Produce json
// @Param id path string true "物品ID"
// @Success 200 {object} response.Response{data=service.FeedItem}
// @Failure 404 {object} response.Response
// @Router /api/v1/listings/{id} [get]
func (h *Handler) GetListing(c *gin.Context) {
	item, err := h.listings.GetListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, item)
}

// DeleteListing 删除自己发布的物品
// @Summary 删除物品
// @Tags 物品
// @Security BearerAuth
// @Param id path string true "物品ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/listings/{id} [delete]
func (h *Handler) DeleteListing(c *gin.Context) {
	if err := h.listings.DeleteListing(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, nil)
}

// ClaimListing 认领物品；已被认领返回 409
// @Summary 认领物品
// @Tags 物品
// @Security BearerAuth
// @Param id path string true "物品ID"
// @Success 200 {object} response.Response{data=map[string]string}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/listings/{id}/claim [post]
func (h *Handler) ClaimListing(c *gin.Context) {
	if err := h.listings.Claim(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"status": "claimed"})
}

// ListEvents 物品审计日志（仅发布者）
// @Summary 物品事件
// @Tags 物品
// @Security BearerAuth
// @Param id path string true "物品ID"
// @Success 200 {object} response.Response{data=[]model.ListingEvent}
// @Failure 404 {object} response.Response
// @Router /api/v1/listings/{id}/events [get]
func (h *Handler) ListEvents(c *gin.Context) {
	events, err := h.listings.ListEvents(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, events)
}

// ListMyClaims 我认领到的物品
// @Summary 我的认领
// @Tags 物品
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]service.FeedItem}
// @Router /api/v1/listings/claimed/me [get]
func (h *Handler) ListMyClaims(c *gin.Context) {
	items, err := h.listings.ListMyClaims(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, items)
}

// ListMyPostings 我发布的物品及认领人
// @Summary 我的发布
// @Tags 物品
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]service.PostingItem}
// @Router /api/v1/listings/mine [get]
func (h *Handler) ListMyPostings(c *gin.Context) {
	items, err := h.listings.ListMyPostings(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, items)
}
