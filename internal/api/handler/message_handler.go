package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/free99/internal/api/middleware"
	"github.com/d60-Lab/free99/pkg/response"
)

type createThreadRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
}

type sendMessageRequest struct {
	ThreadID string `json:"thread_id" binding:"required"`
	Text     string `json:"text" binding:"required,max=4000"`
}

type muteRequest struct {
	Muted *bool `json:"muted" binding:"required"`
}

// ListThreads 我参与的会话，最近有消息的在前
// @Summary 会话列表
// @Tags 消息
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]service.ThreadSummary}
// @Router /api/v1/messages/threads [get]
func (h *Handler) ListThreads(c *gin.Context) {
	threads, err := h.messages.ListThreadsForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, threads)
}

// CreateThread 获取或创建与某用户的私聊会话
// @Summary 创建/获取私聊
// @Tags 消息
// @Security BearerAuth
// @Accept json
// @Param request body createThreadRequest true "对方用户ID"
// @Success 200 {object} response.Response{data=map[string]string}
// @Failure 404 {object} response.Response
// @Router /api/v1/messages/threads [post]
func (h *Handler) CreateThread(c *gin.Context) {
	var req createThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindError(err))
		return
	}
	id, err := h.messages.CreateOrGetThread(c.Request.Context(), middleware.UserID(c), req.ParticipantID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"thread_id": id})
}

// StartListingThread 就某个物品联系发布者
// @Summary 物品会话
// @Tags 消息
// @Security BearerAuth
// @Param listing_id path string true "物品ID"
// @Success 200 {object} response.Response{data=map[string]string}
// @Failure 404 {object} response.Response
// @Router /api/v1/messages/threads/listing/{listing_id} [post]
func (h *Handler) StartListingThread(c *gin.Context) {
	id, err := h.messages.StartListingThread(c.Request.Context(), c.Param("listing_id"), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"thread_id": id})
}

// ListMessages 会话内消息，按时间正序
// @Summary 消息列表
// @Tags 消息
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Success 200 {object} response.Response{data=[]model.Message}
// @Failure 404 {object} response.Response
// @Router /api/v1/messages/threads/{id} [get]
func (h *Handler) ListMessages(c *gin.Context) {
	msgs, err := h.messages.ListMessages(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, msgs)
}

// SendMessage 发送消息
// @Summary 发送消息
// @Tags 消息
// @Security BearerAuth
// @Accept json
// @Param request body sendMessageRequest true "消息"
// @Success 201 {object} response.Response{data=model.Message}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/messages [post]
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindError(err))
		return
	}
	m, err := h.messages.SendMessage(c.Request.Context(), req.ThreadID, middleware.UserID(c), req.Text)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, m)
}

// DeleteMessage 撤回自己发送的消息
// @Summary 删除消息
// @Tags 消息
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Param message_id path string true "消息ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/messages/threads/{id}/{message_id} [delete]
func (h *Handler) DeleteMessage(c *gin.Context) {
	if err := h.messages.DeleteMessage(c.Request.Context(), c.Param("id"), c.Param("message_id"), middleware.UserID(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, nil)
}

// MarkThreadRead 标记会话已读
// @Summary 标记已读
// @Tags 消息
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/messages/threads/{id}/read [post]
func (h *Handler) MarkThreadRead(c *gin.Context) {
	if err := h.messages.MarkThreadRead(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, nil)
}

// SetThreadMuted 会话免打扰开关
// @Summary 静音会话
// @Tags 消息
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Param request body muteRequest true "是否静音"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/messages/threads/{id}/mute [post]
func (h *Handler) SetThreadMuted(c *gin.Context) {
	var req muteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindError(err))
		return
	}
	if err := h.messages.SetThreadMuted(c.Request.Context(), c.Param("id"), middleware.UserID(c), *req.Muted); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"muted": *req.Muted})
}
