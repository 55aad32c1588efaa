package message

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"SocialNet/middleware"
	midsec "SocialNet/middleware/security"
	"SocialNet/tools/apiresp"
	"SocialNet/tools/errs"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(rt middleware.Routes) {
	auth := middleware.RouteOpt{IsAuth: true}
	rt.POST("/api/messages", h.Send, auth)
	rt.PUT("/api/messages/seen", h.MarkSeen, auth)
	rt.GET("/api/messages/:conversationId", h.List, auth)
	rt.DELETE("/api/messages/delete-everyone/:id", h.DeleteForEveryone, auth)
	rt.DELETE("/api/messages/conversation/:conversationId", h.DeleteConversation, auth)
	rt.DELETE("/api/messages/:id", h.DeleteForMe, auth)
}

func (h *Handler) Send(c *gin.Context) {
	var in SendInput
	if err := c.ShouldBindJSON(&in); err != nil {
		apiresp.Fail(c, errs.ErrArgs.WrapMsg("invalid body", "err", err.Error()))
		return
	}
	view, err := h.svc.Send(c.Request.Context(), midsec.UserID(c), in)
	if err != nil {
		apiresp.Fail(c, err)
		return
	}
	apiresp.Created(c, view)
}

func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "0"))
	list, err := h.svc.List(c.Request.Context(), midsec.UserID(c), c.Param("conversationId"), page, size)
	if err != nil {
		apiresp.Fail(c, err)
		return
	}
	apiresp.OK(c, list)
}

func (h *Handler) MarkSeen(c *gin.Context) {
	var req struct {
		MessageID string `json:"messageId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.MessageID == "" {
		apiresp.Fail(c, errs.ErrArgs.WrapMsg("messageId is required"))
		return
	}
	if err := h.svc.MarkSeen(c.Request.Context(), midsec.UserID(c), req.MessageID); err != nil {
		apiresp.Fail(c, err)
		return
	}
	apiresp.OK(c, gin.H{"message": "Marked as seen"})
}

func (h *Handler) DeleteForMe(c *gin.Context) {
	if err := h.svc.DeleteForMe(c.Request.Context(), midsec.UserID(c), c.Param("id")); err != nil {
		apiresp.Fail(c, err)
		return
	}
	apiresp.OK(c, gin.H{"message": "Message deleted for you"})
}

func (h *Handler) DeleteForEveryone(c *gin.Context) {
	if err := h.svc.DeleteForEveryone(c.Request.Context(), midsec.UserID(c), c.Param("id")); err != nil {
		apiresp.Fail(c, err)
		return
	}
	apiresp.OK(c, gin.H{"message": "Message deleted for everyone"})
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	n, err := h.svc.DeleteConversationMessages(c.Request.Context(), midsec.UserID(c), c.Param("conversationId"))
	if err != nil {
		apiresp.Fail(c, err)
		return
	}
	apiresp.OK(c, gin.H{"message": "Conversation messages deleted.", "deleted": n})
}
