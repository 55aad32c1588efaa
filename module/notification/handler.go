package notification

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"SocialNet/middleware"
	midsec "SocialNet/middleware/security"
	notifmodel "SocialNet/module/notification/model"
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
	rt.GET("/api/notifications", h.List, auth)
	rt.POST("/api/notifications", h.Trigger, auth)
	rt.PUT("/api/notifications/mark-all-seen", h.MarkAllRead, auth)
	rt.PUT("/api/notifications/:id/read", h.MarkRead, auth)
	rt.DELETE("/api/notifications/:id", h.Delete, auth)
}

func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "0"))
	res, err := h.svc.List(c.Request.Context(), midsec.UserID(c), page, size)
	if err != nil {
		apiresp.Fail(c, err)
		return
	}
	apiresp.OK(c, res)
}

type triggerReq struct {
	ReceiverID    string          `json:"receiverId"`
	Type          notifmodel.Type `json:"type"`
	RelatedPostID string          `json:"relatedPostId"`
	PostID        string          `json:"postId"` // 旧字段
}

// Trigger 发送者固定为当前登录用户
func (h *Handler) Trigger(c *gin.Context) {
	var req triggerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresp.Fail(c, errs.ErrArgs.WrapMsg("invalid body", "err", err.Error()))
		return
	}
	if req.RelatedPostID == "" {
		req.RelatedPostID = req.PostID
	}
	outcome, view, err := h.svc.Trigger(c.Request.Context(), TriggerInput{
		SenderID:      midsec.UserID(c),
		ReceiverID:    req.ReceiverID,
		Type:          req.Type,
		RelatedPostID: req.RelatedPostID,
	})
	if err != nil {
		apiresp.Fail(c, err)
		return
	}
	if outcome == OutcomeCreated {
		apiresp.Created(c, gin.H{"outcome": outcome, "notification": view})
		return
	}
	apiresp.OK(c, gin.H{"outcome": outcome})
}

func (h *Handler) MarkRead(c *gin.Context) {
	rec, err := h.svc.MarkRead(c.Request.Context(), midsec.UserID(c), c.Param("id"))
	if err != nil {
		apiresp.Fail(c, err)
		return
	}
	apiresp.OK(c, rec)
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	n, err := h.svc.MarkAllRead(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		apiresp.Fail(c, err)
		return
	}
	apiresp.OK(c, gin.H{"message": "All notifications marked as read", "updated": n})
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), midsec.UserID(c), c.Param("id")); err != nil {
		apiresp.Fail(c, err)
		return
	}
	apiresp.OK(c, gin.H{"message": "Notification deleted"})
}
