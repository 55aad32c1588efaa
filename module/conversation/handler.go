package conversation

import (
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
	rt.POST("/api/conversations", h.Create, auth)
	rt.GET("/api/conversations", h.List, auth)
	rt.POST("/api/conversations/findOrCreate", h.FindOrCreate, auth)
	rt.DELETE("/api/conversations/:id", h.Delete, auth)
}

func (h *Handler) Create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		apiresp.Fail(c, errs.ErrArgs.WrapMsg("invalid body", "err", err.Error()))
		return
	}
	conv, err := h.svc.Create(c.Request.Context(), midsec.UserID(c), in)
	if err != nil {
		apiresp.Fail(c, err)
		return
	}
	apiresp.Created(c, conv)
}

func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		apiresp.Fail(c, err)
		return
	}
	apiresp.OK(c, list)
}

func (h *Handler) FindOrCreate(c *gin.Context) {
	var req struct {
		RecipientID string `json:"recipientId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresp.Fail(c, errs.ErrArgs.WrapMsg("invalid body", "err", err.Error()))
		return
	}
	conv, err := h.svc.FindOrCreate(c.Request.Context(), midsec.UserID(c), req.RecipientID)
	if err != nil {
		apiresp.Fail(c, err)
		return
	}
	apiresp.OK(c, conv)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), midsec.UserID(c), c.Param("id")); err != nil {
		apiresp.Fail(c, err)
		return
	}
	apiresp.OK(c, gin.H{"message": "Conversation and messages deleted"})
}
