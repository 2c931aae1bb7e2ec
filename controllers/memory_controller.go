package controllers

import (
	"strings"

	"astra/errs"
	"astra/models"
	"astra/services"

	"github.com/gin-gonic/gin"
)

// MemoryController は長期記憶 (事実・プロフィール・統合) の API
type MemoryController struct {
	memory        *services.RAGService
	consolidation *services.ConsolidationService
}

func NewMemoryController(memory *services.RAGService, consolidation *services.ConsolidationService) *MemoryController {
	return &MemoryController{memory: memory, consolidation: consolidation}
}

func (mc *MemoryController) FactsHandler(c *gin.Context) (any, *errs.Error) {
	userID, perr := paramInt64(c, "user_id", errs.ErrInvalidUserID)
	if perr != nil {
		return nil, perr
	}

	facts, err := mc.memory.Facts(c.Request.Context(), userID)
	if err != nil {
		return nil, errs.From(err)
	}
	if facts == nil {
		facts = []models.UserFact{}
	}
	return gin.H{
		"success": true,
		"user_id": userID,
		"facts":   facts,
		"count":   len(facts),
	}, nil
}

// UpdateFactHandler はユーザーによる訂正 (retracted など) を反映する
func (mc *MemoryController) UpdateFactHandler(c *gin.Context) (any, *errs.Error) {
	userID, perr := paramInt64(c, "user_id", errs.ErrInvalidUserID)
	if perr != nil {
		return nil, perr
	}
	factID, perr := paramInt64(c, "fact_id", errs.ErrInvalidFactID)
	if perr != nil {
		return nil, perr
	}

	var request models.FactStatusRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		return nil, errs.WithMessage(errs.ErrInvalidFactStatus, "status is required")
	}

	fact, err := mc.memory.SetFactStatus(c.Request.Context(), userID, factID, request.Status)
	if err != nil {
		return nil, errs.From(err)
	}
	return gin.H{"success": true, "fact": fact}, nil
}

func (mc *MemoryController) ProfileHandler(c *gin.Context) (any, *errs.Error) {
	userID, perr := paramInt64(c, "user_id", errs.ErrInvalidUserID)
	if perr != nil {
		return nil, perr
	}

	profile, err := mc.memory.Profile(c.Request.Context(), userID)
	if err != nil {
		return nil, errs.From(err)
	}
	return gin.H{"success": true, "profile": profile}, nil
}

// ConsolidateHandler はバッチを待たずにセッションを統合する
func (mc *MemoryController) ConsolidateHandler(c *gin.Context) (any, *errs.Error) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		return nil, errs.ErrInvalidSessionID
	}

	entry, err := mc.consolidation.ConsolidateSessionByID(c.Request.Context(), sessionID)
	if err != nil {
		return nil, errs.From(err)
	}
	return gin.H{"success": true, "consolidation": entry}, nil
}
