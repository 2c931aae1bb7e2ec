package controllers

import (
	"strconv"
	"strings"

	"astra/errs"
	"astra/models"
	"astra/services"

	"github.com/gin-gonic/gin"
)

// ChatController は会話とセッション履歴の API
type ChatController struct {
	chat *services.ChatService
}

func NewChatController(chat *services.ChatService) *ChatController {
	return &ChatController{chat: chat}
}

func bindChatRequest(c *gin.Context) (models.ChatRequest, *errs.Error) {
	var request models.ChatRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		return request, errs.WithMessage(errs.ErrIncompleteRequest, "invalid request body: "+err.Error())
	}
	return request, nil
}

// ChatHandler は応答全体 (セグメントを含む) を返す
func (cc *ChatController) ChatHandler(c *gin.Context) (any, *errs.Error) {
	request, berr := bindChatRequest(c)
	if berr != nil {
		return nil, berr
	}

	response, err := cc.chat.Chat(c.Request.Context(), request)
	if err != nil {
		return nil, errs.From(err)
	}
	return response, nil
}

// SimpleChatHandler は結合済みの応答だけを返す
func (cc *ChatController) SimpleChatHandler(c *gin.Context) (any, *errs.Error) {
	request, berr := bindChatRequest(c)
	if berr != nil {
		return nil, berr
	}

	response, err := cc.chat.Chat(c.Request.Context(), request)
	if err != nil {
		return nil, errs.From(err)
	}
	return models.SimpleChatResponse{
		Success:   true,
		Response:  response.Response,
		SessionID: response.SessionID,
		UserID:    response.UserID,
	}, nil
}

// HistoryHandler はセッションの保存済みターンを返す
// user_id を渡すと所有者も確認する
func (cc *ChatController) HistoryHandler(c *gin.Context) (any, *errs.Error) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		return nil, errs.ErrInvalidSessionID
	}

	var userID int64
	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return nil, errs.ErrInvalidUserID
		}
		userID = id
	}

	turns, err := cc.chat.History(c.Request.Context(), sessionID, userID)
	if err != nil {
		return nil, errs.From(err)
	}
	return gin.H{
		"success":    true,
		"session_id": sessionID,
		"messages":   turns,
		"count":      len(turns),
	}, nil
}

// DeleteUserHandler はユーザーと関連データをすべて削除する
func (cc *ChatController) DeleteUserHandler(c *gin.Context) (any, *errs.Error) {
	userID, perr := paramInt64(c, "user_id", errs.ErrInvalidUserID)
	if perr != nil {
		return nil, perr
	}
	if err := cc.chat.DeleteUser(c.Request.Context(), userID); err != nil {
		return nil, errs.From(err)
	}
	return gin.H{"success": true, "user_id": userID}, nil
}

func (cc *ChatController) CharactersHandler(c *gin.Context) (any, *errs.Error) {
	characters := cc.chat.Characters()
	return gin.H{
		"success":    true,
		"characters": characters,
		"count":      len(characters),
	}, nil
}
