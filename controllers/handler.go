package controllers

import (
	"net/http"
	"strconv"

	"astra/errs"
	"astra/logger"
	"astra/models"

	"github.com/gin-gonic/gin"
)

// ApiHandler は JSON を返すハンドラ
type ApiHandler func(c *gin.Context) (any, *errs.Error)

// JSONHandler は ApiHandler を gin のハンドラにする
func JSONHandler(fn ApiHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := fn(c)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func renderError(c *gin.Context, err *errs.Error) {
	switch err.Kind {
	case errs.KindValidation, errs.KindNotFound, errs.KindUnauthorized:
		logger.Debug("request rejected", "path", c.FullPath(), "error", err)
	default:
		logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(err.HttpStatusCode, models.ErrorResponse{
		Success: false,
		Error:   err.PublicMessage(),
	})
}

func paramInt64(c *gin.Context, name string, invalid *errs.Error) (int64, *errs.Error) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		return 0, invalid
	}
	return v, nil
}
