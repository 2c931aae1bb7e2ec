package controllers

import (
	"astra/errs"
	"astra/services"

	"github.com/gin-gonic/gin"
)

// CatalogController は処方とプロンプト種別の参照 API
type CatalogController struct {
	remedies *services.RemedyCatalog
}

func NewCatalogController(remedies *services.RemedyCatalog) *CatalogController {
	return &CatalogController{remedies: remedies}
}

func (cc *CatalogController) RemediesHandler(c *gin.Context) (any, *errs.Error) {
	return gin.H{
		"success": true,
		"planets": cc.remedies.Planets(),
		"doshas":  cc.remedies.Doshas(),
	}, nil
}

// PlanetRemedyHandler は shani などヒンディー名でも引ける
func (cc *CatalogController) PlanetRemedyHandler(c *gin.Context) (any, *errs.Error) {
	remedy, err := cc.remedies.Planet(c.Param("planet"))
	if err != nil {
		return nil, errs.From(err)
	}
	return gin.H{"success": true, "remedy": remedy}, nil
}

func (cc *CatalogController) DoshaRemedyHandler(c *gin.Context) (any, *errs.Error) {
	remedy, err := cc.remedies.Dosha(c.Param("dosha"))
	if err != nil {
		return nil, errs.From(err)
	}
	return gin.H{"success": true, "remedy": remedy}, nil
}

func (cc *CatalogController) PromptsHandler(c *gin.Context) (any, *errs.Error) {
	return gin.H{
		"success":  true,
		"variants": services.PromptVariants,
		"default":  services.PromptPersona,
	}, nil
}
