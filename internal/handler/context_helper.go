package handler

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/libstats-api/internal/middleware"
	"github.com/noah-isme/libstats-api/internal/models"
	appErrors "github.com/noah-isme/libstats-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func intParam(c *gin.Context, name string) (int, error) {
	raw := c.Param(name)
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be an integer", name))
	}
	return value, nil
}

func int64Param(c *gin.Context, name string) (int64, error) {
	raw := c.Param(name)
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be a positive integer", name))
	}
	return value, nil
}

// institutionYearParams reads the :institutionId and :year path segments.
func institutionYearParams(c *gin.Context) (int64, int, error) {
	institutionID, err := int64Param(c, "institutionId")
	if err != nil {
		return 0, 0, err
	}
	year, err := intParam(c, "year")
	if err != nil {
		return 0, 0, err
	}
	return institutionID, year, nil
}
