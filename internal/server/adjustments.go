package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	adjustmentdomain "github.com/smallbiznis/lexcredit/internal/adjustment/domain"
)

type applyAdjustmentRequest struct {
	Action adjustmentdomain.Action `json:"action"`
	Amount *int64                  `json:"amount"`
	Reason string                  `json:"reason"`
}

func (s *Server) ApplyAdjustment(c *gin.Context) {
	tenantID, err := parseSnowflakeID(c.Param("tenant_id"))
	if err != nil {
		AbortWithError(c, newValidationError("tenant_id", "invalid_tenant_id", "invalid tenant_id"))
		return
	}

	var req applyAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.adjustmentSvc.Apply(c.Request.Context(), adjustmentdomain.Request{
		TenantID: tenantID,
		Action:   req.Action,
		Amount:   req.Amount,
		Reason:   req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}
