package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/lexcredit/internal/period"
)

type periodQuery struct {
	Period string `form:"period"`
	Year   string `form:"year"`
	Month  string `form:"month"`
}

// GetBalance serves the display path: a metering outage yields the stored
// consumption flagged as stale instead of an error.
func (s *Server) GetBalance(c *gin.Context) {
	p, ok := s.bindPeriod(c)
	if !ok {
		return
	}

	balance, err := s.balanceSvc.Snapshot(c.Request.Context(), tenantIDFromContext(c), p)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": balance})
}

// RefreshBalance forces a metering read and persists the consumption.
func (s *Server) RefreshBalance(c *gin.Context) {
	p, ok := s.bindPeriod(c)
	if !ok {
		return
	}

	balance, err := s.balanceSvc.ComputeBalance(c.Request.Context(), tenantIDFromContext(c), p)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": balance})
}

// bindPeriod resolves the requested period, defaulting to the current one.
func (s *Server) bindPeriod(c *gin.Context) (period.Period, bool) {
	var query periodQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return period.Period{}, false
	}
	p, err := parsePeriodQuery(query.Period, query.Year, query.Month)
	if err != nil {
		AbortWithError(c, newValidationError("period", "invalid_period", "invalid period"))
		return period.Period{}, false
	}
	if p.IsZero() {
		p = s.balanceSvc.CurrentPeriod()
	}
	return p, true
}
