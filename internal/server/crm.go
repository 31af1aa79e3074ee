package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/lexcredit/internal/period"
)

func (s *Server) GetCRMKPIs(c *gin.Context) {
	p, ok := s.crmPeriod(c)
	if !ok {
		return
	}

	kpi, err := s.crmSvc.Get(c.Request.Context(), tenantIDFromContext(c), p)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": kpi})
}

func (s *Server) RefreshCRMKPIs(c *gin.Context) {
	p, ok := s.crmPeriod(c)
	if !ok {
		return
	}

	kpi, err := s.crmSvc.Refresh(c.Request.Context(), tenantIDFromContext(c), p)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": kpi})
}

func (s *Server) crmPeriod(c *gin.Context) (period.Period, bool) {
	if s.crmSvc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return period.Period{}, false
	}
	return s.bindPeriod(c)
}
