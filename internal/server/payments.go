package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/lexcredit/internal/payment/domain"
	"github.com/smallbiznis/lexcredit/pkg/db/pagination"
)

type listTransactionsQuery struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
	Kind      string `form:"kind"`
	Status    string `form:"status"`
}

// GetPurchasePrice quotes ?credits= against the configured price table.
func (s *Server) GetPurchasePrice(c *gin.Context) {
	credits, err := strconv.ParseInt(strings.TrimSpace(c.Query("credits")), 10, 64)
	if err != nil {
		AbortWithError(c, paymentdomain.ErrInvalidCredits)
		return
	}

	quote, err := s.paymentSvc.Quote(credits)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": quote})
}

func (s *Server) CreatePurchase(c *gin.Context) {
	var req paymentdomain.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TenantID = tenantIDFromContext(c)

	result, err := s.paymentSvc.PurchaseCredits(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": result})
}

func (s *Server) CreateSubscription(c *gin.Context) {
	var req paymentdomain.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TenantID = tenantIDFromContext(c)

	result, err := s.paymentSvc.SubscribeToPlan(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": result})
}

func (s *Server) ListTransactions(c *gin.Context) {
	var query listTransactionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.ListTransactions(c.Request.Context(), paymentdomain.ListTransactionsRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		TenantID: tenantIDFromContext(c),
		Kind:     paymentdomain.Kind(strings.TrimSpace(query.Kind)),
		Status:   paymentdomain.Status(strings.TrimSpace(query.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Transactions, "page_info": resp.PageInfo})
}

// ReconcileTransaction applies a gateway outcome reported by the webhook receiver.
// Repeated notices for the same reference answer 200 with already_processed set.
func (s *Server) ReconcileTransaction(c *gin.Context) {
	var req paymentdomain.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.paymentSvc.Reconcile(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}
