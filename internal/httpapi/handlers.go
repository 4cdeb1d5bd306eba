package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"crm-platform/internal/auth"
	"crm-platform/internal/crm"
	"crm-platform/internal/ingest"
	"crm-platform/internal/reporting"

	"github.com/gin-gonic/gin"
)

// Repository is the slice of persistence the HTTP layer touches directly.
type Repository interface {
	GetCustomer(ctx context.Context, accountID, customerID string) (crm.Customer, error)
	DeleteCustomer(ctx context.Context, accountID, customerID string) error
	UpdateFollowUpStatus(ctx context.Context, accountID, followUpID string, status crm.FollowUpStatus) error
}

// Syncer triggers one incremental mailbox sync for an account.
type Syncer interface {
	SyncEmails(ctx context.Context, accountID string) (ingest.SyncStats, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Repo      Repository
	Reporting *reporting.Service
	Sync      Syncer
}

// --- Auth ---

type loginRequest struct {
	UserID    string `json:"user_id"`
	AccountID string `json:"account_id"`
}

// Login issues an access token.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.AccountID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, account_id required"})
		return
	}
	tok, err := h.Auth.IssueAccessToken(time.Now(), req.UserID, req.AccountID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": tok})
}

// --- Customers ---

func (h Handlers) GetCustomer(c *gin.Context) {
	accountID, err := auth.AccountID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_id required"})
		return
	}
	customerID := c.Param("customer_id")
	cust, err := h.Repo.GetCustomer(c.Request.Context(), accountID, customerID)
	if errors.Is(err, crm.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "customer not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "customer lookup failed"})
		return
	}
	c.JSON(http.StatusOK, cust)
}

// DeleteCustomer removes a customer and every record attached to it.
// The cascade is atomic; a partial delete never survives.
func (h Handlers) DeleteCustomer(c *gin.Context) {
	accountID, err := auth.AccountID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_id required"})
		return
	}
	customerID := c.Param("customer_id")
	err = h.Repo.DeleteCustomer(c.Request.Context(), accountID, customerID)
	if errors.Is(err, crm.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "customer not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// --- Email sync ---

// TriggerEmailSync runs one incremental Gmail sync for the caller's account.
// A sync already in flight for the account returns 409.
func (h Handlers) TriggerEmailSync(c *gin.Context) {
	accountID, err := auth.AccountID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_id required"})
		return
	}
	stats, err := h.Sync.SyncEmails(c.Request.Context(), accountID)
	if errors.Is(err, ingest.ErrSyncInProgress) {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "sync already in progress"})
		return
	}
	if errors.Is(err, crm.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "gmail not connected"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "sync failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// --- Reporting ---

// ActivitySummary aggregates interaction metrics over a time range.
// from/to are RFC3339 query params; the default window is the last 30 days.
func (h Handlers) ActivitySummary(c *gin.Context) {
	accountID, err := auth.AccountID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_id required"})
		return
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
			return
		}
		to = t
	}

	out, err := h.Reporting.ActivitySummary(c.Request.Context(), reporting.ActivitySummaryRequest{
		AccountID: accountID,
		Range:     reporting.TimeRange{From: from, To: to},
	})
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- Follow-ups ---

type followUpStatusRequest struct {
	Status string `json:"status"`
}

func (h Handlers) UpdateFollowUpStatus(c *gin.Context) {
	accountID, err := auth.AccountID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_id required"})
		return
	}
	followUpID := c.Param("follow_up_id")

	var req followUpStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	status := crm.FollowUpStatus(req.Status)
	switch status {
	case crm.FollowUpPending, crm.FollowUpDone, crm.FollowUpIgnored:
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "status must be pending, done or ignored"})
		return
	}

	err = h.Repo.UpdateFollowUpStatus(c.Request.Context(), accountID, followUpID, status)
	if errors.Is(err, crm.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "follow-up not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
