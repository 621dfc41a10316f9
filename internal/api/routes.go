package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/isoko-app/isoko/internal/fault"
	"github.com/isoko-app/isoko/internal/models"
	"github.com/isoko-app/isoko/internal/negotiation"
	"github.com/isoko-app/isoko/internal/quote"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, orch *negotiation.Orchestrator) {
	router.GET("/healthz", handleHealth())

	n := router.Group("/negotiations")
	n.POST("", handleStart(orch))
	n.GET("/:id", handleGetResult(orch))
	n.POST("/:id/quotes", handleAddQuote(orch))
	n.GET("/:id/quotes", handleListQuotes(orch))
	n.GET("/:id/quotes/best", handleBestQuotes(orch))
	n.GET("/:id/stats", handleStats(orch))
	n.POST("/:id/complete", handleComplete(orch))
	n.POST("/:id/cancel", handleCancel(orch))
	n.POST("/:id/extend", handleExtend(orch))

	router.GET("/requesters/:id/negotiations", handleActiveForRequester(orch))
}

// writeError maps fault kinds to HTTP statuses. The structured kind plus
// entity id is what the presentation layer needs to build its own message.
func writeError(c *gin.Context, err error) {
	switch {
	case fault.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "validation"})
	case fault.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "kind": "not_found"})
	case fault.IsRace(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "kind": "race_condition"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "kind": "persistence"})
	}
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

type startRequest struct {
	RequesterID   string         `json:"requester_id" binding:"required"`
	FlowType      string         `json:"flow_type" binding:"required"`
	RequestData   models.JSONMap `json:"request_data"`
	WindowMinutes int            `json:"window_minutes"`
}

func handleStart(orch *negotiation.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req startRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "validation"})
			return
		}
		result, err := orch.Start(c.Request.Context(), negotiation.StartOpts{
			RequesterID:   req.RequesterID,
			FlowType:      req.FlowType,
			RequestData:   req.RequestData,
			WindowMinutes: req.WindowMinutes,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, resultResponse(result))
	}
}

func handleGetResult(orch *negotiation.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := orch.GetResult(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, resultResponse(result))
	}
}

type addQuoteRequest struct {
	VendorID             string         `json:"vendor_id"`
	VendorType           string         `json:"vendor_type"`
	VendorName           string         `json:"vendor_name"`
	VendorPhone          string         `json:"vendor_phone"`
	OfferData            models.JSONMap `json:"offer_data"`
	PriceAmount          *float64       `json:"price_amount"`
	PriceCurrency        string         `json:"price_currency"`
	EstimatedTimeMinutes *int           `json:"estimated_time_minutes"`
	ExpiresInMinutes     int            `json:"expires_in_minutes"`
}

func handleAddQuote(orch *negotiation.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addQuoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "validation"})
			return
		}
		q, err := orch.AddQuote(quote.AddOpts{
			SessionID:            c.Param("id"),
			VendorID:             req.VendorID,
			VendorType:           req.VendorType,
			VendorName:           req.VendorName,
			VendorPhone:          req.VendorPhone,
			OfferData:            req.OfferData,
			PriceAmount:          req.PriceAmount,
			PriceCurrency:        req.PriceCurrency,
			EstimatedTimeMinutes: req.EstimatedTimeMinutes,
			ExpiresInMinutes:     req.ExpiresInMinutes,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, q)
	}
}

func handleListQuotes(orch *negotiation.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := orch.GetResult(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"quotes": result.Quotes})
	}
}

func handleBestQuotes(orch *negotiation.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer", "kind": "validation"})
				return
			}
			limit = n
		}
		quotes, err := orch.BestQuotes(c.Param("id"), limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"quotes": quotes})
	}
}

func handleStats(orch *negotiation.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := orch.Stats(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

type completeRequest struct {
	QuoteID string `json:"quote_id" binding:"required"`
}

func handleComplete(orch *negotiation.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req completeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "validation"})
			return
		}
		if err := orch.Complete(c.Param("id"), req.QuoteID); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "completed", "selected_quote_id": req.QuoteID})
	}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func handleCancel(orch *negotiation.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		// The reason body is optional; an empty body is fine.
		var req cancelRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "validation"})
			return
		}
		if err := orch.Cancel(c.Param("id"), req.Reason); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
	}
}

type extendRequest struct {
	Minutes int `json:"minutes" binding:"required"`
}

func handleExtend(orch *negotiation.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req extendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "validation"})
			return
		}
		s, err := orch.Extend(c.Param("id"), req.Minutes)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id":      s.ID,
			"deadline_at":     s.DeadlineAt,
			"extension_count": s.ExtensionCount,
		})
	}
}

func handleActiveForRequester(orch *negotiation.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions, err := orch.ActiveForRequester(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	}
}

// resultResponse flattens a negotiation result for JSON.
func resultResponse(r *negotiation.Result) gin.H {
	resp := gin.H{
		"session_id":        r.SessionID,
		"status":            r.Status,
		"quotes_received":   r.QuotesReceived,
		"quotes":            r.Quotes,
		"vendors_contacted": r.VendorsContacted,
		"time_elapsed_ms":   r.TimeElapsed.Milliseconds(),
		"timed_out":         r.TimedOut,
	}
	if r.Best != nil {
		resp["best_quote"] = r.Best
	}
	return resp
}
