package controllers

import (
	"errors"
	"net/http"
	"strings"

	"marketgist_backend/services"

	"github.com/gin-gonic/gin"
)

// StockController handles stock data requests
type StockController struct {
	quotes *services.QuoteService
}

// NewStockController creates a new stock controller
func NewStockController(quotes *services.QuoteService) *StockController {
	return &StockController{quotes: quotes}
}

// GetQuote returns the current quote for a symbol
// GET /api/v1/stocks/:symbol/quote
func (sc *StockController) GetQuote(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Symbol is required"})
		return
	}

	quote, err := sc.quotes.GetQuote(c.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, services.ErrQuoteUnavailable) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No price data available for " + symbol})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch quote"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quote})
}
