package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rbrabson/chronicles/pkg/economy"
	"github.com/rbrabson/chronicles/pkg/moderation"
	"github.com/rbrabson/chronicles/pkg/shop"
	"github.com/rbrabson/chronicles/pkg/store"
	log "github.com/sirupsen/logrus"
)

// writeError maps an engine error to its HTTP status and JSON body.
func writeError(c *gin.Context, err error) {
	var funds *shop.InsufficientFundsError
	var stock *shop.OutOfStockError
	var validation *shop.ValidationError
	var cooldown *economy.DailyCooldownError

	switch {
	case errors.As(err, &funds):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":    err.Error(),
			"currency": funds.Currency,
			"balance":  funds.Balance,
			"cost":     funds.Cost,
		})
	case errors.As(err, &stock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "item_id": stock.ItemID})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": validation.Field})
	case errors.As(err, &cooldown):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error(), "next": cooldown.Next})
	case errors.Is(err, store.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, economy.ErrPackageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrOutOfStock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, shop.ErrNoApplicablePrice), errors.Is(err, shop.ErrValidation),
		errors.Is(err, economy.ErrInvalidAmount), errors.Is(err, economy.ErrUnknownCurrency),
		errors.Is(err, economy.ErrUnknownStat),
		errors.Is(err, moderation.ErrReasonRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrUnavailable):
		log.WithFields(log.Fields{"path": c.Request.URL.Path, "error": err}).Error("store unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
	default:
		log.WithFields(log.Fields{"path": c.Request.URL.Path, "error": err}).Error("API request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
