package server

import (
	"errors"
	"net/http"
	"time"

	"market-viewer/src/helpers"
	"market-viewer/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------

// writeError maps domain errors onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	var ve *helpers.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// -----------------------------------------------------------------------------

func findSubscription(subs []models.MSubscription, id string) (models.MSubscription, bool) {
	for _, s := range subs {
		if s.ID == id {
			return s, true
		}
	}
	return models.MSubscription{}, false
}

func hasSubscription(subs []models.MSubscription, id string) bool {
	_, ok := findSubscription(subs, id)
	return ok
}

// -----------------------------------------------------------------------------

// Snapshot builds the dashboard message for the current market state.
func Snapshot(m MarketAPI, now time.Time) *models.MViewMessage {
	return &models.MViewMessage{
		Type:      "UPDATE",
		Status:    m.Status(),
		State:     m.State().String(),
		View:      m.View(),
		Timestamp: now.UnixMilli(),
	}
}
