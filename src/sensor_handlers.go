package main

import (
	"aeropark/src/engine"
	"aeropark/src/store"
	"aeropark/src/types"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Sensor updates are fire-and-forget from the hardware side; the
// controller re-sends on its own cadence, so a failed update is only
// logged and answered, never queued.
func sensorHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/sensors/update", func(ctx *gin.Context) {
			var body types.SensorUpdateRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			present := body.Status == "occupied"
			spot, err := engine.Default().SensorUpdate(ctx, body.SpotID, present)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "spot not found"})
					return
				}
				log.Printf("Sensor update for spot %s failed: %s\n", body.SpotID, err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"spot_id":                 spot.ID,
				"state":                   spot.Status,
				"unauthorized_occupation": spot.UnauthorizedOccupation,
			})
		})
	return g
}
