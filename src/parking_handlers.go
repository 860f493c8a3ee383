package main

import (
	"aeropark/src/engine"
	"aeropark/src/models"
	"aeropark/src/store"
	"aeropark/src/types"
	"aeropark/src/utils"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func newSpotFromRequest(body *types.CreateSpotRequestBody) *models.Spot {
	zone := body.Zone
	if zone == "" {
		zone = "General"
	}
	floor := body.Floor
	if floor == 0 {
		floor = 1
	}
	return &models.Spot{
		ID:         strings.ToLower(body.SpotNumber),
		SpotNumber: strings.ToUpper(body.SpotNumber),
		Zone:       zone,
		Floor:      floor,
		SensorID:   body.SensorID,
		Status:     types.SPOT_FREE,
	}
}

func parkingHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/parking/status", func(ctx *gin.Context) {
			status, err := utils.ParkingStatus(ctx, appStores.Spots)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			ctx.JSON(http.StatusOK, status)
		}).
		GET("/parking/spots", func(ctx *gin.Context) {
			spots, err := appStores.Spots.List(ctx)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": spots, "count": len(spots)})
		}).
		GET("/parking/spots/:id", func(ctx *gin.Context) {
			var params types.SpotURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			spot, err := appStores.Spots.Get(ctx, params.ID)
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "spot not found"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": spot})
		})
	return g
}

func parkingAdminHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/parking/spots", func(ctx *gin.Context) {
			var body types.CreateSpotRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			spot := newSpotFromRequest(&body)
			if _, err := appStores.Spots.Get(ctx, spot.ID); err == nil {
				ctx.JSON(http.StatusConflict, gin.H{"error": "spot already exists"})
				return
			}
			if err := appStores.Spots.Create(ctx, spot); err != nil {
				log.Printf("Error creating spot %s: %s\n", spot.ID, err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": spot})
		}).
		DELETE("/parking/spots/:id", func(ctx *gin.Context) {
			var params types.SpotURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			spot, err := appStores.Spots.Get(ctx, params.ID)
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "spot not found"})
				return
			}
			if spot.Status != types.SPOT_FREE {
				ctx.JSON(http.StatusConflict, gin.H{"error": "spot is in use"})
				return
			}
			if err := appStores.Spots.Delete(ctx, params.ID); err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		POST("/parking/spots/:id/release", func(ctx *gin.Context) {
			var params types.SpotURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.ForceReleaseRequestBody
			// body is optional for the override
			_ = ctx.ShouldBindJSON(&body)
			previous, current, err := engine.Default().ForceRelease(ctx, params.ID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "spot not found"})
					return
				}
				log.Printf("Error releasing spot %s: %s\n", params.ID, err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			log.Printf("Spot %s force-released by %s (%s -> %s): %s\n",
				params.ID, ctx.GetString("uid"), previous, current, body.Reason)
			ctx.JSON(http.StatusOK, gin.H{
				"previous_state": previous,
				"new_state":      current,
				"reason":         types.REASON_FORCE_RELEASE,
			})
		})
	return g
}
