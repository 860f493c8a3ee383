package main

import (
	"aeropark/src/config"
	"aeropark/src/engine"
	"aeropark/src/models"
	"aeropark/src/types"
	"aeropark/src/utils"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Barrier endpoints always answer with a structured grant/deny. The
// firmware falls back to a "try again" prompt on deny; a 5xx here
// means a store outage, nothing else.
func barrierHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/barrier/entry", func(ctx *gin.Context) {
			var body types.EntryAccessRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			decision, err := engine.Default().CheckEntryAccess(ctx, body.SensorPresence, body.AccessCode)
			if err != nil {
				log.Printf("Entry check failed: %s\n", err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			go auditBarrier(&models.BarrierLog{
				BarrierID:       body.BarrierID,
				VehiclePresence: body.SensorPresence,
				Code:            body.AccessCode,
				CodeValid:       decision.Reason == types.REASON_CODE_VALID,
				AccessGranted:   decision.AccessGranted,
				Reason:          decision.Reason,
				SpotID:          decision.SpotID,
				IPAddress:       ctx.ClientIP(),
			})
			ctx.JSON(http.StatusOK, decision)
		}).
		POST("/barrier/validate", func(ctx *gin.Context) {
			var body types.ValidateCodeRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			decision, err := engine.Default().ValidateCode(ctx, body.SensorPresence, body.Code, types.CODE_ENTRY)
			if err != nil {
				log.Printf("Code validation failed: %s\n", err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			code := body.Code
			go auditBarrier(&models.BarrierLog{
				BarrierID:       body.BarrierID,
				VehiclePresence: body.SensorPresence,
				Code:            &code,
				CodeValid:       decision.Reason == types.REASON_CODE_VALID,
				AccessGranted:   decision.AccessGranted,
				Reason:          decision.Reason,
				SpotID:          decision.SpotID,
				IPAddress:       ctx.ClientIP(),
			})
			ctx.JSON(http.StatusOK, gin.H{
				"valid":                decision.AccessGranted,
				"access_granted":       decision.AccessGranted,
				"reason":               decision.Reason,
				"spot_id":              decision.SpotID,
				"issued_to":            decision.IssuedTo,
				"barrier_open_seconds": config.BARRIER_OPEN_SECONDS,
			})
		}).
		POST("/barrier/exit", func(ctx *gin.Context) {
			var body types.ExitRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			decision, err := engine.Default().ProcessExit(ctx, body.SensorPresence, body.SpotID)
			if err != nil {
				log.Printf("Exit check failed: %s\n", err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			go auditBarrier(&models.BarrierLog{
				BarrierID:       "exit",
				VehiclePresence: body.SensorPresence,
				AccessGranted:   decision.AccessGranted,
				Reason:          decision.Reason,
				SpotID:          decision.SpotID,
				IPAddress:       ctx.ClientIP(),
			})
			ctx.JSON(http.StatusOK, decision)
		})
	return g
}

// barrierControlHandlers drive the physical gate. Status and open are
// polled by the controller; close arrives after the open delay. The
// parking-info shape is sized for the controller's LCD.
func barrierControlHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/barrier/status", func(ctx *gin.Context) {
			barrierID := ctx.DefaultQuery("barrier_id", "entry")
			status, err := engine.Default().BarrierStatus(ctx, barrierID)
			if err != nil {
				log.Printf("Barrier status failed: %s\n", err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			ctx.JSON(http.StatusOK, status)
		}).
		POST("/barrier/open", func(ctx *gin.Context) {
			var body types.BarrierOpenRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			eng := engine.Default()
			denied := func(message string) {
				ctx.JSON(http.StatusOK, engine.BarrierAction{
					BarrierID: body.BarrierID,
					Action:    "denied",
					Message:   message,
				})
			}
			switch body.Reason {
			case "auto_free":
				if !body.SensorPresence {
					denied("no vehicle detected")
					return
				}
				status, err := eng.BarrierStatus(ctx, body.BarrierID)
				if err != nil {
					ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
					return
				}
				if !status.AutoOpenAllowed {
					denied("parking full, code required")
					return
				}
			case "code_valid":
				if body.Code == nil || *body.Code == "" {
					denied("access code required")
					return
				}
				decision, err := eng.ValidateCode(ctx, true, *body.Code, types.CODE_ENTRY)
				if err != nil {
					ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
					return
				}
				if !decision.AccessGranted {
					denied("invalid access code")
					return
				}
			}
			action := eng.OpenBarrier(body.BarrierID, body.Reason)
			go auditBarrier(&models.BarrierLog{
				BarrierID:       body.BarrierID,
				VehiclePresence: body.SensorPresence,
				Code:            body.Code,
				AccessGranted:   true,
				Reason:          body.Reason,
				IPAddress:       ctx.ClientIP(),
			})
			ctx.JSON(http.StatusOK, action)
		}).
		POST("/barrier/close", func(ctx *gin.Context) {
			var body types.BarrierCloseRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, engine.Default().CloseBarrier(body.BarrierID))
		}).
		GET("/barrier/parking-info", func(ctx *gin.Context) {
			status, err := utils.ParkingStatus(ctx, appStores.Spots)
			if err != nil {
				log.Printf("Parking info failed: %s\n", err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"free_spots":     status.Free,
				"total_spots":    status.TotalSpots,
				"reserved_spots": status.Reserved,
				"occupied_spots": status.Occupied,
				"allow_entry":    status.Free > 0,
				"parking_full":   status.Free == 0 && status.Reserved == 0,
				"timestamp":      status.Timestamp,
			})
		})
	return g
}
