package main

import (
	"aeropark/src/boot"
	"aeropark/src/db"
	"aeropark/src/engine"
	"aeropark/src/lib"
	"aeropark/src/models"
	"aeropark/src/store"
	"aeropark/src/types"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func adminHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/admin/health", func(ctx *gin.Context) {
			services := gin.H{}
			status := "healthy"

			conn := db.GetDb()
			if sqlDB, err := conn.DB(); err != nil || sqlDB.Ping() != nil {
				services["database"] = "unreachable"
				status = "degraded"
			} else {
				services["database"] = "connected"
			}

			if sched, err := lib.GetScheduler(); err == nil {
				services["scheduler"] = gin.H{"running": true, "jobs": len(sched.Jobs())}
			} else {
				services["scheduler"] = gin.H{"running": false}
				status = "degraded"
			}

			services["socket"] = gin.H{"registered": lib.GetSocketServer() != nil}

			ctx.JSON(http.StatusOK, gin.H{
				"status":    status,
				"services":  services,
				"timestamp": time.Now(),
			})
		}).
		GET("/admin/stats", func(ctx *gin.Context) {
			counts, err := appStores.Spots.CountByStatus(ctx)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			free := counts[types.SPOT_FREE]
			reserved := counts[types.SPOT_RESERVED]
			occupied := counts[types.SPOT_OCCUPIED]
			total := free + reserved + occupied
			rate := 0.0
			if total > 0 {
				rate = float64(occupied+reserved) / float64(total) * 100
			}
			ctx.JSON(http.StatusOK, gin.H{
				"total_spots":    total,
				"free":           free,
				"reserved":       reserved,
				"occupied":       occupied,
				"occupancy_rate": math.Round(rate*100) / 100,
				"timestamp":      time.Now(),
			})
		}).
		POST("/admin/spots/initialize", func(ctx *gin.Context) {
			count := 6
			if q := ctx.Query("count"); q != "" {
				n, err := strconv.Atoi(q)
				if err != nil || n < 1 {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid count"})
					return
				}
				count = n
			}
			created, err := boot.SeedSpots(ctx, appStores.Spots, count)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			message := "spots already exist"
			if len(created) > 0 {
				message = fmt.Sprintf("%d spots created", len(created))
			}
			ctx.JSON(http.StatusOK, gin.H{
				"success":  true,
				"message":  message,
				"spot_ids": created,
			})
		}).
		GET("/admin/codes", func(ctx *gin.Context) {
			var status *types.CodeStatus
			if q := ctx.Query("status"); q != "" {
				s := types.CodeStatus(q)
				status = &s
			}
			codes, err := appStores.Codes.List(ctx, status)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": codes, "count": len(codes)})
		}).
		POST("/admin/codes/invalidate", func(ctx *gin.Context) {
			var body types.InvalidateCodeRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := engine.Default().InvalidateCode(ctx, body.Code); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "code not found"})
					return
				}
				log.Printf("Error invalidating code %s: %s\n", body.Code, err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			log.Printf("Code %s invalidated by %s: %s\n", body.Code, ctx.GetString("uid"), body.Reason)
			ctx.JSON(http.StatusOK, gin.H{"success": true})
		}).
		GET("/admin/reservations", func(ctx *gin.Context) {
			reservations, err := appStores.Reservations.List(ctx)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": reservations, "count": len(reservations)})
		}).
		GET("/admin/violations", func(ctx *gin.Context) {
			spots, err := appStores.Spots.List(ctx)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			var flagged []models.Spot
			for _, spot := range spots {
				if spot.UnauthorizedOccupation {
					flagged = append(flagged, spot)
				}
			}
			ctx.JSON(http.StatusOK, gin.H{"data": flagged, "count": len(flagged)})
		}).
		GET("/admin/barrier-logs", func(ctx *gin.Context) {
			var logs []models.BarrierLog
			conn := db.GetDb()
			if err := conn.Model(&models.BarrierLog{}).
				Order("created_at DESC").
				Limit(200).
				Find(&logs).Error; err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": logs, "count": len(logs)})
		}).
		GET("/admin/devices", func(ctx *gin.Context) {
			var devices []models.Device
			conn := db.GetDb()
			if err := conn.Model(&models.Device{}).Find(&devices).Error; err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": devices, "count": len(devices)})
		}).
		POST("/admin/devices/:id/commands", func(ctx *gin.Context) {
			var params struct {
				ID string `uri:"id" binding:"required"`
			}
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.DeviceCommandRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			command := models.DeviceCommand{
				DeviceID: params.ID,
				Command:  body.Command,
				Payload:  body.Payload,
				Status:   types.COMMAND_PENDING,
			}
			conn := db.GetDb()
			var count int64
			if err := conn.Model(&models.Device{}).
				Where(&models.Device{DeviceID: params.ID}).
				Count(&count).Error; err != nil || count == 0 {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
				return
			}
			if err := conn.Create(&command).Error; err != nil {
				log.Printf("Error queuing command for device %s: %s\n", params.ID, err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			// delivered on the device's next heartbeat
			ctx.JSON(http.StatusCreated, gin.H{"data": command})
		})
	return g
}
