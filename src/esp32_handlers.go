package main

import (
	"aeropark/src/config"
	"aeropark/src/db"
	"aeropark/src/models"
	"aeropark/src/types"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// criticalSensors must all report healthy for a device to count as
// online; anything else degrades it.
var criticalSensors = []string{"ir_sensors", "servo", "entry_sensor", "exit_sensor"}

func deriveDeviceStatus(sensors map[string]bool, lastError string) types.DeviceStatus {
	if lastError != "" {
		return types.DEVICE_DEGRADED
	}
	for _, name := range criticalSensors {
		if healthy, ok := sensors[name]; ok && !healthy {
			return types.DEVICE_DEGRADED
		}
	}
	return types.DEVICE_ONLINE
}

func esp32Handlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/esp32/heartbeat", func(ctx *gin.Context) {
			var body types.HeartbeatRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			now := time.Now()
			sensorStatus := types.JSONB{}
			for name, healthy := range body.SensorStatus {
				sensorStatus[name] = healthy
			}
			device := models.Device{
				DeviceID:        body.DeviceID,
				DeviceType:      body.DeviceType,
				Status:          deriveDeviceStatus(body.SensorStatus, body.LastError),
				FirmwareVersion: body.FirmwareVersion,
				UptimeSeconds:   body.UptimeSeconds,
				FreeHeap:        body.FreeHeap,
				WifiRSSI:        body.WifiRSSI,
				SensorStatus:    sensorStatus,
				LastError:       body.LastError,
				IPAddress:       ctx.ClientIP(),
				LastSeen:        &now,
			}

			var pending []models.DeviceCommand
			conn := db.GetDb()
			err := conn.Transaction(func(tx *gorm.DB) error {
				if err := tx.Clauses(clause.OnConflict{
					Columns: []clause.Column{{Name: "device_id"}},
					DoUpdates: clause.AssignmentColumns([]string{
						"device_type", "status", "firmware_version", "uptime_seconds",
						"free_heap", "wifi_rssi", "sensor_status", "last_error",
						"ip_address", "last_seen",
					}),
				}).Create(&device).Error; err != nil {
					return err
				}
				if err := tx.Model(&models.Device{}).
					Where("device_id = ?", body.DeviceID).
					UpdateColumn("total_heartbeats", gorm.Expr("total_heartbeats + 1")).Error; err != nil {
					return err
				}
				if err := tx.
					Where(&models.DeviceCommand{DeviceID: body.DeviceID, Status: types.COMMAND_PENDING}).
					Find(&pending).Error; err != nil {
					return err
				}
				if len(pending) > 0 {
					ids := make([]string, 0, len(pending))
					for _, cmd := range pending {
						ids = append(ids, cmd.ID.String())
					}
					if err := tx.Model(&models.DeviceCommand{}).
						Where("id IN (?)", ids).
						Updates(map[string]any{"status": types.COMMAND_SENT, "sent_at": now}).Error; err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				log.Printf("Heartbeat from %s failed: %s\n", body.DeviceID, err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"status":             "acknowledged",
				"device_status":      device.Status,
				"heartbeat_interval": config.HEARTBEAT_INTERVAL_S,
				"commands":           pending,
				"server_time":        now,
			})
		})
	return g
}
