package main

import (
	"aeropark/src/config"
	"aeropark/src/engine"
	"aeropark/src/lib"
	"aeropark/src/lib/mailer"
	"aeropark/src/models"
	"aeropark/src/store"
	"aeropark/src/types"
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func reservationHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/reservations", func(ctx *gin.Context) {
			userId := ctx.GetString("uid")
			all, err := appStores.Reservations.List(ctx)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			var data []models.Reservation
			for _, r := range all {
				if r.UserID == userId {
					data = append(data, r)
				}
			}
			ctx.JSON(http.StatusOK, gin.H{"data": data, "count": len(data)})
		}).
		GET("/reservations/:id", func(ctx *gin.Context) {
			var params types.ReservationURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			reservation, err := appStores.Reservations.Get(ctx, params.ID)
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "reservation not found"})
				return
			}
			if reservation.UserID != ctx.GetString("uid") && ctx.GetString("role") != "admin" {
				ctx.Status(http.StatusForbidden)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": reservation})
		}).
		POST("/reservations", func(ctx *gin.Context) {
			var body types.ReserveRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetString("uid")
			email := ctx.GetString("email")
			reservation, spot, err := engine.Default().Reserve(ctx, userId, email, body)
			if err != nil {
				switch {
				case errors.Is(err, engine.ErrSpotUnavailable):
					ctx.JSON(http.StatusConflict, gin.H{"error": "spot_unavailable"})
				case errors.Is(err, engine.ErrActiveReservationExists):
					ctx.JSON(http.StatusConflict, gin.H{"error": "active_reservation_exists"})
				case errors.Is(err, store.ErrNotFound):
					ctx.JSON(http.StatusNotFound, gin.H{"error": "spot not found"})
				case errors.Is(err, store.ErrConcurrentModification):
					ctx.JSON(http.StatusConflict, gin.H{"error": "busy, retry"})
				default:
					log.Printf("Error creating reservation: %s\n", err.Error())
					ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				}
				return
			}
			go mailer.SendReservationConfirmation(reservation)
			go scheduleReminder(reservation)
			ctx.JSON(http.StatusCreated, gin.H{"data": reservation, "spot": spot})
		}).
		POST("/reservations/:id/extend", func(ctx *gin.Context) {
			var params types.ReservationURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.ExtendRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetString("uid")
			reservation, err := engine.Default().Extend(ctx, userId, params.ID, body.AdditionalMinutes)
			if err != nil {
				switch {
				case errors.Is(err, engine.ErrForbidden):
					ctx.Status(http.StatusForbidden)
				case errors.Is(err, engine.ErrReservationNotActive):
					ctx.JSON(http.StatusConflict, gin.H{"error": "reservation is not active"})
				case errors.Is(err, store.ErrNotFound):
					ctx.JSON(http.StatusNotFound, gin.H{"error": "reservation not found"})
				default:
					log.Printf("Error extending reservation %s: %s\n", params.ID, err.Error())
					ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				}
				return
			}
			go scheduleReminder(reservation)
			ctx.JSON(http.StatusOK, gin.H{"data": reservation})
		}).
		DELETE("/reservations/:id", func(ctx *gin.Context) {
			var params types.ReservationURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetString("uid")
			if err := engine.Default().Cancel(ctx, userId, params.ID); err != nil {
				switch {
				case errors.Is(err, engine.ErrForbidden):
					ctx.Status(http.StatusForbidden)
				case errors.Is(err, engine.ErrReservationNotActive):
					ctx.JSON(http.StatusConflict, gin.H{"error": "reservation is not active"})
				case errors.Is(err, store.ErrNotFound):
					ctx.JSON(http.StatusNotFound, gin.H{"error": "reservation not found"})
				default:
					log.Printf("Error cancelling reservation %s: %s\n", params.ID, err.Error())
					ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				}
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true})
		})
	return g
}

// scheduleReminder books a one-shot job shortly before the window
// closes. The job re-reads the reservation so an extension or
// cancellation in the meantime makes it a no-op.
func scheduleReminder(reservation *models.Reservation) {
	runAt := reservation.End.Add(-config.REMINDER_LEAD)
	if !runAt.After(time.Now()) {
		return
	}
	id := reservation.ID.String()
	_, err := lib.CreateOneTimeJob(runAt, func(reservationID string) {
		current, err := appStores.Reservations.Get(context.Background(), reservationID)
		if err != nil || current.Status != types.RESERVATION_ACTIVE {
			return
		}
		if time.Until(current.End) > config.REMINDER_LEAD+time.Minute {
			// extended since scheduling; a fresh reminder was booked
			return
		}
		mailer.SendReservationReminder(current)
	}, id)
	if err != nil {
		log.Printf("Could not schedule reminder for reservation %s: %s\n", id, err.Error())
	}
}
