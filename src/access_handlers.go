package main

import (
	"aeropark/src/engine"
	"aeropark/src/lib"
	"aeropark/src/lib/mailer"
	"aeropark/src/store"
	"aeropark/src/types"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

func accessCodeHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/codes", func(ctx *gin.Context) {
			var body types.GenerateCodeRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetString("uid")
			code, err := engine.Default().GenerateCode(ctx, userId, body.ReservationID, types.CodeKind(body.Kind))
			if err != nil {
				switch {
				case errors.Is(err, engine.ErrForbidden):
					ctx.Status(http.StatusForbidden)
				case errors.Is(err, engine.ErrReservationNotActive):
					ctx.JSON(http.StatusConflict, gin.H{"error": "reservation is not active"})
				case errors.Is(err, store.ErrNotFound):
					ctx.JSON(http.StatusNotFound, gin.H{"error": "reservation not found"})
				default:
					log.Printf("Error generating code: %s\n", err.Error())
					ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				}
				return
			}
			go mailer.SendAccessCode(code)
			ctx.JSON(http.StatusCreated, gin.H{
				"code":       code.Code,
				"kind":       code.Kind,
				"spot_id":    code.SpotID,
				"expires_at": code.ExpiresAt,
			})
		}).
		GET("/codes/:code/qr", func(ctx *gin.Context) {
			var params struct {
				Code string `uri:"code" binding:"required"`
			}
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			code, err := engine.Default().ResolveCodeSpot(ctx, params.Code)
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "code not found"})
				return
			}
			if code.IssuedTo != ctx.GetString("uid") {
				ctx.Status(http.StatusForbidden)
				return
			}
			filepath, err := lib.SaveCodeQR(code.Code)
			if err != nil {
				log.Printf("Error rendering QR for code %s: %s\n", code.Code, err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			ctx.File(filepath)
		})
	return g
}
