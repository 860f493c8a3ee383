package middlewares

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// DeviceAuthMiddleware authenticates hardware by a shared secret, not
// a user identity. Sensors and barriers send it as x-api-key.
func DeviceAuthMiddleware(ctx *gin.Context) {
	secret := os.Getenv("DEVICE_API_KEY")
	if secret == "" {
		log.Println("DEVICE_API_KEY is not configured; rejecting device request")
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	key := ctx.GetHeader("x-api-key")
	if subtle.ConstantTimeCompare([]byte(key), []byte(secret)) != 1 {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	ctx.Set("device_ip", ctx.ClientIP())
}
