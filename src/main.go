package main

import (
	"aeropark/src/boot"
	"aeropark/src/config"
	"aeropark/src/db"
	"aeropark/src/engine"
	"aeropark/src/lib"
	"aeropark/src/middlewares"
	"aeropark/src/models"
	"aeropark/src/store"
	"aeropark/src/types"
	"aeropark/src/utils"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	_ "github.com/joho/godotenv/autoload"
	engineiotypes "github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"
)

const (
	apiPrefix string = "/api/v1"
)

// appStores is the live store bundle; main wires gorm-backed stores,
// tests swap in the in-memory ones.
var appStores store.Stores

// auditBarrier persists one row per admission attempt. Runs off the
// request goroutine; a failed write is logged and dropped.
var auditBarrier = func(entry *models.BarrierLog) {
	conn := db.GetDb()
	if err := conn.Create(entry).Error; err != nil {
		log.Printf("Failed to write barrier log: %s\n", err.Error())
	}
}

func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// socketNotifier fans spot transitions out to subscribed dashboards
// and drops the cached lot snapshot.
type socketNotifier struct{}

func (socketNotifier) SpotChanged(ev types.StateChangeEvent) {
	go func() {
		ctx, cancel := contextWithTimeout()
		defer cancel()
		lib.InvalidateParkingStatus(ctx)
		lib.BroadcastSpotEvent(ev)
	}()
}

var reservableDurationValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	minutes, ok := fl.Field().Interface().(int)
	if !ok {
		return false
	}
	return minutes >= 1 && minutes <= config.MAX_RESERVATION_MINUTES
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(middlewares.SecureHeaders)
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	return router
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

func publicRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	parkingHandlers(apiv1)
	return apiv1
}

func authRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	auth := apiv1.Group("/auth")
	auth.
		POST("/token", func(ctx *gin.Context) {
			var body struct {
				UID   string `json:"uid" binding:"required"`
				Email string `json:"email" binding:"required,email"`
				Name  string `json:"name,omitempty"`
			}
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			conn := db.GetDb()
			var user models.User
			conn.Model(&models.User{}).Where(&models.User{UID: body.UID}).Find(&user)
			if user.ID < 1 {
				user = models.User{UID: body.UID, Email: body.Email, Name: body.Name}
				if err := conn.Create(&user).Error; err != nil {
					log.Printf("Error creating user %s: %s\n", body.UID, err.Error())
					ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
					return
				}
			}
			token, err := utils.GenerateJWT(user.UID, user.Email, user.Role)
			if err != nil {
				log.Printf("Error signing token for %s: %s\n", user.UID, err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"token": token})
		})
	return auth
}

func authorizedRoutes(g *gin.Engine) *gin.RouterGroup {
	authorized := g.Group(apiPrefix)
	authorized.Use(middlewares.AuthMiddleware)
	reservationHandlers(authorized)
	accessCodeHandlers(authorized)
	return authorized
}

func adminRoutes(g *gin.Engine) *gin.RouterGroup {
	admin := g.Group(apiPrefix)
	admin.Use(middlewares.AuthMiddleware, middlewares.AdminOnly)
	adminHandlers(admin)
	parkingAdminHandlers(admin)
	return admin
}

func deviceRoutes(g *gin.Engine) *gin.RouterGroup {
	device := g.Group(apiPrefix)
	device.Use(middlewares.DeviceAuthMiddleware)
	barrierHandlers(device)
	barrierControlHandlers(device)
	sensorHandlers(device)
	esp32Handlers(device)
	return device
}

func setupSocketServer(r *gin.Engine) *socket.Server {
	c := socket.DefaultServerOptions()
	c.SetServeClient(true)
	c.SetPingInterval(time.Second)
	c.SetPingTimeout(200 * time.Millisecond)
	c.SetMaxHttpBufferSize(1_000_000)
	c.SetConnectTimeout(time.Second)
	c.SetCors(&engineiotypes.Cors{
		Origin:      "*",
		Credentials: true,
	})

	wss := socket.NewServer(nil, nil)
	wss.Of("/spots", nil).On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		log.Printf("[newclient]: %s %s\n", string(client.Id()), client.Nsp().Name())
		client.On("status", func(args ...any) {
			ctx, cancel := contextWithTimeout()
			defer cancel()
			status, err := utils.ParkingStatus(ctx, appStores.Spots)
			if err != nil {
				log.Printf("Could not build parking status: %s\n", err.Error())
				return
			}
			client.Emit("parking-status", status)
		})
	})

	r.GET("/socket.io/*any", gin.WrapH(wss.ServeHandler(c)))
	r.POST("/socket.io/*any", gin.WrapH(wss.ServeHandler(c)))
	return lib.NewSocketServer(wss)
}

func initLogger() {
	cwd, _ := os.Getwd()
	serverLogs := path.Join(cwd, "logs", "server.log")
	apiLogs := path.Join(cwd, "logs", "api.log")
	gin.ForceConsoleColor()

	f, _ := os.Create(apiLogs)
	gin.DefaultWriter = io.MultiWriter(f, os.Stdout)
	log.SetOutput(&lumberjack.Logger{
		Filename:   serverLogs,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	})
}

func main() {
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			panic(err)
		}
	}
	initLogger()

	conn := boot.InitDb()
	appStores = store.NewGormStores(conn)
	engine.SetDefault(engine.New(appStores, socketNotifier{}))
	boot.InitSpots(appStores.Spots)
	boot.InitScheduler(appStores)

	router := setupRouter()
	wss := setupSocketServer(router)
	if wss != nil {
		log.Println("WS server listening for connections...")
	}

	if apiEnv == "local" {
		router.Use(cors.Default())
	} else {
		cc := cors.DefaultConfig()
		cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PATCH", "PUT", "DELETE", "HEAD")
		cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization", "x-api-key")
		cc.AllowAllOrigins = true
		router.Use(cors.New(cc))
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("reservableduration", reservableDurationValidatorFunc)
	}

	publicRoutes(router)
	authRoutes(router)
	authorizedRoutes(router)
	adminRoutes(router)
	deviceRoutes(router)

	defer boot.StopScheduler()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := router.Run(fmt.Sprintf(":%s", port)); err != nil {
		log.Fatalf("Server error: %s", err.Error())
	}
}
