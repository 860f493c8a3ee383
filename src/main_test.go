package main

import (
	"aeropark/src/engine"
	"aeropark/src/middlewares"
	"aeropark/src/models"
	"aeropark/src/store"
	"aeropark/src/types"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
)

const deviceKey = "test-device-key"

type TestSuite struct {
	suite.Suite
}

// testAuthMiddleware stands in for the JWT middleware so handler
// tests run against the in-memory stores without a database.
func testAuthMiddleware(ctx *gin.Context) {
	uid := ctx.GetHeader("x-test-uid")
	if uid == "" {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	ctx.Set("uid", uid)
	ctx.Set("email", fmt.Sprintf("%s@example.com", uid))
	role := ctx.GetHeader("x-test-role")
	if role == "" {
		role = "user"
	}
	ctx.Set("role", role)
}

func (s *TestSuite) SetupSuite() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("reservableduration", reservableDurationValidatorFunc)
	}
	os.Setenv("DEVICE_API_KEY", deviceKey)
	auditBarrier = func(entry *models.BarrierLog) {
		log.Printf("barrier log: granted=%v reason=%s\n", entry.AccessGranted, entry.Reason)
	}
}

// SetupTest rebuilds the world per test: fresh stores, fresh engine,
// fresh spots a1..a3.
func (s *TestSuite) SetupTest() {
	appStores = store.NewMemoryStores()
	engine.SetDefault(engine.New(appStores, nil))
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("a%d", i)
		err := appStores.Spots.Create(context.Background(), &models.Spot{
			ID: id, SpotNumber: strings.ToUpper(id), Status: types.SPOT_FREE,
		})
		assert.NoError(s.T(), err)
	}
}

func (s *TestSuite) newRouter() *gin.Engine {
	router := setupRouter()
	publicRoutes(router)

	authorized := router.Group(apiPrefix)
	authorized.Use(testAuthMiddleware)
	reservationHandlers(authorized)
	accessCodeHandlers(authorized)

	admin := router.Group(apiPrefix)
	admin.Use(testAuthMiddleware, middlewares.AdminOnly)
	adminHandlers(admin)
	parkingAdminHandlers(admin)

	device := router.Group(apiPrefix)
	device.Use(middlewares.DeviceAuthMiddleware)
	barrierHandlers(device)
	barrierControlHandlers(device)
	sensorHandlers(device)
	return router
}

func doJSON(router *gin.Engine, method, url string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = strings.NewReader(string(b))
	}
	req, _ := http.NewRequest(method, url, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func userHeaders(uid string) map[string]string {
	return map[string]string{"x-test-uid": uid}
}

func adminHeaders(uid string) map[string]string {
	return map[string]string{"x-test-uid": uid, "x-test-role": "admin"}
}

func deviceHeaders() map[string]string {
	return map[string]string{"x-api-key": deviceKey}
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestParkingStatus() {
	router := s.newRouter()

	w := doJSON(router, "GET", "/api/v1/parking/status", nil, nil)
	assert.Equal(s.T(), 200, w.Code)
	body := w.Body.String()
	assert.Equal(s.T(), int64(3), gjson.Get(body, "total_spots").Int())
	assert.Equal(s.T(), int64(3), gjson.Get(body, "free").Int())
	assert.Equal(s.T(), int64(0), gjson.Get(body, "occupied").Int())
}

func (s *TestSuite) TestReservationFlow() {
	router := s.newRouter()

	s.Run("Should create a reservation with 201 status", func() {
		w := doJSON(router, "POST", "/api/v1/reservations",
			types.ReserveRequestBody{SpotID: "a1", DurationMinutes: 60}, userHeaders("u1"))
		assert.Equal(s.T(), 201, w.Code)
		body := w.Body.String()
		assert.Equal(s.T(), "a1", gjson.Get(body, "spot.id").String())
		assert.Equal(s.T(), "RESERVED", gjson.Get(body, "spot.status").String())
	})

	s.Run("Should reject a second reservation for the same user", func() {
		w := doJSON(router, "POST", "/api/v1/reservations",
			types.ReserveRequestBody{SpotID: "a2", DurationMinutes: 60}, userHeaders("u1"))
		assert.Equal(s.T(), 409, w.Code)
		assert.Equal(s.T(), "active_reservation_exists", gjson.Get(w.Body.String(), "error").String())
	})

	s.Run("Should reject a reservation on a held spot", func() {
		w := doJSON(router, "POST", "/api/v1/reservations",
			types.ReserveRequestBody{SpotID: "a1", DurationMinutes: 30}, userHeaders("u2"))
		assert.Equal(s.T(), 409, w.Code)
		assert.Equal(s.T(), "spot_unavailable", gjson.Get(w.Body.String(), "error").String())
	})

	s.Run("Should reject an out-of-range duration", func() {
		w := doJSON(router, "POST", "/api/v1/reservations",
			types.ReserveRequestBody{SpotID: "a2", DurationMinutes: 9999}, userHeaders("u3"))
		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should cancel own reservation and free the spot", func() {
		reservation, err := appStores.Reservations.ActiveByUser(context.Background(), "u1")
		assert.NoError(s.T(), err)

		w := doJSON(router, "DELETE", fmt.Sprintf("/api/v1/reservations/%s", reservation.ID), nil, userHeaders("u2"))
		assert.Equal(s.T(), 403, w.Code)

		w = doJSON(router, "DELETE", fmt.Sprintf("/api/v1/reservations/%s", reservation.ID), nil, userHeaders("u1"))
		assert.Equal(s.T(), 200, w.Code)

		spot, err := appStores.Spots.Get(context.Background(), "a1")
		assert.NoError(s.T(), err)
		assert.Equal(s.T(), types.SPOT_FREE, spot.Status)
	})
}

func (s *TestSuite) TestBarrierEntryFlow() {
	router := s.newRouter()

	s.Run("Should deny without presence", func() {
		w := doJSON(router, "POST", "/api/v1/barrier/entry",
			types.EntryAccessRequestBody{SensorPresence: false}, deviceHeaders())
		assert.Equal(s.T(), 200, w.Code)
		body := w.Body.String()
		assert.False(s.T(), gjson.Get(body, "access_granted").Bool())
		assert.Equal(s.T(), "no_vehicle", gjson.Get(body, "reason").String())
	})

	s.Run("Should grant on free capacity without a code", func() {
		w := doJSON(router, "POST", "/api/v1/barrier/entry",
			types.EntryAccessRequestBody{SensorPresence: true}, deviceHeaders())
		assert.Equal(s.T(), 200, w.Code)
		body := w.Body.String()
		assert.True(s.T(), gjson.Get(body, "access_granted").Bool())
		assert.Equal(s.T(), "spots_available", gjson.Get(body, "reason").String())
		assert.Equal(s.T(), int64(3), gjson.Get(body, "free_spots").Int())
	})

	s.Run("Should require a code when full, then admit the code holder once", func() {
		ctx := context.Background()
		for i, uid := range []string{"u1", "u2", "u3"} {
			_, _, err := engine.Default().Reserve(ctx, uid, uid+"@example.com",
				types.ReserveRequestBody{SpotID: fmt.Sprintf("a%d", i+1), DurationMinutes: 60})
			assert.NoError(s.T(), err)
		}

		w := doJSON(router, "POST", "/api/v1/barrier/entry",
			types.EntryAccessRequestBody{SensorPresence: true}, deviceHeaders())
		body := w.Body.String()
		assert.False(s.T(), gjson.Get(body, "access_granted").Bool())
		assert.Equal(s.T(), "parking_full", gjson.Get(body, "reason").String())
		assert.True(s.T(), gjson.Get(body, "code_required").Bool())

		reservation, err := appStores.Reservations.ActiveByUser(ctx, "u1")
		assert.NoError(s.T(), err)
		code, err := engine.Default().GenerateCode(ctx, "u1", reservation.ID.String(), types.CODE_ENTRY)
		assert.NoError(s.T(), err)

		w = doJSON(router, "POST", "/api/v1/barrier/entry",
			types.EntryAccessRequestBody{SensorPresence: true, AccessCode: &code.Code}, deviceHeaders())
		body = w.Body.String()
		assert.True(s.T(), gjson.Get(body, "access_granted").Bool())
		assert.Equal(s.T(), "code_valid", gjson.Get(body, "reason").String())
		assert.Equal(s.T(), "a1", gjson.Get(body, "spot_id").String())

		// replay is denied
		w = doJSON(router, "POST", "/api/v1/barrier/entry",
			types.EntryAccessRequestBody{SensorPresence: true, AccessCode: &code.Code}, deviceHeaders())
		body = w.Body.String()
		assert.False(s.T(), gjson.Get(body, "access_granted").Bool())
		assert.Equal(s.T(), "invalid_code", gjson.Get(body, "reason").String())
	})
}

func (s *TestSuite) TestSensorAndExitFlow() {
	router := s.newRouter()
	ctx := context.Background()

	s.Run("Should flag unauthorized occupation", func() {
		w := doJSON(router, "POST", "/api/v1/sensors/update",
			types.SensorUpdateRequestBody{SpotID: "a2", Status: "occupied"}, deviceHeaders())
		assert.Equal(s.T(), 200, w.Code)
		body := w.Body.String()
		assert.Equal(s.T(), "OCCUPIED", gjson.Get(body, "state").String())
		assert.True(s.T(), gjson.Get(body, "unauthorized_occupation").Bool())
	})

	s.Run("Should reject unknown spots", func() {
		w := doJSON(router, "POST", "/api/v1/sensors/update",
			types.SensorUpdateRequestBody{SpotID: "zz", Status: "occupied"}, deviceHeaders())
		assert.Equal(s.T(), 404, w.Code)
	})

	s.Run("Should grant exit on presence and free the spot", func() {
		w := doJSON(router, "POST", "/api/v1/barrier/exit",
			types.ExitRequestBody{SensorPresence: true, SpotID: "a2"}, deviceHeaders())
		assert.Equal(s.T(), 200, w.Code)
		body := w.Body.String()
		assert.True(s.T(), gjson.Get(body, "access_granted").Bool())
		assert.Equal(s.T(), "vehicle_exit", gjson.Get(body, "reason").String())

		spot, err := appStores.Spots.Get(ctx, "a2")
		assert.NoError(s.T(), err)
		assert.Equal(s.T(), types.SPOT_FREE, spot.Status)
	})

	s.Run("Should reject devices without the shared key", func() {
		w := doJSON(router, "POST", "/api/v1/sensors/update",
			types.SensorUpdateRequestBody{SpotID: "a1", Status: "free"}, nil)
		assert.Equal(s.T(), 401, w.Code)
	})
}

func (s *TestSuite) TestBarrierControl() {
	router := s.newRouter()
	ctx := context.Background()

	s.Run("Should report a closed barrier with live counts", func() {
		w := doJSON(router, "GET", "/api/v1/barrier/status?barrier_id=entry", nil, deviceHeaders())
		assert.Equal(s.T(), 200, w.Code)
		body := w.Body.String()
		assert.Equal(s.T(), "closed", gjson.Get(body, "status").String())
		assert.Equal(s.T(), int64(3), gjson.Get(body, "parking_available_spots").Int())
		assert.True(s.T(), gjson.Get(body, "auto_open_allowed").Bool())
	})

	s.Run("Should open on auto_free and report open afterwards", func() {
		w := doJSON(router, "POST", "/api/v1/barrier/open",
			types.BarrierOpenRequestBody{BarrierID: "entry", Reason: "auto_free", SensorPresence: true}, deviceHeaders())
		assert.Equal(s.T(), 200, w.Code)
		body := w.Body.String()
		assert.True(s.T(), gjson.Get(body, "success").Bool())
		assert.Equal(s.T(), "open", gjson.Get(body, "action").String())
		assert.Equal(s.T(), int64(10), gjson.Get(body, "open_duration_seconds").Int())

		w = doJSON(router, "GET", "/api/v1/barrier/status?barrier_id=entry", nil, deviceHeaders())
		assert.Equal(s.T(), "open", gjson.Get(w.Body.String(), "status").String())
	})

	s.Run("Should close after the open delay", func() {
		w := doJSON(router, "POST", "/api/v1/barrier/close",
			types.BarrierCloseRequestBody{BarrierID: "entry"}, deviceHeaders())
		assert.Equal(s.T(), 200, w.Code)
		assert.Equal(s.T(), "close", gjson.Get(w.Body.String(), "action").String())

		w = doJSON(router, "GET", "/api/v1/barrier/status?barrier_id=entry", nil, deviceHeaders())
		assert.Equal(s.T(), "closed", gjson.Get(w.Body.String(), "status").String())
	})

	s.Run("Should deny auto_free without presence or capacity", func() {
		w := doJSON(router, "POST", "/api/v1/barrier/open",
			types.BarrierOpenRequestBody{BarrierID: "entry", Reason: "auto_free", SensorPresence: false}, deviceHeaders())
		assert.Equal(s.T(), "denied", gjson.Get(w.Body.String(), "action").String())

		for i, uid := range []string{"u1", "u2", "u3"} {
			_, _, err := engine.Default().Reserve(ctx, uid, uid+"@example.com",
				types.ReserveRequestBody{SpotID: fmt.Sprintf("a%d", i+1), DurationMinutes: 60})
			assert.NoError(s.T(), err)
		}
		w = doJSON(router, "POST", "/api/v1/barrier/open",
			types.BarrierOpenRequestBody{BarrierID: "entry", Reason: "auto_free", SensorPresence: true}, deviceHeaders())
		assert.Equal(s.T(), "denied", gjson.Get(w.Body.String(), "action").String())
	})

	s.Run("Should open on a valid code and reject garbage", func() {
		reservation, err := appStores.Reservations.ActiveByUser(ctx, "u1")
		assert.NoError(s.T(), err)
		code, err := engine.Default().GenerateCode(ctx, "u1", reservation.ID.String(), types.CODE_ENTRY)
		assert.NoError(s.T(), err)

		w := doJSON(router, "POST", "/api/v1/barrier/open",
			types.BarrierOpenRequestBody{BarrierID: "entry", Reason: "code_valid", Code: &code.Code}, deviceHeaders())
		assert.Equal(s.T(), "open", gjson.Get(w.Body.String(), "action").String())

		bogus := "ZZZ"
		w = doJSON(router, "POST", "/api/v1/barrier/open",
			types.BarrierOpenRequestBody{BarrierID: "entry", Reason: "code_valid", Code: &bogus}, deviceHeaders())
		assert.Equal(s.T(), "denied", gjson.Get(w.Body.String(), "action").String())
	})

	s.Run("Should serve the controller parking summary", func() {
		w := doJSON(router, "GET", "/api/v1/barrier/parking-info", nil, deviceHeaders())
		assert.Equal(s.T(), 200, w.Code)
		body := w.Body.String()
		assert.Equal(s.T(), int64(3), gjson.Get(body, "total_spots").Int())
		assert.False(s.T(), gjson.Get(body, "allow_entry").Bool())
		assert.False(s.T(), gjson.Get(body, "parking_full").Bool())
	})
}

func (s *TestSuite) TestAdminRoutes() {
	router := s.newRouter()
	ctx := context.Background()

	s.Run("Should forbid non-admin users", func() {
		w := doJSON(router, "POST", "/api/v1/parking/spots",
			types.CreateSpotRequestBody{SpotNumber: "B1"}, userHeaders("u1"))
		assert.Equal(s.T(), 403, w.Code)
	})

	s.Run("Should create and delete spots", func() {
		w := doJSON(router, "POST", "/api/v1/parking/spots",
			types.CreateSpotRequestBody{SpotNumber: "B1", Zone: "VIP", Floor: 2}, adminHeaders("op1"))
		assert.Equal(s.T(), 201, w.Code)
		assert.Equal(s.T(), "b1", gjson.Get(w.Body.String(), "data.id").String())

		w = doJSON(router, "POST", "/api/v1/parking/spots",
			types.CreateSpotRequestBody{SpotNumber: "B1"}, adminHeaders("op1"))
		assert.Equal(s.T(), 409, w.Code)

		w = doJSON(router, "DELETE", "/api/v1/parking/spots/b1", nil, adminHeaders("op1"))
		assert.Equal(s.T(), 204, w.Code)
	})

	s.Run("Should force-release an occupied spot", func() {
		_, _, err := engine.Default().Reserve(ctx, "u1", "u1@example.com",
			types.ReserveRequestBody{SpotID: "a1", DurationMinutes: 60})
		assert.NoError(s.T(), err)
		_, err = engine.Default().SensorUpdate(ctx, "a1", true)
		assert.NoError(s.T(), err)

		w := doJSON(router, "POST", "/api/v1/parking/spots/a1/release",
			types.ForceReleaseRequestBody{Reason: "stale sensor"}, adminHeaders("op1"))
		assert.Equal(s.T(), 200, w.Code)
		body := w.Body.String()
		assert.Equal(s.T(), "OCCUPIED", gjson.Get(body, "previous_state").String())
		assert.Equal(s.T(), "FREE", gjson.Get(body, "new_state").String())
	})

	s.Run("Should invalidate an active code", func() {
		_, _, err := engine.Default().Reserve(ctx, "u9", "u9@example.com",
			types.ReserveRequestBody{SpotID: "a3", DurationMinutes: 60})
		assert.NoError(s.T(), err)
		reservation, err := appStores.Reservations.ActiveByUser(ctx, "u9")
		assert.NoError(s.T(), err)
		code, err := engine.Default().GenerateCode(ctx, "u9", reservation.ID.String(), types.CODE_ENTRY)
		assert.NoError(s.T(), err)

		w := doJSON(router, "POST", "/api/v1/admin/codes/invalidate",
			types.InvalidateCodeRequestBody{Code: code.Code, Reason: "reported stolen"}, adminHeaders("op1"))
		assert.Equal(s.T(), 200, w.Code)

		got, err := appStores.Codes.Get(ctx, code.Code)
		assert.NoError(s.T(), err)
		assert.Equal(s.T(), types.CODE_INVALIDATED, got.Status)
	})

	s.Run("Should report stats and skip re-initialization", func() {
		w := doJSON(router, "GET", "/api/v1/admin/stats", nil, adminHeaders("op1"))
		assert.Equal(s.T(), 200, w.Code)
		body := w.Body.String()
		assert.Equal(s.T(), int64(3), gjson.Get(body, "total_spots").Int())
		assert.Equal(s.T(), int64(1), gjson.Get(body, "reserved").Int())

		w = doJSON(router, "POST", "/api/v1/admin/spots/initialize", nil, adminHeaders("op1"))
		assert.Equal(s.T(), 200, w.Code)
		assert.Equal(s.T(), "spots already exist", gjson.Get(w.Body.String(), "message").String())
	})
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
