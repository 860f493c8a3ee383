package boot

import (
	"aeropark/src/config"
	"aeropark/src/db"
	"aeropark/src/engine"
	"aeropark/src/lib"
	"aeropark/src/models"
	"aeropark/src/store"
	"aeropark/src/types"
	"aeropark/src/utils"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Spot{},
		&models.Reservation{},
		&models.AccessCode{},
		&models.Device{},
		&models.DeviceCommand{},
		&models.BarrierLog{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// SeedSpots creates the default lot layout when the registry is empty
// and returns the created ids. Spot ids are stable and match the
// sensor wiring on the controller.
func SeedSpots(ctx context.Context, spots store.SpotRegistry, count int) ([]string, error) {
	existing, err := spots.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, nil
	}
	created := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		id := fmt.Sprintf("a%d", i)
		spot := &models.Spot{
			ID:         id,
			SpotNumber: fmt.Sprintf("A%d", i),
			Zone:       "General",
			Floor:      1,
			SensorID:   fmt.Sprintf("ir_%d", i),
			Status:     types.SPOT_FREE,
		}
		if err := spots.Create(ctx, spot); err != nil {
			log.Printf("Could not create spot %s: %s\n", id, err.Error())
			continue
		}
		created = append(created, id)
	}
	return created, nil
}

func InitSpots(spots store.SpotRegistry) {
	created, err := SeedSpots(context.Background(), spots, 6)
	if err != nil {
		log.Printf("Could not seed spots: %s\n", err.Error())
		return
	}
	if len(created) > 0 {
		log.Printf("Seeded default parking layout: %d spots\n", len(created))
	}
}

// InitScheduler starts the periodic jobs: the expiry sweep and the
// status broadcast for dashboards subscribed over the socket.
func InitScheduler(stores store.Stores) {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	sweep, err := sched.NewJob(
		gocron.DurationJob(config.SWEEP_INTERVAL),
		gocron.NewTask(func() {
			eng := engine.Default()
			if eng == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			codes, spots, err := eng.RunExpirySweep(ctx)
			if err != nil {
				log.Printf("Expiry sweep failed: %s\n", err.Error())
				return
			}
			if codes > 0 || spots > 0 {
				log.Printf("Expiry sweep: %d codes expired, %d spots freed\n", codes, spots)
			}
		}),
	)
	if err != nil {
		log.Printf("Error creating sweep job: %s\n", err.Error())
		return
	}
	log.Printf("Job ID: %s %s\n", sweep.Name(), sweep.ID().String())

	_, err = lib.CreateCronJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		status, err := utils.ParkingStatus(ctx, stores.Spots)
		if err != nil {
			log.Printf("Could not build parking status: %s\n", err.Error())
			return
		}
		lib.BroadcastParkingStatus(status)
	}, 30*time.Second)
	if err != nil {
		log.Printf("Error creating broadcast job: %s\n", err.Error())
	}

	jobsWaitingInQueue := len(sched.Jobs())
	log.Println("Jobs in queue:", jobsWaitingInQueue)
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Printf("Error shutting down Scheduler: %s\n", err.Error())
	}
}
