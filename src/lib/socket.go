package lib

import (
	"aeropark/src/types"
	"log"

	"github.com/zishang520/socket.io/v2/socket"
)

var socketServer *socket.Server

// NewSocketServer registers the server used for fan-out. Dashboards
// subscribe to the /spots namespace for live state changes.
func NewSocketServer(s *socket.Server) *socket.Server {
	socketServer = s
	return socketServer
}

func GetSocketServer() *socket.Server {
	return socketServer
}

func BroadcastSpotEvent(ev types.StateChangeEvent) {
	if socketServer == nil {
		return
	}
	if err := socketServer.Of("/spots", nil).Emit("state-change", ev); err != nil {
		log.Printf("Failed to broadcast state change for spot %s: %s\n", ev.SpotID, err)
	}
}

func BroadcastParkingStatus(status *types.ParkingStatusResponse) {
	if socketServer == nil {
		return
	}
	if err := socketServer.Of("/spots", nil).Emit("parking-status", status); err != nil {
		log.Printf("Failed to broadcast parking status: %s\n", err)
	}
}
