package main

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"

	"mapmeasure/internal/geo"
	"mapmeasure/internal/measure"
	"mapmeasure/internal/session"
)

// Drives a distance and a circle gesture over the session websocket and
// waits until both show up in the layers stream.
func main() {
	wsBase := flag.String("ws", "ws://localhost:8080", "websocket base URL")
	sessionID := flag.String("session", "sim", "session id")
	lat := flag.Float64("lat", 50.9422, "start latitude")
	lon := flag.Float64("lon", 6.9578, "start longitude")
	distance := flag.Float64("distance", 1200, "distance measurement length in meters")
	radius := flag.Float64("radius", 990, "circle radius in meters before snapping")
	timeout := flag.Duration("timeout", 10*time.Second, "time to wait for the server")
	flag.Parse()

	u, err := url.Parse(*wsBase)
	if err != nil {
		log.Fatalf("bad ws url: %v", err)
	}
	u.Path = "/ws/sessions/" + *sessionID

	ws, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("dial %s: %v", u, err)
	}
	defer ws.Close()

	events := make(chan session.Outbound, 16)
	go read(ws, events)

	start := orb.Point{*lon, *lat}
	base := waitForLayers(events, *timeout, -1)
	log.Printf("connected to %s with %d measurements", *sessionID, base)

	end := geo.Destination(start, 90, *distance)
	send(ws, session.Inbound{Type: "select", Tool: measure.ToolDistance})
	send(ws, session.Inbound{Type: "click", At: &start})
	send(ws, session.Inbound{Type: "click", At: &end})
	waitForLayers(events, *timeout, base+1)
	log.Printf("distance committed")

	edge := geo.Destination(start, 0, *radius)
	send(ws, session.Inbound{Type: "select", Tool: measure.ToolCircle})
	send(ws, session.Inbound{Type: "press", At: &start})
	for i := 1; i <= 4; i++ {
		p := geo.Destination(start, 0, *radius*float64(i)/4)
		send(ws, session.Inbound{Type: "move", At: &p})
	}
	send(ws, session.Inbound{Type: "release", At: &edge})
	waitForLayers(events, *timeout, base+2)
	log.Printf("circle committed")

	send(ws, session.Inbound{Type: "select", Tool: measure.ToolNone})
	fmt.Println("Simulation complete.")
}

func send(ws *websocket.Conn, msg session.Inbound) {
	if err := ws.WriteJSON(msg); err != nil {
		log.Fatalf("send %s: %v", msg.Type, err)
	}
}

func read(ws *websocket.Conn, out chan<- session.Outbound) {
	defer close(out)
	for {
		var msg session.Outbound
		if err := ws.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type == session.TypeError {
			log.Printf("server error: %s", msg.Error)
			continue
		}
		out <- msg
	}
}

// waitForLayers blocks until a layers message carries want committed
// features, or any layers message when want is negative.
func waitForLayers(events <-chan session.Outbound, timeout time.Duration, want int) int {
	deadline := time.After(timeout)
	for {
		select {
		case msg, ok := <-events:
			if !ok {
				log.Fatalf("connection closed")
			}
			if msg.Type != session.TypeLayers || msg.Layers == nil {
				continue
			}
			n := len(msg.Layers.Measurements.Features)
			if want < 0 || n == want {
				return n
			}
		case <-deadline:
			log.Fatalf("timed out waiting for %d measurements", want)
		}
	}
}

func init() {
	log.SetOutput(os.Stdout)
}
