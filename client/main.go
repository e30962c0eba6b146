package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/beatroom/models"
	"github.com/wfunc/beatroom/network"
)

const usage = `commands:
  create [mode]        create a room (default mode classic)
  join CODE [mode]     join a room
  leave                leave the current room
  song ID [difficulty] select a song (host only)
  ready                mark yourself ready
  score SCORE [COMBO]  report a score
  move X Y Z           report a head position
  quit`

// send wraps payload in an event envelope and writes it as a text frame.
func send(c *websocket.Conn, event string, payload interface{}) error {
	frame := network.Frame(event, nil)
	if payload != nil {
		var err error
		if frame, err = network.Encode(event, payload); err != nil {
			return err
		}
	}
	return c.WriteMessage(websocket.TextMessage, frame)
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// command turns one input line into an event and payload.
func command(fields []string) (string, interface{}, bool) {
	arg := func(i int, def string) string {
		if len(fields) > i {
			return fields[i]
		}
		return def
	}

	switch fields[0] {
	case "create":
		return network.EventCreateRoom, models.CreateRoomRequest{Mode: arg(1, "classic")}, true
	case "join":
		if len(fields) < 2 {
			return "", nil, false
		}
		return network.EventJoinRoom, models.JoinRoomRequest{RoomCode: fields[1], PlayerMode: arg(2, "")}, true
	case "leave":
		return network.EventLeaveRoom, nil, true
	case "song":
		if len(fields) < 2 {
			return "", nil, false
		}
		return network.EventSelectSong, map[string]string{"id": fields[1], "difficulty": arg(2, "Normal")}, true
	case "ready":
		return network.EventPlayerReady, nil, true
	case "score":
		if len(fields) < 2 {
			return "", nil, false
		}
		score, _ := strconv.Atoi(fields[1])
		combo, _ := strconv.Atoi(arg(2, "0"))
		return network.EventScoreUpdate, models.ScoreUpdateRequest{Score: score, Combo: combo}, true
	case "move":
		if len(fields) < 4 {
			return "", nil, false
		}
		pos := models.Vec3{X: parseFloat(fields[1]), Y: parseFloat(fields[2]), Z: parseFloat(fields[3])}
		return network.EventPlayerMovement, models.Transform{Position: pos}, true
	}
	return "", nil, false
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server host:port")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, frame, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			msg, err := network.Decode(frame)
			if err != nil {
				log.Printf("Received invalid frame: %s", frame)
				continue
			}
			if msg.Event == network.EventPlayerMoved {
				continue // too chatty
			}
			log.Printf("<- %s %s", msg.Event, string(msg.Data))
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	log.Println(usage)

	// Write loop
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			if fields[0] == "quit" {
				interrupt <- os.Interrupt
				continue
			}
			event, payload, ok := command(fields)
			if !ok {
				log.Println(usage)
				continue
			}
			if err := send(c, event, payload); err != nil {
				log.Println("Write error:", err)
				return
			}
			raw, _ := json.Marshal(payload)
			log.Printf("-> %s %s", event, raw)
		}
	}
}
