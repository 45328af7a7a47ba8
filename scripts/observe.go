package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// observe attaches to a running interview's analysis stream and prints one
// line per broadcast message.
func main() {
	addr := flag.String("addr", "localhost:8000", "server host:port")
	session := flag.String("session", "", "session id")
	only := flag.String("types", "", "comma separated message types to print")
	raw := flag.Bool("raw", false, "print raw JSON")
	flag.Parse()
	if *session == "" {
		fmt.Println("usage: observe -session=<id> [-addr=host:port] [-types=fused_emotions,adaptation]")
		os.Exit(1)
	}

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws/observe/" + *session}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		fmt.Println("dial error:", err)
		os.Exit(1)
	}
	defer conn.Close()

	filter := map[string]bool{}
	for _, t := range strings.Split(*only, ",") {
		if t = strings.TrimSpace(t); t != "" {
			filter[t] = true
		}
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				fmt.Println("read error:", err)
				return
			}
			var msg map[string]any
			if err := json.Unmarshal(data, &msg); err != nil {
				fmt.Println("decode error:", err)
				continue
			}
			typ, _ := msg["type"].(string)
			if len(filter) > 0 && !filter[typ] {
				continue
			}
			if *raw {
				fmt.Println(string(data))
				continue
			}
			fmt.Println(summarize(typ, msg))
		}
	}()

	ping := time.NewTicker(15 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case <-ping.C:
			_ = conn.WriteJSON(map[string]string{"type": "ping"})
		case <-interrupt:
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}

func summarize(typ string, msg map[string]any) string {
	ts := time.Now().Format("15:04:05.000")
	switch typ {
	case "fused_emotions", "face_update", "vocal_update":
		return fmt.Sprintf("%s %-15s %v", ts, typ, msg["emotions"])
	case "adaptation":
		return fmt.Sprintf("%s %-15s %v (%v)", ts, typ, msg["action"], msg["reason"])
	case "transcript":
		return fmt.Sprintf("%s %-15s %v: %v", ts, typ, msg["role"], msg["text"])
	default:
		return fmt.Sprintf("%s %s", ts, typ)
	}
}
