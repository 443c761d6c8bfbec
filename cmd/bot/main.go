package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"huntforge.ai/internal/protocol"
)

// hintView is the client side of one resolved hint; names arrive as {lang: text}.
type hintView struct {
	Dist  uint32            `json:"dist"`
	X     int32             `json:"x"`
	Y     int32             `json:"y"`
	Names map[string]string `json:"names"`
}

type stateView struct {
	Type     string `json:"type"`
	Position *struct {
		X int32 `json:"x"`
		Y int32 `json:"y"`
	} `json:"position"`
	Direction *int                `json:"direction"`
	Hints     map[string]hintView `json:"hints"`
	Code      string              `json:"code"`
	Message   string              `json:"message"`
}

func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name   = flag.String("name", "huntbot", "client name")
		lang   = flag.String("lang", "en", "name language")
		x      = flag.Int("x", 0, "start x")
		y      = flag.Int("y", 0, "start y")
		dir    = flag.Int("direction", 0, "direction 0..3 (N, E, S, W)")
		target = flag.String("target", "", "hint name to follow (substring match; empty follows the closest hint)")
		steps  = flag.Int("follow", 0, "number of MOVE_TO hops to follow")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
		Lang:            *lang,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}
	var w protocol.WelcomeMsg
	if err := readJSON(conn, &w); err != nil || w.Type != protocol.TypeWelcome {
		logger.Fatalf("expected WELCOME: %v", err)
	}
	logger.Printf("WELCOME session=%s lang=%s hints=%s names=%s", w.SessionID, w.Lang, short(w.Catalogs.HintsDigest), short(w.Catalogs.NamesDigest))

	if _, err := call(conn, protocol.SetPositionMsg{Type: protocol.TypeSetPosition, ProtocolVersion: protocol.Version, X: int32(*x), Y: int32(*y)}); err != nil {
		logger.Fatalf("SET_POSITION: %v", err)
	}
	d := *dir
	st, err := call(conn, protocol.SetDirectionMsg{Type: protocol.TypeSetDirection, ProtocolVersion: protocol.Version, Direction: &d})
	if err != nil {
		logger.Fatalf("SET_DIRECTION: %v", err)
	}
	printHints(logger, st, w.Lang)

	for i := 0; i < *steps; i++ {
		id, ok := pick(st, w.Lang, *target)
		if !ok {
			logger.Printf("nothing to follow")
			return
		}
		idNum, err := strconv.ParseUint(id, 10, 32)
		if err != nil {
			logger.Fatalf("bad hint id %q", id)
		}
		if _, err := call(conn, protocol.MoveToMsg{Type: protocol.TypeMoveTo, ProtocolVersion: protocol.Version, ID: uint32(idNum)}); err != nil {
			logger.Fatalf("MOVE_TO %s: %v", id, err)
		}
		if st, err = call(conn, protocol.SetDirectionMsg{Type: protocol.TypeSetDirection, ProtocolVersion: protocol.Version, Direction: &d}); err != nil {
			logger.Fatalf("SET_DIRECTION: %v", err)
		}
		printHints(logger, st, w.Lang)
	}
}

// call sends one request and waits for its STATE (or ERROR) reply.
func call(conn *websocket.Conn, req any) (stateView, error) {
	var st stateView
	if err := conn.WriteJSON(req); err != nil {
		return st, err
	}
	if err := readJSON(conn, &st); err != nil {
		return st, err
	}
	if st.Type == protocol.TypeError {
		return st, fmt.Errorf("%s: %s", st.Code, st.Message)
	}
	return st, nil
}

func readJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	return json.Unmarshal(msg, v)
}

// sortedIDs orders hint ids by distance, then id.
func sortedIDs(st stateView) []string {
	ids := make([]string, 0, len(st.Hints))
	for id := range st.Hints {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := st.Hints[ids[i]], st.Hints[ids[j]]
		if a.Dist != b.Dist {
			return a.Dist < b.Dist
		}
		return ids[i] < ids[j]
	})
	return ids
}

func pick(st stateView, lang, target string) (string, bool) {
	target = strings.ToLower(strings.TrimSpace(target))
	for _, id := range sortedIDs(st) {
		if target == "" || strings.Contains(strings.ToLower(st.Hints[id].Names[lang]), target) {
			return id, true
		}
	}
	return "", false
}

func printHints(logger *log.Logger, st stateView, lang string) {
	pos := "-"
	if st.Position != nil {
		pos = fmt.Sprintf("%d,%d", st.Position.X, st.Position.Y)
	}
	logger.Printf("at %s: %d hints", pos, len(st.Hints))
	for _, id := range sortedIDs(st) {
		h := st.Hints[id]
		logger.Printf("  %-6s d=%-3d (%d,%d) %s", id, h.Dist, h.X, h.Y, h.Names[lang])
	}
}

func short(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
