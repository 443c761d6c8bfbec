package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"huntforge.ai/internal/hunt/index"
	"huntforge.ai/internal/hunt/service"
	"huntforge.ai/internal/hunt/session"
	"huntforge.ai/internal/metrics"
	"huntforge.ai/internal/protocol"
)

const source = "ws"

type Options struct {
	MaxQueue     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Audit receives session open/close events when set.
	Audit session.Auditor
}

func (o *Options) normalize() {
	if o.MaxQueue <= 0 {
		o.MaxQueue = 16
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 120 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
}

type Server struct {
	svc       *service.Service
	log       *log.Logger
	validator *protocol.Validator
	opts      Options

	upgrader websocket.Upgrader
}

func NewServer(svc *service.Service, logger *log.Logger, opts Options) (*Server, error) {
	v, err := protocol.DefaultValidator()
	if err != nil {
		return nil, err
	}
	opts.normalize()
	s := &Server{
		svc:       svc,
		log:       logger,
		validator: v,
		opts:      opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s, nil
}

// conn is the per-connection state; touched only by the reader goroutine.
type conn struct {
	sess   *session.Session
	lang   string
	client string
	out    chan []byte

	opened   time.Time
	messages int
	errors   int
	moves    int
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		c := s.handshake(ws)
		if c == nil {
			return
		}
		metrics.WSSessions.Inc()
		defer metrics.WSSessions.Dec()
		s.logf("session %s opened from %s", c.sess.ID, r.RemoteAddr)
		s.audit(c, session.EventOpen, r.RemoteAddr)
		defer s.audit(c, session.EventClose, r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-c.out:
					_ = ws.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
					if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = ws.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
			_, msg, err := ws.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			c.messages++
			resp := s.dispatch(c, msg)
			if resp == nil {
				continue
			}
			if _, isErr := resp.(protocol.ErrorMsg); isErr {
				c.errors++
			}
			b, err := json.Marshal(resp)
			if err != nil {
				s.logf("session %s: encode: %v", c.sess.ID, err)
				continue
			}
			select {
			case c.out <- b:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
		s.logf("session %s closed", c.sess.ID)
	}
}

func (s *Server) handshake(ws *websocket.Conn) *conn {
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := ws.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closePolicy(ws, "expected HELLO")
		return nil
	}
	if err := s.validator.Validate(protocol.TypeHello, msg); err != nil {
		closePolicy(ws, "bad HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closePolicy(ws, "bad HELLO")
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closePolicy(ws, "bad protocol_version")
		return nil
	}

	ix := s.svc.Index()
	c := &conn{
		sess:   session.New(uuid.NewString(), source, s.svc),
		lang:   string(ix.Language(hello.Lang)),
		client: hello.ClientName,
		out:    make(chan []byte, s.opts.MaxQueue),
		opened: time.Now(),
	}

	info := s.svc.Info()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       c.sess.ID,
		Lang:            c.lang,
		Languages:       info.Languages,
		DefaultLanguage: info.DefaultLanguage,
		Catalogs: protocol.CatalogDigests{
			HintsDigest: info.HintsDigest,
			NamesDigest: info.NamesDigest,
		},
	}
	if err := writeJSON(ws, welcome); err != nil {
		return nil
	}
	return c
}

var clientTypes = map[string]bool{
	protocol.TypeQueryHints:   true,
	protocol.TypeQueryNames:   true,
	protocol.TypeSetPosition:  true,
	protocol.TypeSetDirection: true,
	protocol.TypeMoveTo:       true,
}

// dispatch answers one client message. Every message gets exactly one reply.
func (s *Server) dispatch(c *conn, msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return s.fail("", protocol.ErrProtoBadRequest, "malformed json")
	}
	if !clientTypes[base.Type] {
		return s.fail(base.ReqID, protocol.ErrBadRequest, "unsupported message type: "+base.Type)
	}
	if base.ProtocolVersion != protocol.Version {
		return s.fail(base.ReqID, protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	if err := s.validator.Validate(base.Type, msg); err != nil {
		return s.fail(base.ReqID, protocol.ErrProtoBadRequest, err.Error())
	}

	switch base.Type {
	case protocol.TypeQueryHints:
		var q protocol.QueryHintsMsg
		if err := json.Unmarshal(msg, &q); err != nil {
			return s.fail(q.ReqID, protocol.ErrProtoBadRequest, err.Error())
		}
		return protocol.HintsMsg{
			Type:            protocol.TypeHints,
			ProtocolVersion: protocol.Version,
			ReqID:           q.ReqID,
			X:               q.X,
			Y:               q.Y,
			Direction:       q.Direction,
			Hints:           s.svc.Hints(source, q.X, q.Y, index.Direction(q.Direction)),
		}

	case protocol.TypeQueryNames:
		var q protocol.QueryNamesMsg
		if err := json.Unmarshal(msg, &q); err != nil {
			return s.fail(q.ReqID, protocol.ErrProtoBadRequest, err.Error())
		}
		lang := strings.TrimSpace(q.Lang)
		if lang == "" {
			lang = c.lang
		}
		ids := make([]index.HintID, 0, len(q.IDs))
		for _, id := range q.IDs {
			ids = append(ids, index.HintID(id))
		}
		return protocol.NamesMsg{
			Type:            protocol.TypeNames,
			ProtocolVersion: protocol.Version,
			ReqID:           q.ReqID,
			Lang:            string(s.svc.Index().Language(lang)),
			Names:           s.svc.Names(source, ids, lang),
		}

	case protocol.TypeSetPosition:
		var m protocol.SetPositionMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return s.fail(m.ReqID, protocol.ErrProtoBadRequest, err.Error())
		}
		c.sess.SetPosition(index.Coord{X: m.X, Y: m.Y})
		return stateMsg(m.ReqID, c.sess)

	case protocol.TypeSetDirection:
		var m protocol.SetDirectionMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return s.fail(m.ReqID, protocol.ErrProtoBadRequest, err.Error())
		}
		if m.Direction == nil {
			c.sess.ClearDirection()
		} else {
			c.sess.SetDirection(index.Direction(*m.Direction))
		}
		return stateMsg(m.ReqID, c.sess)

	case protocol.TypeMoveTo:
		var m protocol.MoveToMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return s.fail(m.ReqID, protocol.ErrProtoBadRequest, err.Error())
		}
		if err := c.sess.MoveTo(index.HintID(m.ID)); err != nil {
			if errors.Is(err, session.ErrUnknownHint) {
				return s.fail(m.ReqID, protocol.ErrInvalidTarget, err.Error())
			}
			return s.fail(m.ReqID, protocol.ErrInternal, err.Error())
		}
		c.moves++
		return stateMsg(m.ReqID, c.sess)
	}
	return nil
}

func stateMsg(reqID string, sess *session.Session) protocol.StateMsg {
	st := sess.State()
	return protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		ReqID:           reqID,
		Position:        st.Position,
		Direction:       st.Direction,
		Hints:           st.Hints,
	}
}

func (s *Server) fail(reqID, code, message string) protocol.ErrorMsg {
	metrics.WSErrorsTotal.WithLabelValues(code).Inc()
	return protocol.NewError(reqID, code, message)
}

func (s *Server) audit(c *conn, event, remote string) {
	if s.opts.Audit == nil {
		return
	}
	e := session.AuditEntry{
		At:      time.Now().UTC().Format(time.RFC3339Nano),
		Session: c.sess.ID,
		Event:   event,
		Source:  source,
		Remote:  remote,
		Client:  c.client,
		Lang:    c.lang,
	}
	if event == session.EventClose {
		e.Messages = c.messages
		e.Errors = c.errors
		e.Moves = c.moves
		e.Duration = time.Since(c.opened).Milliseconds()
	}
	if err := s.opts.Audit.WriteAudit(e); err != nil {
		metrics.QueryLogDroppedTotal.WithLabelValues("audit").Inc()
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func closePolicy(ws *websocket.Conn, reason string) {
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(ws *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return ws.WriteMessage(websocket.TextMessage, b)
}
