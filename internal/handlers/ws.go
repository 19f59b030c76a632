// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/playmat/playmat/internal/game"
	"github.com/playmat/playmat/internal/middleware"
	"github.com/playmat/playmat/internal/protocol"
)

const writeTimeout = 3 * time.Second

// session is the per-connection room binding. A connection belongs to at
// most one room for its lifetime; the binding is set by the first successful
// create, join or reconnect.
type session struct {
	room *game.Room
	seat int
}

// HandleWS upgrades the connection and runs its read loop. A message that
// fails to parse gets a PARSE_ERROR reply and the connection stays open;
// only a read error (the peer going away) ends the loop, at which point the
// bound room is told so it can start its grace-period countdown.
func (s *GameServer) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.Logger.Warnf("Failed to accept websocket: %v", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")
	middleware.LogSocketOpen(s.Logger, r.RemoteAddr, r.URL.Path)

	ctx := r.Context()
	sess := &session{seat: -1}
	defer func() {
		if sess.room != nil {
			sess.room.HandleDisconnect(sess.seat, conn)
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			middleware.LogSocketClose(s.Logger, r.RemoteAddr, r.URL.Path, err)
			return
		}
		var msg protocol.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(ctx, conn, "", protocol.CodeParseError, "malformed message")
			continue
		}
		s.dispatch(ctx, conn, sess, msg)
	}
}

func (s *GameServer) dispatch(ctx context.Context, conn *websocket.Conn, sess *session, msg protocol.ClientMessage) {
	switch msg.Type {
	case protocol.TypePing:
		s.write(ctx, conn, protocol.ServerMessage{
			Type:      protocol.TypePong,
			Payload:   protocol.PongPayload{Timestamp: time.Now().UnixMilli()},
			RequestID: msg.RequestID,
		})

	case protocol.TypeCreateGame:
		if sess.room != nil {
			s.sendError(ctx, conn, msg.RequestID, protocol.CodeInvalidState, "already in a game")
			return
		}
		s.handleCreate(ctx, conn, sess, msg)

	case protocol.TypeJoinGame:
		if sess.room != nil {
			s.sendError(ctx, conn, msg.RequestID, protocol.CodeInvalidState, "already in a game")
			return
		}
		s.handleJoin(ctx, conn, sess, msg)

	case protocol.TypeReconnect:
		if sess.room != nil {
			s.sendError(ctx, conn, msg.RequestID, protocol.CodeInvalidState, "already in a game")
			return
		}
		s.handleReconnect(ctx, conn, sess, msg)

	case protocol.TypeSubmitDeck:
		if sess.room == nil {
			s.sendError(ctx, conn, msg.RequestID, protocol.CodeNotInGame, "no game joined")
			return
		}
		s.handleSubmitDeck(ctx, conn, sess, msg)

	case protocol.TypeStartGame:
		if sess.room == nil {
			s.sendError(ctx, conn, msg.RequestID, protocol.CodeNotInGame, "no game joined")
			return
		}
		if cerr := sess.room.StartMatch(sess.seat); cerr != nil {
			s.sendError(ctx, conn, msg.RequestID, cerr.Code, cerr.Message)
			return
		}
		s.ack(ctx, conn, msg.RequestID)

	case protocol.TypeGameAction:
		if sess.room == nil {
			s.sendError(ctx, conn, msg.RequestID, protocol.CodeNotInGame, "no game joined")
			return
		}
		act, err := game.DecodeAction(msg.Payload)
		if err != nil {
			s.sendError(ctx, conn, msg.RequestID, protocol.CodeParseError, "malformed action")
			return
		}
		sess.room.HandleAction(sess.seat, act, msg.RequestID)
		// Save and load answer the requester themselves.
		if act.Kind != game.ActionSaveGame && act.Kind != game.ActionLoadGame {
			s.ack(ctx, conn, msg.RequestID)
		}

	default:
		s.sendError(ctx, conn, msg.RequestID, protocol.CodeParseError, "unknown message type")
	}
}

func (s *GameServer) handleCreate(ctx context.Context, conn *websocket.Conn, sess *session, msg protocol.ClientMessage) {
	var payload protocol.CreateGamePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.sendError(ctx, conn, msg.RequestID, protocol.CodeParseError, "malformed payload")
		return
	}
	room, player, err := s.Registry.CreateRoom(payload.PlayerName, payload.Password, payload.Solo)
	if err != nil {
		s.Logger.Errorf("Failed to create room: %v", err)
		s.sendError(ctx, conn, msg.RequestID, protocol.CodeInvalidState, "could not create game")
		return
	}
	room.AttachCreator(conn)
	sess.room = room
	sess.seat = 0

	s.write(ctx, conn, protocol.ServerMessage{
		Type: protocol.TypeGameCreated,
		Payload: protocol.GameCreatedPayload{
			GameID:   room.Code,
			Seat:     0,
			PlayerID: player.ID,
		},
		RequestID: msg.RequestID,
	})
	room.SendStateTo(0)
}

func (s *GameServer) handleJoin(ctx context.Context, conn *websocket.Conn, sess *session, msg protocol.ClientMessage) {
	var payload protocol.JoinGamePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.sendError(ctx, conn, msg.RequestID, protocol.CodeParseError, "malformed payload")
		return
	}
	room, ok := s.Registry.FindRoom(payload.GameID)
	if !ok {
		s.sendError(ctx, conn, msg.RequestID, protocol.CodeGameNotFound, "no such game")
		return
	}
	seat, player, state, cerr := room.Join(payload.PlayerName, payload.Password, conn)
	if cerr != nil {
		s.sendError(ctx, conn, msg.RequestID, cerr.Code, cerr.Message)
		return
	}
	sess.room = room
	sess.seat = seat

	s.write(ctx, conn, protocol.ServerMessage{
		Type: protocol.TypeGameJoined,
		Payload: protocol.GameJoinedPayload{
			GameID:   room.Code,
			Seat:     seat,
			PlayerID: player.ID,
			State:    state,
		},
		RequestID: msg.RequestID,
	})
}

func (s *GameServer) handleReconnect(ctx context.Context, conn *websocket.Conn, sess *session, msg protocol.ClientMessage) {
	var payload protocol.ReconnectPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.sendError(ctx, conn, msg.RequestID, protocol.CodeParseError, "malformed payload")
		return
	}
	room, ok := s.Registry.FindRoom(payload.GameID)
	if !ok {
		s.sendError(ctx, conn, msg.RequestID, protocol.CodeGameNotFound, "no such game")
		return
	}
	seat, state, cerr := room.Reconnect(payload.PlayerID, conn)
	if cerr != nil {
		s.sendError(ctx, conn, msg.RequestID, cerr.Code, cerr.Message)
		return
	}
	sess.room = room
	sess.seat = seat

	s.write(ctx, conn, protocol.ServerMessage{
		Type: protocol.TypeReconnected,
		Payload: protocol.ReconnectedPayload{
			GameID: room.Code,
			Seat:   seat,
			State:  state,
		},
		RequestID: msg.RequestID,
	})
}

func (s *GameServer) handleSubmitDeck(ctx context.Context, conn *websocket.Conn, sess *session, msg protocol.ClientMessage) {
	var payload protocol.SubmitDeckPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.sendError(ctx, conn, msg.RequestID, protocol.CodeParseError, "malformed payload")
		return
	}
	if cerr := sess.room.SubmitDeck(sess.seat, payload); cerr != nil {
		s.sendError(ctx, conn, msg.RequestID, cerr.Code, cerr.Message)
		return
	}
	s.write(ctx, conn, protocol.ServerMessage{
		Type:      protocol.TypeDeckSubmitted,
		RequestID: msg.RequestID,
	})
}

// --- write helpers ---

func (s *GameServer) write(ctx context.Context, conn *websocket.Conn, msg protocol.ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.Logger.Errorf("Failed to marshal %s message: %v", msg.Type, err)
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(wctx, websocket.MessageText, data); err != nil {
		s.Logger.Warnf("Failed to write %s message: %v", msg.Type, err)
	}
}

func (s *GameServer) sendError(ctx context.Context, conn *websocket.Conn, requestID, code, message string) {
	s.write(ctx, conn, protocol.ServerMessage{
		Type:      protocol.TypeError,
		Payload:   protocol.ErrorPayload{Code: code, Message: message},
		RequestID: requestID,
	})
}

// ack confirms a request that produces no direct reply of its own. Skipped
// when the client didn't ask for correlation.
func (s *GameServer) ack(ctx context.Context, conn *websocket.Conn, requestID string) {
	if requestID == "" {
		return
	}
	s.write(ctx, conn, protocol.ServerMessage{Type: protocol.TypeAck, RequestID: requestID})
}
