package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/wfunc/beatroom/broadcast"
	"github.com/wfunc/beatroom/config"
	"github.com/wfunc/beatroom/logger"
	"github.com/wfunc/beatroom/models"
	"github.com/wfunc/beatroom/monitor"
	"github.com/wfunc/beatroom/network"
	"github.com/wfunc/beatroom/persistence"
	"github.com/wfunc/beatroom/player"
	"github.com/wfunc/beatroom/room"
	beatroom_rpc "github.com/wfunc/beatroom/rpc"
	"github.com/wfunc/beatroom/services"
	"github.com/wfunc/beatroom/session"
	"github.com/wfunc/beatroom/timer"
)

type GameServer struct {
	cfg            config.ServerConfig
	upgrader       websocket.Upgrader
	roomManager    *room.Registry
	players        *player.Directory
	sessionManager *session.Manager
	broadcaster    broadcast.Broadcaster
	service        *services.SessionService
	rounds         *services.RoundService
	monitor        *monitor.Monitor
	router         *httprouter.Router
	httpServer     *http.Server
	rpcServer      *beatroom_rpc.Server
	healthServer   *beatroom_rpc.HealthServer
	connections    sync.WaitGroup
	mutex          sync.Mutex
	shutdownChan   chan struct{}
	shutdownOnce   sync.Once
}

func NewGameServer(cfg *config.Config, store persistence.RoundStore, scheduler timer.Scheduler, mon *monitor.Monitor) *GameServer {
	s := &GameServer{
		cfg:            cfg.Server,
		roomManager:    room.NewRegistry(room.WithCodeAttempts(cfg.Room.CodeAttempts)),
		players:        player.NewDirectory(),
		sessionManager: session.NewManager(),
		rounds:         services.NewRoundService(store),
		monitor:        mon,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 初始化广播器
	s.broadcaster = broadcast.NewRoomBroadcaster(s.roomManager, s.sessionManager)

	s.service = services.NewSessionService(s.roomManager, s.players, s.broadcaster, scheduler,
		services.Options{
			CountdownFrom:     cfg.Room.CountdownFrom,
			CountdownInterval: cfg.Room.CountdownInterval,
			MinReadyPlayers:   cfg.Room.MinReadyPlayers,
		},
		s.rounds, mon)

	s.router = httprouter.New()
	s.router.GET("/ws", s.handleWebSocket)
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/rooms/:code", s.handleRoom)
	s.router.GET("/rooms/:code/qr", s.handleRoomQR)

	return s
}

// Handler is the HTTP surface: the websocket endpoint plus the read-only
// lobby routes.
func (s *GameServer) Handler() http.Handler {
	return s.router
}

// Service exposes the session service for in-process callers.
func (s *GameServer) Service() *services.SessionService {
	return s.service
}

// Start launches the RPC listeners, if configured, and blocks serving HTTP
// until Shutdown.
func (s *GameServer) Start() error {
	s.mutex.Lock()
	select {
	case <-s.shutdownChan:
		s.mutex.Unlock()
		return nil
	default:
	}

	if s.cfg.RPCAddress != "" {
		rpcServer, err := beatroom_rpc.NewServer(s.cfg.RPCAddress, beatroom_rpc.NewLobbyService(s.service, s.rounds))
		if err != nil {
			s.mutex.Unlock()
			return fmt.Errorf("rpc listen: %w", err)
		}
		s.rpcServer = rpcServer
		go rpcServer.Start()
	}
	if s.cfg.GRPCAddress != "" {
		healthServer, err := beatroom_rpc.NewHealthServer(s.cfg.GRPCAddress)
		if err != nil {
			s.mutex.Unlock()
			return fmt.Errorf("grpc listen: %w", err)
		}
		s.healthServer = healthServer
		go healthServer.Start()
	}

	httpServer := &http.Server{
		Addr:              s.cfg.HTTPAddress,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpServer
	s.mutex.Unlock()

	logger.Log.Infof("Game server listening on %s", s.cfg.HTTPAddress)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting, closes every connection, waits for their cleanup
// and for pending round saves, then stops the RPC listeners.
func (s *GameServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.mutex.Lock()
		close(s.shutdownChan)
		httpServer, rpcServer, healthServer := s.httpServer, s.rpcServer, s.healthServer
		s.mutex.Unlock()

		if httpServer != nil {
			err = httpServer.Shutdown(ctx)
		}
		s.sessionManager.CloseAll()

		done := make(chan struct{})
		go func() {
			s.connections.Wait()
			s.rounds.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			logger.Log.Warn("shutdown deadline reached with connections still open")
			err = errors.Join(err, ctx.Err())
		}

		if rpcServer != nil {
			rpcServer.Stop()
		}
		if healthServer != nil {
			healthServer.Stop()
		}
	})
	return err
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.mutex.Lock()
	select {
	case <-s.shutdownChan:
		s.mutex.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}
	s.connections.Add(1)
	s.mutex.Unlock()
	defer s.connections.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {

	wsConn := network.NewWSConnection(conn, s.cfg.SendBuffer)
	wsConn.SetHeartbeat(s.cfg.Heartbeat)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.service.Connect(sess.GetID())
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	var cleanup sync.Once
	defer cleanup.Do(func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.service.Disconnect(sess.GetID())
		s.monitor.DecOnlinePlayers()
		s.updateRoomGauge()
		wsConn.Close()
	})

	for {
		msg, err := wsConn.ReadMessage()
		if err != nil {
			if errors.Is(err, network.ErrMalformedMessage) {
				logger.Log.Debugf("Session %s sent a malformed frame: %v", sess.GetID(), err)
				s.replyError(sess, services.ErrMalformed)
				continue
			}
			return
		}
		s.handleMessage(sess, msg)
	}
}

func (s *GameServer) handleMessage(sess *session.Session, msg *network.Message) {
	start := time.Now()
	s.monitor.IncMessagesReceived(msg.Event)

	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("panic handling %s from %s: %v\n%s", msg.Event, sess.GetID(), r, debug.Stack())
			s.replyError(sess, services.ErrInternal)
		}
		s.monitor.ObserveMessageLatency(time.Since(start))
	}()

	if err := s.dispatch(sess.GetID(), msg); err != nil {
		s.handleError(sess, msg.Event, err)
	}
}

func (s *GameServer) dispatch(id string, msg *network.Message) error {
	switch msg.Event {
	case network.EventCreateRoom:
		var req models.CreateRoomRequest
		if err := decodePayload(msg.Data, &req); err != nil {
			return err
		}
		if _, err := s.service.CreateRoom(id, req); err != nil {
			return err
		}
		s.updateRoomGauge()
	case network.EventJoinRoom:
		var req models.JoinRoomRequest
		if err := decodePayload(msg.Data, &req); err != nil {
			return err
		}
		if err := s.service.JoinRoom(id, req); err != nil {
			return err
		}
		s.updateRoomGauge()
	case network.EventLeaveRoom:
		if err := s.service.LeaveRoom(id); err != nil {
			return err
		}
		s.updateRoomGauge()
	case network.EventSelectSong:
		var song models.Song
		if err := decodePayload(msg.Data, &song); err != nil {
			return err
		}
		return s.service.SelectSong(id, song)
	case network.EventPlayerReady:
		return s.service.PlayerReady(id)
	case network.EventPlayerMovement:
		var t models.Transform
		if err := decodePayload(msg.Data, &t); err != nil {
			return err
		}
		return s.service.Move(id, t)
	case network.EventScoreUpdate:
		var req models.ScoreUpdateRequest
		if err := decodePayload(msg.Data, &req); err != nil {
			return err
		}
		return s.service.UpdateScore(id, req)
	case network.EventAvatarUpdate:
		var avatar models.Avatar
		if err := decodePayload(msg.Data, &avatar); err != nil {
			return err
		}
		return s.service.UpdateAvatar(id, avatar)
	default:
		logger.Log.Infof("Unknown event %q from %s", msg.Event, id)
	}
	return nil
}

// decodePayload leaves v untouched when no data was sent.
func decodePayload(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.Log.Debugf("bad payload: %v", err)
		return services.ErrMalformed
	}
	return nil
}

func (s *GameServer) handleError(sess *session.Session, event string, err error) {
	if errors.Is(err, services.ErrNotInRoom) || errors.Is(err, services.ErrUnknownPlayer) {
		logger.Log.Debugf("Session %s sent %s outside a room", sess.GetID(), event)
		return
	}

	e := services.AsError(err)
	if e.Kind == services.KindInternal {
		logger.Log.Errorf("Session %s %s failed: %v", sess.GetID(), event, err)
	} else {
		logger.Log.Infof("Session %s %s refused: %s", sess.GetID(), event, e.Message)
	}
	s.replyError(sess, e)
}

func (s *GameServer) replyError(sess *session.Session, e *services.Error) {
	s.monitor.IncErrors(e.Kind)
	data, _ := json.Marshal(models.ErrorMessage{Message: e.Message})
	if err := sess.Send(network.EventError, data); err != nil {
		logger.Log.Warnf("error reply to %s failed: %v", sess.GetID(), err)
	}
}

func (s *GameServer) updateRoomGauge() {
	rooms, _ := s.service.Stats()
	s.monitor.SetActiveRooms(rooms)
}
