package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/beatroom/logger"
	"github.com/wfunc/beatroom/models"
)

// ServiceName is what clients prefix methods with, e.g. "Lobby.Stats".
const ServiceName = "Lobby"

const (
	defaultRoundLimit = 20
	maxRoundLimit     = 500
	queryTimeout      = 5 * time.Second
)

var ErrRoomNotFound = errors.New("room not found")

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr and registers the lobby service.
func NewServer(addr string, lobby *LobbyService) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName(ServiceName, lobby); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      srv,
	}, nil
}

// Addr is the bound address, useful when addr had port 0.
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// Lobby is the live room state the service reads.
type Lobby interface {
	Stats() (rooms int, players int)
	RoomSummary(code string) (models.RoomSummary, bool)
	RoomCodes() []string
}

// RoundHistory serves stored rounds.
type RoundHistory interface {
	RecentRounds(ctx context.Context, limit int) ([]models.RoundRecord, error)
}

// LobbyService is the struct that exposes RPC methods. Methods follow the
// net/rpc signature: exported args, pointer reply, error result.
type LobbyService struct {
	lobby  Lobby
	rounds RoundHistory
}

func NewLobbyService(lobby Lobby, rounds RoundHistory) *LobbyService {
	return &LobbyService{lobby: lobby, rounds: rounds}
}

type StatsArgs struct{}

type StatsReply struct {
	Rooms   int
	Players int
	Codes   []string
}

func (ls *LobbyService) Stats(args *StatsArgs, reply *StatsReply) error {
	reply.Rooms, reply.Players = ls.lobby.Stats()
	reply.Codes = ls.lobby.RoomCodes()
	return nil
}

type RoomArgs struct {
	Code string
}

type RoomReply struct {
	Room models.RoomSummary
}

func (ls *LobbyService) Room(args *RoomArgs, reply *RoomReply) error {
	summary, ok := ls.lobby.RoomSummary(args.Code)
	if !ok {
		return ErrRoomNotFound
	}
	reply.Room = summary
	return nil
}

type RecentRoundsArgs struct {
	Limit int
}

type RecentRoundsReply struct {
	Rounds []models.RoundRecord
}

// RecentRounds returns stored rounds, newest first. A zero limit means the
// default; large limits are capped.
func (ls *LobbyService) RecentRounds(args *RecentRoundsArgs, reply *RecentRoundsReply) error {
	limit := args.Limit
	if limit <= 0 {
		limit = defaultRoundLimit
	}
	limit = min(limit, maxRoundLimit)

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rounds, err := ls.rounds.RecentRounds(ctx, limit)
	if err != nil {
		return err
	}
	reply.Rounds = rounds
	return nil
}
