// services/session_service.go
package services

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/beatroom/broadcast"
	"github.com/wfunc/beatroom/logger"
	"github.com/wfunc/beatroom/models"
	"github.com/wfunc/beatroom/network"
	"github.com/wfunc/beatroom/player"
	"github.com/wfunc/beatroom/room"
	"github.com/wfunc/beatroom/state"
	"github.com/wfunc/beatroom/timer"
)

// Observer hears about lifecycle events. Calls happen while the service lock
// is held, so implementations must return quickly.
type Observer interface {
	CountdownStarted(code string)
	RoundStarted(record models.RoundRecord)
}

type Options struct {
	CountdownFrom     int
	CountdownInterval time.Duration
	MinReadyPlayers   int
}

func DefaultOptions() Options {
	return Options{
		CountdownFrom:     3,
		CountdownInterval: time.Second,
		MinReadyPlayers:   1,
	}
}

// SessionService runs the room protocol. Every handler and every countdown
// tick runs under one mutex, so each one sees and leaves the room and player
// tables consistent.
type SessionService struct {
	mutex     sync.Mutex
	rooms     *room.Registry
	players   *player.Directory
	router    broadcast.Broadcaster
	scheduler timer.Scheduler
	observers []Observer
	opts      Options
	now       func() time.Time
}

func NewSessionService(rooms *room.Registry, players *player.Directory, router broadcast.Broadcaster,
	scheduler timer.Scheduler, opts Options, observers ...Observer) *SessionService {
	if opts.MinReadyPlayers < 1 {
		opts.MinReadyPlayers = 1
	}
	return &SessionService{
		rooms:     rooms,
		players:   players,
		router:    router,
		scheduler: scheduler,
		observers: observers,
		opts:      opts,
		now:       time.Now,
	}
}

// Connect creates the player record for a new connection.
func (s *SessionService) Connect(playerID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.players.Create(playerID)
}

// Disconnect detaches the player from its room, if any, and destroys the
// record. Unknown ids are ignored, so calling it twice is harmless.
func (s *SessionService) Disconnect(playerID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p, exists := s.players.Get(playerID)
	if !exists {
		return
	}
	if p.InRoom() {
		s.leave(p)
	}
	s.players.Destroy(playerID)
}

// CreateRoom makes a room with the caller as host and joins it.
func (s *SessionService) CreateRoom(playerID string, req models.CreateRoomRequest) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p, exists := s.players.Get(playerID)
	if !exists {
		return "", ErrUnknownPlayer
	}

	mode := req.Mode
	if mode == "" {
		mode = room.DefaultMode
	}

	r, err := s.rooms.Create(mode, playerID, s.router)
	if err != nil {
		logger.Log.Errorf("Player %s could not create a room: %v", playerID, err)
		if errors.Is(err, room.ErrCodeSpaceExhausted) {
			return "", ErrRoomUnavailable
		}
		return "", err
	}
	logger.Log.Infof("Player %s created room %s (mode %s)", playerID, r.Code, mode)

	if p.InRoom() {
		s.leave(p)
	}

	s.join(p, r, mode, req.Avatar)
	return r.Code, nil
}

// JoinRoom adds the caller to an existing room after the mode check.
func (s *SessionService) JoinRoom(playerID string, req models.JoinRoomRequest) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p, exists := s.players.Get(playerID)
	if !exists {
		return ErrUnknownPlayer
	}

	code := room.NormalizeCode(req.RoomCode)
	r, exists := s.rooms.Lookup(code)
	if !exists {
		logger.Log.Infof("Player %s tried to join unknown room %q", playerID, code)
		return ErrRoomNotFound
	}

	if !room.Compatible(r.Mode, req.PlayerMode) {
		logger.Log.Infof("Player %s (%s) refused from room %s (%s)", playerID, req.PlayerMode, code, r.Mode)
		return NewModeError(r.Mode, req.PlayerMode)
	}

	mode := req.PlayerMode
	if mode == "" {
		mode = r.Mode
	}

	if p.RoomCode == code {
		// already a member; just resend the room view
		if !req.Avatar.IsZero() {
			s.players.UpdateAvatar(playerID, req.Avatar)
		}
		s.sendRoomJoined(p, r)
		return nil
	}
	if p.InRoom() {
		s.leave(p)
	}

	s.join(p, r, mode, req.Avatar)
	logger.Log.Infof("Player %s joined room %s", playerID, code)
	return nil
}

// LeaveRoom detaches the caller from its room without disconnecting.
func (s *SessionService) LeaveRoom(playerID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p, err := s.member(playerID)
	if err != nil {
		return err
	}
	s.leave(p)
	return nil
}

// SelectSong sets the room's song. Host only.
func (s *SessionService) SelectSong(playerID string, song models.Song) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p, err := s.member(playerID)
	if err != nil {
		return err
	}
	r, exists := s.rooms.Lookup(p.RoomCode)
	if !exists {
		return ErrNotInRoom
	}
	if r.HostID != playerID {
		return ErrNotHost
	}

	r.SelectSong(song)
	for _, id := range r.Members() {
		s.players.SetReady(id, false)
	}

	// A running countdown keeps going and starts whatever song is set when it
	// reaches zero.
	if !r.InCountdown() {
		var next state.State = state.NewSongSelectedState(r)
		if song.IsZero() {
			next = state.NewLobbyState(r)
		}
		if err := r.ChangeState(next); err != nil {
			logger.Log.Warnf("Room %s could not enter %s: %v", r.Code, next.GetID(), err)
		}
	}

	info := song.Info()
	logger.Log.Infof("Song selected in room %s: id=%s difficulty=%s", r.Code, info.ID, info.Difficulty)

	if err := r.Broadcast(network.EventSongSelected, song); err != nil {
		logger.Log.Warnf("Room %s songSelected broadcast failed: %v", r.Code, err)
	}
	return nil
}

// PlayerReady marks the caller ready and starts the countdown once every
// member is.
func (s *SessionService) PlayerReady(playerID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p, err := s.member(playerID)
	if err != nil {
		return err
	}
	r, exists := s.rooms.Lookup(p.RoomCode)
	if !exists {
		return ErrNotInRoom
	}
	if !r.HasSong() {
		return ErrNoSongSelected
	}

	s.players.SetReady(playerID, true)
	r.MarkReady(playerID)

	msg := models.PlayerReadyMessage{
		PlayerID:     playerID,
		ReadyCount:   r.ReadyCount(),
		TotalPlayers: r.MemberCount(),
	}
	if err := r.Broadcast(network.EventPlayerReadyStatus, msg); err != nil {
		logger.Log.Warnf("Room %s playerReady broadcast failed: %v", r.Code, err)
	}

	if r.AllReady(s.opts.MinReadyPlayers) && !r.InCountdown() {
		s.startCountdown(r)
	}
	return nil
}

// Move stores the caller's pose and relays it to the rest of the room.
func (s *SessionService) Move(playerID string, t models.Transform) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p, err := s.member(playerID)
	if err != nil {
		return err
	}
	s.players.UpdateTransform(playerID, t)

	msg := models.PlayerMovedMessage{
		ID:       playerID,
		Position: t.Position,
		Rotation: t.Rotation,
		Hands:    t.Hands,
	}
	s.relay(p.RoomCode, playerID, network.EventPlayerMoved, msg)
	return nil
}

// UpdateScore stores the caller's score and relays it to the rest of the room.
func (s *SessionService) UpdateScore(playerID string, req models.ScoreUpdateRequest) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p, err := s.member(playerID)
	if err != nil {
		return err
	}
	s.players.UpdateScore(playerID, req.Score, req.Combo)

	msg := models.PlayerScoreMessage{ID: playerID, Score: req.Score, Combo: req.Combo}
	s.relay(p.RoomCode, playerID, network.EventPlayerScoreUpdated, msg)
	return nil
}

// UpdateAvatar stores the avatar and, inside a room, relays it to the others.
func (s *SessionService) UpdateAvatar(playerID string, avatar models.Avatar) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p, exists := s.players.Get(playerID)
	if !exists {
		return ErrUnknownPlayer
	}
	s.players.UpdateAvatar(playerID, avatar)
	if !p.InRoom() {
		return nil
	}

	msg := models.PlayerAvatarMessage{ID: playerID, Avatar: avatar}
	s.relay(p.RoomCode, playerID, network.EventPlayerAvatarUpdated, msg)
	return nil
}

// RoomSummary looks up a room by (unnormalized) code.
func (s *SessionService) RoomSummary(code string) (models.RoomSummary, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	r, exists := s.rooms.Lookup(room.NormalizeCode(code))
	if !exists {
		return models.RoomSummary{}, false
	}
	return r.Summary(), true
}

// Stats reports live room and player counts.
func (s *SessionService) Stats() (rooms int, players int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.rooms.Count(), s.players.Count()
}

// RoomCodes lists the live room codes, sorted.
func (s *SessionService) RoomCodes() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	codes := s.rooms.Codes()
	sort.Strings(codes)
	return codes
}

// --- internals; callers hold s.mutex ---

func (s *SessionService) member(playerID string) (*player.Player, error) {
	p, exists := s.players.Get(playerID)
	if !exists {
		return nil, ErrUnknownPlayer
	}
	if !p.InRoom() {
		return nil, ErrNotInRoom
	}
	return p, nil
}

// relay sends to everyone in the room but the sender.
func (s *SessionService) relay(code, senderID, event string, payload interface{}) {
	if err := s.router.BroadcastToRoomExcept(code, senderID, event, payload); err != nil {
		logger.Log.Warnf("Room %s %s relay failed: %v", code, event, err)
	}
}

func (s *SessionService) join(p *player.Player, r *room.Room, mode string, avatar models.Avatar) {
	r.AddMember(p.ID)
	s.players.Attach(p.ID, r.Code, mode)
	if !avatar.IsZero() {
		s.players.UpdateAvatar(p.ID, avatar)
	}

	s.sendRoomJoined(p, r)
	if err := s.router.BroadcastToRoomExcept(r.Code, p.ID, network.EventNewPlayer, p.State()); err != nil {
		logger.Log.Warnf("Room %s newPlayer broadcast failed: %v", r.Code, err)
	}
}

func (s *SessionService) sendRoomJoined(p *player.Player, r *room.Room) {
	msg := models.RoomJoinedMessage{
		Code:    r.Code,
		Mode:    r.Mode,
		Players: s.players.States(r.Members()),
		IsHost:  r.HostID == p.ID,
		Song:    r.Song(),
	}
	if err := s.router.SendToPlayer(p.ID, network.EventRoomJoined, msg); err != nil {
		logger.Log.Warnf("roomJoined to %s failed: %v", p.ID, err)
	}
}

// leave removes p from its room, tells the remainder, and lets the registry
// delete the room if it is now empty. The two steps cannot fail halfway: the
// registry does both under its own lock.
func (s *SessionService) leave(p *player.Player) {
	code := p.RoomCode
	s.players.Detach(p.ID)

	r, deleted := s.rooms.RemoveMember(code, p.ID)
	switch {
	case r == nil:
		logger.Log.Warnf("Player %s pointed at missing room %s", p.ID, code)
	case deleted:
		logger.Log.Infof("Player %s left room %s; room deleted", p.ID, code)
	default:
		logger.Log.Infof("Player %s left room %s", p.ID, code)
		if err := s.router.BroadcastToRoomExcept(code, p.ID, network.EventPlayerDisconnected, p.ID); err != nil {
			logger.Log.Warnf("Room %s playerDisconnected broadcast failed: %v", code, err)
		}
	}
}

func (s *SessionService) startCountdown(r *room.Room) {
	cd := state.NewCountdownState(r, state.CountdownConfig{
		From:      s.opts.CountdownFrom,
		Interval:  s.opts.CountdownInterval,
		Scheduler: s.scheduler,
		Guard:     &s.mutex,
	}, func() { s.startRound(r) })

	if err := r.ChangeState(cd); err != nil {
		logger.Log.Warnf("Room %s could not start countdown: %v", r.Code, err)
		return
	}
	for _, o := range s.observers {
		o.CountdownStarted(r.Code)
	}
}

// startRound runs under s.mutex from the countdown's final tick.
func (s *SessionService) startRound(r *room.Room) {
	song := r.Song()
	if err := r.Broadcast(network.EventStartSong, song); err != nil {
		logger.Log.Warnf("Room %s startSong broadcast failed: %v", r.Code, err)
	}

	members := r.Members()
	r.ClearReady()
	for _, id := range members {
		s.players.SetReady(id, false)
	}

	if err := r.ChangeState(state.NewSongSelectedState(r)); err != nil {
		logger.Log.Warnf("Room %s could not leave countdown: %v", r.Code, err)
	}

	record := models.RoundRecord{
		RoomCode:  r.Code,
		Mode:      r.Mode,
		Song:      song,
		PlayerIDs: members,
		StartedAt: s.now().UTC(),
	}
	logger.Log.Infof("Round started in room %s with %d players", r.Code, len(members))
	for _, o := range s.observers {
		o.RoundStarted(record)
	}
}
