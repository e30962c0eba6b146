package services

import (
	"errors"
	"fmt"

	"github.com/wfunc/beatroom/room"
)

// Error kinds, also used as metric labels.
const (
	KindRoomNotFound     = "room_not_found"
	KindModeIncompatible = "mode_incompatible"
	KindNotHost          = "not_host"
	KindNoSongSelected   = "no_song_selected"
	KindNotInRoom        = "not_in_room"
	KindUnknownPlayer    = "unknown_player"
	KindRoomUnavailable  = "room_unavailable"
	KindMalformed        = "malformed"
	KindInternal         = "internal"
)

// Error is a refused request. Message is what the client sees.
type Error struct {
	Kind    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches on Kind so every ModeError-style variant equals its sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrRoomNotFound     = &Error{Kind: KindRoomNotFound, Message: "Room not found"}
	ErrModeIncompatible = &Error{Kind: KindModeIncompatible, Message: "Cannot join: incompatible mode"}
	ErrNotHost          = &Error{Kind: KindNotHost, Message: "Only the host can select a song"}
	ErrNoSongSelected   = &Error{Kind: KindNoSongSelected, Message: "Wait for host to select a song first"}
	ErrNotInRoom        = &Error{Kind: KindNotInRoom, Message: "Not in a room"}
	ErrUnknownPlayer    = &Error{Kind: KindUnknownPlayer, Message: "Unknown player"}
	ErrRoomUnavailable  = &Error{Kind: KindRoomUnavailable, Message: "Could not create a room, try again"}
	ErrMalformed        = &Error{Kind: KindMalformed, Message: "Malformed message"}
	ErrInternal         = &Error{Kind: KindInternal, Message: "Internal server error"}
)

// NewModeError names both compatibility classes in its message.
func NewModeError(roomMode, playerMode string) *Error {
	return &Error{
		Kind: KindModeIncompatible,
		Message: fmt.Sprintf("Cannot join: This is a %s room. You are using %s mode.",
			room.ModeClass(roomMode), room.ModeClass(playerMode)),
	}
}

// AsError returns err as a client-facing Error, or ErrInternal for anything
// the client should not see verbatim.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal
}
