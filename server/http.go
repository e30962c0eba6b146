package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/julienschmidt/httprouter"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/wfunc/beatroom/logger"
	"github.com/wfunc/beatroom/room"
)

const qrSize = 256

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warnf("write response: %v", err)
	}
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	rooms, players := s.service.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"rooms":   rooms,
		"players": players,
	})
}

func (s *GameServer) handleRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	summary, ok := s.service.RoomSummary(ps.ByName("code"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Room not found"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleRoomQR renders a PNG QR code of the join link for a live room.
func (s *GameServer) handleRoomQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := room.NormalizeCode(ps.ByName("code"))
	if _, ok := s.service.RoomSummary(code); !ok {
		http.NotFound(w, r)
		return
	}

	png, err := qrcode.Encode(s.JoinURL(code), qrcode.Medium, qrSize)
	if err != nil {
		logger.Log.Errorf("qr for room %s: %v", code, err)
		http.Error(w, "could not render code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

// JoinURL is the link players open to join code.
func (s *GameServer) JoinURL(code string) string {
	base := strings.TrimRight(s.cfg.PublicURL, "/")
	return base + "/?room=" + url.QueryEscape(code)
}
