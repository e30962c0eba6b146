package player

import (
	"testing"

	"github.com/wfunc/beatroom/models"
)

func TestDirectory_CreateDefaults(t *testing.T) {
	d := NewDirectory()
	p := d.Create("p1")

	if p.InRoom() {
		t.Error("New player should not be in a room")
	}
	if p.Ready || p.Score != 0 || p.Combo != 0 {
		t.Errorf("Expected zeroed player, got %+v", p)
	}
	if p.Transform.Position != (models.Vec3{}) || p.Transform.Hands != nil {
		t.Errorf("Expected player at origin, got %+v", p.Transform)
	}
	if d.Count() != 1 {
		t.Errorf("Expected 1 player, got %d", d.Count())
	}
}

func TestDirectory_UpdatesOverwrite(t *testing.T) {
	d := NewDirectory()
	d.Create("p1")

	pose := models.Transform{
		Position: models.Vec3{X: 1e6, Y: -3, Z: 2},
		Hands:    &models.Hands{Left: &models.HandPose{Position: models.Vec3{X: 1}}},
	}
	if !d.UpdateTransform("p1", pose) {
		t.Fatal("UpdateTransform should succeed for a known player")
	}
	d.UpdateScore("p1", 1200, 14)
	d.UpdateScore("p1", 50, 0)
	d.UpdateAvatar("p1", models.Avatar(`{"hairColor":"red"}`))

	p, _ := d.Get("p1")
	if p.Transform.Position.X != 1e6 || p.Transform.Hands.Left.Position.X != 1 {
		t.Errorf("Expected transform to be stored as-is, got %+v", p.Transform)
	}
	if p.Score != 50 || p.Combo != 0 {
		t.Errorf("Expected last score write to win, got %d/%d", p.Score, p.Combo)
	}
	if string(p.Avatar) != `{"hairColor":"red"}` {
		t.Errorf("Unexpected avatar %s", p.Avatar)
	}
}

func TestDirectory_UnknownPlayer(t *testing.T) {
	d := NewDirectory()
	if d.UpdateScore("ghost", 1, 1) || d.SetReady("ghost", true) || d.Attach("ghost", "ABCD", "classic") {
		t.Error("Updates to unknown players should report false")
	}
}

func TestDirectory_AttachResetsRoundFields(t *testing.T) {
	d := NewDirectory()
	d.Create("p1")
	d.UpdateScore("p1", 10, 2)
	d.SetReady("p1", true)
	d.UpdateAvatar("p1", models.Avatar(`{"accessory":"hat"}`))

	d.Attach("p1", "ABCD", "touch")
	p, _ := d.Get("p1")
	if p.RoomCode != "ABCD" || p.Mode != "touch" {
		t.Errorf("Expected room binding, got %+v", p)
	}
	if p.Score != 0 || p.Combo != 0 || p.Ready {
		t.Errorf("Expected round fields reset on attach, got %+v", p)
	}
	if p.Avatar.IsZero() {
		t.Error("Attach should keep the avatar")
	}

	d.SetReady("p1", true)
	d.Detach("p1")
	if p.InRoom() || p.Ready {
		t.Errorf("Expected detached and not ready, got %+v", p)
	}
}

func TestDirectory_StatesAndDestroy(t *testing.T) {
	d := NewDirectory()
	d.Create("a")
	d.Create("b")
	d.Attach("a", "ABCD", "classic")

	states := d.States([]string{"a", "b", "missing"})
	if len(states) != 2 {
		t.Fatalf("Expected 2 states, got %d", len(states))
	}
	if states["a"].Room != "ABCD" {
		t.Errorf("Expected state room ABCD, got %q", states["a"].Room)
	}

	d.Destroy("a")
	if _, ok := d.Get("a"); ok {
		t.Error("Destroyed player should be gone")
	}
	d.Destroy("a")
}
