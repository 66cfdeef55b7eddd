package backup

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/five82/tabtime/internal/tracker"
)

func TestStore_SaveAndLoadUserInfo(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "nested", FileName))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, _, ok, err := s.LoadUserInfo(); err != nil || ok {
		t.Fatalf("LoadUserInfo() on empty db = ok %v err %v, want false nil", ok, err)
	}

	want := tracker.UserInfo{UserID: "u1", DisplayName: "Ada", Email: "ada@example.com", SignedIn: true}
	before := time.Now().Add(-time.Second)
	if err := s.SaveUserInfo(want); err != nil {
		t.Fatalf("SaveUserInfo() error = %v", err)
	}

	got, savedAt, ok, err := s.LoadUserInfo()
	if err != nil || !ok {
		t.Fatalf("LoadUserInfo() = ok %v err %v", ok, err)
	}
	if got != want {
		t.Fatalf("LoadUserInfo() = %#v, want %#v", got, want)
	}
	if savedAt.Before(before) {
		t.Fatalf("savedAt = %v, want after %v", savedAt, before)
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatal(err)
	}
	_ = s.SaveUserInfo(tracker.UserInfo{DisplayName: "old", SignedIn: true})
	_ = s.SaveUserInfo(tracker.UserInfo{DisplayName: "new", SignedIn: true})

	got, _, _, err := s.LoadUserInfo()
	if err != nil || got.DisplayName != "new" {
		t.Fatalf("LoadUserInfo() = %#v, %v; want new", got, err)
	}
}

func TestStore_Clear(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() on empty db error = %v", err)
	}
	_ = s.SaveUserInfo(tracker.UserInfo{SignedIn: true})
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, _, ok, _ := s.LoadUserInfo(); ok {
		t.Fatal("user info still present after Clear")
	}
}

func TestNew_RequiresPath(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("New(blank) should fail")
	}
}
