package gpio

import (
	"errors"
	"testing"
)

func TestFakePinsScriptedRead(t *testing.T) {
	f := NewFakePins(map[string]bool{"door_closed": true})
	f.Script("motion", false, true, false)

	want := []bool{false, true, false, false}
	for i, w := range want {
		got, err := f.Read("motion")
		if err != nil {
			t.Fatalf("read %d: unexpected error: %v", i, err)
		}
		if got != w {
			t.Errorf("read %d: got %v, want %v", i, got, w)
		}
	}

	got, err := f.Read("door_closed")
	if err != nil || !got {
		t.Errorf("door_closed: got (%v, %v), want (true, nil)", got, err)
	}
}

func TestFakePinsInputsSorted(t *testing.T) {
	f := NewFakePins(map[string]bool{"reset_button": false, "door_closed": true})
	f.Set("motion", false)

	names := f.Inputs()
	want := []string{"door_closed", "motion", "reset_button"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("name %d: got %q, want %q", i, names[i], want[i])
		}
	}
}

func TestFakePinsUnknownInput(t *testing.T) {
	f := NewFakePins(nil)
	if _, err := f.Read("door"); !errors.Is(err, ErrUnknownPin) {
		t.Errorf("expected ErrUnknownPin, got %v", err)
	}
}

func TestFakePinsReadError(t *testing.T) {
	f := NewFakePins(map[string]bool{"door_closed": true})
	f.ReadError = errors.New("simulated error")

	_, err := f.Read("door_closed")
	if err == nil || err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFakePinsWrites(t *testing.T) {
	f := NewFakePins(nil)
	f.Write("buzzer", true)
	f.Write("lights_relay", false)
	f.Write("buzzer", false)

	if got := f.WritesTo("buzzer"); len(got) != 2 || !got[0] || got[1] {
		t.Errorf("buzzer writes: got %v, want [true false]", got)
	}
	if len(f.Writes()) != 3 {
		t.Errorf("expected 3 writes, got %d", len(f.Writes()))
	}

	f.ResetWrites()
	if len(f.Writes()) != 0 {
		t.Error("expected writes cleared")
	}
}

func TestFakePinsClose(t *testing.T) {
	f := NewFakePins(nil)
	if f.Closed {
		t.Error("should not be closed initially")
	}
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestReadAll(t *testing.T) {
	f := NewFakePins(map[string]bool{"door_closed": true, "motion": false})
	snap, err := ReadAll(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap) != 2 || !snap["door_closed"] || snap["motion"] {
		t.Errorf("unexpected snapshot: %v", snap)
	}

	f.ReadError = errors.New("bus error")
	if _, err := ReadAll(f); err == nil {
		t.Error("expected error to propagate")
	}
}
