package nvs

import (
	"path/filepath"
	"testing"
)

func TestInMemoryRoundTrip(t *testing.T) {
	s, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	s.SetInt("en", 1)
	s.SetString("s1", "home-network")
	if v, ok := s.GetInt("en"); !ok || v != 1 {
		t.Fatalf("GetInt = %v, %v", v, ok)
	}
	if v, ok := s.GetString("s1"); !ok || v != "home-network" {
		t.Fatalf("GetString = %q, %v", v, ok)
	}
	if _, ok := s.GetInt("missing"); ok {
		t.Fatalf("expected missing key to be absent")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prefs.json")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	s.SetInt("tls", 1)
	s.SetString("ahost", "mqtt.example.com")
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}
	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := s2.GetInt("tls"); !ok || v != 1 {
		t.Fatalf("GetInt = %v, %v", v, ok)
	}
	if v, ok := s2.GetString("ahost"); !ok || v != "mqtt.example.com" {
		t.Fatalf("GetString = %q, %v", v, ok)
	}
}

func TestScratchLastSuccessfulAP(t *testing.T) {
	store, _ := Open("")
	sc := NewScratch(store)
	if got := sc.LastSuccessfulAP(); got != 0 {
		t.Fatalf("default LastSuccessfulAP = %d, want 0", got)
	}
	sc.SetLastSuccessfulAP(2)
	if got := sc.LastSuccessfulAP(); got != 2 {
		t.Fatalf("LastSuccessfulAP = %d, want 2", got)
	}
}

func TestScratchTimeAdjustment(t *testing.T) {
	store, _ := Open("")
	sc := NewScratch(store)
	if _, ok := sc.TimeAdjustment(); ok {
		t.Fatalf("expected unconfigured clock initially")
	}
	sc.SetTimeAdjustment(1_700_000_000)
	delta, ok := sc.TimeAdjustment()
	if !ok || delta != 1_700_000_000 {
		t.Fatalf("TimeAdjustment = %d, %v, want 1700000000, true", delta, ok)
	}
}

func TestScratchNegativeTimeAdjustment(t *testing.T) {
	store, _ := Open("")
	sc := NewScratch(store)
	sc.SetTimeAdjustment(-42)
	delta, ok := sc.TimeAdjustment()
	if !ok || delta != -42 {
		t.Fatalf("TimeAdjustment = %d, %v, want -42, true", delta, ok)
	}
}
