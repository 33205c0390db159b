package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, DefaultConfigFile)); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if cfg.GameData.Port != DefaultGamePort || cfg.GameData.ClientVersion != DefaultClientVersion {
		t.Fatalf("unexpected defaults: %+v", cfg.GameData)
	}
	if !cfg.IsFirstRun() {
		t.Fatalf("fresh config should need setup")
	}
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	dir := t.TempDir()
	body := `{"game_data": {"game_id": 77, "port": 43000}}`
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	gd := cfg.GetGameData()
	if gd.GameID != 77 || gd.Port != 43000 {
		t.Fatalf("file values not applied: %+v", gd)
	}
	if gd.AuthTimeoutSec != 20 || gd.Environment.SkyColor != "#71b1e6" {
		t.Fatalf("defaults lost: %+v", gd)
	}
	if cfg.ListenAddr() != "0.0.0.0:43000" {
		t.Fatalf("ListenAddr = %s", cfg.ListenAddr())
	}
}

func TestLocalModeForcesLoopback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GameData.Local = true
	cfg.GameData.Port = 1
	if got := cfg.ListenAddr(); got != "127.0.0.1:42480" {
		t.Fatalf("ListenAddr = %s, want 127.0.0.1:42480", got)
	}
	if res := Validate(cfg); !res.IsValid() {
		t.Fatalf("local default config invalid: %+v", res.Errors)
	}
}

func TestValidateReportsBadFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GameData.GameID = 5
	cfg.GameData.Environment.SkyColor = "blue"
	cfg.GameData.Environment.Weather = "fog"
	cfg.GameData.Teams = []TeamConfig{{Name: "", Color: "#ffffff"}}
	cfg.ApplicationData.API.Enabled = true

	res := Validate(cfg)
	want := map[string]bool{
		"game_data.environment.sky_color": false,
		"game_data.environment.weather":   false,
		"game_data.teams[0].name":         false,
		"application_data.api.token":      false,
	}
	for _, e := range res.Errors {
		if _, ok := want[e.Field]; ok {
			want[e.Field] = true
		}
	}
	for field, found := range want {
		if !found {
			t.Fatalf("expected validation error for %s, got %+v", field, res.Errors)
		}
	}
}

func TestUpdateGameField(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.UpdateGameField("motd", "hello"); err != nil {
		t.Fatalf("UpdateGameField: %v", err)
	}
	if cfg.GetGameData().MOTD != "hello" {
		t.Fatalf("motd not updated")
	}
}
