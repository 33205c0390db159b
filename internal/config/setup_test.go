package config

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestWizardLocalServer(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	answers := strings.Join([]string{
		"Block Party", // server name
		"y",           // local
		"",            // motd
		"yes",         // api enabled
		"",            // api port
		"",            // api token, generated
		"",            // mqtt
		"",            // discord webhook
	}, "\n") + "\n"
	out := &bytes.Buffer{}

	if err := RunWizard(cfg, strings.NewReader(answers), out); err != nil {
		t.Fatalf("RunWizard: %v\n%s", err, out.String())
	}

	gd := cfg.GetGameData()
	if gd.ServerName != "Block Party" || !gd.Local || gd.MOTD != DefaultMOTD {
		t.Fatalf("game data = %+v", gd)
	}
	app := cfg.GetApplicationData()
	if !app.API.Enabled || app.API.Port != DefaultAPIPort || len(app.API.Token) != 48 {
		t.Fatalf("api = %+v", app.API)
	}
	if !strings.Contains(out.String(), "Generated API token") {
		t.Fatalf("token not shown:\n%s", out.String())
	}

	reloaded, err := Load(filepath.Dir(cfg.Path()))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.GetGameData().ServerName != "Block Party" {
		t.Fatalf("wizard answers were not saved")
	}
}

func TestWizardGivesUpOnInvalidAnswers(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	answers := strings.Join([]string{
		"",                   // server name
		"y",                  // local
		"",                   // motd
		"n",                  // api
		"n",                  // mqtt
		"http://example.com", // discord webhook, rejected
		"n",                  // try again
	}, "\n") + "\n"
	out := &bytes.Buffer{}

	if err := RunWizard(cfg, strings.NewReader(answers), out); err == nil {
		t.Fatalf("invalid answers were accepted")
	}
	if !strings.Contains(out.String(), "webhook URL must use https") {
		t.Fatalf("error not shown:\n%s", out.String())
	}
}
