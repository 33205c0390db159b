package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/brickd-project/brickd/internal/util"
)

const maxWizardAttempts = 3

// RunSetupWizard asks for the essential settings on the terminal and saves
// the result.
func RunSetupWizard(cfg *Config) error {
	return RunWizard(cfg, os.Stdin, os.Stdout)
}

// RunWizard runs the setup questions reading answers from in. An empty
// answer keeps the current value.
func RunWizard(cfg *Config, in io.Reader, out io.Writer) error {
	p := &prompter{in: bufio.NewReader(in), out: out}

	fmt.Fprintln(out, "brickd first run setup")
	fmt.Fprintln(out, "Press enter to keep the value in brackets.")

	for attempt := 1; attempt <= maxWizardAttempts; attempt++ {
		gd := cfg.GetGameData()
		app := cfg.GetApplicationData()

		p.section("Server")
		gd.ServerName = p.text("Server name", gd.ServerName)
		gd.Local = p.yesNo("Run locally without authentication", gd.Local)
		if !gd.Local {
			gd.GameID = p.number("Brick Hill set id", gd.GameID)
			gd.Port = p.number("Game port", gd.Port)
		}
		gd.MOTD = p.text("Message of the day", gd.MOTD)

		p.section("Admin API")
		app.API.Enabled = p.yesNo("Enable the admin REST API", app.API.Enabled)
		if app.API.Enabled {
			app.API.Port = p.number("API port", app.API.Port)
			app.API.Token = p.text("API bearer token (blank to generate)", "")
			if app.API.Token == "" {
				token, err := util.GenerateToken(24)
				if err != nil {
					return err
				}
				app.API.Token = token
				fmt.Fprintf(out, "    Generated API token: %s\n", token)
			}
		}

		p.section("MQTT telemetry")
		app.MQTT.Enabled = p.yesNo("Enable MQTT telemetry", app.MQTT.Enabled)
		if app.MQTT.Enabled {
			app.MQTT.BrokerURL = p.text("MQTT broker host", app.MQTT.BrokerURL)
		}

		p.section("Discord notifications")
		app.Discord.WebhookURL = p.text("Discord webhook URL (blank to disable)", app.Discord.WebhookURL)

		cfg.SetGameData(gd)
		cfg.SetApplicationData(app)

		result := Validate(cfg)
		for _, w := range result.Warnings {
			log.Warn().Str("field", w.Field).Msg(w.Message)
		}
		if result.IsValid() {
			if err := cfg.Save(); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}
			fmt.Fprintln(out, "Configuration saved.")
			return nil
		}

		fmt.Fprintln(out, "The configuration has errors:")
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  - [%s] %s\n", e.Field, e.Message)
		}
		if !p.yesNo("Try again", true) {
			break
		}
	}
	return errors.New("configuration validation failed")
}

type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *prompter) section(title string) {
	fmt.Fprintf(p.out, "\n-- %s --\n", title)
}

// ask prints the question and returns the trimmed answer, or "" at the end
// of input.
func (p *prompter) ask(question, current string) string {
	if current != "" {
		fmt.Fprintf(p.out, "  %s [%s]: ", question, current)
	} else {
		fmt.Fprintf(p.out, "  %s: ", question)
	}
	line, _ := p.in.ReadString('\n')
	return strings.TrimSpace(line)
}

func (p *prompter) text(question, current string) string {
	if answer := p.ask(question, current); answer != "" {
		return answer
	}
	return current
}

func (p *prompter) number(question string, current int) int {
	answer := p.ask(question, strconv.Itoa(current))
	if answer == "" {
		return current
	}
	n, err := strconv.Atoi(answer)
	if err != nil {
		fmt.Fprintf(p.out, "    Not a number, keeping %d\n", current)
		return current
	}
	return n
}

func (p *prompter) yesNo(question string, current bool) bool {
	def := "no"
	if current {
		def = "yes"
	}
	switch strings.ToLower(p.ask(question, def)) {
	case "":
		return current
	case "y", "yes", "true", "1":
		return true
	default:
		return false
	}
}
