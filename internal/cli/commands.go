// Package cli implements the interactive operator console of brickd.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"

	"github.com/brickd-project/brickd/internal/config"
	"github.com/brickd-project/brickd/internal/server"
	"github.com/brickd-project/brickd/internal/util"
)

// operatorName is recorded as the author of console kicks and bans.
const operatorName = "console"

// CLI reads operator commands line by line.
type CLI struct {
	cfg     *config.Config
	manager *server.Manager
	quit    func()

	in  io.Reader
	out io.Writer
}

// NewCLI creates a console reading from in and writing to out. quit is
// called by the quit command.
func NewCLI(cfg *config.Config, manager *server.Manager, in io.Reader, out io.Writer, quit func()) *CLI {
	return &CLI{
		cfg:     cfg,
		manager: manager,
		quit:    quit,
		in:      in,
		out:     out,
	}
}

// Start runs the command loop until ctx is done or input ends.
func (c *CLI) Start(ctx context.Context) {
	fmt.Fprintln(c.out, "\nbrickd console ready. Type 'help' for available commands.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			c.Exec(ctx, line)
		}
	}
}

// Exec runs a single command line and prints any error.
func (c *CLI) Exec(ctx context.Context, line string) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return
	}
	if err := c.execute(ctx, strings.ToLower(parts[0]), parts[1:]); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
}

func (c *CLI) execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		return c.printStatus(ctx)
	case "players", "p":
		return c.printPlayers(ctx)
	case "kick":
		return c.cmdKick(ctx, args)
	case "say":
		return c.cmdSay(ctx, args)
	case "ban":
		return c.cmdBan(ctx, args)
	case "unban":
		return c.cmdUnban(ctx, args)
	case "bans":
		return c.printBans(ctx)
	case "setconfig":
		return c.cmdSetConfig(args)
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Shutting down brickd...")
		log.Info().Msg("shutdown requested from console")
		if c.quit != nil {
			c.quit()
		}
	default:
		fmt.Fprintf(c.out, "Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

func (c *CLI) printHelp() {
	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader([]string{"Command", "Description"})
	tw.SetAutoWrapText(false)
	tw.AppendBulk([][]string{
		{"status", "Show server status"},
		{"players", "List connected players"},
		{"kick <player> [reason]", "Kick a player by name or net id"},
		{"say <message>", "Send a chat line to everyone"},
		{"ban <user id> [reason]", "Ban an account and kick it"},
		{"unban <user id>", "Lift a ban"},
		{"bans", "List bans"},
		{"setconfig <key> <value>", "Update a game_data value"},
		{"quit", "Shut down brickd"},
	})
	tw.Render()
}

func (c *CLI) printStatus(ctx context.Context) error {
	status, err := c.manager.Status(ctx)
	if err != nil {
		return err
	}
	gd := c.cfg.GetGameData()

	fmt.Fprintf(c.out, "\n  Server:       %s\n", gd.ServerName)
	fmt.Fprintf(c.out, "  Listening:    %s\n", c.cfg.ListenAddr())
	fmt.Fprintf(c.out, "  Players:      %d\n", status.Players)
	fmt.Fprintf(c.out, "  Connections:  %d\n", status.Connections)
	fmt.Fprintf(c.out, "  Bricks:       %d\n", status.Bricks)
	fmt.Fprintf(c.out, "  Bots:         %d\n", status.Bots)
	fmt.Fprintf(c.out, "  Uptime:       %s\n", util.FormatDuration(c.manager.World().Uptime()))
	fmt.Fprintf(c.out, "  CPU Usage:    %.1f%%\n", status.CPUPercent)
	fmt.Fprintf(c.out, "  Memory:       %s\n\n", util.FormatBytes(status.MemoryBytes))
	return nil
}

func (c *CLI) printPlayers(ctx context.Context) error {
	players, err := c.manager.Players(ctx)
	if err != nil {
		return err
	}
	if len(players) == 0 {
		fmt.Fprintln(c.out, "No players connected.")
		return nil
	}

	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader([]string{"Net ID", "User ID", "Name", "Team", "Score", "Health", "Admin"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	for _, p := range players {
		tw.Append([]string{
			strconv.FormatUint(uint64(p.NetID), 10),
			strconv.FormatUint(uint64(p.UserID), 10),
			p.Username,
			p.Team,
			strconv.Itoa(int(p.Score)),
			fmt.Sprintf("%.0f", p.Health),
			strconv.FormatBool(p.Admin),
		})
	}
	tw.Render()
	return nil
}

func (c *CLI) cmdKick(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: kick <player> [reason]")
	}
	target, err := c.manager.FindPlayer(ctx, args[0])
	if err != nil {
		return err
	}
	info, err := c.manager.Kick(ctx, target.NetID, strings.Join(args[1:], " "), operatorName)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Kicked %s\n", info.Username)
	return nil
}

func (c *CLI) cmdSay(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: say <message>")
	}
	return c.manager.Say(ctx, strings.Join(args, " "))
}

func (c *CLI) cmdBan(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: ban <user id> [reason]")
	}
	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	if err := c.manager.Ban(ctx, userID, strings.Join(args[1:], " "), operatorName); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Banned user %d\n", userID)
	return nil
}

func (c *CLI) cmdUnban(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: unban <user id>")
	}
	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	ok, err := c.manager.Unban(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("user %d is not banned", userID)
	}
	fmt.Fprintf(c.out, "Unbanned user %d\n", userID)
	return nil
}

func (c *CLI) printBans(ctx context.Context) error {
	bans, err := c.manager.Bans(ctx)
	if err != nil {
		return err
	}
	if len(bans) == 0 {
		fmt.Fprintln(c.out, "No bans.")
		return nil
	}

	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader([]string{"User ID", "Reason", "By", "When"})
	tw.SetAutoWrapText(false)
	for _, b := range bans {
		tw.Append([]string{
			strconv.FormatUint(uint64(b.UserID), 10),
			b.Reason,
			b.BannedBy,
			util.FormatSince(b.CreatedAt),
		})
	}
	tw.Render()
	return nil
}

func (c *CLI) cmdSetConfig(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: setconfig <key> <value>")
	}

	key := args[0]
	raw := strings.Join(args[1:], " ")

	var value interface{} = raw
	if n, err := strconv.Atoi(raw); err == nil {
		value = n
	} else if b, err := strconv.ParseBool(raw); err == nil {
		value = b
	}

	previous := c.cfg.GetGameData()
	if err := c.cfg.UpdateGameField(key, value); err != nil {
		return err
	}
	if result := config.Validate(c.cfg); !result.IsValid() {
		c.cfg.SetGameData(previous)
		return result.Errors[0]
	}
	if err := c.cfg.Save(); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Config updated: %s = %s (applies on restart)\n", key, raw)
	return nil
}

func parseUserID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid user id: %s", s)
	}
	return uint32(id), nil
}
