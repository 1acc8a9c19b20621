package main

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/screa/powminer/internal/config"
	logpkg "github.com/screa/powminer/internal/logger"
	"github.com/screa/powminer/pkg/miner"
	"github.com/screa/powminer/pkg/types"
)

var errQuit = errors.New("quit")

// command is one parsed console line. msg is nil for commands that do
// not reach the workers.
type command struct {
	name string
	msg  *types.ControlMessage
}

// parseCommand parses a console line:
//
//	work <pow-hash> <target>
//	diff <pow-hash> <difficulty>
//	start | stop | status | quit
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, nil
	}

	name := strings.ToLower(fields[0])
	args := fields[1:]
	switch name {
	case "work", "diff":
		if len(args) != 2 {
			if name == "work" {
				return command{}, errors.New("usage: work <pow-hash> <target>")
			}
			return command{}, errors.New("usage: diff <pow-hash> <difficulty>")
		}
		powHash, err := config.ParsePowHash(args[0])
		if err != nil {
			return command{}, err
		}

		var target types.Target
		if name == "work" {
			target, err = types.TargetFromHex(args[1])
			if err != nil {
				return command{}, err
			}
			if target.IsZero() {
				return command{}, types.ErrTargetZero
			}
		} else {
			d, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return command{}, errors.Wrap(err, "invalid difficulty")
			}
			target = types.TargetFromDifficulty(d)
		}
		msg := types.NewWorkMessage(*types.NewWorkItem(powHash, target))
		return command{name: "work", msg: &msg}, nil
	case "start":
		msg := types.StartMessage()
		return command{name: name, msg: &msg}, nil
	case "stop":
		msg := types.StopMessage()
		return command{name: name, msg: &msg}, nil
	case "status", "quit":
		if len(args) != 0 {
			return command{}, errors.Errorf("%s takes no arguments", name)
		}
		return command{name: name}, nil
	}
	return command{}, errors.Errorf("unknown command %q", name)
}

// runConsole reads commands from r and forwards them to d until r is
// exhausted, a quit command is read or ctx is done. Malformed lines are
// logged and skipped.
func runConsole(ctx context.Context, r io.Reader, d *miner.Dispatcher, log logpkg.Logger) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		cmd, err := parseCommand(scanner.Text())
		if err != nil {
			log.Warn("Invalid command", "Line", scanner.Text(), "Err", err)
			continue
		}
		if err := execute(ctx, cmd, d, log); err != nil {
			if errors.Is(err, errQuit) || errors.Is(err, miner.ErrDispatcherClosed) {
				return nil
			}
			return err
		}
	}
	return errors.Wrap(scanner.Err(), "failed to read commands")
}

func execute(ctx context.Context, cmd command, d *miner.Dispatcher, log logpkg.Logger) error {
	switch {
	case cmd.name == "":
		return nil
	case cmd.name == "quit":
		return errQuit
	case cmd.name == "status":
		snap := d.Snapshot()
		work := "none"
		if snap.Work != nil {
			work = snap.Work.PowHash.Hex()
		}
		log.Info("Status", "Version", snap.Version, "Running", snap.Running,
			"Work", work, "Workers", d.Subscribers())
		return nil
	}

	if err := d.Broadcast(ctx, *cmd.msg); err != nil {
		return err
	}
	log.Info("Broadcast command", "Command", cmd.name, "Workers", d.Subscribers())
	return nil
}
