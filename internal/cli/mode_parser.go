package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ModeAgent = "agent"
	ModeToken = "token"
)

func isKnownMode(s string) (string, bool) {
	switch s {
	case ModeAgent, "driver-agent", "a":
		return ModeAgent, true
	case ModeToken, "key", "t":
		return ModeToken, true
	default:
		return "", false
	}
}

// ParseMode accepts either --mode=<value> or the mode as a bare first
// argument, e.g. `agent --max-concurrent=8`. Everything else is returned
// for the mode's own FlagSet.
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var out []string

	for _, arg := range args {
		if after, ok := strings.CutPrefix(arg, "--mode="); ok {
			mode = after
			continue
		}
		if mode == "" {
			if m, ok := isKnownMode(arg); ok {
				mode = m
				continue
			}
		}
		out = append(out, arg)
	}

	if mode == "" {
		return "", out, errors.New("no mode specified: use --mode=<agent|token>")
	}
	m, ok := isKnownMode(mode)
	if !ok {
		return "", out, fmt.Errorf("unknown mode %q", mode)
	}
	return m, out, nil
}

func PrintUsage(w io.Writer) {
	fmt.Fprint(w, "\033[36m")

	fmt.Fprintln(w, `Usage:
  ./ride-driver --mode=<mode> [flags]

Modes:
  agent      Driver agent: realtime dispatch channel, location cadence, local control API
  token      Mint a development driver JWT

Examples:
  ./ride-driver --mode=agent --max-concurrent=16
  ./ride-driver --mode=token --driver-id=660e8400-e29b-41d4-a716-446655440001 --secret='dev'`)

	fmt.Fprint(w, "\033[0m")
}

// AttachUsage wires a concise per-mode usage to a FlagSet.
func AttachUsage(fs *flag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./ride-driver --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}
