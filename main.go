package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	driveragent "ride-driver/cmd/driver_agent"
	"ride-driver/internal/cli"
	"ride-driver/internal/general/config"
)

func main() {
	if len(os.Args) == 2 && (os.Args[1] == "--help" || os.Args[1] == "-h") {
		cli.PrintUsage(os.Stdout)
		os.Exit(0)
	}

	mode, modeArgs, err := cli.ParseMode(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cli.PrintUsage(os.Stderr)
		os.Exit(2)
	}

	// cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch mode {
	case cli.ModeAgent:
		fs := flag.NewFlagSet(cli.ModeAgent, flag.ContinueOnError)
		maxConc := fs.Int("max-concurrent", 16, "Maximum number of concurrent control API requests")
		cli.AttachUsage(fs, cli.ModeAgent)

		if err := fs.Parse(modeArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		if *maxConc < 1 {
			fmt.Fprintln(os.Stderr, "Error: --max-concurrent must be >= 1")
			fs.Usage()
			os.Exit(2)
		}
		if err := driveragent.Run(ctx, *maxConc); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case cli.ModeToken:
		config.LoadDotEnvUp(5)
		fs := flag.NewFlagSet(cli.ModeToken, flag.ContinueOnError)
		driverID := fs.String("driver-id", os.Getenv("DRIVER_ID"), "Driver UUID (token subject)")
		secret := fs.String("secret", os.Getenv("JWT_SECRET"), "JWT HMAC secret (HS256)")
		ttl := fs.Duration("ttl", 2*time.Hour, "Token lifetime")
		cli.AttachUsage(fs, cli.ModeToken)

		if err := fs.Parse(modeArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		token, claims, err := cli.GenerateDriverToken(*secret, *driverID, *ttl)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			fs.Usage()
			os.Exit(2)
		}
		cli.PrintToken(os.Stdout, token, claims)

	default:
		fmt.Fprintln(os.Stderr, "Error: unknown mode")
		os.Exit(2)
	}

	// let deferred logs flush on very fast exits
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Millisecond):
	}
}
