package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"ride-driver/internal/cli"
)

func main() {
	var (
		driverID = flag.String("driver-id", "", "UUID of the driver (subject)")
		secret   = flag.String("secret", "", "JWT HMAC secret (HS256)")
		ttl      = flag.Duration("ttl", 2*time.Hour, "Token lifetime")
	)
	flag.Parse()

	if *driverID == "" || *secret == "" {
		fmt.Fprintln(os.Stderr, "usage: key --driver-id=<uuid> --secret='<secret>' [--ttl=2h]")
		os.Exit(2)
	}

	token, claims, err := cli.GenerateDriverToken(*secret, *driverID, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	cli.PrintToken(os.Stdout, token, claims)
}
