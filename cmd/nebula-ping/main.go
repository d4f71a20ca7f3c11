// Command nebula-ping dials a datastore endpoint, runs the handshake, and
// reports whether the connection came up Ready, the way a liveness probe
// in front of a connection pool would. It exits 0 on success, 1 on any
// Open failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	nebula "github.com/nebula-db/nebula-go"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9042", "datastore endpoint")
	timeout := flag.Duration("timeout", 5*time.Second, "handshake timeout")
	user := flag.String("user", "", "username, if the endpoint requires authentication")
	password := flag.String("password", "", "password, if the endpoint requires authentication")
	flag.Parse()

	setts := nebula.DefaultSettings()
	if *user != "" {
		setts["user"] = *user
		setts["password"] = *password
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	conn, err := nebula.Open(ctx, *addr, setts, nil, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nebula-ping: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Printf("nebula-ping: %s ready in %s (state=%s)\n", *addr, time.Since(start), conn.State())
}
