// Command cachectl is a small administrative client for a running
// cacheserver: it issues the same HTTP/JSON requests the service exposes,
// from the shell.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/edgecache/edgecache/pkg/version"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	defaultAddr := getenv("CACHESERVER_ADDR", "http://localhost:8080")
	defaultOwner := os.Getenv("CACHESERVER_OWNER_ADDRESS")

	root := flag.NewFlagSet("cachectl", flag.ContinueOnError)
	root.SetOutput(io.Discard)
	addrFlag := root.String("addr", defaultAddr, "cacheserver base URL (default env CACHESERVER_ADDR)")
	ownerFlag := root.String("owner", defaultOwner, "owner address sent as X-Owner-Address (env CACHESERVER_OWNER_ADDRESS)")
	timeoutFlag := root.Duration("timeout", 15*time.Second, "HTTP request timeout")
	showVersion := root.Bool("version", false, "print cachectl build information and exit")
	if err := root.Parse(args); err != nil {
		return usageError(err)
	}

	remaining := root.Args()
	if *showVersion {
		fmt.Println(version.FullVersion())
		return nil
	}
	if len(remaining) == 0 {
		return usageError(errors.New("no command specified"))
	}

	client := &apiClient{
		baseURL: strings.TrimRight(*addrFlag, "/"),
		owner:   strings.TrimSpace(*ownerFlag),
		http:    &http.Client{Timeout: *timeoutFlag},
	}

	switch remaining[0] {
	case "get":
		return handleGet(ctx, client, remaining[1:])
	case "set":
		return handleSet(ctx, client, remaining[1:])
	case "del":
		return handleDel(ctx, client, remaining[1:])
	case "keys":
		return handleKeys(ctx, client, remaining[1:])
	case "stats":
		return handleStats(ctx, client, remaining[1:])
	case "publish":
		return handlePublish(ctx, client, remaining[1:])
	case "instances":
		return handleInstances(ctx, client, remaining[1:])
	case "health":
		return handleHealth(ctx, client)
	case "version":
		fmt.Println(version.FullVersion())
		return nil
	default:
		return usageError(fmt.Errorf("unknown command %q", remaining[0]))
	}
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func usageError(cause error) error {
	fmt.Fprintln(os.Stderr, usage())
	return cause
}

func usage() string {
	return `Usage: cachectl [-addr url] [-owner address] <command> [args]

Commands:
  get -key K [-namespace NS]
  set -key K -value V [-namespace NS] [-ttl SECONDS]
  del -key K [-namespace NS]
  keys [-pattern P] [-namespace NS]
  stats
  publish -channel C -message M
  instances list
  instances delete -id ID
  health
  version`
}
