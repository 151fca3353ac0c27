package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/OneInX/Manifest-InX/internal/canon"
	"github.com/OneInX/Manifest-InX/internal/transport/httpapi"
)

// Demo environment overrides.
const (
	EnvDemoHost = "MICROINX_DEMO_HOST"
	EnvDemoPort = "MICROINX_DEMO_PORT"
)

const (
	demoHostDefault = "127.0.0.1"
	demoPortDefault = 8080
	demoInputText   = "Need more context and more research; later it depends. I revisit again and still."
	demoTimeout     = 2 * time.Second
)

func newDemoCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Verify the release, serve once on a local port and print one insight",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			host := os.Getenv(EnvDemoHost)
			if host == "" {
				host = demoHostDefault
			}
			port := demoPortDefault
			if s := os.Getenv(EnvDemoPort); s != "" {
				p, err := strconv.Atoi(s)
				if err != nil {
					return exitWith(2, fmt.Errorf("%s must be an int, got: %q", EnvDemoPort, s))
				}
				port = p
			}

			a, err := newApp(*configPath)
			if err != nil {
				return exitWith(2, err)
			}
			defer a.close()

			body, err := a.demo(cmd.Context(), host, port)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}
}

// demo serves the HTTP API on host:port for exactly one request and returns
// the indented response body.
func (a *app) demo(ctx context.Context, host string, port int) ([]byte, error) {
	e, err := a.openEngine()
	if err != nil {
		return nil, exitWith(1, err)
	}

	ln, err := httpapi.Listen(net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, exitWith(2, fmt.Errorf("port %d is already in use; free it or set %s to an available port and rerun", port, EnvDemoPort))
		}
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	srv := httpapi.NewServer(httpapi.NewRouter(httpapi.New(e, a.logger, nil)), demoTimeout, a.logger)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	defer func() {
		cancel()
		<-done
	}()

	payload, err := json.Marshal(map[string]string{"text": demoInputText})
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: demoTimeout}
	resp, err := client.Post("http://"+ln.Addr().String()+"/insight", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("demo request: %w", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("demo response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("demo response: status %d: %v", resp.StatusCode, out["error"])
	}
	return canon.JSON(out)
}
