// Command healthcheck probes a local mirror server's health endpoint and
// exits non-zero when it is not healthy. It is the container HEALTHCHECK.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

const defaultAddr = "127.0.0.1:8080"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := probe(ctx, http.DefaultClient, healthURL(os.Getenv("MIRROR_LISTEN_ADDR"))); err != nil {
		fmt.Fprintln(os.Stderr, "unhealthy:", err)
		os.Exit(1)
	}
}

func healthURL(listenAddr string) string {
	return "http://" + normalizeAddr(listenAddr) + "/api/v1/health"
}

func probe(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	if health.Status != "ok" {
		return fmt.Errorf("server reports status %q", health.Status)
	}
	return nil
}

// normalizeAddr turns the server's listen address into one the probe can
// dial from inside the same container: wildcard hosts become loopback.
func normalizeAddr(listenAddr string) string {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return defaultAddr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
