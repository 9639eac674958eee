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

const requestTimeout = 2 * time.Second

func main() {
	url := fmt.Sprintf("http://%s/api/v1/health", loopbackAddr(os.Getenv("GITVAULT_LISTEN_ADDR")))
	if err := checkHealth(url); err != nil {
		fmt.Fprintln(os.Stderr, "healthcheck:", err)
		os.Exit(1)
	}
}

// checkHealth succeeds only when the service answers 200 with status "ok". A 503
// means the database ping failed.
func checkHealth(url string) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := (&http.Client{Timeout: requestTimeout}).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || body.Status != "ok" {
		return fmt.Errorf("unhealthy: http %d, status %q", resp.StatusCode, body.Status)
	}
	return nil
}

// loopbackAddr points the check at loopback when the server binds every
// interface, since it runs inside the same container.
func loopbackAddr(listenAddr string) string {
	const fallback = "127.0.0.1:8080"

	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return fallback
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
