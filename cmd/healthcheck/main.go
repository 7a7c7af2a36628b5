// Package main is a minimal HTTP health check binary for distroless
// containers. It exits 0 when /health returns HTTP 200 and 1 otherwise.
// Compile with CGO_ENABLED=0 for a fully static binary.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"ratetracker/internal/version"
)

func main() {
	port := os.Getenv("RATETRACKER_SERVER_PORT")
	if port == "" {
		port = "9980"
	}
	url := flag.String("url", fmt.Sprintf("http://localhost:%s/health", port), "Health endpoint to probe")
	timeout := flag.Duration("timeout", 3*time.Second, "Request timeout")
	flag.Parse()

	os.Exit(probe(*url, *timeout))
}

func probe(url string, timeout time.Duration) int {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 1
	}
	req.Header.Set("User-Agent", version.GetInfo().UserAgent()+" healthcheck")

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return 1
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 1
	}
	return 0
}
