// Command healthcheck probes a metastore server endpoint and exits 0 on
// a 2xx answer. It exists so container images need no curl for liveness
// and readiness probes.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

func main() {
	url := flag.String("url", "http://localhost:8080/readyz", "endpoint to probe")
	timeout := flag.Duration("timeout", 5*time.Second, "probe timeout")
	flag.Parse()

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Get(*url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "probe failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fmt.Fprintf(os.Stderr, "probe failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}
}
