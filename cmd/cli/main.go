package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// Interactive client for the event log HTTP API. Type a JSON array to append
// it, READ <marker> to fetch events, EXIT to quit.
func main() {
	addr := flag.String("addr", "http://localhost:8080", "Event log server address")
	secret := flag.String("secret", "", "Shared secret")
	flag.Parse()

	fmt.Println("🔹 Event log client ready. JSON array appends, READ <marker> fetches, EXIT quits.")
	fmt.Println("")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "EXIT") {
			break
		}

		var resp *http.Response
		var err error
		switch {
		case strings.HasPrefix(strings.ToUpper(line), "READ"):
			marker := strings.TrimSpace(line[4:])
			if marker == "" {
				marker = "0"
			}
			req, _ := http.NewRequest(http.MethodGet, *addr+"/events?marker="+marker, nil)
			req.Header.Set("X-Auth-Token", *secret)
			resp, err = http.DefaultClient.Do(req)
		default:
			req, _ := http.NewRequest(http.MethodPost, *addr+"/events", bytes.NewReader([]byte(line)))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Auth-Token", *secret)
			resp, err = http.DefaultClient.Do(req)
		}
		if err != nil {
			fmt.Println("request failed:", err)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		fmt.Printf("%s %s\n", resp.Status, strings.TrimSpace(string(body)))
	}
}
