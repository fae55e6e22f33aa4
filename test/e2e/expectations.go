package e2e

import (
	"fmt"
	"net/http"
)

func ServerIsHealthy() Expectation {
	return func(c *Context) error {
		resp, err := http.Get(c.server.URL + "/healthz")
		if err != nil {
			return fmt.Errorf("health check: %w", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("health check status %d", resp.StatusCode)
		}
		return nil
	}
}

func EventsConsumed(n int) Expectation {
	return func(c *Context) error {
		if len(c.consumed) != n {
			return fmt.Errorf("consumed %d events, want %d", len(c.consumed), n)
		}
		for i, e := range c.consumed {
			if e["run"] != c.runID {
				return fmt.Errorf("event %d belongs to run %v, want %s", i, e["run"], c.runID)
			}
			if e["seq"] != fmt.Sprint(i) {
				return fmt.Errorf("event %d has seq %v, events out of order", i, e["seq"])
			}
		}
		return nil
	}
}

func MarkerAtTail() Expectation {
	return func(c *Context) error {
		if tail := c.handler.Tail(); c.marker != tail {
			return fmt.Errorf("marker %d, want tail %d", c.marker, tail)
		}
		return nil
	}
}
