package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/downfa11-org/go-eventlog/pkg/config"
	"github.com/downfa11-org/go-eventlog/pkg/disk"
	"github.com/downfa11-org/go-eventlog/pkg/server"
	"github.com/google/uuid"
)

type Context struct {
	t       *testing.T
	cfg     *config.Config
	handler *disk.Handler
	server  *httptest.Server

	runID          string
	secret         string
	marker         int64
	publishedCount int
	consumed       []map[string]any
}

type Actions struct {
	ctx *Context
}

type Consequences struct {
	ctx *Context
}

type Expectation func(c *Context) error

func Given(t *testing.T) *Context {
	dir := t.TempDir()
	return &Context{
		t:     t,
		runID: uuid.New().String(),
		cfg: &config.Config{
			DataDir:           dir,
			BackupDir:         dir,
			ChunkSize:         1000,
			ChannelBufferSize: 8,
		},
	}
}

func (c *Context) WithSecret(secret string) *Context {
	c.secret = secret
	c.cfg.Secret = secret
	return c
}

func (c *Context) WithChunkSize(size int) *Context {
	c.cfg.ChunkSize = size
	return c
}

func (c *Context) When() *Actions {
	return &Actions{ctx: c}
}

func (a *Actions) StartServer() *Actions {
	c := a.ctx
	h, err := disk.NewHandler(c.cfg)
	if err != nil {
		c.t.Fatalf("start server: %v", err)
	}
	c.handler = h
	c.server = httptest.NewServer(server.NewMux(c.cfg, h))
	return a
}

// RestartServer stops the running instance cleanly and starts a fresh one
// over the same data directory, exercising the recovery path.
func (a *Actions) RestartServer() *Actions {
	c := a.ctx
	c.server.Close()
	c.handler.Close()
	return a.StartServer()
}

func (a *Actions) PublishEvents(n int) *Actions {
	c := a.ctx
	batch := make([]map[string]string, n)
	for i := range batch {
		batch[i] = map[string]string{
			"run": c.runID,
			"seq": fmt.Sprint(c.publishedCount + i),
		}
	}
	body, err := json.Marshal(batch)
	if err != nil {
		c.t.Fatalf("marshal batch: %v", err)
	}

	req, _ := http.NewRequest(http.MethodPost, c.server.URL+"/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Auth-Token", c.secret)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("publish: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		c.t.Fatalf("publish status %d: %s", resp.StatusCode, data)
	}
	c.publishedCount += n
	return a
}

// ConsumeAll follows nextMarker from the current position until the tail.
func (a *Actions) ConsumeAll() *Actions {
	c := a.ctx
	for {
		req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/events?marker=%d", c.server.URL, c.marker), nil)
		req.Header.Set("X-Auth-Token", c.secret)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			c.t.Fatalf("consume: %v", err)
		}

		var rr struct {
			NextMarker int64            `json:"nextMarker"`
			Events     []map[string]any `json:"events"`
		}
		err = json.NewDecoder(resp.Body).Decode(&rr)
		resp.Body.Close()
		if err != nil {
			c.t.Fatalf("decode consume response: %v", err)
		}

		c.consumed = append(c.consumed, rr.Events...)
		if rr.NextMarker == c.marker {
			return a
		}
		c.marker = rr.NextMarker
	}
}

func (a *Actions) Then() *Consequences {
	return &Consequences{ctx: a.ctx}
}

func (v *Consequences) Expect(e Expectation) *Consequences {
	v.ctx.t.Helper()
	if err := e(v.ctx); err != nil {
		v.ctx.t.Error(err)
	}
	return v
}

func (v *Consequences) And(e Expectation) *Consequences {
	return v.Expect(e)
}

func (c *Context) Cleanup() {
	if c.server != nil {
		c.server.Close()
	}
	if c.handler != nil {
		c.handler.Close()
	}
}
