// Package network resolves a tile id to a URL and fetches its raw bytes over
// HTTP, classifying the outcome into the three terminal statuses the
// scheduler reasons about. It is deliberately thin: no retry, no caching, no
// concurrency limiting — those live upstream in internal/scheduler.
package network

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/alpinemaps/terrainclient/internal/tileid"
)

// Status is the terminal outcome of a single tile load.
type Status int

const (
	Good Status = iota
	NotFound
	NetworkError
)

func (s Status) String() string {
	switch s {
	case Good:
		return "Good"
	case NotFound:
		return "NotFound"
	case NetworkError:
		return "NetworkError"
	default:
		return "Unknown"
	}
}

// Info accompanies every load result.
type Info struct {
	Status      Status
	TimestampMs int64
}

// Result is what a TileLoadService hands back for one tile id.
type Result struct {
	ID      tileid.ID
	Bytes   []byte
	Network Info
}

// YConvention selects the Y-axis origin a layer's tile server expects.
type YConvention int

const (
	NorthUp YConvention = iota // Y origin at the top (slippy map default)
	SouthUp                    // Y origin at the bottom (TMS): y is flipped to 2^zoom-1-y
)

// Both conventions build the path in {z}/{x}/{y} order; the x and y
// segments are never swapped, so a {z}/{y}/{x} server layout is not
// supported.

// Config configures one TileLoadService instance, one per layer (terrain
// heights, ortho imagery, POI vector tiles) since each uses its own base URL,
// Y convention and extension.
type Config struct {
	BaseURL    string
	Convention YConvention
	Extension  string // "png", "jpeg", or "" for extensionless MVT
	Timeout    time.Duration
	Verbose    bool
	nowFunc    func() time.Time
	httpClient *http.Client
}

func (c *Config) normalize() {
	if c.Timeout <= 0 {
		c.Timeout = 8 * time.Second
	}
	if c.nowFunc == nil {
		c.nowFunc = time.Now
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
}

// Service issues bounded single-shot HTTP GETs for tile bytes.
type Service struct {
	cfg Config
}

// New builds a Service from cfg, filling in defaults.
func New(cfg Config) *Service {
	cfg.normalize()
	return &Service{cfg: cfg}
}

// url builds the request URL for id, applying the configured Y convention.
func (s *Service) url(id tileid.ID) string {
	y := id.Y
	if s.cfg.Convention == SouthUp {
		total := uint32(1) << id.Zoom
		y = total - 1 - id.Y
	}
	if s.cfg.Extension == "" {
		return fmt.Sprintf("%s/%d/%d/%d", s.cfg.BaseURL, id.Zoom, id.X, y)
	}
	return fmt.Sprintf("%s/%d/%d/%d.%s", s.cfg.BaseURL, id.Zoom, id.X, y, s.cfg.Extension)
}

// Load issues a single bounded HTTP GET for id's payload and classifies the
// outcome. It never retries; callers that want retry/backoff wrap this call.
func (s *Service) Load(ctx context.Context, id tileid.ID) Result {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	result := Result{ID: id, Network: Info{TimestampMs: s.cfg.nowFunc().UnixMilli()}}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url(id), nil)
	if err != nil {
		result.Network.Status = NetworkError
		return result
	}

	resp, err := s.cfg.httpClient.Do(req)
	if err != nil {
		if s.cfg.Verbose {
			log.Printf("network: %s: %v", id, err)
		}
		result.Network.Status = NetworkError
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		result.Network.Status = NotFound
		return result
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Network.Status = NetworkError
		return result
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Network.Status = NetworkError
		return result
	}
	if len(body) == 0 {
		result.Network.Status = NotFound
		return result
	}

	result.Bytes = body
	result.Network.Status = Good
	return result
}
