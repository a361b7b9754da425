// Command terrainclient drives the tile-streaming and GPU-residency
// pipeline against a configured tile server and a synthetic orbiting
// camera path, without a window or a real graphics device. It exists for
// soak-testing the scheduler/draw-list/tile-manager wiring one package at a
// time, rather than for interactive rendering — a real application embeds
// internal/context against its own windowing and device setup instead of
// shelling out to this binary.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/alpinemaps/terrainclient/internal/aabb"
	"github.com/alpinemaps/terrainclient/internal/context"
	"github.com/alpinemaps/terrainclient/internal/drawlist"
	"github.com/alpinemaps/terrainclient/internal/geom"
	"github.com/alpinemaps/terrainclient/internal/gpu"
	"github.com/alpinemaps/terrainclient/internal/network"
	"github.com/alpinemaps/terrainclient/internal/scheduler"
	"github.com/alpinemaps/terrainclient/internal/tileid"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		terrainURL     string
		orthoURL       string
		extension      string
		southUp        bool
		permissibleSSE float64
		quadLimit      int
		duration       time.Duration
		verbose        bool
		showVersion    bool
	)

	flag.StringVar(&terrainURL, "terrain-url", "", "Base URL of the terrain (Terrarium height) tile server")
	flag.StringVar(&orthoURL, "ortho-url", "", "Base URL of the ortho-imagery tile server (optional)")
	flag.StringVar(&extension, "extension", "png", "Tile URL file extension")
	flag.BoolVar(&southUp, "south-up", false, "Use TMS (south-up) Y convention instead of SlippyMap")
	flag.Float64Var(&permissibleSSE, "permissible-sse", 2.0, "Permissible screen-space error in pixels")
	flag.IntVar(&quadLimit, "quad-limit", scheduler.DefaultQuadLimit, "Maximum resident quads per pipeline's memory cache")
	flag.DurationVar(&duration, "duration", 10*time.Second, "How long to run the synthetic camera orbit before exiting")
	flag.BoolVar(&verbose, "verbose", false, "Verbose progress logging")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: terrainclient -terrain-url <url> [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Drives the tile-streaming pipeline against a tile server with a synthetic camera.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("terrainclient %s (commit %s)\n", version, commit)
		os.Exit(0)
	}
	if terrainURL == "" {
		flag.Usage()
		os.Exit(1)
	}

	convention := network.NorthUp
	if southUp {
		convention = network.SouthUp
	}

	terrainLoader := network.New(network.Config{
		BaseURL:    terrainURL,
		Convention: convention,
		Extension:  extension,
		Verbose:    verbose,
	})

	decorator := aabb.New(nil)
	terrainSched := scheduler.NewTerrainScheduler(terrainLoader, scheduler.Config{
		QuadLimit: quadLimit,
		Verbose:   verbose,
	})
	terrainDrawList := drawlist.New(decorator, permissibleSSE, []tileid.ID{tileid.Root})

	var orthoPipeline *context.Pipeline
	if orthoURL != "" {
		orthoLoader := network.New(network.Config{
			BaseURL:    orthoURL,
			Convention: convention,
			Extension:  extension,
			Verbose:    verbose,
		})
		orthoSched := scheduler.NewOrthoScheduler(orthoLoader, scheduler.Config{
			QuadLimit: quadLimit,
			Verbose:   verbose,
		})
		orthoDrawList := drawlist.New(decorator, permissibleSSE, []tileid.ID{tileid.Root}).WithMaxZoom(tileid.MaxZoomImagery)
		orthoPipeline = &context.Pipeline{Scheduler: orthoSched, DrawList: orthoDrawList}
	}

	backend := gpu.NewHeadlessBackend()
	tiles, err := gpu.New(backend, gpu.Config{Verbose: verbose})
	if err != nil {
		log.Fatalf("Building GPU tile manager: %v", err)
	}
	tiles.SetAabbDecorator(decorator)

	rc := context.New(
		&context.Pipeline{Scheduler: terrainSched, DrawList: terrainDrawList},
		orthoPipeline, nil, tiles,
		context.Config{Verbose: verbose},
	)

	fmt.Printf("terrainclient %s (commit %s)\n", version, commit)
	fmt.Printf("  %-16s %s\n", "Terrain URL:", terrainURL)
	if orthoURL != "" {
		fmt.Printf("  %-16s %s\n", "Ortho URL:", orthoURL)
	}
	fmt.Printf("  %-16s %.1f px\n", "Permissible SSE:", permissibleSSE)
	fmt.Printf("  %-16s %d\n", "Quad limit:", quadLimit)
	fmt.Printf("  %-16s %s\n", "Duration:", duration)

	go rc.Run()

	start := time.Now()
	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()
	frames := 0
	for time.Since(start) < duration {
		<-ticker.C
		t := time.Since(start).Seconds()
		rc.UpdateCamera(orbitCamera(t))
		applied := rc.ApplyPendingGpuBatches()
		if verbose && applied > 0 {
			log.Printf("applied %d batch(es); resident tiles: %d", applied, tiles.ResidentCount())
		}
		frames++
	}

	if !rc.Shutdown(2 * time.Second) {
		log.Printf("worker thread did not stop cleanly within the shutdown deadline")
	}

	fmt.Printf("Done: %d frames over %s, %d resident tiles\n", frames, duration.Round(time.Millisecond), tiles.ResidentCount())
}

// orbitCamera produces a synthetic camera circling the tile pyramid's
// origin at a fixed altitude, descending slowly — enough variation to
// exercise debounce, request/evict churn and screen-space-error refinement
// without needing real input.
func orbitCamera(t float64) drawlist.Camera {
	const radius = 200_000.0
	const period = 20.0
	angle := 2 * math.Pi * t / period
	altitude := 50_000.0 / (1 + t/10)

	return drawlist.Camera{
		Position:   geom.Vec3{X: radius * math.Cos(angle), Y: radius * math.Sin(angle), Z: altitude},
		View:       geom.Identity(),
		Projection: geom.Mat4{0: 1, 5: 1.5, 10: 1, 15: 1},
		Viewport:   [2]uint32{1920, 1080},
		Frustum:    geom.Frustum{},
	}
}
