// Command genmock writes reproducible mock noise fixtures. It drives the same
// generator the service feed uses, with a fixed seed and a fake clock, so the
// output only changes when the generator does.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -seed 42 -count 1000 -steps 5 \
//	  -out data/mock/samples_seed42.json \
//	  -geojson data/mock/samples_seed42.geojson \
//	  -png data/mock/samples_seed42.png
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/couchcryptid/noise-map-service/internal/domain"
	"github.com/couchcryptid/noise-map-service/internal/render"
	"github.com/couchcryptid/noise-map-service/internal/simulator"
	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
	"gonum.org/v1/gonum/stat"
)

var baseDate = time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)

const stepInterval = 2 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	seed := flag.Int64("seed", 42, "generator seed")
	count := flag.Int("count", 1000, "samples per snapshot")
	steps := flag.Int("steps", 0, "nudge steps applied after generation")
	ratio := flag.Float64("ratio", 0.2, "change ratio passed to each nudge step")
	regionFile := flag.String("region", "", "region YAML (default: built-in Sri Lanka)")
	out := flag.String("out", "", "output path for the JSON snapshot fixture")
	geoOut := flag.String("geojson", "", "optional output path for the last snapshot as GeoJSON")
	pngOut := flag.String("png", "", "optional output path for the last snapshot as a heatmap PNG")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	region := simulator.SriLanka()
	if *regionFile != "" {
		var err error
		if region, err = simulator.LoadRegion(*regionFile); err != nil {
			return err
		}
	}

	snaps, err := generate(region, *seed, *count, *steps, *ratio)
	if err != nil {
		return err
	}
	last := snaps[len(snaps)-1]

	if err := writeJSON(*out, snaps); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote fixture: %s (%d snapshots)", *out, len(snaps))

	if *geoOut != "" {
		if err := writeJSON(*geoOut, render.FeatureCollection(last.Samples)); err != nil {
			return fmt.Errorf("writing geojson: %w", err)
		}
		log.Printf("wrote geojson: %s", *geoOut)
	}

	if *pngOut != "" {
		if err := writePNG(*pngOut, region, last.Samples); err != nil {
			return fmt.Errorf("writing png: %w", err)
		}
		log.Printf("wrote heatmap: %s", *pngOut)
	}

	printStats(region, last)
	return nil
}

// generate returns the generated snapshot followed by one snapshot per step.
func generate(region simulator.Region, seed int64, count, steps int, ratio float64) ([]domain.Snapshot, error) {
	clock := clockwork.NewFakeClockAt(baseDate)
	gen := simulator.New(region, simulator.WithSource(simulator.NewSource(seed)))

	samples, err := gen.Generate(count, clock.Now())
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	snaps := make([]domain.Snapshot, 0, steps+1)
	snaps = append(snaps, snapshot(1, clock.Now(), samples))

	for i := range steps {
		clock.Advance(stepInterval)
		samples, err = gen.Nudge(samples, clock.Now(), ratio)
		if err != nil {
			return nil, fmt.Errorf("nudge step %d: %w", i+1, err)
		}
		snaps = append(snaps, snapshot(int64(i+2), clock.Now(), samples))
	}
	return snaps, nil
}

func snapshot(seq int64, now time.Time, samples []domain.Sample) domain.Snapshot {
	return domain.Snapshot{Seq: seq, Source: "mock", GeneratedAt: now, Samples: samples}
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func writePNG(path string, region simulator.Region, samples []domain.Sample) error {
	h, err := render.NewHeatmap(region, render.DefaultOptions())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := h.Encode(f, samples); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type clusterCount struct {
	name  string
	count int
}

func printStats(region simulator.Region, snap domain.Snapshot) {
	levels := map[domain.Level]int{}
	byCluster := map[string]int{}
	dBs := make([]float64, len(snap.Samples))
	for i, s := range snap.Samples {
		levels[s.Level()]++
		c, _ := region.NearestCluster(s.Lat, s.Lon)
		byCluster[c.Name]++
		dBs[i] = s.DB
	}
	mean, std := stat.MeanStdDev(dBs, nil)

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Snapshot %d at %s: %s samples\n", snap.Seq, snap.GeneratedAt.Format(time.RFC3339), humanize.Comma(int64(len(snap.Samples))))
	fmt.Printf("By level: quiet=%d, moderate=%d, loud=%d\n",
		levels[domain.LevelQuiet], levels[domain.LevelModerate], levels[domain.LevelLoud])
	fmt.Printf("dB mean=%.1f stddev=%.1f\n", mean, std)

	cc := make([]clusterCount, 0, len(byCluster))
	for name, n := range byCluster {
		cc = append(cc, clusterCount{name, n})
	}
	sort.Slice(cc, func(i, j int) bool { return cc[i].count > cc[j].count })
	fmt.Printf("Nearest cluster (%d): ", len(cc))
	for _, c := range cc {
		fmt.Printf("%s=%d ", c.name, c.count)
	}
	fmt.Println()
}
