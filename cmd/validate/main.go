// Command validate checks a mock fixture written by genmock. It verifies
// containment and level bounds for every sample, the snapshot sequence, the
// level mix, and that the fixture regenerates byte-for-byte from its seed.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -fixture data/mock/samples_seed42.json \
//	  -seed 42 -ratio 0.2
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/noise-map-service/internal/domain"
	"github.com/couchcryptid/noise-map-service/internal/simulator"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
)

var baseDate = time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)

// stepInterval matches genmock.
const stepInterval = 2 * time.Second

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	fixture := flag.String("fixture", "", "path to the genmock JSON fixture")
	seed := flag.Int64("seed", 42, "seed the fixture was generated with")
	ratio := flag.Float64("ratio", 0.2, "change ratio the fixture was generated with")
	regionFile := flag.String("region", "", "region YAML (default: built-in Sri Lanka)")
	flag.Parse()

	if *fixture == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*fixture, *regionFile, *seed, *ratio); code != 0 {
		os.Exit(code)
	}
}

func run(fixturePath, regionFile string, seed int64, ratio float64) int {
	fmt.Println("=== Noise Fixture Validation ===")
	fmt.Println()

	region := simulator.SriLanka()
	if regionFile != "" {
		var err error
		if region, err = simulator.LoadRegion(regionFile); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load region: %v\n", err)
			return 1
		}
	}

	snaps, err := loadSnapshots(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load fixture: %v\n", err)
		return 1
	}
	if len(snaps) == 0 {
		fmt.Fprintln(os.Stderr, "FATAL: fixture has no snapshots")
		return 1
	}

	phases := []*phase{
		validateSamples(snaps, region),
		validateSequence(snaps),
		validateLevelMix(snaps[0]),
		validateReproducible(snaps, region, seed, ratio),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Snapshots: %d, samples per snapshot: %d\n", len(snaps), len(snaps[0].Samples))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadSnapshots(path string) ([]domain.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snaps []domain.Snapshot
	if err := json.Unmarshal(data, &snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

// ── Phase 1: Samples ──
// Every sample lies inside the region, carries its snapshot time and a level
// within the clamp bounds at one-decimal precision.

func validateSamples(snaps []domain.Snapshot, region simulator.Region) *phase {
	p := &phase{name: "Phase 1: Samples (containment, levels)"}

	gen, nudge := simulator.DefaultGenerateParams(), simulator.DefaultNudgeParams()
	lo := min(gen.ClusteredLevel.Min, gen.BackgroundLevel.Min, nudge.Level.Min)
	hi := max(gen.ClusteredLevel.Max, gen.BackgroundLevel.Max, nudge.Level.Max)

	for _, snap := range snaps {
		for i, s := range snap.Samples {
			if !region.Contains(s.Lat, s.Lon) {
				p.errorf("snapshot %d sample %d: (%g, %g) outside region %q", snap.Seq, i, s.Lat, s.Lon, region.Name)
			}
			if s.DB < lo || s.DB > hi {
				p.errorf("snapshot %d sample %d: %.1f dB outside [%g, %g]", snap.Seq, i, s.DB, lo, hi)
			}
			if math.Abs(s.DB*10-math.Round(s.DB*10)) > 1e-6 {
				p.errorf("snapshot %d sample %d: %g dB not rounded to 0.1", snap.Seq, i, s.DB)
			}
			if !s.Timestamp.Equal(snap.GeneratedAt) {
				p.errorf("snapshot %d sample %d: timestamp %s, snapshot generated at %s",
					snap.Seq, i, s.Timestamp.Format(time.RFC3339), snap.GeneratedAt.Format(time.RFC3339))
			}
		}
	}
	return p
}

// ── Phase 2: Sequence ──
// Snapshots are numbered from 1, keep their size and move forward in time.

func validateSequence(snaps []domain.Snapshot) *phase {
	p := &phase{name: "Phase 2: Sequence (seq, size, time)"}

	size := len(snaps[0].Samples)
	for i, snap := range snaps {
		if snap.Seq != int64(i+1) {
			p.errorf("snapshot %d: seq %d, expected %d", i, snap.Seq, i+1)
		}
		if len(snap.Samples) != size {
			p.errorf("snapshot %d: %d samples, expected %d", snap.Seq, len(snap.Samples), size)
		}
		if i > 0 && !snap.GeneratedAt.After(snaps[i-1].GeneratedAt) {
			p.errorf("snapshot %d: generated at %s, not after previous", snap.Seq, snap.GeneratedAt.Format(time.RFC3339))
		}
	}
	return p
}

// ── Phase 3: Level mix ──
// A generated population spans every loudness bucket.

func validateLevelMix(first domain.Snapshot) *phase {
	p := &phase{name: "Phase 3: Level Mix (first snapshot)"}

	counts := map[domain.Level]int{}
	for _, s := range first.Samples {
		counts[s.Level()]++
	}
	for _, l := range []domain.Level{domain.LevelQuiet, domain.LevelModerate, domain.LevelLoud} {
		if counts[l] == 0 {
			p.errorf("no %s samples in %d", l, len(first.Samples))
		}
	}
	fmt.Printf("  Levels: quiet=%d, moderate=%d, loud=%d\n",
		counts[domain.LevelQuiet], counts[domain.LevelModerate], counts[domain.LevelLoud])
	return p
}

// ── Phase 4: Reproducibility ──
// Regenerating with the same seed, clock and step count yields the fixture.

func validateReproducible(snaps []domain.Snapshot, region simulator.Region, seed int64, ratio float64) *phase {
	p := &phase{name: "Phase 4: Reproducibility (seed replay)"}

	clock := clockwork.NewFakeClockAt(baseDate)
	gen := simulator.New(region, simulator.WithSource(simulator.NewSource(seed)))

	samples, err := gen.Generate(len(snaps[0].Samples), clock.Now())
	if err != nil {
		p.errorf("generate: %v", err)
		return p
	}
	for i, snap := range snaps {
		if i > 0 {
			clock.Advance(stepInterval)
			if samples, err = gen.Nudge(samples, clock.Now(), ratio); err != nil {
				p.errorf("nudge step %d: %v", i, err)
				return p
			}
		}
		if diff := cmp.Diff(snap.Samples, samples); diff != "" {
			p.errorf("snapshot %d differs from replay (-fixture +replay):\n%s", snap.Seq, diff)
		}
	}
	return p
}
