// Standalone analysis of the quota admission gate. It replays the coin flip
// used by QuotaState.Admit and simulates a day of hourly runs.
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"weatherbot/service"
)

type randSource struct{}

func (randSource) Float64() float64 { return rand.Float64() }

func main() {
	trials := flag.Int("trials", 100000, "coin flips per budget band")
	limit := flag.Int("limit", 1000, "daily provider call limit")
	users := flag.Int("users", 40, "active participants")
	flag.Parse()

	fmt.Println("=== Admission Gate Analysis ===")
	fmt.Println()
	for _, remaining := range []float64{0.50, 0.19, 0.09, 0.04} {
		analyzeBand(remaining, *limit, *trials)
	}

	fmt.Println()
	fmt.Println("=== Simulated Day ===")
	simulateDay(*limit, *users)
}

// analyzeBand flips the gate many times at one remaining fraction and
// compares the observed admission rate with the policy
func analyzeBand(remainingFraction float64, limit, trials int) {
	state := service.QuotaState{
		Limit:     limit,
		Remaining: int(float64(limit) * remainingFraction),
		Used:      limit - int(float64(limit)*remainingFraction),
	}
	want := state.AdmitProbability()

	admitted := 0
	for i := 0; i < trials; i++ {
		if state.Admit(randSource{}) {
			admitted++
		}
	}
	got := float64(admitted) / float64(trials)

	chiSquared := 0.0
	if want > 0 && want < 1 {
		expectedIn := float64(trials) * want
		expectedOut := float64(trials) * (1 - want)
		chiSquared = math.Pow(float64(admitted)-expectedIn, 2)/expectedIn +
			math.Pow(float64(trials-admitted)-expectedOut, 2)/expectedOut
	}

	status := "✓ PASS"
	if math.Abs(got-want) > 0.02 {
		status = "✗ FAIL"
	}
	fmt.Printf("Remaining: %5.1f%% | Policy: %.2f | Observed: %.4f | χ²: %6.2f %s\n",
		remainingFraction*100, want, got, chiSquared, status)
}

// simulateDay runs 24 hourly ticks against one budget, each admitted run
// spending one call per user until the ceiling
func simulateDay(limit, users int) {
	used := 0
	for hour := 0; hour < 24; hour++ {
		state := service.QuotaState{
			Limit:     limit,
			Used:      used,
			Remaining: limit - used,
			HoursLeft: float64(24 - hour),
		}
		if state.Exhausted() {
			fmt.Printf("  %02d:00  exhausted\n", hour)
			continue
		}
		if !state.Admit(randSource{}) {
			fmt.Printf("  %02d:00  skipped   (p=%.2f, remaining %d)\n", hour, state.AdmitProbability(), state.Remaining)
			continue
		}
		calls := users
		if calls > state.Remaining {
			calls = state.Remaining
		}
		used += calls
		fmt.Printf("  %02d:00  checked %3d users, pace %v, remaining %d\n",
			hour, calls, state.Pace(30*time.Second), limit-used)
	}
}
