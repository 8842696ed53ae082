package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/daniacca/ecogrid/internal/ecosim"
	"github.com/daniacca/ecogrid/internal/storage"
	"github.com/gocarina/gocsv"
)

func main() {
	var (
		paramsFile   = flag.String("params-file", "", "path to a JSON parameter file (optional)")
		gridSize     = flag.Int("grid-size", 0, "grid side length")
		prey         = flag.Int("prey", -1, "initial prey count")
		predators    = flag.Int("predators", -1, "initial predator count")
		substrate    = flag.Float64("substrate", -1, "initial substrate probability [0,1]")
		steps        = flag.Int("steps", 0, "number of generations to run")
		seed         = flag.Int64("seed", 0, "random seed (0 seeds from the clock)")
		neighborhood = flag.String("neighborhood", "", "neighborhood type: von_neumann or moore")
		boundary     = flag.String("boundary", "", "grid boundary: finite or torus")
		record       = flag.Bool("record", false, "capture a frame per generation")
		historyCSV   = flag.String("history-csv", "", "write the population history to this CSV file")
		recordingsDB = flag.String("recordings-db", "", "flush the recording to this SQLite database")
	)
	flag.Parse()

	params, err := buildParams(*paramsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading parameters: %v\n", err)
		os.Exit(1)
	}

	// Explicit flags override both defaults and the parameter file.
	if *gridSize > 0 {
		params.GridSize = *gridSize
	}
	if *prey >= 0 {
		params.InitialPrey = *prey
	}
	if *predators >= 0 {
		params.InitialPredators = *predators
	}
	if *substrate >= 0 {
		params.InitialSubstrateProbability = *substrate
	}
	if *steps > 0 {
		params.Steps = *steps
	}
	if *seed != 0 {
		params.Seed = *seed
	}
	if *neighborhood != "" {
		nh, err := ecosim.ParseNeighborhood(*neighborhood)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		params.Neighborhood = nh
	}
	if *boundary != "" {
		b, err := ecosim.ParseBoundary(*boundary)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		params.Boundary = b
	}
	if *record || *recordingsDB != "" {
		params.RecordSimulation = true
	}

	sim, err := ecosim.NewSimulation(params, ecosim.NewNoOpLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating simulation: %v\n", err)
		os.Exit(1)
	}

	if adj := sim.Adjustment(); adj.ValuesAdjusted {
		fmt.Printf("note: initial values adjusted (%s)\n", adj.Reason)
		fmt.Printf("  prey %d -> %d, predators %d -> %d, substrate prob %.2f -> %.2f\n",
			adj.Original.InitialPrey, adj.Adjusted.InitialPrey,
			adj.Original.InitialPredators, adj.Adjusted.InitialPredators,
			adj.Original.SubstrateProbability, adj.Adjusted.SubstrateProbability)
	}

	if _, err := sim.StepN(params.Steps); err != nil {
		fmt.Fprintf(os.Stderr, "error during simulation: %v\n", err)
		os.Exit(1)
	}

	printSummary(sim, params)

	if *historyCSV != "" {
		if err := writeHistoryCSV(*historyCSV, sim.History()); err != nil {
			fmt.Fprintf(os.Stderr, "error writing history CSV: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("history written to %s\n", *historyCSV)
	}

	if *recordingsDB != "" {
		if err := flushRecording(sim, *recordingsDB); err != nil {
			fmt.Fprintf(os.Stderr, "error saving recording: %v\n", err)
			os.Exit(1)
		}
	}
}

func buildParams(path string) (ecosim.Params, error) {
	params := ecosim.DefaultParams()
	if path == "" {
		return params, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return params, fmt.Errorf("reading parameter file: %w", err)
	}
	if err := json.Unmarshal(data, &params); err != nil {
		return params, fmt.Errorf("parsing parameter JSON: %w", err)
	}
	return params, nil
}

func printSummary(sim *ecosim.Simulation, params ecosim.Params) {
	stats := sim.Statistics()

	fmt.Printf("Simulation finished (size=%d, steps=%d, neighborhood=%s, boundary=%s)\n",
		params.GridSize, sim.Generation(), params.Neighborhood, params.Boundary)
	fmt.Println("Final populations:")
	fmt.Printf("  predators: %d (%.2f%%)\n", stats.PredatorCount, stats.PredatorPercentage)
	fmt.Printf("  prey:      %d (%.2f%%)\n", stats.PreyCount, stats.PreyPercentage)
	fmt.Printf("  substrate: %d (%.2f%%)\n", stats.SubstrateCount, stats.SubstratePercentage)
	fmt.Printf("  empty:     %d (%.2f%%)\n", stats.EmptyCount, stats.EmptyPercentage)
	if stats.StarvingPredators > 0 || stats.StarvingPrey > 0 {
		fmt.Printf("  starving:  %d predators, %d prey\n", stats.StarvingPredators, stats.StarvingPrey)
	}

	events := sim.Events()
	fmt.Println("Events:")
	fmt.Printf("  predator births:   %d\n", events.PredatorBirths)
	fmt.Printf("  prey births:       %d\n", events.PreyBirths)
	fmt.Printf("  substrate created: %d\n", events.SubstrateCreated)
}

func writeHistoryCSV(path string, history []ecosim.HistoryPoint) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating CSV file: %w", err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&history, f); err != nil {
		return fmt.Errorf("encoding CSV: %w", err)
	}
	return nil
}

func flushRecording(sim *ecosim.Simulation, dbPath string) error {
	ctx := context.Background()
	store := storage.NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("opening recordings database: %w", err)
	}
	defer store.Close()

	meta, err := sim.FlushRecording(ctx, store)
	if err != nil {
		return err
	}
	fmt.Printf("recording %s saved to %s (%d frames)\n", meta.RecordingID, dbPath, meta.FrameCount)
	return nil
}
