// Command junctions enumerates compacted de Bruijn graph bifurcations
// (junctions) across one or more FASTA inputs and writes the binary
// junction position stream described in spec.md §6.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"

	"github.com/arvn-bio/junctions/internal/config"
	"github.com/arvn-bio/junctions/internal/emit"
	"github.com/arvn-bio/junctions/internal/errs"
	"github.com/arvn-bio/junctions/internal/fasta"
	"github.com/arvn-bio/junctions/internal/junction"
	"github.com/arvn-bio/junctions/internal/metrics"
	"github.com/arvn-bio/junctions/internal/roundplan"
	"github.com/arvn-bio/junctions/internal/vertex"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	cfg, code := config.Parse(args, stderr)
	if code != -1 {
		return code
	}

	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}
	metrics.Serve(cfg.MetricsAddr)

	openReaders := func() ([]*fasta.Reader, error) {
		readers := make([]*fasta.Reader, len(cfg.Inputs))
		for i, path := range cfg.Inputs {
			f, err := os.Open(path)
			if err != nil {
				return nil, errs.Wrap(errs.IoError, err)
			}
			readers[i] = fasta.NewReader(bufio.NewReaderSize(f, 1<<20))
		}
		return readers, nil
	}

	seedBits := cfg.FilterBits
	const seed = 0x5EED

	var rounds []roundplan.Round
	if cfg.Rounds > 1 {
		log.WithField("rounds", cfg.Rounds).Info("building round histogram")
		planner := roundplan.NewPlanner(cfg.FilterBits, roundplan.DefaultBinsCount)
		if err := junction.BuildHistogram(openReaders, cfg.K, cfg.Threads, seedBits, seed, planner); err != nil {
			fmt.Fprintln(stderr, err)
			return exitCodeFor(err)
		}
		if cfg.DumpHistPath != "" {
			if err := dumpHistogram(planner.Histogram(), cfg.DumpHistPath); err != nil {
				fmt.Fprintln(stderr, err)
				return exitCodeFor(err)
			}
		}
		rounds = planner.Plan(cfg.Rounds)
	} else {
		rounds = []roundplan.Round{{Low: 0, High: uint64(1) << cfg.FilterBits}}
	}

	bifPath := cfg.TmpDir + "/bifurcations.tmp"
	bifFile, err := os.Create(bifPath)
	if err != nil {
		fmt.Fprintln(stderr, errs.Wrap(errs.IoError, err))
		return 1
	}
	var bifMu sync.Mutex
	for r, round := range rounds {
		started := time.Now()
		result, err := junction.RunRound(openReaders, cfg.K, cfg.Threads, cfg.FilterBits, seedBits, seed, round, cfg.TmpDir, r, bifFile, &bifMu)
		if err != nil {
			bifFile.Close()
			fmt.Fprintln(stderr, err)
			return exitCodeFor(err)
		}
		log.WithFields(log.Fields{
			"round":        r,
			"bifurcations": result.Bifurcations,
			"elapsed":      time.Since(started),
		}).Info("round complete")
	}
	if err := bifFile.Close(); err != nil {
		fmt.Fprintln(stderr, errs.Wrap(errs.IoError, err))
		return 1
	}

	bifReader, err := os.Open(bifPath)
	if err != nil {
		fmt.Fprintln(stderr, errs.Wrap(errs.IoError, err))
		return 1
	}
	store, err := vertex.Init(bifReader, cfg.K, cfg.Threads)
	bifReader.Close()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitCodeFor(err)
	}
	log.WithField("vertices", store.GetDistinctVerticesCount()).Info("bifurcation storage built")

	outFile, err := os.Create(cfg.OutPath)
	if err != nil {
		fmt.Fprintln(stderr, errs.Wrap(errs.IoError, err))
		return 1
	}
	bufOut := bufio.NewWriter(outFile)
	if err := emit.RunFinalPass(openReaders, store, cfg.K, cfg.Threads, len(rounds), cfg.TmpDir, bufOut); err != nil {
		outFile.Close()
		fmt.Fprintln(stderr, err)
		return exitCodeFor(err)
	}
	if err := bufOut.Flush(); err != nil {
		fmt.Fprintln(stderr, errs.Wrap(errs.IoError, err))
		return 1
	}
	if err := outFile.Close(); err != nil {
		fmt.Fprintln(stderr, errs.Wrap(errs.IoError, err))
		return 1
	}

	os.Remove(bifPath)
	return 0
}

func dumpHistogram(counts []uint64, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.IoError, err)
	}
	defer f.Close()
	npw, err := gonpy.NewWriter(f)
	if err != nil {
		return errs.Wrap(errs.IoError, err)
	}
	npw.Shape = []int{len(counts)}
	return npw.WriteUint64(counts)
}

func exitCodeFor(err error) int {
	if e, ok := err.(*errs.Error); ok {
		switch e.Kind {
		case errs.ConfigError:
			return 2
		default:
			return 1
		}
	}
	return 1
}
