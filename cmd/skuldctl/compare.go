package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sre-norns/skuld/pkg/grace"
	"github.com/sre-norns/skuld/pkg/reconcile"
	"github.com/sre-norns/skuld/pkg/results"
)

type CompareCmd struct {
	Files       []string `arg:"" name:"path" help:"Baseline and filtering HAR files, in that order. Use - to read one from STDIN"`
	MaxOverhead float64  `help:"Fail if filtering makes pages slower than baseline by more than this many percent, negative disables the check" default:"-1" env:"SKULD_MAX_OVERHEAD"`
}

func (c *CompareCmd) Run(cfg *commandContext) error {
	if len(c.Files) != 2 {
		return grace.RaiseError("2 HAR files", fmt.Sprintf("%d", len(c.Files)), "pass the baseline HAR file followed by the filtering one")
	}

	store := results.NewStore()
	for i, kind := range results.Kinds() {
		if err := importHAR(store, c.Files[i], kind); err != nil {
			return err
		}
	}

	report := reconcile.Reconcile(store, reconcile.Options{
		Threshold:   cfg.OutlierThreshold,
		CatalogSize: store.Len(results.Baseline),
		Logger:      cfg.Logger,
	})
	if err := cfg.OutputFormatter(&report); err != nil {
		return err
	}

	message, err := verdict(report, c.MaxOverhead)
	fmt.Fprintln(os.Stderr, message)

	return err
}

func importHAR(store *results.Store, filename string, kind results.Kind) error {
	var reader io.Reader = os.Stdin
	if filename != "-" {
		file, err := os.Open(filename)
		if err != nil {
			return fmt.Errorf("failed to open input HAR %q file: %w", filename, err)
		}
		defer file.Close()
		reader = file
	}

	n, err := store.ImportHAR(reader, kind)
	if err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}
	if n == 0 {
		return grace.RaiseError("page timings in "+filename, "no pages with an onLoad timing", "record the HAR with page timings, e.g. with skuldctl run --har-dir")
	}

	return nil
}
