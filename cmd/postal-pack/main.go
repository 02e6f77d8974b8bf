// Command postal-pack converts a plain-text pincode dataset into the
// gzip-compressed shards consumed by the offline postal directory, then
// loads them back to verify the result.
//
// The input is one pipe-delimited record per line:
//
//	pincode|office|city|district|state|country|lat|lon|villages;...|gram_panchayats;...
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/gramkart/commerce-core/postal"
)

const progressEvery = 50_000

func main() {
	var (
		input     string
		outDir    string
		numShards int
		checkPin  string
	)

	flag.StringVar(&input, "input", "", "plain-text pincode dataset file")
	flag.StringVar(&outDir, "out-dir", "data", "directory to write pincodeN.gz shards into")
	flag.IntVar(&numShards, "shards", 3, "number of output shards")
	flag.StringVar(&checkPin, "check-pin", "", "pincode to look up after packing, as a spot check")
	flag.Parse()

	if input == "" {
		slog.Error("input dataset is required: set --input")
		os.Exit(1)
	}
	if numShards < 1 {
		numShards = 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, input, outDir, numShards, checkPin); err != nil {
		slog.Error("postal pack failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("postal pack completed successfully")
}

func run(ctx context.Context, input, outDir string, numShards int, checkPin string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrapf(err, "create output dir %s", outDir)
	}

	lines, err := readLines(ctx, input)
	if err != nil {
		return errors.Wrap(err, "read dataset")
	}
	slog.Info("dataset read", slog.Int("lines", len(lines)))

	if err := writeShards(ctx, lines, outDir, numShards); err != nil {
		return errors.Wrap(err, "write shards")
	}

	// Reload through the directory itself so malformed lines surface here
	// rather than at app startup.
	dir := postal.NewDirectory()
	if err := dir.Load(ctx, outDir); err != nil {
		return errors.Wrap(err, "verify shards")
	}
	slog.Info("shards verified",
		slog.Int("shards", numShards),
		slog.Int("pincodes", dir.Len()),
	)

	if checkPin != "" {
		rec, err := dir.Lookup(checkPin)
		if err != nil {
			return errors.Wrapf(err, "spot check %s", checkPin)
		}
		slog.Info("spot check",
			slog.String("pincode", rec.Pincode),
			slog.String("district", rec.District),
			slog.Int("villages", len(rec.Villages)),
		)
	}
	return nil
}

func readLines(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines)%progressEvery == 0 {
			slog.Info("reading dataset", slog.Int("lines", len(lines)))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "scan %s", path)
	}
	return lines, nil
}

// writeShards compresses the dataset round-robin into numShards files, one
// goroutine per shard.
func writeShards(ctx context.Context, lines []string, outDir string, numShards int) error {
	g, ctx := errgroup.WithContext(ctx)
	for shard := range numShards {
		g.Go(func() error {
			path := filepath.Join(outDir, fmt.Sprintf("pincode%d.gz", shard+1))
			f, err := os.Create(path)
			if err != nil {
				return errors.Wrapf(err, "create shard %s", path)
			}
			defer func() { _ = f.Close() }()

			gz := pgzip.NewWriter(f)
			w := bufio.NewWriter(gz)
			for i := shard; i < len(lines); i += numShards {
				if err := ctx.Err(); err != nil {
					return err
				}
				if _, err := w.WriteString(lines[i]); err != nil {
					return errors.Wrapf(err, "write shard %s", path)
				}
				if err := w.WriteByte('\n'); err != nil {
					return errors.Wrapf(err, "write shard %s", path)
				}
			}
			if err := w.Flush(); err != nil {
				return errors.Wrapf(err, "flush shard %s", path)
			}
			if err := gz.Close(); err != nil {
				return errors.Wrapf(err, "close gzip %s", path)
			}
			return f.Close()
		})
	}
	return g.Wait()
}
