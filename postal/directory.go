package postal

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"
)

const (
	// directoryCapacity sizes the bloom filter for the full Indian postal
	// directory (~160k post offices).
	directoryCapacity = 200_000
	directoryFPR      = 0.001

	pinLen       = 6
	recordFields = 10
)

// ErrPinNotFound is returned when a pincode is absent from the directory.
var ErrPinNotFound = errors.New("pincode not found")

// Directory is an offline pincode directory loaded from gzip-compressed
// dataset shards. It backs pincode lookup and post office search when the
// backend lookup collaborator is unreachable.
//
// Shard line format (pipe-delimited):
//
//	pincode|office|city|district|state|country|lat|lon|villages;...|gram_panchayats;...
type Directory struct {
	mu      sync.RWMutex
	filter  *bloom.BloomFilter
	records map[string]*PinRecord
	offices []officeEntry
}

type officeEntry struct {
	name    string
	lowered string
	pincode string
}

// NewDirectory returns an empty directory; Load populates it.
func NewDirectory() *Directory {
	return &Directory{
		filter:  bloom.NewWithEstimates(directoryCapacity, directoryFPR),
		records: make(map[string]*PinRecord),
	}
}

// Load ingests every "*.gz" shard in dir concurrently, one goroutine per
// shard. It replaces the directory contents on success and leaves them
// untouched on failure.
func (d *Directory) Load(ctx context.Context, dir string) error {
	shards, err := filepath.Glob(filepath.Join(dir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "glob dataset shards")
	}
	if len(shards) == 0 {
		return errors.Errorf("no dataset shards in %s", dir)
	}
	sort.Strings(shards)

	results := make([][]*PinRecord, len(shards))

	g, ctx := errgroup.WithContext(ctx)
	for i, shard := range shards {
		g.Go(d.loadShard(ctx, i, shard, results))
	}
	if err := g.Wait(); err != nil {
		return err
	}

	filter := bloom.NewWithEstimates(directoryCapacity, directoryFPR)
	records := make(map[string]*PinRecord)
	var offices []officeEntry

	for _, recs := range results {
		for _, rec := range recs {
			filter.AddString(rec.Pincode)
			if existing, ok := records[rec.Pincode]; ok {
				existing.Villages = mergeNames(existing.Villages, rec.Villages)
				existing.GramPanchayats = mergeNames(existing.GramPanchayats, rec.GramPanchayats)
			} else {
				records[rec.Pincode] = rec
			}
			for _, v := range rec.Villages {
				offices = append(offices, officeEntry{
					name:    v,
					lowered: strings.ToLower(v),
					pincode: rec.Pincode,
				})
			}
		}
	}

	d.mu.Lock()
	d.filter = filter
	d.records = records
	d.offices = offices
	d.mu.Unlock()

	return nil
}

func (d *Directory) loadShard(ctx context.Context, idx int, path string, results [][]*PinRecord) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "open shard %s", path)
		}
		defer func() { _ = f.Close() }()

		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()

		var recs []*PinRecord
		scanner := bufio.NewScanner(gz)
		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, ok := parseRecord(scanner.Text())
			if !ok {
				continue
			}
			recs = append(recs, rec)
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan shard %s", path)
		}

		results[idx] = recs
		return nil
	}
}

// parseRecord parses one pipe-delimited dataset line. Malformed lines are
// skipped rather than failing the whole shard.
func parseRecord(line string) (*PinRecord, bool) {
	fields := strings.Split(line, "|")
	if len(fields) != recordFields {
		return nil, false
	}
	pin := strings.TrimSpace(fields[0])
	if len(pin) != pinLen {
		return nil, false
	}

	lat, _ := strconv.ParseFloat(fields[6], 64)
	lon, _ := strconv.ParseFloat(fields[7], 64)

	rec := &PinRecord{
		Pincode:        pin,
		City:           strings.TrimSpace(fields[2]),
		District:       strings.TrimSpace(fields[3]),
		State:          strings.TrimSpace(fields[4]),
		Country:        strings.TrimSpace(fields[5]),
		Lat:            lat,
		Lon:            lon,
		Villages:       splitNames(fields[8]),
		GramPanchayats: splitNames(fields[9]),
	}
	if office := strings.TrimSpace(fields[1]); office != "" {
		rec.Villages = mergeNames(rec.Villages, []string{office})
	}
	return rec, true
}

// Lookup returns the postal metadata for pin. The bloom filter screens out
// definite misses before touching the record map.
func (d *Directory) Lookup(pin string) (*PinRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.filter.TestString(pin) {
		return nil, ErrPinNotFound
	}
	rec, ok := d.records[pin]
	if !ok {
		// Bloom false positive.
		return nil, ErrPinNotFound
	}
	out := *rec
	return &out, nil
}

// SearchOffices returns village and gram panchayat candidates whose names
// contain query, optionally restricted to one pincode.
func (d *Directory) SearchOffices(query, pin string) OfficeMatches {
	q := strings.ToLower(strings.TrimSpace(query))

	d.mu.RLock()
	defer d.mu.RUnlock()

	var m OfficeMatches
	if q == "" {
		return m
	}

	seen := make(map[string]struct{})
	for _, office := range d.offices {
		if pin != "" && office.pincode != pin {
			continue
		}
		if !strings.Contains(office.lowered, q) {
			continue
		}
		if _, dup := seen[office.lowered]; dup {
			continue
		}
		seen[office.lowered] = struct{}{}
		m.Villages = append(m.Villages, office.name)
	}

	for _, rec := range d.records {
		if pin != "" && rec.Pincode != pin {
			continue
		}
		for _, gp := range rec.GramPanchayats {
			if !strings.Contains(strings.ToLower(gp), q) {
				continue
			}
			key := "gp:" + strings.ToLower(gp)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			m.GramPanchayats = append(m.GramPanchayats, gp)
		}
	}

	sort.Strings(m.Villages)
	sort.Strings(m.GramPanchayats)
	return m
}

// Len returns the number of distinct pincodes loaded.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}

func splitNames(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func mergeNames(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		seen[strings.ToLower(v)] = struct{}{}
	}
	for _, v := range src {
		if _, ok := seen[strings.ToLower(v)]; ok {
			continue
		}
		seen[strings.ToLower(v)] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}
