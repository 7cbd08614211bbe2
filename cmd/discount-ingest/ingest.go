package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"math/bits"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-orders/internal/catalog"
	"github.com/xenking/storefront-orders/internal/domain/discount"
)

const (
	defaultBloomCapacity = 10_000_000
	bloomFPR             = 0.001
	progressEvery        = 1_000_000
	// maxFiles is bounded by the width of the per-code file bitmask.
	maxFiles = bits.UintSize
)

type result struct {
	imported   int64
	duplicates int64
	invalid    int64
}

func (r *result) add(o result) {
	r.imported += o.imported
	r.duplicates += o.duplicates
	r.invalid += o.invalid
}

type ingester struct {
	w        catalog.DiscountWriter
	now      time.Time
	capacity uint
}

func newIngester(w catalog.DiscountWriter, now time.Time) *ingester {
	return &ingester{w: w, now: now, capacity: defaultBloomCapacity}
}

// ingest runs three passes over files. Pass 1 builds one bloom filter of
// codes per file. Pass 2 confirms which codes really occur in two or more
// files. Pass 3 upserts every valid record whose code is not one of them.
func (in *ingester) ingest(ctx context.Context, files []string) (result, error) {
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))
	filters, err := in.buildFilters(ctx, files)
	if err != nil {
		return result{}, errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: finding codes shared between files")
	dups, err := findDuplicates(ctx, files, filters)
	if err != nil {
		return result{}, errors.Wrap(err, "find duplicates")
	}
	slog.Info("shared codes found", slog.Int("count", len(dups)))

	slog.Info("pass 3: importing discounts")
	return in.importFiles(ctx, files, dups)
}

func (in *ingester) buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(in.capacity, bloomFPR)
			var count uint64
			if err := streamRecords(ctx, path, func(_ int, rec []string) error {
				if code := recordCode(rec); code != "" {
					filter.AddString(code)
					count++
					if count%progressEvery == 0 {
						slog.Info("pass 1 progress", slog.String("file", path), slog.Uint64("codes", count))
					}
				}
				return nil
			}); err != nil {
				return err
			}
			slog.Info("pass 1 complete", slog.String("file", path), slog.Uint64("codes", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findDuplicates re-streams each file and marks codes that test positive in
// another file's filter. Only codes marked by at least two files are real
// cross-file duplicates; single marks are bloom false positives.
func findDuplicates(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[string]struct{}, error) {
	masks := make([]map[string]uint, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			candidates := make(map[string]uint)
			bit := uint(1) << uint(i)
			if err := streamRecords(ctx, path, func(_ int, rec []string) error {
				code := recordCode(rec)
				if code == "" {
					return nil
				}
				for j, f := range filters {
					if j != i && f.TestString(code) {
						candidates[code] |= bit
						break
					}
				}
				return nil
			}); err != nil {
				return err
			}
			masks[i] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, m := range masks {
		for code, mask := range m {
			merged[code] |= mask
		}
	}
	dups := make(map[string]struct{})
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			dups[code] = struct{}{}
		}
	}
	return dups, nil
}

func (in *ingester) importFiles(ctx context.Context, files []string, dups map[string]struct{}) (result, error) {
	results := make([]result, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			var res result
			err := streamRecords(ctx, path, func(line int, rec []string) error {
				if _, dup := dups[recordCode(rec)]; dup {
					res.duplicates++
					return nil
				}
				d, err := in.parse(rec)
				if err != nil {
					res.invalid++
					slog.Warn("skipping invalid record",
						slog.String("file", path),
						slog.Int("line", line),
						slog.String("error", err.Error()),
					)
					return nil
				}
				if err := in.w.Upsert(ctx, d); err != nil {
					return errors.Wrapf(err, "%s:%d", path, line)
				}
				res.imported++
				return nil
			})
			if err != nil {
				return err
			}
			slog.Info("pass 3 complete", slog.String("file", path), slog.Int64("imported", res.imported))
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result{}, err
	}

	var total result
	for _, r := range results {
		total.add(r)
	}
	return total, nil
}

// parse turns CODE,kind,value[,usage_limit] into a validated discount.
func (in *ingester) parse(rec []string) (*discount.Discount, error) {
	if len(rec) < 3 || len(rec) > 4 {
		return nil, errors.Errorf("expected 3 or 4 fields, got %d", len(rec))
	}
	kind, err := discount.ParseKind(rec[1])
	if err != nil {
		return nil, err
	}
	value, err := decimal.NewFromString(strings.TrimSpace(rec[2]))
	if err != nil {
		return nil, errors.Wrap(err, "value")
	}
	draft := discount.Draft{
		Code:     strings.TrimSpace(rec[0]),
		Kind:     kind,
		Value:    value,
		IsActive: true,
	}
	if len(rec) == 4 && strings.TrimSpace(rec[3]) != "" {
		limit, err := strconv.ParseInt(strings.TrimSpace(rec[3]), 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "usage_limit")
		}
		draft.UsageLimit = &limit
	}
	return discount.FromDraft(catalog.DiscountID(draft.Code), draft, in.now)
}

func recordCode(rec []string) string {
	if len(rec) == 0 {
		return ""
	}
	return discount.NormalizeCode(rec[0])
}

// streamRecords calls fn for each CSV record of a gzip-compressed file.
// Lines starting with # are comments.
func streamRecords(ctx context.Context, path string, fn func(line int, rec []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(gz)
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		line, _ := r.FieldPos(0)
		if err := fn(line, rec); err != nil {
			return err
		}
	}
}
