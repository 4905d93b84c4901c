// Command catalog-ingest bulk-loads product catalog dumps into the database.
//
// Dumps are gzip-compressed JSONL files (one product record per line). The
// same product can appear in several dumps when category exports overlap;
// the first occurrence wins. Files are parsed concurrently, then written
// sequentially. Every record goes through the ON CONFLICT DO NOTHING insert,
// which is the sole dedupe authority; a bloom filter tracks ids attempted in
// this run so the summary can split cross-file overlap from rows the
// database already held. The filter never gates a write.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgconn"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/shoporder/internal/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

const insertProductSQL = `INSERT INTO products (id, title, price, category, stock_count, image_thumb, image_hi_res)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO NOTHING`

// productRecord is one parsed catalog line.
type productRecord struct {
	ID       string
	Title    string
	Price    decimal.Decimal
	Category string
	Stock    int
	Thumb    string
	HiRes    string
}

// fileResult holds the records parsed from a single dump file.
type fileResult struct {
	records []productRecord
	skipped int
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing catalog*.jsonl.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "catalog*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "glob data dir")
	}
	if len(files) == 0 {
		return errors.Errorf("no catalog*.jsonl.gz files in %s", dataDir)
	}

	slog.Info("parsing catalog dumps", slog.Int("files", len(files)))

	results, err := parseFiles(ctx, files)
	if err != nil {
		return errors.Wrap(err, "parse catalog dumps")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := writeProducts(ctx, pool, results); err != nil {
		return errors.Wrap(err, "write products")
	}

	return nil
}

// parseFiles decodes every dump file concurrently.
func parseFiles(ctx context.Context, files []string) ([]fileResult, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(parseFile(ctx, i, f, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func parseFile(ctx context.Context, idx int, path string, results []fileResult) func() error {
	return func() error {
		var res fileResult
		var count uint64

		if err := streamGzFile(ctx, path, func(line []byte) {
			rec, err := parseProduct(line)
			if err != nil {
				res.skipped++
				return
			}

			res.records = append(res.records, rec)
			count++
			if count%progressEvery == 0 {
				slog.Info("parse progress",
					slog.String("file", filepath.Base(path)),
					slog.Uint64("records", count),
				)
			}
		}); err != nil {
			return errors.Wrapf(err, "parse %s", path)
		}

		slog.Info("parse complete",
			slog.String("file", filepath.Base(path)),
			slog.Int("records", len(res.records)),
			slog.Int("skipped", res.skipped),
		)

		results[idx] = res
		return nil
	}
}

// parseProduct decodes one JSONL catalog record. Records without an ASIN,
// title or price are rejected.
func parseProduct(line []byte) (productRecord, error) {
	var rec productRecord

	d := jx.DecodeBytes(line)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "parent_asin":
			rec.ID, err = d.Str()
		case "title":
			rec.Title, err = d.Str()
		case "price":
			rec.Price, err = decodePrice(d)
		case "main_category":
			rec.Category, err = d.Str()
		case "stock_count":
			rec.Stock, err = d.Int()
		case "images":
			err = d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "thumb":
					rec.Thumb, err = d.Str()
				case "hi_res":
					rec.HiRes, err = d.Str()
				default:
					err = d.Skip()
				}
				return err
			})
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return rec, err
	}

	if rec.ID == "" || rec.Title == "" || rec.Price.IsZero() {
		return rec, errors.New("incomplete record")
	}
	return rec, nil
}

// decodePrice accepts the price as either a JSON number or a string.
func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	default:
		return decimal.Zero, errors.Errorf("unexpected price type %v", d.Next())
	}
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line []byte)) error {
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

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<24)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Bytes())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// execer is the subset of pgxpool.Pool used by writeProducts.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// writeProducts inserts parsed records in file order, first occurrence wins.
// The insert runs for every record: skipping on a bloom positive would drop
// a unique product on a false positive, so the filter only feeds the overlap
// counter and the database decides what is actually a duplicate.
func writeProducts(ctx context.Context, db execer, results []fileResult) error {
	total := 0
	for _, r := range results {
		total += len(r.records)
	}
	slog.Info("writing products to database", slog.Int("parsed", total))

	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	written, duplicates, overlap := 0, 0, 0

	for _, r := range results {
		for _, rec := range r.records {
			if seen.TestString(rec.ID) {
				overlap++
			} else {
				seen.AddString(rec.ID)
			}

			tag, err := db.Exec(ctx, insertProductSQL,
				rec.ID, rec.Title, rec.Price, rec.Category, rec.Stock,
				rec.Thumb, rec.HiRes,
			)
			if err != nil {
				return errors.Wrapf(err, "insert product %s", rec.ID)
			}
			if tag.RowsAffected() == 0 {
				duplicates++
				continue
			}

			written++
			if written%progressEvery == 0 {
				slog.Info("write progress", slog.Int("written", written))
			}
		}
	}

	slog.Info("write complete",
		slog.Int("written", written),
		slog.Int("duplicates", duplicates),
		slog.Int("cross_file_overlap", overlap),
	)
	return nil
}
