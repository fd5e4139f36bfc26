// Package importer loads product feeds into the catalog.
//
// A feed is a gzip-compressed JSON Lines file, one product per line. Feeds
// are decoded concurrently and then applied in the order given, so when two
// feeds carry the same SKU the first one wins. SKUs already in the catalog
// are skipped.
package importer

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/chezflora/internal/domain/apperr"
	"github.com/xenking/chezflora/internal/domain/catalog"
)

const (
	bloomFPR      = 0.001
	minBloomItems = 1024
	maxLineBytes  = 1 << 20
	progressEvery = 1000
)

// Record is one feed line.
type Record struct {
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url"`
	IsActive    *bool           `json:"is_active"`
}

// Catalog creates products and categories with the usual validation.
type Catalog interface {
	CreateProduct(ctx context.Context, in catalog.ProductInput) (*catalog.Product, error)
	CreateCategory(ctx context.Context, in catalog.CategoryInput) (*catalog.Category, error)
}

// SKUs reports the SKUs already stored.
type SKUs interface {
	ListSKUs(ctx context.Context) ([]string, error)
	SKUExists(ctx context.Context, sku, excludeID string) (bool, error)
}

// Categories lists the categories feed lines may refer to by name.
type Categories interface {
	ListActive(ctx context.Context) ([]catalog.Category, error)
}

// Stats summarises an import.
type Stats struct {
	Read       int
	Created    int
	Duplicates int
	Rejected   int
	Categories int
}

// Importer applies product feeds.
type Importer struct {
	catalog    Catalog
	skus       SKUs
	categories Categories
	lg         *zap.Logger
}

// New creates an Importer.
func New(c Catalog, skus SKUs, categories Categories, lg *zap.Logger) *Importer {
	return &Importer{catalog: c, skus: skus, categories: categories, lg: lg}
}

type feed struct {
	path    string
	records []Record
	bad     int
}

// Import decodes every file and creates the products they describe.
// Malformed lines and products failing validation are counted as rejected
// and logged. Storage failures abort the import.
func (im *Importer) Import(ctx context.Context, files []string) (Stats, error) {
	feeds, err := im.decodeAll(ctx, files)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, f := range feeds {
		stats.Read += len(f.records) + f.bad
		stats.Rejected += f.bad
	}

	existing, err := im.skus.ListSKUs(ctx)
	if err != nil {
		return stats, errors.Wrap(err, "list existing skus")
	}
	seen := bloom.NewWithEstimates(uint(max(stats.Read+len(existing), minBloomItems)), bloomFPR)
	for _, sku := range existing {
		seen.AddString(sku)
	}

	categories, err := im.loadCategories(ctx)
	if err != nil {
		return stats, err
	}

	done := 0
	for _, f := range feeds {
		lg := im.lg.With(zap.String("feed", f.path))
		for _, rec := range f.records {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			created, err := im.apply(ctx, rec, seen, categories, &stats)
			if err != nil {
				ae, ok := apperr.As(err)
				if !ok {
					return stats, errors.Wrapf(err, "import %s", rec.SKU)
				}
				stats.Rejected++
				lg.Warn("Product rejected", zap.String("sku", rec.SKU), zap.String("reason", ae.Message))
			}
			if created {
				stats.Created++
			}
			done++
			if done%progressEvery == 0 {
				im.lg.Info("Import progress", zap.Int("processed", done), zap.Int("created", stats.Created))
			}
		}
	}
	return stats, nil
}

func (im *Importer) apply(ctx context.Context, rec Record, seen *bloom.BloomFilter, categories map[string]string, stats *Stats) (bool, error) {
	rec.SKU = strings.TrimSpace(rec.SKU)
	if rec.SKU == "" {
		return false, apperr.Invalid("SKU is required")
	}
	if seen.TestOrAddString(rec.SKU) {
		// Possibly seen: confirm against the database before skipping.
		exists, err := im.skus.SKUExists(ctx, rec.SKU, "")
		if err != nil {
			return false, err
		}
		if exists {
			stats.Duplicates++
			return false, nil
		}
	}

	in := catalog.ProductInput{
		Name:        &rec.Name,
		Description: &rec.Description,
		Price:       &rec.Price,
		Stock:       &rec.Stock,
		SKU:         &rec.SKU,
		IsActive:    rec.IsActive,
	}
	if name := strings.TrimSpace(rec.Category); name != "" {
		id, err := im.categoryID(ctx, name, categories, stats)
		if err != nil {
			return false, err
		}
		in.CategoryID = &id
	}
	if rec.ImageURL != "" {
		in.Images = &[]catalog.Image{{URL: rec.ImageURL, IsPrimary: true}}
	}

	if _, err := im.catalog.CreateProduct(ctx, in); err != nil {
		return false, err
	}
	return true, nil
}

func (im *Importer) loadCategories(ctx context.Context) (map[string]string, error) {
	list, err := im.categories.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	byName := make(map[string]string, len(list))
	for _, c := range list {
		byName[strings.ToLower(c.Name)] = c.ID
	}
	return byName, nil
}

// categoryID resolves a category by case-insensitive name, creating it when
// missing.
func (im *Importer) categoryID(ctx context.Context, name string, byName map[string]string, stats *Stats) (string, error) {
	key := strings.ToLower(name)
	if id, ok := byName[key]; ok {
		return id, nil
	}
	c, err := im.catalog.CreateCategory(ctx, catalog.CategoryInput{Name: &name})
	if err != nil {
		return "", err
	}
	byName[key] = c.ID
	stats.Categories++
	im.lg.Info("Category created", zap.String("name", name), zap.String("id", c.ID))
	return c.ID, nil
}

func (im *Importer) decodeAll(ctx context.Context, files []string) ([]feed, error) {
	feeds := make([]feed, len(files))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			f, err := im.decodeFile(ctx, path)
			if err != nil {
				return errors.Wrapf(err, "decode %s", path)
			}
			feeds[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return feeds, nil
}

func (im *Importer) decodeFile(ctx context.Context, path string) (feed, error) {
	file, err := os.Open(path)
	if err != nil {
		return feed{}, errors.Wrap(err, "open")
	}
	defer func() { _ = file.Close() }()

	f := feed{path: path}
	err = Decode(ctx, file, func(line int, rec Record, err error) {
		if err != nil {
			f.bad++
			im.lg.Warn("Malformed feed line",
				zap.String("feed", path),
				zap.Int("line", line),
				zap.Error(err),
			)
			return
		}
		f.records = append(f.records, rec)
	})
	if err != nil {
		return feed{}, err
	}
	im.lg.Info("Feed decoded",
		zap.String("feed", path),
		zap.Int("records", len(f.records)),
		zap.Int("malformed", f.bad),
	)
	return f, nil
}

// Decode streams a gzip-compressed JSON Lines feed, calling fn for each
// non-blank line with its 1-based number. Per-line decode errors are passed
// to fn and do not stop decoding.
func Decode(ctx context.Context, r io.Reader, fn func(line int, rec Record, err error)) error {
	gz, err := pgzip.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "gzip reader")
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			fn(line, Record{}, err)
			continue
		}
		fn(line, rec, nil)
	}
	return errors.Wrap(scanner.Err(), "scan")
}
