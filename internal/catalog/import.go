package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/orbitblue/nitamono/internal/models"
	"github.com/orbitblue/nitamono/internal/storage"
)

// ImportOption configures an import run.
type ImportOption func(*importer)

// WithLogger sets the logger used for skipped-row warnings.
func WithLogger(logger *zap.Logger) ImportOption {
	return func(imp *importer) {
		imp.logger = logger
	}
}

type importer struct {
	logger *zap.Logger
}

// ImportXLSX reads products from the first sheet of an xlsx workbook and
// upserts them in one batch. The header row names the columns: brand_code,
// sku, name, price, tags, attributes, description, image_url, on_sale.
// Rows without brand_code or sku are skipped with a warning. Returns the
// number of products written.
func ImportXLSX(ctx context.Context, path string, store storage.Storage, opts ...ImportOption) (int, error) {
	imp := &importer{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(imp)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return 0, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return 0, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return 0, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return 0, fmt.Errorf("sheet %q has no data rows", sheets[0])
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			col[name] = i
		}
	}
	if _, ok := col["brand_code"]; !ok {
		return 0, fmt.Errorf("sheet %q is missing the brand_code column", sheets[0])
	}
	if _, ok := col["sku"]; !ok {
		return 0, fmt.Errorf("sheet %q is missing the sku column", sheets[0])
	}

	cell := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var inputs []*models.ProductInput
	for i, row := range rows[1:] {
		rowNum := i + 2
		if emptyRow(row) {
			continue
		}
		brand, sku := cell(row, "brand_code"), cell(row, "sku")
		if brand == "" || sku == "" {
			imp.logger.Warn("skipping row without brand_code or sku",
				zap.String("file", path), zap.Int("row", rowNum))
			continue
		}

		in := &models.ProductInput{
			BrandCode:   brand,
			SKU:         sku,
			Name:        cell(row, "name"),
			Description: cell(row, "description"),
			ImageURL:    cell(row, "image_url"),
			Tags:        splitTags(cell(row, "tags")),
		}
		if s := cell(row, "price"); s != "" {
			price, err := strconv.ParseFloat(s, 64)
			if err != nil {
				imp.logger.Warn("unparseable price, keeping 0",
					zap.String("file", path), zap.Int("row", rowNum), zap.String("price", s))
			} else {
				in.Price = price
			}
		}
		if s := cell(row, "attributes"); s != "" {
			if err := json.Unmarshal([]byte(s), &in.Attributes); err != nil {
				imp.logger.Warn("unparseable attributes json, keeping empty",
					zap.String("file", path), zap.Int("row", rowNum), zap.Error(err))
			}
		}
		if s := cell(row, "on_sale"); s != "" {
			onSale, err := strconv.ParseBool(s)
			if err != nil {
				imp.logger.Warn("unparseable on_sale flag, keeping stored value",
					zap.String("file", path), zap.Int("row", rowNum), zap.String("on_sale", s))
			} else {
				in.OnSale = &onSale
			}
		}
		inputs = append(inputs, in)
	}

	written, err := store.BatchUpsertProducts(ctx, inputs)
	if err != nil {
		return 0, fmt.Errorf("upsert imported products: %w", err)
	}
	imp.logger.Info("imported products",
		zap.String("file", path),
		zap.Int("rows", len(rows)-1),
		zap.Int("written", written))
	return written, nil
}

// splitTags accepts 、, ， or whitespace separated tag lists.
func splitTags(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '、' || r == ',' || r == '，' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func emptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
