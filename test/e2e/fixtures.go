// Package e2e provides end-to-end tests; this file renders catalogs as xlsx
// workbooks in the layout the import endpoint expects.
package e2e

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CatalogColumns is the header row of an import workbook.
var CatalogColumns = []string{
	"brand_code", "sku", "name", "price", "tags",
	"attributes", "description", "image_url", "on_sale",
}

// WriteCatalogXLSX writes products as an xlsx workbook at path, one product
// per row under a CatalogColumns header.
func WriteCatalogXLSX(path string, products []CatalogProduct) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]interface{}, len(CatalogColumns))
	for i, c := range CatalogColumns {
		header[i] = c
	}
	if err := f.SetSheetRow("Sheet1", "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := range products {
		p := &products[i]
		attrs, err := json.Marshal(p.attributes())
		if err != nil {
			return fmt.Errorf("encode attributes for %s: %w", p.SKU, err)
		}
		row := []interface{}{
			p.BrandCode,
			p.SKU,
			p.Name,
			strconv.FormatFloat(p.Price, 'f', -1, 64),
			strings.Join(p.Tags, "、"),
			string(attrs),
			p.Description,
			"",
			strconv.FormatBool(p.OnSale),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	return f.SaveAs(path)
}
