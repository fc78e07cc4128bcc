// Package keyword provides the Bleve implementation of Index.
package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/orbitblue/nitamono/internal/docid"
	"github.com/orbitblue/nitamono/internal/models"
)

// DefaultSearchLimit is used when a caller passes a non-positive limit.
const DefaultSearchLimit = 10

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// productDoc is the flat shape handed to Bleve. Field names line up with
// the document mapping in NewBleveIndex.
type productDoc struct {
	BrandCode   string   `json:"brand_code"`
	SKU         string   `json:"sku"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

func newProductDoc(p *models.Product) *productDoc {
	return &productDoc{
		BrandCode:   p.BrandCode,
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		Tags:        p.Tags,
	}
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// opened and reused so imports stay incremental. If the mapping in code
// changes, remove the index directory to force a rebuild.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// The cjk analyzer bigrams han runs, which is what catalog names and
	// descriptions mostly are; latin terms still lowercase and tokenize.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = cjk.AnalyzerName
	docMapping.AddFieldMappingsAt("name", textFieldMapping)
	docMapping.AddFieldMappingsAt("description", textFieldMapping)
	docMapping.AddFieldMappingsAt("tags", textFieldMapping)

	// brand_code and sku are exact filters, never free text.
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("brand_code", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("sku", keywordFieldMapping)

	im.AddDocumentMapping("product", docMapping)
	im.DefaultType = "product"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes one product under its brand#sku document id.
func (b *BleveIndex) Index(ctx context.Context, p *models.Product) error {
	return b.index.Index(docid.DocumentID(p.BrandCode, p.SKU), newProductDoc(p))
}

// BatchIndex indexes products in one Bleve batch.
func (b *BleveIndex) BatchIndex(ctx context.Context, products []*models.Product) error {
	batch := b.index.NewBatch()
	for _, p := range products {
		if err := batch.Index(docid.DocumentID(p.BrandCode, p.SKU), newProductDoc(p)); err != nil {
			return fmt.Errorf("failed to batch product %s/%s: %w", p.BrandCode, p.SKU, err)
		}
	}
	return b.index.Batch(batch)
}

// Delete removes a product from the index.
func (b *BleveIndex) Delete(ctx context.Context, brandCode, sku string) error {
	return b.index.Delete(docid.DocumentID(brandCode, sku))
}

// Search matches query against name, description, tags and exact SKU. A
// non-empty brandCode restricts hits to that brand. Match queries are
// field-scoped so each field's analyzer handles the query text.
func (b *BleveIndex) Search(ctx context.Context, brandCode, query string, limit int) ([]*Match, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	nameQ := bleve.NewMatchQuery(query)
	nameQ.SetField("name")
	descQ := bleve.NewMatchQuery(query)
	descQ.SetField("description")
	tagsQ := bleve.NewMatchQuery(query)
	tagsQ.SetField("tags")
	skuQ := bleve.NewTermQuery(query)
	skuQ.SetField("sku")

	var q blevequery.Query = bleve.NewDisjunctionQuery(nameQ, descQ, tagsQ, skuQ)
	if brandCode != "" {
		brandQ := bleve.NewTermQuery(brandCode)
		brandQ.SetField("brand_code")
		q = bleve.NewConjunctionQuery(brandQ, q)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"name"}
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]*Match, 0, len(results.Hits))
	for _, hit := range results.Hits {
		m := &Match{Score: hit.Score}
		if brand, sku, ok := docid.SplitDocumentID(hit.ID); ok {
			m.BrandCode, m.SKU = brand, sku
		}
		if name, ok := hit.Fields["name"].(string); ok {
			m.Name = name
		}
		out = append(out, m)
	}
	return out, nil
}

// Count returns the number of indexed products.
func (b *BleveIndex) Count() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
