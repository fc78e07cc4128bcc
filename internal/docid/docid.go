// Package docid provides product document IDs and SKU chunk tags.
package docid

import (
	"fmt"
	"regexp"
	"strings"
)

const sep = "#"

// skuMarker matches [SKU:xxx] tags and bare "SKU: XXX" references in chunk text.
var skuMarker = regexp.MustCompile(`(?i)\[SKU:([^\]]+)\]|SKU:\s*([A-Z0-9]+)`)

// DocumentID returns the stable ID for a product: "brand_code#sku".
// Same pair always yields the same ID. Used for keyword index and dedup keys.
func DocumentID(brandCode, sku string) string {
	return brandCode + sep + sku
}

// SplitDocumentID splits a "brand_code#sku" ID back into its parts.
func SplitDocumentID(id string) (brandCode, sku string, ok bool) {
	brandCode, sku, ok = strings.Cut(id, sep)
	if !ok || brandCode == "" || sku == "" {
		return "", "", false
	}
	return brandCode, sku, true
}

// TagChunk appends the SKU marker to a chunk so search results can be
// mapped back to their product.
func TagChunk(chunk, sku string) string {
	if sku == "" {
		return chunk
	}
	return fmt.Sprintf("%s [SKU:%s]", chunk, sku)
}

// ExtractSKU returns the SKU from the last [SKU:xxx] marker in the chunk,
// or "" when the chunk carries no marker.
func ExtractSKU(chunk string) string {
	matches := skuMarker.FindAllStringSubmatch(chunk, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		if m := matches[i][1]; m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

// FindSKUs returns every SKU referenced in the chunk, uppercased,
// from both [SKU:xxx] markers and bare "SKU: XXX" references.
func FindSKUs(chunk string) []string {
	matches := skuMarker.FindAllStringSubmatch(chunk, -1)
	if len(matches) == 0 {
		return nil
	}
	skus := make([]string, 0, len(matches))
	for _, m := range matches {
		sku := m[1]
		if sku == "" {
			sku = m[2]
		}
		sku = strings.ToUpper(strings.TrimSpace(sku))
		if sku != "" {
			skus = append(skus, sku)
		}
	}
	return skus
}

// StripTag removes a trailing [SKU:xxx] marker from the chunk text.
func StripTag(chunk string) string {
	if i := strings.LastIndex(chunk, "[SKU:"); i >= 0 && strings.HasSuffix(chunk, "]") {
		return strings.TrimSpace(chunk[:i])
	}
	return chunk
}
