// Package catalog turns product rows into the text the vector index embeds,
// and imports product spreadsheets into storage.
package catalog

import (
	"strconv"
	"strings"

	"github.com/orbitblue/nitamono/internal/models"
)

// BuildText renders one product as a natural-language description. Queries
// are built from vision features in the same register, which is what makes
// embeddings of the two comparable.
func BuildText(p *models.Product) string {
	if p == nil {
		return ""
	}
	category := p.Category()
	color := ""
	if colors := p.Colors(); len(colors) > 0 {
		color = colors[0]
	}

	var parts []string
	switch {
	case category != "" && color != "":
		parts = append(parts, "这是一款"+color+"的"+category)
	case category != "":
		parts = append(parts, "这是一款"+category)
	case color != "":
		parts = append(parts, "这是一款"+color+"的商品")
	case p.Name != "":
		parts = append(parts, "这是"+p.Name)
	}

	if p.Name != "" && !anyContains(parts, p.Name) {
		parts = append(parts, "商品名称："+p.Name)
	}

	var tags []string
	for _, t := range p.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) > 0 {
		parts = append(parts, "具有"+strings.Join(tags, "、")+"的特点")
	}

	scene, season := p.Scene(), p.Season()
	switch {
	case scene != "" && season != "":
		parts = append(parts, "适合"+season+scene+"穿着")
	case scene != "":
		parts = append(parts, "适合"+scene+"场景")
	case season != "":
		parts = append(parts, "适合"+season+"穿着")
	}

	if m := p.Material(); m != "" {
		parts = append(parts, "材质为"+m)
	}
	if d := strings.TrimSpace(p.Description); d != "" {
		parts = append(parts, d)
	}
	if p.Price > 0 {
		parts = append(parts, "价格为"+strconv.FormatFloat(p.Price, 'f', -1, 64)+"元")
	}

	if len(parts) == 0 {
		return ""
	}
	text := strings.Join(parts, "，") + "。"
	if p.SKU != "" {
		text += "商品编号：" + p.SKU + "。"
	}
	return text
}

func anyContains(parts []string, s string) bool {
	for _, part := range parts {
		if strings.Contains(part, s) {
			return true
		}
	}
	return false
}
