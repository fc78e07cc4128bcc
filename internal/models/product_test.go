package models

import (
	"reflect"
	"testing"
)

func TestProduct_AttrString(t *testing.T) {
	p := &Product{Attributes: map[string]interface{}{
		"category": "运动鞋",
		"season":   "  夏季  ",
		"blank":    "   ",
		"number":   42,
	}}
	if got := p.AttrString("category"); got != "运动鞋" {
		t.Errorf("AttrString(category) = %q", got)
	}
	if got := p.AttrString("season"); got != "夏季" {
		t.Errorf("AttrString should trim, got %q", got)
	}
	if got := p.AttrString("missing", "category"); got != "运动鞋" {
		t.Errorf("AttrString should fall through to later keys, got %q", got)
	}
	if got := p.AttrString("blank"); got != "" {
		t.Errorf("whitespace-only value should read as empty, got %q", got)
	}
	if got := p.AttrString("number"); got != "" {
		t.Errorf("non-string value should read as empty, got %q", got)
	}
	empty := &Product{}
	if got := empty.AttrString("category"); got != "" {
		t.Errorf("nil attributes should read as empty, got %q", got)
	}
}

func TestProduct_AttrStrings(t *testing.T) {
	tests := []struct {
		name  string
		attrs map[string]interface{}
		keys  []string
		want  []string
	}{
		{
			"json array",
			map[string]interface{}{"colors": []interface{}{"黑色", "白色"}},
			[]string{"colors", "颜色"},
			[]string{"黑色", "白色"},
		},
		{
			"comma separated string",
			map[string]interface{}{"颜色": "黑色, 白色 ,红色"},
			[]string{"colors", "颜色"},
			[]string{"黑色", "白色", "红色"},
		},
		{
			"string slice",
			map[string]interface{}{"style": []string{"休闲", " 百搭 "}},
			[]string{"style"},
			[]string{"休闲", "百搭"},
		},
		{
			"skips nil and blank entries",
			map[string]interface{}{"colors": []interface{}{nil, " ", "黑色"}},
			[]string{"colors"},
			[]string{"黑色"},
		},
		{
			"missing key",
			map[string]interface{}{},
			[]string{"colors"},
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Product{Attributes: tt.attrs}
			got := p.AttrStrings(tt.keys...)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AttrStrings(%v) = %v, want %v", tt.keys, got, tt.want)
			}
		})
	}
}

func TestProduct_Colors(t *testing.T) {
	p := &Product{Attributes: map[string]interface{}{"color": "黑色"}}
	if got := p.Colors(); !reflect.DeepEqual(got, []string{"黑色"}) {
		t.Errorf("Colors() should fall back to single color, got %v", got)
	}
	p = &Product{Attributes: map[string]interface{}{
		"color":  "黑色",
		"colors": []interface{}{"白色", "红色"},
	}}
	if got := p.Colors(); !reflect.DeepEqual(got, []string{"白色", "红色"}) {
		t.Errorf("Colors() should prefer the list, got %v", got)
	}
	if got := (&Product{}).Colors(); got != nil {
		t.Errorf("Colors() on bare product = %v, want nil", got)
	}
}

func TestProduct_Styles(t *testing.T) {
	p := &Product{
		Tags: []string{"休闲", "透气", "休闲"},
		Attributes: map[string]interface{}{
			"风格": "运动,休闲",
		},
	}
	got := p.Styles()
	want := []string{"休闲", "透气", "运动"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Styles() = %v, want %v", got, want)
	}
}

func TestProduct_ChineseKeyFallbacks(t *testing.T) {
	p := &Product{Attributes: map[string]interface{}{
		"类目": "连衣裙",
		"季节": "春季",
		"材质": "棉",
		"场景": "通勤",
	}}
	if got := p.Category(); got != "连衣裙" {
		t.Errorf("Category() = %q", got)
	}
	if got := p.Season(); got != "春季" {
		t.Errorf("Season() = %q", got)
	}
	if got := p.Material(); got != "棉" {
		t.Errorf("Material() = %q", got)
	}
	if got := p.Scene(); got != "通勤" {
		t.Errorf("Scene() = %q", got)
	}
}
