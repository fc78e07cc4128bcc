package indexer

import (
	"strings"
	"testing"
)

func TestPreprocess(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  hello   world  ", "hello world"},
		{"a\tb\n\nc", "a b c"},
		{"这是  一款\n运动鞋", "这是 一款 运动鞋"},
		{"", ""},
		{"   \n\t ", ""},
	}
	for _, tt := range tests {
		if got := Preprocess(tt.in); got != tt.want {
			t.Errorf("Preprocess(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChunker_ShortTextRoundTrip(t *testing.T) {
	c := NewChunker(300, 50)
	got := c.Chunk("  这是一款黑色的运动鞋。  ")
	if len(got) != 1 || got[0] != "这是一款黑色的运动鞋。" {
		t.Errorf("short text should come back as one trimmed chunk, got %v", got)
	}
}

func TestChunker_EmptyInput(t *testing.T) {
	c := NewChunker(300, 50)
	if got := c.Chunk(""); got != nil {
		t.Errorf("empty input should produce no chunks, got %v", got)
	}
	if got := c.Chunk("   \n\t "); got != nil {
		t.Errorf("whitespace input should produce no chunks, got %v", got)
	}
}

func TestChunker_BreaksAtPunctuation(t *testing.T) {
	sentence := "春夏秋冬年月日时。"
	text := strings.Repeat(sentence, 4)

	c := NewChunker(20, 5)
	chunks := c.Chunk(text)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != sentence+sentence {
		t.Errorf("first chunk should break after the sentence mark, got %q", chunks[0])
	}
	for i, ch := range chunks {
		if !strings.HasSuffix(ch, "。") {
			t.Errorf("chunk %d should end at a sentence mark, got %q", i, ch)
		}
		if n := len([]rune(ch)); n > 20 {
			t.Errorf("chunk %d has %d runes, want <= 20", i, n)
		}
	}
}

func TestChunker_HardCutWithoutBreaks(t *testing.T) {
	text := strings.Repeat("鞋", 30)
	c := NewChunker(20, 5)
	chunks := c.Chunk(text)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if len([]rune(chunks[0])) != 20 {
		t.Errorf("first chunk should hard-cut at 20 runes, got %d", len([]rune(chunks[0])))
	}
	prev, cur := []rune(chunks[0]), []rune(chunks[1])
	if string(prev[len(prev)-5:]) != string(cur[:5]) {
		t.Error("consecutive chunks should share the overlap")
	}
}

func TestChunker_LongTextProperties(t *testing.T) {
	text := strings.Repeat("这是一段很长的商品描述", 50)
	c := NewChunker(300, 50)
	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		n := len([]rune(ch))
		if n == 0 {
			t.Errorf("chunk %d is empty", i)
		}
		if n > 300 {
			t.Errorf("chunk %d has %d runes, want <= 300", i, n)
		}
		if strings.TrimSpace(ch) != ch {
			t.Errorf("chunk %d is not trimmed: %q", i, ch)
		}
	}
	// the text has no break runes, so cuts are hard boundaries and each
	// pair of neighbors shares exactly the overlap
	for i := 1; i < len(chunks); i++ {
		prev, cur := []rune(chunks[i-1]), []rune(chunks[i])
		if string(prev[len(prev)-50:]) != string(cur[:50]) {
			t.Errorf("chunks %d and %d do not overlap by 50 runes", i-1, i)
		}
	}
}

func TestChunker_ForwardProgress(t *testing.T) {
	text := strings.Repeat("货", 100)
	c := NewChunker(10, 9)
	chunks := c.Chunk(text)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, ch := range chunks {
		if n := len([]rune(ch)); n > 10 {
			t.Errorf("chunk %d has %d runes, want <= 10", i, n)
		}
	}
}

func TestChunker_ChunkAll(t *testing.T) {
	c := NewChunker(300, 50)
	got := c.ChunkAll([]string{"第一段", "", strings.Repeat("长文本", 200)})
	if len(got) < 3 {
		t.Fatalf("expected flattened chunks, got %d", len(got))
	}
	if got[0] != "第一段" {
		t.Errorf("input order should be preserved, got %q first", got[0])
	}
}

func TestNewChunker_Clamps(t *testing.T) {
	c := NewChunker(0, -1)
	if c.chunkSize != DefaultChunkSize {
		t.Errorf("zero size should fall back to default, got %d", c.chunkSize)
	}
	if c.chunkOverlap != 0 {
		t.Errorf("negative overlap should clamp to 0, got %d", c.chunkOverlap)
	}
	c = NewChunker(10, 20)
	if c.chunkOverlap >= c.chunkSize {
		t.Errorf("overlap %d should clamp below size %d", c.chunkOverlap, c.chunkSize)
	}
}
