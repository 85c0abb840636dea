package profile

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestInternStringDedup(t *testing.T) {
	p := New("test")
	a := p.InternString("foo")
	b := p.InternString("foo")
	c := p.InternString("bar")
	if a != b {
		t.Fatalf("equal strings got different handles: %d != %d", a, b)
	}
	if a == c {
		t.Fatalf("different strings got the same handle")
	}
}

func TestInternLabelFrameDedup(t *testing.T) {
	p := New("test")
	a := p.InternLabelFrame("root")
	b := p.InternLabelFrame("root")
	if a != b {
		t.Fatalf("equal label frames got different handles")
	}
}

func TestInternSymbolicFrameTieBreak(t *testing.T) {
	p := New("test")
	base := SymbolicFrame{Binary: "m", SymbolAddress: 0x1000, SymbolName: "foo", FilePath: "/src/a.cc", Line: 10, InlineDepth: 0}
	a := p.InternSymbolicFrame(base)
	same := p.InternSymbolicFrame(base)
	if a != same {
		t.Fatalf("identical symbolic frames got different handles")
	}

	diffLine := base
	diffLine.Line = 11
	b := p.InternSymbolicFrame(diffLine)
	if a == b {
		t.Fatalf("siblings sharing a name but differing in source location must remain distinct")
	}
}

func TestInternStackDedup(t *testing.T) {
	p := New("test")
	frame := p.InternLabelFrame("root")
	s1 := p.InternStack(NoStack, frame)
	s2 := p.InternStack(NoStack, frame)
	if s1 != s2 {
		t.Fatalf("equal (parent, frame) pairs got different stack handles")
	}

	child := p.InternLabelFrame("child")
	s3 := p.InternStack(s1, child)
	s4 := p.InternStack(s2, child)
	if s3 != s4 {
		t.Fatalf("stacks built from equal prefixes did not converge to one handle")
	}
}

func TestAddSampleAndTotalWeight(t *testing.T) {
	p := New("test")
	root := p.InternStack(NoStack, p.InternLabelFrame("root"))
	p.AddSample(0, root, 16)
	p.AddSample(16, root, 32)
	p.AddSample(48, root, 0)

	if got, want := p.TotalWeight(), uint64(48); got != want {
		t.Fatalf("TotalWeight() = %d, want %d", got, want)
	}
	if got, want := p.SampleCount(), 3; got != want {
		t.Fatalf("SampleCount() = %d, want %d", got, want)
	}
}

func TestWriteJSONShape(t *testing.T) {
	p := New("mybinary")
	root := p.InternStack(NoStack, p.InternLabelFrame("root"))
	text := p.InternStack(root, p.InternLabelFrame(".text"))
	fn := p.InternSymbolicFrame(SymbolicFrame{Binary: "m", SymbolAddress: 0x400, SymbolName: "foo", FilePath: "/src/a.cc", Line: 5})
	stack := p.InternStack(text, fn)
	p.AddSample(0, stack, 16)

	var buf bytes.Buffer
	if err := p.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var doc struct {
		Meta struct {
			WeightType   string `json:"weightType"`
			IntervalUnit string `json:"intervalUnit"`
		} `json:"meta"`
		Threads []struct {
			Name        string   `json:"name"`
			StringTable []string `json:"stringTable"`
			Samples     struct {
				Weight []uint64 `json:"weight"`
			} `json:"samples"`
		} `json:"threads"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if doc.Meta.WeightType != "bytes" || doc.Meta.IntervalUnit != "bytes" {
		t.Fatalf("expected byte-typed weight/interval, got %+v", doc.Meta)
	}
	if len(doc.Threads) != 1 || doc.Threads[0].Name != "mybinary" {
		t.Fatalf("unexpected thread table: %+v", doc.Threads)
	}
	if len(doc.Threads[0].Samples.Weight) != 1 || doc.Threads[0].Samples.Weight[0] != 16 {
		t.Fatalf("unexpected sample weights: %+v", doc.Threads[0].Samples)
	}
}
