package model

import (
	"testing"
	"time"
)

func sampleResult() *Result {
	b := NewBuilder("/src")
	b.Add(Element{Path: "/src/a.txt", RelPath: "a.txt", Kind: KindFile, Size: 3})
	b.Add(Element{Path: "/src/b", RelPath: "b", Kind: KindDir})
	b.Add(Element{Path: "/src/b/c.txt", RelPath: "b/c.txt", Kind: KindFile, Size: 5})
	return b.Build()
}

func TestBuilder_CountsKinds(t *testing.T) {
	r := sampleResult()
	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
	if r.Files() != 2 || r.Dirs() != 1 {
		t.Fatalf("Files/Dirs = %d/%d, want 2/1", r.Files(), r.Dirs())
	}
	if r.Root() != "/src" {
		t.Fatalf("Root() = %q", r.Root())
	}
	if !r.At(1).IsDir() || r.At(1).RelPath != "b" {
		t.Fatalf("At(1) = %+v, want dir b", r.At(1))
	}
}

func TestBuilder_AddAfterBuildPanics(t *testing.T) {
	b := NewBuilder("/src")
	b.Build()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on Add after Build")
		}
	}()
	b.Add(Element{RelPath: "late"})
}

func TestResult_ElementsReturnsCopy(t *testing.T) {
	r := sampleResult()
	elems := r.Elements()
	elems[0].RelPath = "mutated"
	if r.At(0).RelPath != "a.txt" {
		t.Fatalf("result mutated through Elements() copy: %q", r.At(0).RelPath)
	}
}

func TestResult_AllStopsEarly(t *testing.T) {
	r := sampleResult()
	var seen []string
	for _, e := range r.All() {
		seen = append(seen, e.RelPath)
		if len(seen) == 2 {
			break
		}
	}
	if len(seen) != 2 || seen[0] != "a.txt" || seen[1] != "b" {
		t.Fatalf("unexpected iteration: %v", seen)
	}
}

func TestResult_EqualAndFingerprint(t *testing.T) {
	a := sampleResult()
	b := sampleResult()
	if !a.Equal(b) {
		t.Fatal("expected identical results to be equal")
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("expected identical fingerprints")
	}

	c := NewBuilder("/src")
	c.Add(Element{Path: "/src/a.txt", RelPath: "a.txt", Kind: KindFile, Size: 4})
	other := c.Build()
	if a.Equal(other) {
		t.Fatal("expected different results to differ")
	}
	if a.Fingerprint() == other.Fingerprint() {
		t.Fatal("expected different fingerprints")
	}
	if len(a.FingerprintHex()) != 16 {
		t.Fatalf("FingerprintHex() = %q, want 16 hex digits", a.FingerprintHex())
	}
}

func TestResult_EqualComparesModTime(t *testing.T) {
	mk := func(ts time.Time) *Result {
		b := NewBuilder("/r")
		b.Add(Element{Path: "/r/x", RelPath: "x", ModTime: ts})
		return b.Build()
	}
	t0 := time.Unix(1700000000, 0)
	if !mk(t0).Equal(mk(t0.UTC())) {
		t.Fatal("same instant in different zones should be equal")
	}
	if mk(t0).Equal(mk(t0.Add(time.Second))) {
		t.Fatal("different mtimes should not be equal")
	}
}

func TestEqual_Nil(t *testing.T) {
	var a *Result
	if !a.Equal(nil) {
		t.Fatal("nil results should be equal")
	}
	if a.Equal(sampleResult()) {
		t.Fatal("nil and non-nil should differ")
	}
}

func TestKindString(t *testing.T) {
	if KindDir.String() != "dir" || KindFile.String() != "file" {
		t.Fatalf("unexpected kind strings: %s %s", KindDir, KindFile)
	}
}

func TestSortEntries_Natural(t *testing.T) {
	names := []string{"file10", "File2", "file1", "b", "A"}
	SortEntries(names)
	want := []string{"A", "b", "file1", "File2", "file10"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("SortEntries = %v, want %v", names, want)
		}
	}
}

func TestSortElements_DirBeforeChildren(t *testing.T) {
	elems := []Element{
		{RelPath: "b/c.txt"},
		{RelPath: "a.txt"},
		{RelPath: "b"},
		{RelPath: "b-file"},
	}
	SortElements(elems)
	want := []string{"a.txt", "b", "b/c.txt", "b-file"}
	for i := range want {
		if elems[i].RelPath != want[i] {
			t.Fatalf("order = %v, want %v", elems, want)
		}
	}
}
