package filesystem

import (
	"path/filepath"
	"testing"
)

func TestCheckFileRejectsDirectoryAndMissing(t *testing.T) {
	dir := t.TempDir()
	if _, err := CheckFile(dir); err == nil {
		t.Fatalf("expected error for directory")
	}
	if _, err := CheckFile(filepath.Join(dir, "missing.txt")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestCreateAndReadWrite(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")

	f, err := CreateFile(p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := CreateFile(p); err == nil {
		t.Fatalf("expected error creating existing file")
	}

	if err := WriteText(p, "hello\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadText(f)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "hello\n" {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	ok, err := Exists(dir)
	if err != nil || !ok {
		t.Fatalf("expected dir to exist: %v %v", ok, err)
	}
	ok, err = Exists(filepath.Join(dir, "nope"))
	if err != nil || ok {
		t.Fatalf("expected missing path: %v %v", ok, err)
	}
}

func TestCopyFileCreatesParents(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	if err := WriteText(src, "payload"); err != nil {
		t.Fatalf("write: %v", err)
	}
	sf, err := CheckFile(src)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	dst := filepath.Join(dir, "nested", "deep", "dst.bin")
	if err := CopyFile(sf, dst); err != nil {
		t.Fatalf("copy: %v", err)
	}
	df, err := CheckFile(dst)
	if err != nil {
		t.Fatalf("dst missing: %v", err)
	}
	got, err := ReadText(df)
	if err != nil || got != "payload" {
		t.Fatalf("unexpected copy content: %q %v", got, err)
	}
}

func TestDeleteDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := CreateDirectory(filepath.Join(sub, "inner")); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := WriteText(filepath.Join(sub, "inner", "f.txt"), "x"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := DeleteDirectory(sub); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, _ := Exists(sub)
	if ok {
		t.Fatalf("directory still present after delete")
	}
}
