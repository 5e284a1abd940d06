package utils

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/ulikunitz/xz"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	want := []byte("4901234567894")

	write := func(t *testing.T, name string, fn func(*bytes.Buffer) error) string {
		t.Helper()
		var buf bytes.Buffer
		if err := fn(&buf); err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	tests := []struct {
		name string
		fn   func(*bytes.Buffer) error
	}{
		{"code.txt", func(b *bytes.Buffer) error {
			_, err := b.Write(want)
			return err
		}},
		{"code.gz", func(b *bytes.Buffer) error {
			w := gzip.NewWriter(b)
			w.Write(want)
			return w.Close()
		}},
		{"code.xz", func(b *bytes.Buffer) error {
			w, err := xz.NewWriter(b)
			if err != nil {
				return err
			}
			w.Write(want)
			return w.Close()
		}},
		{"code.zip", func(b *bytes.Buffer) error {
			z := zip.NewWriter(b)
			f, err := z.Create("code.txt")
			if err != nil {
				return err
			}
			f.Write(want)
			return z.Close()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadFile(write(t, tt.name, tt.fn))
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("Expected %q, got %q", want, got)
			}
		})
	}

	t.Run("empty zip", func(t *testing.T) {
		path := write(t, "empty.zip", func(b *bytes.Buffer) error {
			return zip.NewWriter(b).Close()
		})
		if _, err := LoadFile(path); err == nil {
			t.Errorf("Expected an error for an empty archive")
		}
	})
	t.Run("missing", func(t *testing.T) {
		if _, err := LoadFile(filepath.Join(dir, "missing.gz")); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("Expected fs.ErrNotExist, got %v", err)
		}
	})
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saves", "mobile.cfg")
	for _, data := range [][]byte{{1, 2, 3}, {4}} {
		if err := WriteFile(path, data); err != nil {
			t.Fatal(err)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("Expected %v, got %v", data, got)
		}
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("Expected only the written file to remain, got %d entries", len(entries))
	}
}

func TestMacros(t *testing.T) {
	if v := Clamp(0, 300, 255); v != 255 {
		t.Errorf("Expected 255, got %d", v)
	}
	if v := Clamp(-1.0, -2.5, 1.0); v != -1 {
		t.Errorf("Expected -1, got %f", v)
	}
	if v := ZeroAdjust(uint8(0)); v != 1 {
		t.Errorf("Expected 1, got %d", v)
	}
	if v := Abs(-7); v != 7 {
		t.Errorf("Expected 7, got %d", v)
	}
}
