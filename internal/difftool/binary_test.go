package difftool

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsBinary(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"empty", nil, false},
		{"text", []byte("hello\nworld\n"), false},
		{"null byte", []byte("abc\x00def"), true},
		{"null after sniff window", append([]byte(strings.Repeat("a", sniffLen)), 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBinary(tt.data); got != tt.want {
				t.Errorf("IsBinary() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		path     string
		data     []byte
		encoding string
		mime     string
		binary   bool
	}{
		{"logo.PNG", []byte("\x89PNG"), EncodingBase64, "image/png", true},
		{"icon.svg", []byte("<svg/>"), EncodingBase64, "image/svg+xml", true},
		{"main.go", []byte("package main\n"), EncodingUTF8, "", false},
		{"blob.dat", []byte{0, 1, 2}, EncodingBase64, "application/octet-stream", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			enc, mt, bin := Classify(tt.path, tt.data)
			if enc != tt.encoding || mt != tt.mime || bin != tt.binary {
				t.Errorf("Classify(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.path, enc, mt, bin, tt.encoding, tt.mime, tt.binary)
			}
		})
	}
}

func TestIsBinaryFile(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	text := filepath.Join(dir, "a.txt")
	bin := filepath.Join(dir, "b.bin")
	if err := os.WriteFile(text, []byte("plain text\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bin, []byte{'x', 0, 'y'}, 0644); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if IsBinaryFile(ctx, dir, text) {
		t.Error("text file reported as binary")
	}
	if !IsBinaryFile(ctx, dir, bin) {
		t.Error("binary file not detected")
	}
}
