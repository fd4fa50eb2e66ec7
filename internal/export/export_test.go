package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/seriarr/seriarr/internal/data"
	"github.com/spf13/afero"
)

func TestArchiveBuilderOrdersEntries(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, f := range []struct{ path, body string }{
		{"/store/item/0002 - Two.txt", "img2"},
		{"/store/item/0001 - One.txt", "img1"},
	} {
		if err := afero.WriteFile(fs, f.path, []byte(f.body), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}
	b := NewArchiveBuilder(fs, nil)

	m := Manifest{
		ItemID: "item",
		Title:  "My: Series",
		Units: []UnitFile{
			{Number: 2, Title: "Two", Path: "/store/item/0002 - Two.txt"},
			{Number: 1, Title: "One", Path: "/store/item/0001 - One.txt"},
		},
	}
	out, err := b.Build(context.Background(), m, "/exports")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if out != "/exports/My_ Series.cbz" {
		t.Fatalf("out = %q", out)
	}

	raw, err := afero.ReadFile(fs, out)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("entries = %d", len(zr.File))
	}
	if zr.File[0].Name != "0001.txt" || zr.File[1].Name != "0002.txt" {
		t.Fatalf("entry names = %q, %q", zr.File[0].Name, zr.File[1].Name)
	}
}

func TestArchiveBuilderEmptyManifest(t *testing.T) {
	b := NewArchiveBuilder(afero.NewMemMapFs(), nil)
	_, err := b.Build(context.Background(), Manifest{ItemID: "item", Title: "x"}, "/exports")
	if !errors.Is(err, data.ErrConversionFailed) {
		t.Fatalf("err = %v, want ErrConversionFailed", err)
	}
}

func TestPandocConverterUnavailable(t *testing.T) {
	c := NewPandocConverter(nil)
	c.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	_, err := c.Convert(context.Background(), Manifest{Units: []UnitFile{{Number: 1}}}, "/tmp")
	if !errors.Is(err, data.ErrConverterUnavailable) {
		t.Fatalf("err = %v, want ErrConverterUnavailable", err)
	}
}

func TestPandocConverterBuildsArgs(t *testing.T) {
	c := NewPandocConverter(nil)
	c.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	var gotArgs []string
	c.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return nil, nil
	}
	m := Manifest{
		ItemID: "item",
		Title:  "Story",
		Author: "Someone",
		Units: []UnitFile{
			{Number: 2, Path: "/store/0002.txt"},
			{Number: 1, Path: "/store/0001.txt"},
		},
	}
	out, err := c.Convert(context.Background(), m, "/exports")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if out != "/exports/Story.epub" {
		t.Fatalf("out = %q", out)
	}
	// Unit files appear in unit order at the end of the argument list.
	n := len(gotArgs)
	if gotArgs[n-2] != "/store/0001.txt" || gotArgs[n-1] != "/store/0002.txt" {
		t.Fatalf("args = %v", gotArgs)
	}
}

func TestPandocConverterToolFailure(t *testing.T) {
	c := NewPandocConverter(nil)
	c.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	c.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("bad input"), errors.New("exit status 2")
	}
	_, err := c.Convert(context.Background(), Manifest{Title: "x", Units: []UnitFile{{Number: 1, Path: "/a"}}}, "/exports")
	if !errors.Is(err, data.ErrConversionFailed) {
		t.Fatalf("err = %v, want ErrConversionFailed", err)
	}
}
