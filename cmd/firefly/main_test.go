package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/firefly-zero/firefly-cli/internal/testutil"
)

const seedHex = "0101010101010101010101010101010101010101010101010101010101010101"

const projectTOML = `
app_id = "snake"
author_id = "lux"
app_name = "Snake"
author_name = "Lux"
version = 2

[files.font]
path = "font.bin"
`

type cli struct {
	t   *testing.T
	vfs string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return &cli{t: t, vfs: filepath.Join(home, "vfs")}
}

func (c *cli) run(args ...string) (int, string, string) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	code := run(append([]string{"--vfs", c.vfs}, args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	code, out, errOut := c.run(args...)
	if code != 0 {
		c.t.Fatalf("%v: exit %d\nstdout: %s\nstderr: %s", args, code, out, errOut)
	}
	return out
}

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string][]byte{
		"firefly.toml": []byte(projectTOML),
		"main.wasm": testutil.BuildModule(testutil.ModuleSpec{
			Imports: []string{"graphics.clear_screen"},
			Exports: []string{"boot", "update", "memory"},
		}),
		"font.bin": []byte("glyphs"),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
	}
	return dir
}

func TestKeyCommands(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("key", "new", "lux", "--seed-hex", seedHex)
	if !strings.HasPrefix(out, "Created key: ed25519:") {
		t.Fatalf("unexpected output %q", out)
	}
	pub := strings.TrimPrefix(strings.TrimSpace(out), "Created key: ")
	if got := strings.TrimSpace(c.mustRun("key", "pub", "lux")); got != pub {
		t.Fatalf("key pub = %q, want %q", got, pub)
	}

	if code, _, _ := c.run("key", "new", "lux"); code != 1 {
		t.Fatalf("existing key: expected exit 1, got %d", code)
	}
	c.mustRun("key", "new", "lux", "--force", "--alg", "dilithium3", "--derive-from", seedHex)
	if !strings.Contains(c.mustRun("key", "list"), "lux\tpub+priv\tdilithium3") {
		t.Fatalf("key list does not show the replaced key")
	}

	c.mustRun("key", "rm", "lux")
	if code, _, errOut := c.run("key", "pub", "lux"); code != 1 || !strings.Contains(errOut, "KeyNotFound") {
		t.Fatalf("removed key: exit %d, stderr %q", code, errOut)
	}
}

func TestKeyNew_UsageErrors(t *testing.T) {
	c := newCLI(t)
	cases := [][]string{
		{"key", "new", "lux", "--alg", "rsa"},
		{"key", "new", "lux", "--seed-hex", "zz"},
		{"key", "new", "lux", "--seed-hex", seedHex, "--derive-from", seedHex},
		{"key", "new", "lux", "--no-such-flag"},
	}
	for _, args := range cases {
		if code, _, _ := c.run(args...); code != 2 {
			t.Fatalf("%v: expected exit 2, got %d", args, code)
		}
	}
}

func TestBuildExportImport(t *testing.T) {
	c := newCLI(t)
	c.mustRun("key", "new", "lux", "--seed-hex", seedHex)
	archives := t.TempDir()

	out := c.mustRun("build", writeProject(t), "--archive", archives)
	if !strings.Contains(out, "app:    lux.snake") || !strings.Contains(out, "cid:") {
		t.Fatalf("unexpected build output %q", out)
	}
	built, err := os.ReadFile(filepath.Join(archives, "lux.snake.zip"))
	if err != nil {
		t.Fatalf("archive not written: %v", err)
	}

	if got := strings.TrimSpace(c.mustRun("vfs", "list")); got != "lux.snake" {
		t.Fatalf("vfs list = %q", got)
	}
	info := c.mustRun("inspect", "lux.snake")
	for _, want := range []string{"name:         Snake by Lux", "version:      2", "entry points: boot, update", "font"} {
		if !strings.Contains(info, want) {
			t.Fatalf("inspect output lacks %q:\n%s", want, info)
		}
	}

	exportDir := t.TempDir()
	path := strings.TrimSpace(c.mustRun("export", "lux.snake", "-o", exportDir))
	exported, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(exported, built) {
		t.Fatalf("exported archive differs from the built one")
	}

	other := newCLI(t)
	if out := other.mustRun("import", path); !strings.Contains(out, "installed lux.snake") {
		t.Fatalf("unexpected import output %q", out)
	}
	if !strings.Contains(other.mustRun("inspect", path), "app:          lux.snake") {
		t.Fatalf("inspect of an archive failed")
	}

	c.mustRun("vfs", "remove", "lux.snake")
	if got := strings.TrimSpace(c.mustRun("vfs", "list")); got != "" {
		t.Fatalf("app still listed after remove: %q", got)
	}
}

func TestBuild_Failures(t *testing.T) {
	c := newCLI(t)
	if code, _, errOut := c.run("build", t.TempDir()); code != 1 || !strings.Contains(errOut, "IOFailure") {
		t.Fatalf("missing project: exit %d, stderr %q", code, errOut)
	}
	if code, _, _ := c.run("export", "not an id"); code != 2 {
		t.Fatalf("invalid id: expected exit 2, got %d", code)
	}
	if code, _, _ := c.run("inspect", "lux.ghost"); code != 1 {
		t.Fatalf("missing app: expected exit 1, got %d", code)
	}
}
