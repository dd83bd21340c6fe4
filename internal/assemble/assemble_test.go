package assemble

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/forgeline/forgeline/pkg/models"
)

func testPlan() *models.Plan {
	return &models.Plan{
		SessionID: "sess-1",
		Components: []models.ComponentSpec{
			{ID: "navbar", FilePath: "src/components/Navbar.tsx"},
			{ID: "app", FilePath: "src/App.tsx", DependencyIDs: []string{"navbar"}},
		},
	}
}

func testManifest() models.Manifest {
	return models.Manifest{
		"navbar": "export const Navbar = () => null;",
		"app":    "export const App = () => null;",
	}
}

func TestMaterializeWritesComponentFiles(t *testing.T) {
	scaffold := t.TempDir()
	if err := os.WriteFile(filepath.Join(scaffold, "package.json"), []byte(`{"name": "app"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	out := t.TempDir()

	a := New(scaffold, out)
	dir, err := a.Materialize(context.Background(), "sess-1", testPlan(), testManifest())
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}

	navbar, err := os.ReadFile(filepath.Join(dir, "src/components/Navbar.tsx"))
	if err != nil {
		t.Fatalf("navbar file missing: %v", err)
	}
	if string(navbar) != "export const Navbar = () => null;\n" {
		t.Errorf("unexpected navbar contents: %q", navbar)
	}

	// Scaffold files are carried over.
	if _, err := os.Stat(filepath.Join(dir, "package.json")); err != nil {
		t.Errorf("scaffold file missing: %v", err)
	}
}

func TestMaterializeWritesProjectManifest(t *testing.T) {
	a := New("", t.TempDir())
	dir, err := a.Materialize(context.Background(), "sess-1", testPlan(), testManifest())
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		t.Fatalf("project manifest missing: %v", err)
	}

	var meta struct {
		SessionID  string `yaml:"session_id"`
		Components []struct {
			ID       string `yaml:"id"`
			FilePath string `yaml:"file_path"`
		} `yaml:"components"`
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		t.Fatalf("invalid manifest YAML: %v", err)
	}
	if meta.SessionID != "sess-1" {
		t.Errorf("unexpected session id %q", meta.SessionID)
	}
	if len(meta.Components) != 2 || meta.Components[0].ID != "app" {
		t.Errorf("unexpected components: %+v", meta.Components)
	}
}

func TestMaterializeRejectsEscapingPaths(t *testing.T) {
	plan := &models.Plan{
		SessionID: "sess-1",
		Components: []models.ComponentSpec{
			{ID: "evil", FilePath: "../outside.tsx"},
		},
	}
	manifest := models.Manifest{"evil": "nope"}

	a := New("", t.TempDir())
	if _, err := a.Materialize(context.Background(), "sess-1", plan, manifest); err == nil {
		t.Fatal("expected path traversal error")
	}
}

func TestMaterializeReplacesPreviousRun(t *testing.T) {
	out := t.TempDir()
	a := New("", out)

	if _, err := a.Materialize(context.Background(), "sess-1", testPlan(), testManifest()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	stale := filepath.Join(out, "sess-1", "stale.txt")
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := a.Materialize(context.Background(), "sess-1", testPlan(), testManifest()); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("expected stale file from previous run to be removed")
	}
}

func TestArchive(t *testing.T) {
	a := New("", t.TempDir())
	dir, err := a.Materialize(context.Background(), "sess-1", testPlan(), testManifest())
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}

	zipPath, err := a.Archive(dir)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if !strings.HasSuffix(zipPath, "sess-1.zip") {
		t.Errorf("unexpected archive path %q", zipPath)
	}

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	defer r.Close()

	names := make(map[string]bool)
	for _, f := range r.File {
		names[f.Name] = true
	}
	for _, want := range []string{"src/components/Navbar.tsx", "src/App.tsx", ManifestFileName} {
		if !names[want] {
			t.Errorf("archive missing %s (have %v)", want, names)
		}
	}
}
