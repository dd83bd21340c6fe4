// Package assemble materializes a generation manifest into a project
// directory on disk and packages it for download.
package assemble

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/forgeline/forgeline/pkg/models"
)

// ManifestFileName is the metadata file written at the project root.
const ManifestFileName = "forgeline.manifest.yaml"

// writeConcurrency bounds parallel component file writes.
const writeConcurrency = 8

// Assembler writes generated projects under outputDir, seeding each one from
// scaffoldDir when set.
type Assembler struct {
	scaffoldDir string
	outputDir   string
}

// New creates an Assembler. scaffoldDir may be empty to skip seeding.
func New(scaffoldDir, outputDir string) *Assembler {
	return &Assembler{
		scaffoldDir: scaffoldDir,
		outputDir:   outputDir,
	}
}

// projectManifest is the YAML metadata written alongside the generated files.
type projectManifest struct {
	SessionID   string              `yaml:"session_id"`
	GeneratedAt time.Time           `yaml:"generated_at"`
	Components  []manifestComponent `yaml:"components"`
}

type manifestComponent struct {
	ID       string `yaml:"id"`
	FilePath string `yaml:"file_path"`
}

// Materialize writes the manifest's files into a fresh project directory for
// the session and returns the directory path. The plan supplies each
// component's file path. Component paths must stay inside the project
// directory; a path that escapes it fails the whole operation.
func (a *Assembler) Materialize(ctx context.Context, sessionID string, plan *models.Plan, manifest models.Manifest) (string, error) {
	dest := filepath.Join(a.outputDir, sessionID)
	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("clearing project dir: %w", err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("creating project dir: %w", err)
	}

	if a.scaffoldDir != "" {
		if err := copyTree(a.scaffoldDir, dest); err != nil {
			return "", fmt.Errorf("copying scaffold: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(writeConcurrency)
	for _, id := range manifest.IDs() {
		spec := plan.Component(id)
		if spec == nil {
			return "", fmt.Errorf("manifest entry %s not in plan", id)
		}
		source := manifest[id]
		target, err := securePath(dest, spec.FilePath)
		if err != nil {
			return "", err
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating dir for %s: %w", spec.FilePath, err)
			}
			if err := os.WriteFile(target, []byte(source+"\n"), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", spec.FilePath, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	if err := a.writeManifestFile(dest, sessionID, plan, manifest); err != nil {
		return "", err
	}

	log.Printf("[assemble] materialized %d files for session %s at %s", len(manifest), sessionID, dest)
	return dest, nil
}

func (a *Assembler) writeManifestFile(dest, sessionID string, plan *models.Plan, manifest models.Manifest) error {
	meta := projectManifest{
		SessionID:   sessionID,
		GeneratedAt: time.Now().UTC(),
	}
	for _, id := range manifest.IDs() {
		meta.Components = append(meta.Components, manifestComponent{
			ID:       id,
			FilePath: plan.Component(id).FilePath,
		})
	}

	data, err := yaml.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("encoding project manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dest, ManifestFileName), data, 0o644); err != nil {
		return fmt.Errorf("writing project manifest: %w", err)
	}
	return nil
}

// Archive zips the project directory and returns the archive path, written
// next to the directory as <dir>.zip.
func (a *Assembler) Archive(projectDir string) (string, error) {
	zipPath := projectDir + ".zip"
	out, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("creating archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	err = filepath.WalkDir(projectDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(projectDir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		zw.Close()
		return "", fmt.Errorf("archiving %s: %w", projectDir, err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalizing archive: %w", err)
	}
	return zipPath, nil
}

// securePath resolves a plan-supplied relative path under root, rejecting
// absolute paths and traversal outside the project directory.
func securePath(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("component path %s is absolute", rel)
	}
	target := filepath.Join(root, filepath.Clean(rel))
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", fmt.Errorf("component path %s escapes the project directory", rel)
	}
	return target, nil
}

// copyTree copies the scaffold tree into dest, preserving structure.
func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
}
