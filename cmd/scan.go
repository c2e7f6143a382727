package cmd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jsvoboda/photo-curator/internal/database"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Register the photos of a directory with a project",
	Long: `Walk a directory tree and register every image as a photo of the given
project. Re-scanning refreshes metadata; faces, embeddings and tags of
already known photos are untouched.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("dir", "", "Directory to scan")
	scanCmd.Flags().String("project", "", "Project to register photos with")
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// photoUID derives a stable photo id from the project and the path
// relative to the scan root, so re-scans update the same records.
func photoUID(project, relPath string) string {
	sum := sha256.Sum256([]byte(project + "/" + relPath))
	return hex.EncodeToString(sum[:16])
}

func collectImagePaths(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if imageExtensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

func runScan(cmd *cobra.Command, args []string) error {
	dir := mustGetString(cmd, "dir")
	project := mustGetString(cmd, "project")
	if dir == "" || project == "" {
		return fmt.Errorf("--dir and --project are required")
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving directory: %w", err)
	}
	paths, err := collectImagePaths(root)
	if err != nil {
		return fmt.Errorf("scanning directory: %w", err)
	}
	if len(paths) == 0 {
		fmt.Println("No images found")
		return nil
	}

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	bar := progressbar.Default(int64(len(paths)), "Registering photos")
	registered, skipped := 0, 0

	for _, path := range paths {
		bar.Add(1)

		info, err := os.Stat(path)
		if err != nil {
			skipped++
			continue
		}

		width, height := 0, 0
		if f, err := os.Open(path); err == nil {
			if cfg, _, err := image.DecodeConfig(f); err == nil {
				width, height = cfg.Width, cfg.Height
			}
			f.Close()
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			relPath = path
		}

		photo := &database.Photo{
			UID:          photoUID(project, relPath),
			Project:      project,
			Path:         path,
			Width:        width,
			Height:       height,
			FileSize:     info.Size(),
			IsScreenshot: strings.Contains(strings.ToLower(filepath.Base(path)), "screenshot"),
			ImportedAt:   time.Now(),
		}
		if err := a.photos.Upsert(ctx, photo); err != nil {
			skipped++
			continue
		}
		registered++
	}

	fmt.Printf("\nRegistered %d photos (%d skipped)\n", registered, skipped)
	return nil
}
