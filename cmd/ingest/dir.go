package main

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/docrag/internal/document"
	"github.com/nikhilbhutani/docrag/pkg/textextract"
)

var (
	dirDepartment string
	dirCategory   string
	dirNoRun      bool
)

var dirCmd = &cobra.Command{
	Use:   "dir [path]",
	Short: "Upload every supported file under a directory and index it",
	Long: `Walks the directory, uploads each supported file approved for indexing,
then processes the queue until no documents are left.`,
	Args: cobra.ExactArgs(1),
	RunE: runDir,
}

func init() {
	dirCmd.Flags().StringVar(&dirDepartment, "afdeling", "", "department to tag documents with")
	dirCmd.Flags().StringVar(&dirCategory, "categorie", "", "category to tag documents with")
	dirCmd.Flags().BoolVar(&dirNoRun, "no-run", false, "upload only, leave processing to the worker")
	rootCmd.AddCommand(dirCmd)
}

func runDir(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	files, err := collectFiles(args[0])
	if err != nil {
		return err
	}
	cmd.Printf("Found %d supported files\n", len(files))

	uploaded := 0
	for i, path := range files {
		if err := uploadFile(cmd, path); err != nil {
			slog.Warn("upload failed", "path", path, "error", err)
		} else {
			uploaded++
		}
		if (i+1)%10 == 0 {
			cmd.Printf("Uploaded %d/%d\n", i+1, len(files))
		}
	}
	cmd.Printf("Uploaded %d of %d files\n", uploaded, len(files))

	if dirNoRun || uploaded == 0 {
		return nil
	}
	return drain(ctx, cmd, svc.Config.Ingest.BatchLimit)
}

func uploadFile(cmd *cobra.Command, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	_, err = svc.Documents.Upload(cmd.Context(), document.UploadRequest{
		Filename:   filepath.Base(path),
		Size:       info.Size(),
		Data:       f,
		Department: dirDepartment,
		Category:   dirCategory,
		Subject:    filepath.Base(filepath.Dir(path)),
		Ready:      true,
	})
	return err
}

// collectFiles returns the files under root the extractor can handle, in
// lexical order, skipping hidden files and directories. Files with an
// unrecognised extension are kept when their first bytes look like text.
func collectFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if path != root && len(name) > 0 && name[0] == '.' {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && (textextract.IsSupported(name) || sniffText(path)) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

const sniffBytes = 4096

func sniffText(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, sniffBytes)
	n, _ := io.ReadFull(f, buf)
	return textextract.LooksLikeText(buf[:n])
}
