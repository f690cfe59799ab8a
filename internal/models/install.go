package models

import (
	"archive/zip"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/scribelabs/scribe-core/internal/fault"
)

// Installer downloads catalog models into the models root. Downloads
// land in a temporary file first and are moved into place only when
// complete, so a failed install never leaves a half-written model.
type Installer struct {
	root   string
	client *http.Client
	log    *slog.Logger
}

func NewInstaller(root string, log *slog.Logger) *Installer {
	return &Installer{
		root:   root,
		client: http.DefaultClient,
		log:    log.With(slog.String("component", "model-installer")),
	}
}

// Install fetches the entry and returns the installed location. An
// already-installed model is returned without a network call.
func (i *Installer) Install(ctx context.Context, entry CatalogEntry) (string, error) {
	dest := filepath.Join(i.root, entry.Filename)
	if _, err := os.Stat(dest); err == nil {
		i.log.Info("model already installed", slog.String("model", entry.ID), slog.String("location", dest))
		return dest, nil
	}

	if err := os.MkdirAll(i.root, 0o755); err != nil {
		return "", fault.Wrap(fault.KindLoadError, err, "create models dir")
	}

	tmp, err := os.CreateTemp(i.root, "download_*")
	if err != nil {
		return "", fault.Wrap(fault.KindLoadError, err, "temp file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	i.log.Info("downloading model", slog.String("model", entry.ID), slog.String("url", entry.URL))
	if err := i.download(ctx, entry.URL, tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fault.Wrap(fault.KindLoadError, err, "flush download")
	}

	if entry.Archive {
		if err := unzip(tmpPath, i.root); err != nil {
			return "", fault.Wrap(fault.KindLoadError, err, "extract model archive %s", entry.ID)
		}
	} else {
		if err := os.Rename(tmpPath, dest); err != nil {
			return "", fault.Wrap(fault.KindLoadError, err, "move model into place")
		}
	}

	if _, err := os.Stat(dest); err != nil {
		return "", fault.New(fault.KindLoadError, "model archive %s did not contain %s", entry.ID, entry.Filename)
	}
	i.log.Info("model installed", slog.String("model", entry.ID), slog.String("location", dest))
	return dest, nil
}

func (i *Installer) download(ctx context.Context, url string, dst io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fault.Wrap(fault.KindLoadError, err, "build download request")
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return fault.Wrap(fault.KindLoadError, err, "download model")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fault.New(fault.KindLoadError, "model download failed: HTTP %s", resp.Status)
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fault.Wrap(fault.KindLoadError, err, "write model download")
	}
	return nil
}

func unzip(src, destDir string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		// reject entries escaping the destination
		if strings.Contains(f.Name, "..") {
			continue
		}
		fpath := filepath.Join(destDir, f.Name)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(fpath, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(fpath), 0o755); err != nil {
			return err
		}

		out, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
		if err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			out.Close()
			return err
		}
		_, err = io.Copy(out, rc)
		out.Close()
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// Discover scans the models root for an installed model whose name
// carries the engine's prefix. This is how a model installed in a
// previous run is found at startup without any network call.
func Discover(root, prefix string) (string, bool) {
	return DiscoverMatch(root, prefix, "")
}

// DiscoverMatch is Discover narrowed to names that also contain the
// given substring, used to resolve size labels like "small" against
// what is already on disk.
func DiscoverMatch(root, prefix, substr string) (string, bool) {
	if prefix == "" {
		return "", false
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), prefix) && strings.Contains(entry.Name(), substr) {
			return filepath.Join(root, entry.Name()), true
		}
	}
	return "", false
}
