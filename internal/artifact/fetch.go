package artifact

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"
)

// Fetcher downloads a released model bundle (a tar.gz holding the model
// and scaler) and installs it into an artifact directory.
type Fetcher struct {
	client *http.Client
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

// WithTimeout sets the client timeout.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.client.Timeout = d }
}

// NewFetcher creates a Fetcher with a one-minute default timeout.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{client: &http.Client{Timeout: time.Minute}}
	for _, o := range opts {
		o(f)
	}
	return f
}

// FetchInput names the bundle to install.
type FetchInput struct {
	BundleURL    string
	ChecksumsURL string // optional; defaults to checksums.txt beside the bundle
	DestDir      string
	ModelFile    string
	ScalerFile   string
}

// FetchProgress reports one stage of a fetch.
type FetchProgress struct {
	Stage   string
	Message string
}

// Fetch downloads, verifies and installs a bundle. The installed directory
// gets a fresh checksums.txt so Load verifies it on every start.
func (f *Fetcher) Fetch(ctx context.Context, in FetchInput, progress func(FetchProgress)) error {
	if progress == nil {
		progress = func(FetchProgress) {}
	}
	if in.ModelFile == "" {
		in.ModelFile = ModelFilename
	}
	if in.ScalerFile == "" {
		in.ScalerFile = ScalerFilename
	}

	asset, err := assetName(in.BundleURL)
	if err != nil {
		return err
	}
	checksumsURL := in.ChecksumsURL
	if checksumsURL == "" {
		checksumsURL, err = siblingURL(in.BundleURL, ChecksumsFilename)
		if err != nil {
			return err
		}
	}

	progress(FetchProgress{Stage: "download", Message: fmt.Sprintf("Downloading %s...", asset)})
	archive, err := f.download(ctx, in.BundleURL)
	if err != nil {
		return fmt.Errorf("download bundle: %w", err)
	}

	progress(FetchProgress{Stage: "verify", Message: "Verifying checksum..."})
	manifest, err := f.download(ctx, checksumsURL)
	if err != nil {
		return fmt.Errorf("download checksums: %w", err)
	}
	expected, ok := parseChecksums(manifest)[asset]
	if !ok {
		return fmt.Errorf("%w: no checksum for %s", ErrChecksum, asset)
	}
	if err := verifyChecksum(asset, archive, expected); err != nil {
		return err
	}

	progress(FetchProgress{Stage: "extract", Message: "Extracting artifacts..."})
	files, err := extractFiles(archive, in.ModelFile, in.ScalerFile)
	if err != nil {
		return fmt.Errorf("extract bundle: %w", err)
	}

	progress(FetchProgress{Stage: "install", Message: fmt.Sprintf("Installing into %s...", in.DestDir)})
	sums := make(map[string]string, len(files))
	for name, data := range files {
		if err := writeAtomic(filepath.Join(in.DestDir, name), data); err != nil {
			return fmt.Errorf("install %s: %w", name, err)
		}
		sums[name] = sha256Hex(data)
	}
	if err := writeAtomic(filepath.Join(in.DestDir, ChecksumsFilename), formatChecksums(sums)); err != nil {
		return fmt.Errorf("write checksums: %w", err)
	}

	progress(FetchProgress{Stage: "done", Message: "Artifacts installed"})
	return nil
}

func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, rawURL)
	}
	return io.ReadAll(resp.Body)
}

func assetName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse bundle URL: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "", fmt.Errorf("bundle URL %q has no file name", rawURL)
	}
	return name, nil
}

func siblingURL(rawURL, name string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse bundle URL: %w", err)
	}
	u.Path = path.Join(path.Dir(u.Path), name)
	return u.String(), nil
}

// extractFiles pulls the named regular files out of a tar.gz, matching on
// base name so bundles may nest them in a directory.
func extractFiles(data []byte, names ...string) (map[string][]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer func() { _ = gz.Close() }()

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	found := make(map[string][]byte, len(names))
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}
		base := filepath.Base(hdr.Name)
		if hdr.Typeflag != tar.TypeReg || !want[base] {
			continue
		}
		b, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", base, err)
		}
		found[base] = b
	}

	for _, n := range names {
		if _, ok := found[n]; !ok {
			return nil, fmt.Errorf("%w: %s not in bundle", ErrMissing, n)
		}
	}
	return found, nil
}

// writeAtomic writes through a temp file in the same directory and renames
// it over the target.
func writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	f, err := os.CreateTemp(dir, ".diarisk-artifact-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	return os.Rename(tmp, target)
}
