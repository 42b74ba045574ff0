package browser

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/go-rod/rod/lib/launcher"
)

// Binary sources, in the order they are tried.
const (
	SourceSystem   = "system"
	SourceDownload = "download"
	SourceFallback = "fallback"
)

// Resolution records which browser binary a session runs and how it was found.
type Resolution struct {
	Path   string `json:"path"`
	Source string `json:"source"`
}

// resolver finds a Chrome binary. The hooks are replaced in tests.
type resolver struct {
	lookPath func() (string, bool)
	download func() (string, error)
	stat     func(string) (os.FileInfo, error)
}

func defaultResolver() resolver {
	return resolver{
		lookPath: launcher.LookPath,
		download: func() (string, error) {
			return launcher.NewBrowser().Get()
		},
		stat: os.Stat,
	}
}

// resolve tries the system browser, then a managed download, then the
// configured fallback path. The returned error joins every failed attempt.
func (r resolver) resolve(config Config) (Resolution, error) {
	var attempts []error

	if path, ok := r.lookPath(); ok {
		return Resolution{Path: path, Source: SourceSystem}, nil
	}
	attempts = append(attempts, fmt.Errorf("%s: no browser found on this machine", SourceSystem))

	if config.AutoDownload {
		path, err := r.download()
		if err == nil {
			return Resolution{Path: path, Source: SourceDownload}, nil
		}
		attempts = append(attempts, fmt.Errorf("%s: %w", SourceDownload, err))
	}

	if config.FallbackBinPath != "" {
		info, err := r.stat(config.FallbackBinPath)
		switch {
		case err != nil:
			attempts = append(attempts, fmt.Errorf("%s: %w", SourceFallback, err))
		case info.IsDir():
			attempts = append(attempts, fmt.Errorf("%s: %s is a directory", SourceFallback, config.FallbackBinPath))
		default:
			return Resolution{Path: config.FallbackBinPath, Source: SourceFallback}, nil
		}
	} else {
		attempts = append(attempts, fmt.Errorf("%s: no fallback_bin_path configured", SourceFallback))
	}

	return Resolution{}, stderrors.Join(attempts...)
}
