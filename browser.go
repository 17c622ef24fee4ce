package formreport

import (
	"fmt"

	"github.com/go-rod/rod/lib/launcher"
)

// resolveBrowser downloads a compatible Chromium binary if one is not
// already cached and returns the path to the executable. The binary is
// stored in ~/.cache/rod/browser (Unix) or %APPDATA%\rod\browser (Windows).
func resolveBrowser(cfg *config) (string, error) {
	if cfg.chromePath != "" || !cfg.autoDownload {
		return cfg.chromePath, nil
	}
	if path, ok := launcher.LookPath(); ok {
		cfg.logger.Debug("using installed browser", "path", path)
		return path, nil
	}
	cfg.logger.Info("downloading browser")
	path, err := launcher.NewBrowser().Get()
	if err != nil {
		return "", fmt.Errorf("formreport: downloading browser: %w", err)
	}
	return path, nil
}
