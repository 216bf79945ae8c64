package fetcher

import (
	"fmt"

	"github.com/IshaanNene/lbcscraper/internal/config"
)

// StealthConfig is the browser fingerprint presented to the site.
type StealthConfig struct {
	// Viewport dimensions
	ViewportWidth  int
	ViewportHeight int

	// Window size flag for browser launch, "w,h"
	WindowSize string

	// Language override (e.g., "fr-FR")
	Language string

	// Platform override (e.g., "Win32", "MacIntel")
	Platform string

	// Hardware concurrency (number of CPU cores to report)
	HardwareConcurrency int

	// DeviceMemory (GB of RAM to report)
	DeviceMemory int
}

// StealthFromConfig derives the fingerprint from the browser config so
// the network user agent and the navigator properties agree.
func StealthFromConfig(cfg *config.BrowserConfig) *StealthConfig {
	return &StealthConfig{
		ViewportWidth:       cfg.WindowWidth,
		ViewportHeight:      cfg.WindowHeight,
		WindowSize:          fmt.Sprintf("%d,%d", cfg.WindowWidth, cfg.WindowHeight),
		Language:            cfg.Language,
		Platform:            cfg.Platform,
		HardwareConcurrency: 8,
		DeviceMemory:        8,
	}
}

// StealthJS returns JavaScript injected into every document before the
// site's own scripts run.
func (sc *StealthConfig) StealthJS() string {
	return fmt.Sprintf(`
// Hide the webdriver flag
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });

// Navigator properties
Object.defineProperty(navigator, 'platform', { get: () => '%s' });
Object.defineProperty(navigator, 'language', { get: () => '%s' });
Object.defineProperty(navigator, 'languages', { get: () => ['%s', 'fr', 'en-US', 'en'] });
Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => %d });
Object.defineProperty(navigator, 'deviceMemory', { get: () => %d });

// Chrome runtime
window.chrome = {
	runtime: { onMessage: { addListener: () => {} }, sendMessage: () => {} },
	loadTimes: () => ({}),
	csi: () => ({}),
};

// Permissions API
const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) => (
	parameters.name === 'notifications' ?
		Promise.resolve({ state: Notification.permission }) :
		originalQuery(parameters)
);

// Plugins array
Object.defineProperty(navigator, 'plugins', {
	get: () => {
		const plugins = [
			{ name: 'Chrome PDF Plugin', filename: 'internal-pdf-viewer' },
			{ name: 'Chrome PDF Viewer', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai' },
			{ name: 'Native Client', filename: 'internal-nacl-plugin' },
		];
		plugins.length = 3;
		return plugins;
	}
});
`, sc.Platform, sc.Language, sc.Language, sc.HardwareConcurrency, sc.DeviceMemory)
}
