package host

import (
	"fmt"
	"strings"
)

// Env is the kind of program instance the host emulates.
type Env string

const (
	EnvBrowser Env = "browser"
	EnvWorker  Env = "worker"
	EnvProcess Env = "process"
)

// ResolveEnv maps a configured environment name to an Env. "auto" (or empty)
// selects a browser host when a page location is configured and a process
// host otherwise.
func ResolveEnv(name, pageURL string) (Env, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		if pageURL != "" {
			return EnvBrowser, nil
		}
		return EnvProcess, nil
	case "browser":
		return EnvBrowser, nil
	case "worker", "webworker":
		return EnvWorker, nil
	case "process", "node":
		return EnvProcess, nil
	default:
		return "", fmt.Errorf("unknown host environment %q", name)
	}
}

// UAProduct reports the browser product family for an eval result. Process
// hosts report chrome; other hosts are classified from the user agent and
// yield "" when unknown.
func UAProduct(env Env, userAgent string) string {
	if env == EnvProcess {
		return "chrome"
	}

	ua := userAgent
	switch {
	case strings.Contains(ua, "Safari") && !strings.Contains(ua, "Chrome") &&
		!strings.Contains(ua, "Chromium") && !strings.Contains(ua, "CriOS"):
		return "safari"
	case strings.Contains(ua, "Chrome") || strings.Contains(ua, "CriOS"):
		return "chrome"
	case strings.Contains(ua, "Firefox"):
		return "firefox"
	case strings.Contains(ua, "MSIE") || strings.Contains(ua, "Trident"):
		return "ie"
	default:
		return ""
	}
}
