package app

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// browserMethod is one way of handing a URL to the desktop.
type browserMethod struct {
	name string
	cmd  string
	args []string
}

// openBrowser tries each platform method until one starts.
func openBrowser(url string) error {
	var lastErr error
	for _, method := range browserMethods(runtime.GOOS, url) {
		cmd := exec.Command(method.cmd, method.args...)
		if err := cmd.Start(); err != nil {
			lastErr = err
			slog.Debug("Browser open method failed",
				slog.String("method", method.name),
				slog.String("error", err.Error()))
			continue
		}
		// Reap the launcher in the background.
		go cmd.Wait()
		return nil
	}
	return fmt.Errorf("failed to open browser: %w", lastErr)
}

func browserMethods(goos, url string) []browserMethod {
	switch goos {
	case "windows":
		return []browserMethod{
			{name: "rundll32", cmd: "rundll32", args: []string{"url.dll,FileProtocolHandler", url}},
			{name: "start_command", cmd: "cmd", args: []string{"/c", "start", "", url}},
		}
	case "darwin":
		return []browserMethod{
			{name: "open", cmd: "open", args: []string{url}},
		}
	default:
		return []browserMethod{
			{name: "xdg-open", cmd: "xdg-open", args: []string{url}},
			{name: "sensible-browser", cmd: "sensible-browser", args: []string{url}},
		}
	}
}
