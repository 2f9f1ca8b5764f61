package pkgmgr

import (
	"fmt"
	"os"
	"strings"
)

// DetectSystemManager resolves the "auto" system manager by reading
// os-release (ID plus ID_LIKE). Fedora-family hosts resolve to dnf,
// Debian-family hosts to apt.
func DetectSystemManager(osReleasePath string) (string, error) {
	data, err := os.ReadFile(osReleasePath)
	if err != nil {
		return "", fmt.Errorf("cannot detect distribution: %w", err)
	}

	ids := make(map[string]bool)
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		if key != "ID" && key != "ID_LIKE" {
			continue
		}
		for _, id := range strings.Fields(strings.Trim(value, `"`)) {
			ids[strings.ToLower(id)] = true
		}
	}

	switch {
	case ids["fedora"] || ids["rhel"] || ids["centos"]:
		return "dnf", nil
	case ids["debian"] || ids["ubuntu"]:
		return "apt", nil
	}
	return "", fmt.Errorf("unsupported distribution in %s", osReleasePath)
}
