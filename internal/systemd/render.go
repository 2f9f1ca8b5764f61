package systemd

import (
	"fmt"
	"strings"

	"github.com/steadyops/steady/internal/config"
)

// AppUnitName returns the generated unit file name for an autostart
// application declaration.
func AppUnitName(app string) string {
	return "steady-app-" + app + ".service"
}

// ContainerUnitName returns the generated unit file name that keeps a
// container running across logins.
func ContainerUnitName(container string) string {
	return "steady-container-" + container + ".service"
}

// RenderAppUnit produces the unit text for an autostart application. The
// restart policy maps directly onto Restart=, and a declared delay becomes
// an ExecStartPre sleep.
func RenderAppUnit(app config.AutostartApp) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Unit]\nDescription=Autostart %s (managed by steady)\nAfter=default.target\n\n", app.Name)
	b.WriteString("[Service]\nType=simple\n")
	if app.DelaySeconds > 0 {
		fmt.Fprintf(&b, "ExecStartPre=/bin/sleep %d\n", app.DelaySeconds)
	}
	fmt.Fprintf(&b, "ExecStart=%s\n", app.Command)
	fmt.Fprintf(&b, "Restart=%s\n", restartDirective(app.Restart))
	b.WriteString("\n[Install]\nWantedBy=default.target\n")
	return b.String()
}

// RenderContainerUnit produces the unit text that starts an existing
// container at login and stops it gracefully on shutdown.
func RenderContainerUnit(name string, stopTimeoutSeconds int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Unit]\nDescription=Container %s (managed by steady)\nWants=network-online.target\nAfter=network-online.target\n\n", name)
	b.WriteString("[Service]\nType=forking\n")
	fmt.Fprintf(&b, "ExecStart=/usr/bin/podman start %s\n", name)
	fmt.Fprintf(&b, "ExecStop=/usr/bin/podman stop -t %d %s\n", stopTimeoutSeconds, name)
	b.WriteString("Restart=on-failure\n")
	b.WriteString("\n[Install]\nWantedBy=default.target\n")
	return b.String()
}

func restartDirective(policy string) string {
	switch policy {
	case "always":
		return "always"
	case "on-failure":
		return "on-failure"
	default:
		return "no"
	}
}

// sessionOwnedPrefixes matches transient desktop-session units that the
// session manager owns. They are not user-manageable from here and must be
// filtered from both desired processing and drift reporting.
var sessionOwnedPrefixes = []string{
	"gnome-session",
	"org.gnome.",
	"org.freedesktop.",
	"xdg-desktop-portal",
	"xdg-document-portal",
	"xdg-permission-store",
	"pipewire",
	"wireplumber",
	"gvfs",
	"tracker-",
	"dbus",
	"at-spi",
}

// SessionOwned reports whether a unit name belongs to the desktop session.
func SessionOwned(unit string) bool {
	for _, prefix := range sessionOwnedPrefixes {
		if strings.HasPrefix(unit, prefix) {
			return true
		}
	}
	return false
}
