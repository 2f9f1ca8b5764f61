package systemd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/steadyops/steady/internal/config"
)

func TestRenderAppUnitRestartMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		policy string
		want   string
	}{
		{"never", "Restart=no"},
		{"on-failure", "Restart=on-failure"},
		{"always", "Restart=always"},
	}

	for _, tc := range cases {
		unit := RenderAppUnit(config.AutostartApp{Name: "syncthing", Command: "/usr/bin/syncthing", Restart: tc.policy})
		assert.Contains(t, unit, tc.want)
		assert.Contains(t, unit, "ExecStart=/usr/bin/syncthing")
	}
}

func TestRenderAppUnitDelay(t *testing.T) {
	t.Parallel()

	withDelay := RenderAppUnit(config.AutostartApp{Name: "a", Command: "a", Restart: "never", DelaySeconds: 15})
	assert.Contains(t, withDelay, "ExecStartPre=/bin/sleep 15")

	withoutDelay := RenderAppUnit(config.AutostartApp{Name: "a", Command: "a", Restart: "never"})
	assert.NotContains(t, withoutDelay, "ExecStartPre")
}

func TestRenderAppUnitIsDeterministic(t *testing.T) {
	t.Parallel()

	app := config.AutostartApp{Name: "syncthing", Command: "/usr/bin/syncthing", Restart: "always", DelaySeconds: 5}
	assert.Equal(t, RenderAppUnit(app), RenderAppUnit(app))
}

func TestRenderContainerUnit(t *testing.T) {
	t.Parallel()

	unit := RenderContainerUnit("jellyfin", 10)
	assert.Contains(t, unit, "ExecStart=/usr/bin/podman start jellyfin")
	assert.Contains(t, unit, "ExecStop=/usr/bin/podman stop -t 10 jellyfin")
	assert.Contains(t, unit, "WantedBy=default.target")
}

func TestUnitNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "steady-app-syncthing.service", AppUnitName("syncthing"))
	assert.Equal(t, "steady-container-jellyfin.service", ContainerUnitName("jellyfin"))
}

func TestSessionOwnedFilter(t *testing.T) {
	t.Parallel()

	assert.True(t, SessionOwned("gnome-session-manager@gnome.service"))
	assert.True(t, SessionOwned("xdg-desktop-portal-gtk.service"))
	assert.True(t, SessionOwned("pipewire-pulse.socket"))
	assert.False(t, SessionOwned("syncthing.service"))
	assert.False(t, SessionOwned("steady-app-syncthing.service"))
}
