package config

// Config is the full desired-state document the engine converges the host
// to. It is loaded once per run and shared read-only with every reconciler.
type Config struct {
	Version    string           `yaml:"version,omitempty" toml:"version,omitempty" validate:"omitempty,semver"`
	Name       string           `yaml:"name,omitempty" toml:"name,omitempty" validate:"omitempty,max=100"`
	Hostname   string           `yaml:"hostname,omitempty" toml:"hostname,omitempty" validate:"omitempty,hostname_rfc1123"`
	Packages   PackagesConfig   `yaml:"packages,omitempty" toml:"packages,omitempty"`
	Services   ServicesConfig   `yaml:"services,omitempty" toml:"services,omitempty"`
	Containers ContainersConfig `yaml:"containers,omitempty" toml:"containers,omitempty"`
	Dotfiles   *DotfilesConfig  `yaml:"dotfiles,omitempty" toml:"dotfiles,omitempty"`
	Commands   CommandsConfig   `yaml:"commands,omitempty" toml:"commands,omitempty"`
}

// PackagesConfig groups the declared package sets per manager.
type PackagesConfig struct {
	System  *SystemPackages  `yaml:"system,omitempty" toml:"system,omitempty"`
	Flatpak *FlatpakPackages `yaml:"flatpak,omitempty" toml:"flatpak,omitempty"`
	Pip     *PackageSet      `yaml:"pip,omitempty" toml:"pip,omitempty"`
	Npm     *PackageSet      `yaml:"npm,omitempty" toml:"npm,omitempty"`
	Cargo   *PackageSet      `yaml:"cargo,omitempty" toml:"cargo,omitempty"`
}

// PackageSet declares packages for one manager.
type PackageSet struct {
	Update   bool     `yaml:"update,omitempty" toml:"update,omitempty"`
	Packages []string `yaml:"packages" toml:"packages" validate:"required,min=1,dive,min=1,max=200"`
}

// SystemPackages declares distribution packages. Manager selects the backing
// tool; "auto" resolves it from /etc/os-release at run time.
type SystemPackages struct {
	Manager    string `yaml:"manager,omitempty" toml:"manager,omitempty" validate:"omitempty,oneof=dnf apt auto"`
	PackageSet `yaml:",inline"`
}

// FlatpakPackages declares Flatpak applications. Entries may carry a
// "remote:" prefix selecting a non-default remote (e.g. flathub:org.gimp.GIMP).
type FlatpakPackages struct {
	Remotes    []FlatpakRemote `yaml:"remotes,omitempty" toml:"remotes,omitempty" validate:"omitempty,dive"`
	PackageSet `yaml:",inline"`
}

// FlatpakRemote is a remote ensured with remote-add --if-not-exists before
// anything is installed from it.
type FlatpakRemote struct {
	Name string `yaml:"name" toml:"name" validate:"required"`
	URL  string `yaml:"url" toml:"url" validate:"required,url"`
}

// ServicesConfig declares systemd unit state for both scopes, custom unit
// definitions, and application autostart entries.
type ServicesConfig struct {
	System    map[string]UnitState `yaml:"system,omitempty" toml:"system,omitempty"`
	User      map[string]UnitState `yaml:"user,omitempty" toml:"user,omitempty"`
	Custom    []CustomUnit         `yaml:"custom,omitempty" toml:"custom,omitempty" validate:"omitempty,dive"`
	Autostart []AutostartApp       `yaml:"autostart,omitempty" toml:"autostart,omitempty" validate:"omitempty,dive"`
}

// UnitState is the desired enabled/started pair for a built-in unit. The two
// flags converge independently.
type UnitState struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
	Started bool `yaml:"started" toml:"started"`
}

// CustomUnit carries literal unit (and optional timer) text written verbatim
// to the scope's unit directory.
type CustomUnit struct {
	Name    string `yaml:"name" toml:"name" validate:"required,unit_name"`
	Scope   string `yaml:"scope,omitempty" toml:"scope,omitempty" validate:"omitempty,oneof=system user"`
	Unit    string `yaml:"unit" toml:"unit" validate:"required"`
	Timer   string `yaml:"timer,omitempty" toml:"timer,omitempty"`
	Enabled bool   `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
}

// AutostartApp declares an application launched by a generated user unit.
type AutostartApp struct {
	Name         string `yaml:"name" toml:"name" validate:"required,unit_name"`
	Command      string `yaml:"command,omitempty" toml:"command,omitempty"`
	Enabled      bool   `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Restart      string `yaml:"restart,omitempty" toml:"restart,omitempty" validate:"omitempty,oneof=never on-failure always"`
	DelaySeconds int    `yaml:"delay_seconds,omitempty" toml:"delay_seconds,omitempty" validate:"omitempty,min=0,max=3600"`
}

// ContainersConfig declares podman containers plus the setup commands and
// registries configuration applied before converging them.
type ContainersConfig struct {
	Setup      []SetupCommand `yaml:"setup,omitempty" toml:"setup,omitempty" validate:"omitempty,dive"`
	Registries []string       `yaml:"registries,omitempty" toml:"registries,omitempty" validate:"omitempty,dive,min=1"`
	Containers []Container    `yaml:"containers,omitempty" toml:"containers,omitempty" validate:"omitempty,dive"`
}

// SetupCommand is a described shell command run before container convergence.
type SetupCommand struct {
	Description string `yaml:"description" toml:"description" validate:"required"`
	Command     string `yaml:"command" toml:"command" validate:"required"`
}

// Container declares one container. Flags is a flattened argument string
// passed to the runtime between the name and the image.
type Container struct {
	Name               string `yaml:"name" toml:"name" validate:"required,container_name"`
	Image              string `yaml:"image" toml:"image" validate:"required"`
	Flags              string `yaml:"flags,omitempty" toml:"flags,omitempty"`
	Autostart          bool   `yaml:"autostart,omitempty" toml:"autostart,omitempty"`
	StartAfterCreation bool   `yaml:"start_after_creation,omitempty" toml:"start_after_creation,omitempty"`
}

// DotfilesConfig declares the dotfiles payload and which targets to migrate
// into the home directory.
type DotfilesConfig struct {
	Source     string   `yaml:"source" toml:"source" validate:"required"`
	Repo       string   `yaml:"repo,omitempty" toml:"repo,omitempty" validate:"omitempty,url"`
	Bashrc     bool     `yaml:"bashrc,omitempty" toml:"bashrc,omitempty"`
	ConfigDirs []string `yaml:"config_dirs,omitempty" toml:"config_dirs,omitempty" validate:"omitempty,dive,config_dir"`
}

// CommandsConfig holds the always-run and run-once command lists.
type CommandsConfig struct {
	Run     []string `yaml:"run,omitempty" toml:"run,omitempty" validate:"omitempty,dive,min=1"`
	RunOnce []string `yaml:"run_once,omitempty" toml:"run_once,omitempty" validate:"omitempty,dive,min=1"`
}
