package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/steadyops/steady/internal/config"
	"github.com/steadyops/steady/internal/engine"
	"github.com/steadyops/steady/internal/logger"
	"github.com/steadyops/steady/internal/model"
	"github.com/steadyops/steady/internal/pkgmgr"
	"github.com/steadyops/steady/internal/podman"
	"github.com/steadyops/steady/internal/reconcilers/commands"
	"github.com/steadyops/steady/internal/reconcilers/containers"
	"github.com/steadyops/steady/internal/reconcilers/dotfiles"
	"github.com/steadyops/steady/internal/reconcilers/host"
	"github.com/steadyops/steady/internal/reconcilers/packages"
	"github.com/steadyops/steady/internal/reconcilers/services"
	"github.com/steadyops/steady/internal/state"
	"github.com/steadyops/steady/internal/sysexec"
	"github.com/steadyops/steady/internal/systemd"
)

const osReleasePath = "/etc/os-release"

type applyOptions struct {
	configPath    string
	autoYes       bool
	autoNo        bool
	forceRecreate bool
	updateImages  bool
	noRecreate    bool
	dryRun        bool
}

func newApplyCmd(root *rootFlags) *cobra.Command {
	opts := &applyOptions{}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Converge the host toward the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConverge(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to the configuration file")
	cmd.MarkFlagRequired("config") //nolint:errcheck
	cmd.Flags().BoolVar(&opts.autoYes, "yes", false, "Approve every destructive change without prompting")
	cmd.Flags().BoolVar(&opts.autoNo, "no", false, "Decline every destructive change without prompting")
	cmd.MarkFlagsMutuallyExclusive("yes", "no")
	addContainerModeFlags(cmd, opts)

	return cmd
}

func addContainerModeFlags(cmd *cobra.Command, opts *applyOptions) {
	cmd.Flags().BoolVar(&opts.forceRecreate, "force-recreate", false, "Recreate declared containers even when their definition is unchanged")
	cmd.Flags().BoolVar(&opts.updateImages, "update-images", false, "Pull container images and recreate containers whose image digest changed")
	cmd.Flags().BoolVar(&opts.noRecreate, "no-recreate", false, "Never recreate containers during this run (overrides the other container modes)")
}

func runConverge(cmd *cobra.Command, root *rootFlags, opts *applyOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	level := "info"
	if root.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Options{Level: level, HumanReadable: true})
	if err != nil {
		return err
	}

	statePath := root.statePath
	if statePath == "" {
		if statePath, err = state.DefaultPath(); err != nil {
			return err
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	policy := engine.PolicyInteractive
	switch {
	case opts.autoYes:
		policy = engine.PolicyAutoYes
	case opts.autoNo:
		policy = engine.PolicyAutoNo
	case !opts.dryRun && !term.IsTerminal(int(os.Stdin.Fd())):
		log.Warn("stdin is not a terminal, destructive changes will be declined; use --yes to approve them")
		policy = engine.PolicyAutoNo
	}

	runner := sysexec.NewLocal()
	reconcilers, err := buildReconcilers(cfg, runner, home)
	if err != nil {
		return err
	}

	rc := &engine.Context{
		Config: cfg,
		Store:  state.Open(statePath, log),
		Policy: policy,
		Modes: engine.RunModes{
			ForceRecreate: opts.forceRecreate,
			UpdateImages:  opts.updateImages,
			NoRecreate:    opts.noRecreate,
		},
		Prompter: &engine.TerminalPrompter{In: os.Stdin, Out: os.Stdout},
		Logger:   log,
		DryRun:   opts.dryRun,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := engine.Run(ctx, rc, reconcilers)
	fmt.Fprintln(cmd.OutOrStdout(), renderReport(report, opts.dryRun))

	if err := report.Err(); err != nil {
		return err
	}
	if opts.dryRun && report.HasPending() {
		return fmt.Errorf("%d changes pending", report.Count(model.StatusPending))
	}
	return nil
}

// buildReconcilers assembles the domain reconcilers in dependency order:
// hostname first, then packages (the later domains may rely on installed
// tools), services, containers, dotfiles, and finally the command lists.
func buildReconcilers(cfg *config.Config, runner sysexec.Runner, home string) ([]engine.Reconciler, error) {
	sysd := systemd.New(runner, home)

	recs := []engine.Reconciler{host.New(runner)}

	if sys := cfg.Packages.System; sys != nil {
		mgr, err := systemPackageManager(sys.Manager, runner)
		if err != nil {
			return nil, err
		}
		recs = append(recs, packages.New(mgr, sys.Packages, sys.Update))
	}
	if fp := cfg.Packages.Flatpak; fp != nil {
		recs = append(recs, packages.New(pkgmgr.NewFlatpak(runner, fp.Remotes), fp.Packages, fp.Update))
	}
	if set := cfg.Packages.Pip; set != nil {
		recs = append(recs, packages.New(pkgmgr.NewPip(runner), set.Packages, set.Update))
	}
	if set := cfg.Packages.Npm; set != nil {
		recs = append(recs, packages.New(pkgmgr.NewNpm(runner), set.Packages, set.Update))
	}
	if set := cfg.Packages.Cargo; set != nil {
		recs = append(recs, packages.New(pkgmgr.NewCargo(runner), set.Packages, set.Update))
	}

	recs = append(recs,
		services.New(sysd),
		containers.New(podman.New(runner), sysd, runner, home),
		dotfiles.New(home),
		commands.New(runner),
	)
	return recs, nil
}

func systemPackageManager(name string, runner sysexec.Runner) (pkgmgr.Manager, error) {
	if name == "" || name == "auto" {
		detected, err := pkgmgr.DetectSystemManager(osReleasePath)
		if err != nil {
			return nil, err
		}
		name = detected
	}

	switch name {
	case "apt":
		return pkgmgr.NewApt(runner), nil
	case "dnf":
		return pkgmgr.NewDnf(runner), nil
	}
	return nil, fmt.Errorf("unsupported system package manager %q", name)
}
