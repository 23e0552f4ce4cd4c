package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/kverlaine/opsdeck/internal/agent"
	"github.com/kverlaine/opsdeck/internal/clock"
	"github.com/kverlaine/opsdeck/internal/config"
	"github.com/kverlaine/opsdeck/internal/deploy"
	"github.com/kverlaine/opsdeck/internal/dockerops"
	osexec "github.com/kverlaine/opsdeck/internal/exec"
	"github.com/kverlaine/opsdeck/internal/gateway"
	"github.com/kverlaine/opsdeck/internal/shutdown"
	"github.com/kverlaine/opsdeck/internal/store"
	"github.com/kverlaine/opsdeck/internal/sysinfo"
	"github.com/kverlaine/opsdeck/internal/toolkit"
	"github.com/kverlaine/opsdeck/internal/tui"
)

var version = "dev"

// loadResolvedConfig loads configuration and resolves relative paths
// against the project root.
func loadResolvedConfig(cmd *cobra.Command) (*config.Config, string, error) {
	cfg, err := config.LoadConfig(viper.GetViper())
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}

	if cmd.Flags().Changed(FlagLogFile) {
		cfg.Paths.Log = viper.GetString(FlagLogFile)
	}
	if cmd.Flags().Changed(FlagSocketPath) {
		cfg.Paths.Socket = viper.GetString(FlagSocketPath)
	}
	if cmd.Flags().Changed(FlagProfiles) {
		cfg.Deploy.ProfilesFile = viper.GetString(FlagProfiles)
	}

	root := agent.FindProjectRoot("")
	cfg.Paths.Settings = resolvePath(cfg.Paths.Settings, root)
	cfg.Paths.Log = resolvePath(cfg.Paths.Log, root)
	cfg.Paths.Socket = resolvePath(cfg.Paths.Socket, root)
	cfg.Paths.PID = resolvePath(cfg.Paths.PID, root)
	cfg.Deploy.ProfilesFile = resolvePath(cfg.Deploy.ProfilesFile, root)

	return cfg, root, nil
}

func resolvePath(path, root string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// buildLocalGateway assembles the in-process command table: host metrics,
// container lifecycle, tool management, and the deploy backend.
func buildLocalGateway(cfg *config.Config, logger *slog.Logger) *gateway.Local {
	g := gateway.NewLocal(nil, logger)
	runner := osexec.NewExecRunner()

	sysinfo.RegisterHandlers(g, sysinfo.NewCollector())
	toolkit.RegisterHandlers(g, toolkit.NewKit(toolkit.DefaultTools(), runner))

	if mgr, err := dockerops.NewManager(); err != nil {
		logger.Warn("docker engine unavailable, container commands disabled", "error", err)
	} else {
		dockerops.RegisterHandlers(g, mgr)
	}

	profiles, err := deploy.LoadProfiles(cfg.Deploy.ProfilesFile)
	if err != nil {
		logger.Warn("deploy profiles not loaded", "file", cfg.Deploy.ProfilesFile, "error", err)
	}
	deploy.NewBackend(runner, profiles).RegisterHandlers(g)

	return g
}

// selectGateway returns the agent client when an agent is serving this
// project, falling back to an in-process gateway otherwise. forceLocal
// skips agent discovery entirely.
func selectGateway(cfg *config.Config, logger *slog.Logger, forceLocal bool) gateway.Gateway {
	if forceLocal {
		return buildLocalGateway(cfg, logger)
	}
	if info, err := agent.FindInfo(""); err == nil {
		client := agent.NewClient(info.SocketPath)
		client.SetTimeout(cfg.Gateway.AgentTimeout)
		if client.IsRunning() {
			logger.Info("using agent", "socket", info.SocketPath, "pid", info.PID)
			return client
		}
		logger.Warn("agent info found but agent not responding, running locally",
			"socket", info.SocketPath)
	}
	return buildLocalGateway(cfg, logger)
}

func main() {
	logLevel := &slog.LevelVar{}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	viper.SetEnvPrefix("OPSDECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	runConsole := func(cmd *cobra.Command, args []string) error {
		if viper.GetBool(FlagVerbose) {
			logLevel.Set(slog.LevelDebug)
		}

		cfg, _, err := loadResolvedConfig(cmd)
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.Paths.Settings)
		if err != nil {
			return fmt.Errorf("open settings: %w", err)
		}

		profiles, err := deploy.LoadProfiles(cfg.Deploy.ProfilesFile)
		if err != nil {
			logger.Warn("deploy profiles not loaded", "error", err)
		}

		// In interactive mode the logger moves to a rotating file so it
		// cannot scribble over the display.
		consoleLogger := logger
		if term.IsTerminal(int(os.Stdout.Fd())) {
			tuiLog, err := SetupTUILogger(filepath.Dir(cfg.Paths.Log), logLevel, cfg.LogRotation)
			if err != nil {
				return err
			}
			defer func() { _ = tuiLog.Close() }()
			consoleLogger = tuiLog.Logger
			slog.SetDefault(consoleLogger)
		}

		gw := selectGateway(cfg, consoleLogger, viper.GetBool(FlagLocal))

		consoleLogger.Info("opsdeck starting", "version", version)

		console := tui.New(cfg, gw,
			tui.WithStore(st),
			tui.WithLogger(consoleLogger),
			tui.WithProfiles(profiles),
		)
		return console.Run()
	}

	rootCmd := &cobra.Command{
		Use:   "opsdeck",
		Short: "Single-host operator console",
		Long: `opsdeck is a terminal console for operating a single host: live system
metrics, container lifecycle, developer tooling, and a small deploy
pipeline, all behind one command gateway.

Run with no arguments to open the console. Start the background agent
with 'opsdeck agent' to serve commands to consoles over a Unix socket.`,
		SilenceUsage: true,
		RunE:         runConsole,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().Bool(FlagVerbose, false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().String(FlagConfig, "", "Config file path (default: .opsdeck/config.yaml)")
	rootCmd.PersistentFlags().String(FlagLogFile, "", "Log file path")
	rootCmd.PersistentFlags().String(FlagSocketPath, "", "Unix socket path for the agent")
	rootCmd.PersistentFlags().String(FlagProfiles, "", "Deploy profiles file path")
	rootCmd.PersistentFlags().Bool(FlagLocal, false, "Run commands in-process even when an agent is available")

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("opsdeck %s\n", version)
		},
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Open the operator console",
		Long: `Open the operator console.

When an agent is running for this project its socket is used; otherwise
commands execute in-process. Without a TTY a one-shot status dump is
printed instead of the interactive console.`,
		RunE: runConsole,
	}

	agentCmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the background agent",
		Long: `Run the agent that serves gateway commands over a Unix socket.

The agent holds a PID lock so only one instance runs per project, and
writes .opsdeck/agent.json so consoles can find it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetBool(FlagVerbose) {
				logLevel.Set(slog.LevelDebug)
			}

			cfg, root, err := loadResolvedConfig(cmd)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Join(root, ".opsdeck"), 0755); err != nil {
				return fmt.Errorf("create .opsdeck directory: %w", err)
			}

			pidFile := agent.NewPIDFile(cfg.Paths.PID)
			pidFile.CleanupStale(cfg.Paths.Socket)
			if err := pidFile.Acquire(); err != nil {
				return err
			}
			defer func() { _ = pidFile.Release() }()

			local := buildLocalGateway(cfg, logger)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			srv := agent.NewServer(cfg.Paths.Socket, local, logger, cancel)

			infoPath := agent.InfoPath(root)
			info := &agent.Info{
				SocketPath: cfg.Paths.Socket,
				PIDPath:    cfg.Paths.PID,
				LogPath:    cfg.Paths.Log,
				StartTime:  time.Now(),
				PID:        os.Getpid(),
			}
			if err := agent.WriteInfo(infoPath, info); err != nil {
				logger.Warn("failed to write agent info", "error", err)
			}
			defer func() { _ = agent.RemoveInfo(infoPath) }()

			logger.Info("agent starting", "version", version, "socket", cfg.Paths.Socket)

			return shutdown.Run(ctx, logger, 10*time.Second,
				func(runCtx context.Context) error {
					return srv.Start(runCtx)
				},
				func(context.Context) error {
					return srv.Stop()
				},
			)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show agent status",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := agent.FindInfo("")
			if err != nil {
				return fmt.Errorf("agent not running: %w", err)
			}

			client := agent.NewClient(info.SocketPath)
			ping, err := client.Ping(cmd.Context())
			if err != nil {
				return fmt.Errorf("agent not responding: %w", err)
			}

			if viper.GetBool(FlagJSON) {
				data, err := json.MarshalIndent(ping, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal status: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			color.New(color.FgGreen).Printf("Status: %s\n", ping.Status)
			fmt.Printf("PID: %d\n", ping.PID)
			fmt.Printf("Started: %s\n", ping.StartTime)
			fmt.Printf("Uptime: %s\n", ping.Uptime)
			fmt.Printf("Socket: %s\n", info.SocketPath)
			fmt.Printf("Commands: %s\n", strings.Join(ping.Commands, ", "))
			return nil
		},
	}
	statusCmd.Flags().Bool(FlagJSON, false, "Output status as JSON")
	_ = viper.BindPFlag(FlagJSON, statusCmd.Flags().Lookup(FlagJSON))

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := agent.FindInfo("")
			if err != nil {
				return fmt.Errorf("agent not running: %w", err)
			}

			client := agent.NewClient(info.SocketPath)
			if err := client.StopAgent(cmd.Context()); err != nil {
				return err
			}

			fmt.Println("Stop requested - agent shutting down")
			return nil
		},
	}

	deployCmd := &cobra.Command{
		Use:   "deploy <profile>",
		Short: "Run the deploy pipeline for a profile",
		Long: `Run the deploy pipeline for a profile without opening the console.

By default the pipeline pulls the requested branch, stops the old
service, and starts the new one. With --start-only the pull and stop
steps are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetBool(FlagVerbose) {
				logLevel.Set(slog.LevelDebug)
			}

			cfg, _, err := loadResolvedConfig(cmd)
			if err != nil {
				return err
			}

			profiles, err := deploy.LoadProfiles(cfg.Deploy.ProfilesFile)
			if err != nil {
				return fmt.Errorf("load profiles: %w", err)
			}
			profile, err := deploy.FindProfile(profiles, args[0])
			if err != nil {
				return err
			}

			mode := deploy.ModePullAndStart
			if viper.GetBool(FlagStartOnly) {
				mode = deploy.ModeStartOnly
			}
			branch := viper.GetString(FlagBranch)

			gw := selectGateway(cfg, logger, viper.GetBool(FlagLocal))
			runner := deploy.NewRunner(gw, clock.System(), logger)

			ctx, cancelRun := context.WithTimeout(cmd.Context(), 10*cfg.Gateway.ActionTimeout)
			defer cancelRun()

			printer := newStepPrinter()
			state, err := runner.Run(ctx, profile, branch, mode, printer.report)
			if err != nil {
				return err
			}

			if state.LastError != "" {
				color.New(color.FgRed).Println(state.Summary)
				return fmt.Errorf("%s", state.LastError)
			}
			color.New(color.FgGreen).Println(state.Summary)
			return nil
		},
	}
	deployCmd.Flags().String(FlagBranch, "", "Branch to deploy (required for git profiles)")
	deployCmd.Flags().Bool(FlagStartOnly, false, "Skip the pull and stop steps")
	deployCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(deployCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// stepPrinter prints each pipeline step transition once.
type stepPrinter struct {
	w    io.Writer
	seen map[deploy.StepName]deploy.StepStatus
}

func newStepPrinter() *stepPrinter {
	return &stepPrinter{w: os.Stdout, seen: make(map[deploy.StepName]deploy.StepStatus)}
}

func (p *stepPrinter) report(state deploy.State) {
	for _, step := range state.Steps {
		if p.seen[step.Name] == step.Status {
			continue
		}
		p.seen[step.Name] = step.Status

		switch step.Status {
		case deploy.StatusRunning:
			fmt.Fprintf(p.w, "%-12s %s\n", step.Name, color.New(color.FgCyan).Sprint("running"))
		case deploy.StatusSuccess:
			fmt.Fprintf(p.w, "%-12s %s\n", step.Name, color.New(color.FgGreen).Sprint("success"))
		case deploy.StatusFailed:
			fmt.Fprintf(p.w, "%-12s %s  %s\n", step.Name,
				color.New(color.FgRed).Sprint("failed"), step.Message)
		case deploy.StatusSkipped:
			fmt.Fprintf(p.w, "%-12s %s  %s\n", step.Name,
				color.New(color.Faint).Sprint("skipped"), step.Message)
		}
	}
}
