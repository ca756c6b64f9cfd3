package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"github.com/tr4cks/atx-power/modules"
	"github.com/tr4cks/atx-power/modules/atx"
	"github.com/tr4cks/atx-power/modules/wakeonlan"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFilePath, "config", path.Join("/etc", fmt.Sprintf("%s.d", appName), "config.yaml"), "YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&moduleName, "module", "m", "", "module for switching the server on or off")
	rootCmd.MarkPersistentFlagRequired("module")
}

const appName = "power"

var (
	configFilePath string
	moduleName     string
	rootCmd        = &cobra.Command{
		Use:     appName,
		Short:   "All-in-one tool for remote server power control",
		Version: "2.0.0",
		Args:    cobra.NoArgs,
		Run:     run,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
)

var internalModules = map[string]func(zerolog.Logger) modules.Module{
	"atx": atx.New,
	"wol": wakeonlan.New,
}

func createModule(config *Config, moduleName string, logger zerolog.Logger) (modules.Module, error) {
	newModule, ok := internalModules[moduleName]
	if !ok {
		moduleNames := make([]string, 0, len(internalModules))
		for moduleName := range internalModules {
			moduleNames = append(moduleNames, moduleName)
		}
		return nil, fmt.Errorf("can't find the %q module among the internal modules (available modules: %s)", moduleName, strings.Join(moduleNames, ", "))
	}

	module := newModule(logger)
	err := module.Init(config.Module)
	if err != nil {
		return nil, fmt.Errorf("error during module initialization: %w", err)
	}
	return module, nil
}

// setup loads the configuration and the module, or exits.
func setup() (*Config, modules.Module, zerolog.Logger) {
	config := parseConfigFile(configFilePath)
	logger := newLogger(config.LogLevel)

	module, err := createModule(config, moduleName, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
	return config, module, logger
}

func run(cmd *cobra.Command, args []string) {
	config, module, logger := setup()

	err := runServer(cmd.Context(), config, module, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Server stopped")
	}
}

func init() {
	rootCmd.AddCommand(upCmd, downCmd, offHardCmd, resetCmd, clickCmd, stateCmd)
}

// oneShot prepares the module, runs op to completion and releases the module.
func oneShot(op func(module modules.Module) error, errMsg string) {
	_, module, _ := setup()

	err := module.Prepare()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error during module preparation: %s\n", err)
		os.Exit(1)
	}
	err = op(module)
	module.Cleanup()

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", errMsg, err)
		os.Exit(1)
	}
}

var clickButtons = map[string]func(modules.Module, context.Context, bool) error{
	"power":      modules.Module.ClickPower,
	"power_long": modules.Module.ClickPowerLong,
	"reset":      modules.Module.ClickReset,
}

var (
	upCmd = &cobra.Command{
		Use:   "up",
		Short: "Start the server",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			oneShot(func(module modules.Module) error {
				return module.PowerOn(cmd.Context(), true)
			}, "Server power-up error")
		},
	}
	downCmd = &cobra.Command{
		Use:   "down",
		Short: "Turn off the server",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			oneShot(func(module modules.Module) error {
				return module.PowerOff(cmd.Context(), true)
			}, "Server shutdown error")
		},
	}
	offHardCmd = &cobra.Command{
		Use:   "off-hard",
		Short: "Force the server off by holding the power button",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			oneShot(func(module modules.Module) error {
				return module.PowerOffHard(cmd.Context(), true)
			}, "Server hard shutdown error")
		},
	}
	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Reset the server if it is running",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			oneShot(func(module modules.Module) error {
				return module.PowerResetHard(cmd.Context(), true)
			}, "Server reset error")
		},
	}
	clickCmd = &cobra.Command{
		Use:       "click {power|power_long|reset}",
		Short:     "Press a button regardless of the server state",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"power", "power_long", "reset"},
		Run: func(cmd *cobra.Command, args []string) {
			click := clickButtons[args[0]]
			oneShot(func(module modules.Module) error {
				return click(module, cmd.Context(), true)
			}, fmt.Sprintf("Button %q click error", args[0]))
		},
	}
	stateCmd = &cobra.Command{
		Use:   "state",
		Short: "Fetch the server state",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			oneShot(func(module modules.Module) error {
				jsonString, err := json.Marshal(module.State())
				if err != nil {
					return fmt.Errorf("error during JSON conversion: %w", err)
				}
				fmt.Println(string(jsonString))
				return nil
			}, "Failed to retrieve the server state")
		},
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
