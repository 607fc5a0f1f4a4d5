// Command popupctl manages popup templates from the terminal: it lists the
// template catalog, regenerates and publishes artifacts, previews popups in
// a browser and archives or restores published popups.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"showroom-popup-builder/internal/app"
	"showroom-popup-builder/internal/config"
)

// cli carries the state shared by every subcommand.
type cli struct {
	configPath string
	space      string
	logLevel   string

	cfg  *config.Config
	deps *app.Deps

	in          io.Reader
	openBrowser func(string) error
}

func main() {
	c := &cli{in: os.Stdin, openBrowser: openBrowser}
	if err := c.rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "popupctl",
		Short: "Manage showroom popup templates",
		Long: `popupctl works on the popup templates of a showroom space.
It reads the same configuration as the admin and scene servers
(config.yaml or POPUP_* environment variables).`,
		SilenceUsage: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.deps == nil {
				return nil
			}
			err := c.deps.Close()
			c.deps = nil
			return err
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default ./config.yaml)")
	root.PersistentFlags().StringVarP(&c.space, "space", "s", "", "space slug (default popups.space)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level (default log.level)")

	root.AddCommand(
		c.templatesCmd(),
		c.defaultsCmd(),
		c.listCmd(),
		c.generateCmd(),
		c.previewCmd(),
		c.publishCmd(),
		c.importCmd(),
		c.historyCmd(),
		c.deleteCmd(),
		c.restoreCmd(),
		c.archivedCmd(),
		c.purgeCmd(),
		c.exportCmd(),
	)
	return root
}

// load reads the configuration and opens the shared services once.
func (c *cli) load(cmd *cobra.Command) (*app.Deps, error) {
	if c.deps != nil {
		return c.deps, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if c.space != "" {
		cfg.Popups.Space = c.space
	}
	logger := config.NewLogger(cfg.Log, cmd.ErrOrStderr())
	deps, err := app.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.deps = deps
	return deps, nil
}

// askForConfirmation asks a yes/no question; anything but yes is no.
func (c *cli) askForConfirmation(cmd *cobra.Command, prompt string) bool {
	reader := bufio.NewReader(c.in)
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", prompt)
	response, err := reader.ReadString('\n')
	if err != nil && response == "" {
		return false
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

// openBrowser tries to open the given URL/file path in the default browser.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
