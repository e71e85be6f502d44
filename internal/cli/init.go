package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/cw/internal/api"
	"github.com/rileyhilliard/cw/internal/config"
	cwerrors "github.com/rileyhilliard/cw/internal/errors"
	"github.com/rileyhilliard/cw/internal/prefs"
	"github.com/rileyhilliard/cw/internal/ui"
	"github.com/rileyhilliard/cw/internal/util"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	BaseURL        string // Pre-specified cluster URL
	Token          string
	PollMode       string
	Dir            string // Where .cw.yaml is written; default cwd
	Overwrite      bool   // Overwrite existing config without asking
	NonInteractive bool   // Skip prompts, use flags and defaults
	SkipCheck      bool   // Don't contact the cluster before saving
}

var initOpts InitOptions

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a .cw.yaml config in the current directory",
	Long: `Ask for the cluster URL and access token, check the cluster answers, and
write .cw.yaml. Theme and username go to the preferences file.

Examples:
  cw init
  cw init --non-interactive --server http://10.0.0.5:8080 --token $TOKEN`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := initOpts
		if opts.BaseURL == "" {
			opts.BaseURL = serverFlag
		}
		opts.Token = tokenFlag
		return Init(cmd.Context(), cmd.OutOrStdout(), opts)
	},
}

func init() {
	f := initCmd.Flags()
	f.StringVar(&initOpts.BaseURL, "base-url", "", "cluster REST base URL")
	f.StringVar(&initOpts.PollMode, "poll-mode", config.PollAlways, "polling mode: always or fallback")
	f.BoolVarP(&initOpts.Overwrite, "force", "f", false, "overwrite existing config")
	f.BoolVar(&initOpts.NonInteractive, "non-interactive", false, "don't prompt; use flags and defaults")
	f.BoolVar(&initOpts.SkipCheck, "skip-check", false, "don't contact the cluster before saving")
	rootCmd.AddCommand(initCmd)
}

// Init creates a new .cw.yaml configuration file.
func Init(ctx context.Context, out io.Writer, opts InitOptions) error {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	configPath := filepath.Join(dir, config.ConfigFileName)

	if _, err := os.Stat(configPath); err == nil && !opts.Overwrite {
		if opts.NonInteractive {
			return cwerrors.New(cwerrors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", configPath),
				"Use --force to overwrite")
		}

		var overwrite bool
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Config file '%s' already exists. Overwrite?", config.ConfigFileName)).
				Value(&overwrite),
		))
		if err := form.Run(); err != nil {
			return cwerrors.WrapWithCode(err, cwerrors.ErrConfig,
				"Failed to get user input",
				"Try running with --force to overwrite")
		}
		if !overwrite {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	baseURL := opts.BaseURL
	token := opts.Token
	pollMode := opts.PollMode
	if pollMode == "" {
		pollMode = config.PollAlways
	}
	p := loadPrefsOrDefault()

	if opts.NonInteractive {
		if baseURL == "" {
			baseURL = config.DefaultConfig().Server.BaseURL
		}
	} else {
		if baseURL == "" {
			baseURL = config.DefaultConfig().Server.BaseURL
		}
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Cluster URL").
					Description("REST base URL; the socket is derived from it").
					Placeholder("http://localhost:8080").
					Value(&baseURL).
					Validate(validateBaseURL),
				huh.NewInput().
					Title("Access token (optional)").
					EchoMode(huh.EchoModePassword).
					Value(&token),
			),
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("REST polling").
					Options(
						huh.NewOption("Always poll every 30s", config.PollAlways),
						huh.NewOption("Only poll while live updates are down", config.PollFallback),
					).
					Value(&pollMode),
				huh.NewSelect[string]().
					Title("Theme").
					Options(
						huh.NewOption("Match terminal", prefs.ThemeAuto),
						huh.NewOption("Light", prefs.ThemeLight),
						huh.NewOption("Dark", prefs.ThemeDark),
					).
					Value(&p.Theme),
				huh.NewInput().
					Title("Username to remember (optional)").
					Value(&p.RememberedUsername),
			),
		)
		if err := form.Run(); err != nil {
			return cwerrors.WrapWithCode(err, cwerrors.ErrConfig,
				"Failed to get user input",
				"Check terminal compatibility or use --non-interactive flag")
		}
	}

	if err := validateBaseURL(baseURL); err != nil {
		return cwerrors.WrapWithCode(err, cwerrors.ErrConfig, "Invalid cluster URL", "Use something like http://localhost:8080")
	}
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")

	cfg := config.DefaultConfig()
	cfg.Server.BaseURL = baseURL
	cfg.Server.Token = token
	cfg.Polling.Mode = pollMode
	if err := config.Validate(cfg); err != nil {
		return err
	}

	if !opts.SkipCheck {
		if err := checkCluster(ctx, out, cfg); err != nil {
			if opts.NonInteractive {
				return err
			}
			var saveAnyway bool
			form := huh.NewForm(huh.NewGroup(
				huh.NewConfirm().
					Title("Save config anyway? (You can fix the connection later)").
					Value(&saveAnyway),
			))
			if formErr := form.Run(); formErr != nil || !saveAnyway {
				return err
			}
		}
	}

	if err := writeConfigFile(configPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s Created %s\n", ui.SymbolSuccess, configPath)

	if !opts.NonInteractive {
		if path, err := resolvePrefsPath(); err == nil {
			if err := prefs.Save(path, p); err != nil {
				fmt.Fprintf(out, "%s Couldn't save preferences: %s\n", ui.SymbolWarning, cwerrors.Short(err))
			}
		}
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  cw snapshot   - Fetch the cluster once")
	fmt.Fprintln(out, "  cw watch      - Live dashboard")
	return nil
}

func validateBaseURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("cluster URL is required")
	}
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must start with http:// or https://")
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}

// checkCluster fetches the cluster status once.
func checkCluster(ctx context.Context, out io.Writer, cfg *config.Config) error {
	client := api.NewClient(cfg.Server.BaseURL, api.WithToken(cfg.Server.Token), api.WithTimeout(5*time.Second))
	cs, err := client.ClusterStatus(ctx)
	if err != nil {
		fmt.Fprintf(out, "%s Couldn't reach %s: %s\n", ui.SymbolFail, cfg.Server.BaseURL, cwerrors.Short(err))
		return err
	}
	fmt.Fprintf(out, "%s Reached cluster (%s, %d nodes)\n", ui.SymbolSuccess, util.OrDash(cs.Status), cs.NodeCount)
	return nil
}

// writeConfigFile writes only the settings init asks about; everything
// else keeps its default.
func writeConfigFile(path string, cfg *config.Config) error {
	server := map[string]interface{}{"base_url": cfg.Server.BaseURL}
	if cfg.Server.Token != "" {
		server["token"] = cfg.Server.Token
	}
	doc := map[string]interface{}{
		"version": cfg.Version,
		"server":  server,
		"polling": map[string]interface{}{
			"interval": cfg.Polling.Interval.String(),
			"mode":     cfg.Polling.Mode,
		},
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return cwerrors.WrapWithCode(err, cwerrors.ErrConfig,
			"Failed to generate config",
			"This shouldn't happen - please report this bug")
	}

	header := `# cw configuration
# Run 'cw watch' for the live dashboard or 'cw snapshot' for a one-off view.
# Environment overrides use the CW_ prefix, e.g. CW_SERVER_TOKEN.

`
	if err := os.WriteFile(path, []byte(header+string(data)), 0600); err != nil {
		return cwerrors.WrapWithCode(err, cwerrors.ErrConfig,
			fmt.Sprintf("Failed to write config file: %s", path),
			"Check directory permissions")
	}
	return nil
}

func loadPrefsOrDefault() prefs.Prefs {
	p, err := prefs.Load(prefsPath())
	if err != nil {
		return prefs.Default()
	}
	return p
}
