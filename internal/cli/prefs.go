package cli

import (
	"fmt"

	"github.com/rileyhilliard/cw/internal/config"
	"github.com/rileyhilliard/cw/internal/prefs"
	"github.com/spf13/cobra"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change local preferences",
	Long: `Preferences live in ~/.config/cw/prefs.yaml and are separate from the
cluster config. Keys: theme (auto, light, dark), remembered_username.`,
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current preferences",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolvePrefsPath()
		if err != nil {
			return err
		}
		p, err := prefs.Load(path)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if machineMode {
			return WriteJSONSuccess(out, p)
		}
		fmt.Fprintf(out, "%s: %s\n", prefs.KeyTheme, p.Theme)
		fmt.Fprintf(out, "%s: %s\n", prefs.KeyRememberedUsername, p.RememberedUsername)
		fmt.Fprintf(out, "file: %s\n", path)
		return nil
	},
}

var prefsSetCmd = &cobra.Command{
	Use:       "set KEY VALUE",
	Short:     "Change one preference",
	Example:   "  cw prefs set theme dark",
	Args:      cobra.ExactArgs(2),
	ValidArgs: prefs.Keys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolvePrefsPath()
		if err != nil {
			return err
		}
		p, err := prefs.Set(path, args[0], args[1])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if machineMode {
			return WriteJSONSuccess(out, p)
		}
		value, _ := p.Get(args[0])
		fmt.Fprintf(out, "%s set to %q\n", args[0], value)
		return nil
	},
}

func init() {
	prefsCmd.AddCommand(prefsShowCmd, prefsSetCmd)
	rootCmd.AddCommand(prefsCmd)
}

func resolvePrefsPath() (string, error) {
	if prefsFileFlag != "" {
		return config.ExpandPath(prefsFileFlag), nil
	}
	return prefs.DefaultPath()
}

// prefsPath is resolvePrefsPath for callers that treat preferences as
// optional. It returns "" when no path can be determined.
func prefsPath() string {
	p, err := resolvePrefsPath()
	if err != nil {
		return ""
	}
	return p
}
