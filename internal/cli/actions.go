package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rileyhilliard/cw/internal/actions"
	cwerrors "github.com/rileyhilliard/cw/internal/errors"
	"github.com/spf13/cobra"
)

var userSetFlag []string

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Pull, start, stop or delete a model",
}

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Drain or delete a node",
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Update or delete a user",
}

// actionCommand builds a subcommand that runs one action against its
// single argument.
func actionCommand(use, short string, kind actions.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd.Context(), cmd.OutOrStdout(), actions.Command{Kind: kind, Target: args[0]})
		},
	}
}

var userUpdateCmd = &cobra.Command{
	Use:   "update ID --set key=value...",
	Short: "Change fields of a user",
	Example: `  cw user update u-2 --set roles=admin,viewer
  cw user update u-2 --set active=false --set email=ops@example.com`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := parseUserFields(userSetFlag)
		if err != nil {
			return err
		}
		return runAction(cmd.Context(), cmd.OutOrStdout(), actions.Command{Kind: actions.UpdateUser, Target: args[0], Body: body})
	},
}

func init() {
	modelCmd.AddCommand(
		actionCommand("pull NAME", "Download a model onto the cluster", actions.PullModel),
		actionCommand("start NAME", "Start serving a model", actions.StartModel),
		actionCommand("stop NAME", "Stop serving a model", actions.StopModel),
		actionCommand("delete NAME", "Remove a model", actions.DeleteModel),
	)
	nodeCmd.AddCommand(
		actionCommand("drain ID", "Move work off a node and take it offline", actions.DrainNode),
		actionCommand("delete ID", "Remove a node from the cluster", actions.DeleteNode),
	)
	userUpdateCmd.Flags().StringArrayVar(&userSetFlag, "set", nil, "field to change as key=value (username, email, roles, active)")
	userCmd.AddCommand(
		userUpdateCmd,
		actionCommand("delete ID", "Delete a user", actions.DeleteUser),
	)
	rootCmd.AddCommand(modelCmd, nodeCmd, userCmd)
}

// actionOutput is the --json shape of an action result.
type actionOutput struct {
	Action     string   `json:"action"`
	Target     string   `json:"target"`
	Status     int      `json:"status,omitempty"`
	Message    string   `json:"message,omitempty"`
	DurationMS int64    `json:"duration_ms"`
	Refreshed  []string `json:"refreshed,omitempty"`
	RefreshErr string   `json:"refresh_error,omitempty"`
}

func runAction(ctx context.Context, out io.Writer, c actions.Command) error {
	sess, cleanup, err := openSession(false)
	if err != nil {
		return err
	}
	defer cleanup()

	res := sess.Execute(ctx, c)
	if res.Err != nil {
		return res.Err
	}

	if machineMode {
		o := actionOutput{
			Action:     string(c.Kind),
			Target:     c.Target,
			Status:     res.Code,
			Message:    res.Message,
			DurationMS: res.Duration.Milliseconds(),
		}
		for _, r := range res.Refreshed {
			o.Refreshed = append(o.Refreshed, string(r))
		}
		if res.RefreshErr != nil {
			o.RefreshErr = cwerrors.Short(res.RefreshErr)
		}
		return WriteJSONSuccess(out, o)
	}

	// The executor pushed a one-line summary alert; print it.
	msg := c.String() + " ok"
	if list := sess.Alerts.List(); len(list) > 0 {
		msg = list[len(list)-1].Message
	}
	fmt.Fprintf(out, "%s\n", msg)
	if res.Message != "" {
		fmt.Fprintf(out, "  server: %s\n", res.Message)
	}
	if res.RefreshErr != nil {
		fmt.Fprintf(out, "  warning: couldn't refresh afterwards: %s\n", cwerrors.Short(res.RefreshErr))
	}
	return nil
}

// parseUserFields turns key=value pairs into a user update body. roles
// is a comma separated list and active a boolean.
func parseUserFields(pairs []string) (map[string]any, error) {
	body := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, cwerrors.New(cwerrors.ErrConfig,
				fmt.Sprintf("'%s' isn't key=value", pair),
				"Example: --set email=ops@example.com")
		}
		switch key {
		case "username", "email":
			body[key] = value
		case "roles":
			roles := []string{}
			for _, r := range strings.Split(value, ",") {
				if r = strings.TrimSpace(r); r != "" {
					roles = append(roles, r)
				}
			}
			body[key] = roles
		case "active":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, cwerrors.WrapWithCode(err, cwerrors.ErrConfig,
					fmt.Sprintf("active must be true or false, got '%s'", value), "")
			}
			body[key] = b
		default:
			return nil, cwerrors.New(cwerrors.ErrConfig,
				fmt.Sprintf("Unknown user field '%s'", key),
				"Settable fields: username, email, roles, active")
		}
	}
	if len(body) == 0 {
		return nil, cwerrors.New(cwerrors.ErrConfig, "Nothing to update", "Pass at least one --set key=value")
	}
	return body, nil
}
