package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	cwerrors "github.com/rileyhilliard/cw/internal/errors"
	"github.com/rileyhilliard/cw/internal/model"
	"github.com/rileyhilliard/cw/internal/poller"
	"github.com/rileyhilliard/cw/internal/session"
	"github.com/rileyhilliard/cw/internal/store"
	"github.com/rileyhilliard/cw/internal/ui"
	"github.com/rileyhilliard/cw/internal/util"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var (
	snapshotFromFlag      string
	snapshotResourcesFlag []string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Fetch the cluster once over REST and print it",
	Long: `Fetch cluster status, nodes, models, users and metrics once over REST and
print them as tables, or as the JSON envelope with --json.

--from prints a file written by 'cw export' instead of contacting the cluster.

Examples:
  cw snapshot
  cw snapshot --resources nodes,models
  cw snapshot --json | jq '.data.nodes'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !machineMode && !isTerminal(cmd.OutOrStdout()) {
			ui.DisableColors()
		}
		snap, err := takeSnapshot(cmd.Context(), snapshotFromFlag, snapshotResourcesFlag)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if machineMode {
			return WriteJSONSuccess(out, snap)
		}
		renderSnapshot(out, snap)
		return nil
	},
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotFromFlag, "from", "", "read an exported snapshot file instead of the cluster")
	snapshotCmd.Flags().StringSliceVar(&snapshotResourcesFlag, "resources", nil, "limit to cluster, nodes, models, users, metrics")
	rootCmd.AddCommand(snapshotCmd)
}

// takeSnapshot reads a snapshot from a file, or fetches one through a
// fresh session. Partial fetch failures are reported on the session log
// and only fail the command when nothing at all came back.
func takeSnapshot(ctx context.Context, from string, resources []string) (store.Snapshot, error) {
	if from != "" {
		f, err := os.Open(from)
		if err != nil {
			return store.Snapshot{}, cwerrors.WrapWithCode(err, cwerrors.ErrConfig,
				"Can't open "+from, "Check the path, or create one with 'cw export FILE'")
		}
		defer f.Close()
		return store.ReadSnapshot(f)
	}

	res, err := poller.ParseResources(resources)
	if err != nil {
		return store.Snapshot{}, err
	}

	sess, cleanup, err := openSession(false)
	if err != nil {
		return store.Snapshot{}, err
	}
	defer cleanup()

	return fetchSnapshot(ctx, sess, res)
}

func fetchSnapshot(ctx context.Context, sess *session.Session, res []poller.Resource) (store.Snapshot, error) {
	err := sess.Refresh(ctx, res...)
	want := make(map[poller.Resource]bool, len(res))
	for _, r := range res {
		want[r] = true
	}
	if err != nil && len(multierr.Errors(err)) >= len(want) {
		return store.Snapshot{}, multierr.Errors(err)[0]
	}
	return sess.Store.Snapshot(), nil
}

// renderSnapshot prints the snapshot as human-readable tables.
func renderSnapshot(w io.Writer, snap store.Snapshot) {
	if cs := snap.Cluster; cs != nil {
		fmt.Fprintf(w, "%s %s  %d/%d nodes healthy, %d models",
			ui.TitleStyle.Render("Cluster"), util.OrDash(cs.Status), cs.HealthyNodes, cs.NodeCount, cs.ModelCount)
		if cs.Leader != "" {
			fmt.Fprintf(w, ", leader %s", cs.Leader)
		}
		if cs.Version != "" {
			fmt.Fprintf(w, ", version %s", cs.Version)
		}
		fmt.Fprintln(w)
	}

	section(w, "Nodes", []ui.TableColumn{{Title: "ID"}, {Title: "STATUS"}, {Title: "ADDRESS"}, {Title: "CPU"}, {Title: "MEM"}, {Title: "DISK"}, {Title: "MODELS"}},
		len(snap.Nodes), func(i int) []string {
			n := snap.Nodes[i]
			return []string{n.ID, util.OrDash(string(n.Status)), util.OrDash(n.Address), pct(n.CPU), pct(n.Memory), pct(n.Disk), util.JoinOrDash(n.Models, ",")}
		})

	section(w, "Models", []ui.TableColumn{{Title: "NAME"}, {Title: "STATUS"}, {Title: "SIZE"}, {Title: "READY"}, {Title: "REPLICAS"}},
		len(snap.Models), func(i int) []string {
			m := snap.Models[i]
			return []string{m.Name, util.OrDash(string(m.Status)), util.OrDash(m.Size), strconv.FormatBool(m.Ready), util.JoinOrDash(m.Replicas, ",")}
		})

	section(w, "Users", []ui.TableColumn{{Title: "ID"}, {Title: "USERNAME"}, {Title: "EMAIL"}, {Title: "ROLES"}, {Title: "ACTIVE"}},
		len(snap.Users), func(i int) []string {
			u := snap.Users[i]
			return []string{u.ID, u.Username, util.OrDash(u.Email), util.JoinOrDash(u.Roles, ","), strconv.FormatBool(u.Active)}
		})

	names := make([]string, 0, len(snap.Metrics))
	for name := range snap.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	section(w, "Metrics", []ui.TableColumn{{Title: "METRIC"}, {Title: "LATEST"}, {Title: "SAMPLES"}, {Title: "HISTORY", Width: 22}},
		len(names), func(i int) []string {
			points := snap.Metrics[names[i]]
			return []string{names[i], latest(points), strconv.Itoa(len(points)), ui.Sparkline(values(points), 20)}
		})
}

func section(w io.Writer, title string, cols []ui.TableColumn, n int, row func(int) []string) {
	fmt.Fprintln(w)
	if n == 0 {
		fmt.Fprintf(w, "%s %s\n", ui.TitleStyle.Render(title), ui.MutedStyle.Render("(none)"))
		return
	}
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = row(i)
	}
	fmt.Fprintln(w, ui.TitleStyle.Render(title))
	fmt.Fprintln(w, ui.RenderSimpleTable(cols, rows))
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

func latest(points []model.MetricPoint) string {
	if len(points) == 0 {
		return "-"
	}
	return strconv.FormatFloat(points[len(points)-1].Value, 'f', 2, 64)
}

func values(points []model.MetricPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}
