package cli

import (
	"fmt"
	"os"

	cwerrors "github.com/rileyhilliard/cw/internal/errors"
	"github.com/rileyhilliard/cw/internal/poller"
	"github.com/rileyhilliard/cw/internal/store"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Fetch the cluster over REST and save it as a snapshot file",
	Long: `Fetch every resource once and write the view-model as JSON. Use "-" for
stdout. The file can be printed with 'cw snapshot --from FILE' or served with
'cw mock-server --seed FILE'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, cleanup, err := openSession(false)
		if err != nil {
			return err
		}
		defer cleanup()

		snap, err := fetchSnapshot(cmd.Context(), sess, poller.All)
		if err != nil {
			return err
		}

		if args[0] == "-" {
			return store.WriteSnapshot(cmd.OutOrStdout(), snap)
		}
		if err := writeSnapshotFile(args[0], snap); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if machineMode {
			return WriteJSONSuccess(out, map[string]interface{}{
				"file":   args[0],
				"nodes":  len(snap.Nodes),
				"models": len(snap.Models),
				"users":  len(snap.Users),
			})
		}
		fmt.Fprintf(out, "Wrote %s (%d nodes, %d models, %d users)\n", args[0], len(snap.Nodes), len(snap.Models), len(snap.Users))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func writeSnapshotFile(path string, snap store.Snapshot) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return cwerrors.WrapWithCode(err, cwerrors.ErrConfig, "Can't create "+path, "Check the directory exists and is writable")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cwerrors.WrapWithCode(cerr, cwerrors.ErrConfig, "Can't write "+path, "")
		}
	}()
	return store.WriteSnapshot(f, snap)
}
