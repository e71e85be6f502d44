package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/cw/internal/config"
	"github.com/rileyhilliard/cw/internal/doctor"
	cwerrors "github.com/rileyhilliard/cw/internal/errors"
	"github.com/rileyhilliard/cw/internal/ui"
	"github.com/rileyhilliard/cw/internal/util"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the config, the cluster connection and local setup",
	Long: `Run diagnostic checks: config file and schema, the REST API, the
WebSocket feed, the preferences file and the terminal.

Exits non-zero when any check fails. Warnings alone don't fail.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorCommand(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// DoctorOutput represents the JSON output for doctor command.
type DoctorOutput struct {
	Categories []CategoryOutput `json:"categories"`
	Summary    SummaryOutput    `json:"summary"`
}

// CategoryOutput represents a category of check results.
type CategoryOutput struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

// SummaryOutput summarizes the check results.
type SummaryOutput struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	AllClear bool `json:"all_clear"`
}

func doctorCommand(ctx context.Context, out io.Writer) error {
	// Config errors become check results rather than aborting.
	cfg, loadErr := loadConfigUnvalidated()
	checks := doctor.Checks(configFlag, cfg, loadErr, prefsPath())
	results := doctor.RunAllParallel(ctx, checks)

	if machineMode {
		if err := outputDoctorJSON(out, results); err != nil {
			return err
		}
	} else {
		outputDoctorText(out, results)
	}

	if doctor.HasFailures(results) {
		counts := doctor.CountByStatus(results)
		return cwerrors.New(cwerrors.ErrState,
			fmt.Sprintf("%d %s failed", counts[doctor.StatusFail], util.Pluralize(counts[doctor.StatusFail], "check", "checks")), "")
	}
	return nil
}

// loadConfigUnvalidated is loadConfig without the final Validate, so a
// bad value is reported by the schema check.
func loadConfigUnvalidated() (*config.Config, error) {
	cfg, _, err := config.LoadOrDefault(configFlag)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg)
	return cfg, nil
}

func outputDoctorJSON(out io.Writer, results []doctor.CheckResult) error {
	order, grouped := doctor.GroupByCategory(results)
	output := DoctorOutput{Categories: make([]CategoryOutput, 0, len(order))}
	for _, cat := range order {
		output.Categories = append(output.Categories, CategoryOutput{Name: cat, Results: grouped[cat]})
	}

	counts := doctor.CountByStatus(results)
	output.Summary = SummaryOutput{
		Pass:     counts[doctor.StatusPass],
		Warn:     counts[doctor.StatusWarn],
		Fail:     counts[doctor.StatusFail],
		AllClear: !doctor.HasIssues(results),
	}
	return WriteJSONSuccess(out, output)
}

func outputDoctorText(out io.Writer, results []doctor.CheckResult) {
	headerStyle := lipgloss.NewStyle().Bold(true)

	fmt.Fprintln(out)
	fmt.Fprintln(out, headerStyle.Render("cw Diagnostic Report"))
	fmt.Fprintln(out)

	order, grouped := doctor.GroupByCategory(results)
	for _, category := range order {
		fmt.Fprintln(out, headerStyle.Render(category))
		for _, r := range grouped[category] {
			renderCheckResult(out, r)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, strings.Repeat("━", 60))
	symbol := ui.SuccessStyle.Render(ui.SymbolSuccess)
	if doctor.HasIssues(results) {
		symbol = ui.ErrorStyle.Render(ui.SymbolFail)
	}
	fmt.Fprintf(out, "%s %s\n", symbol, doctor.Summary(results))
}

func renderCheckResult(out io.Writer, r doctor.CheckResult) {
	var symbol string
	switch r.Status {
	case doctor.StatusPass:
		symbol = ui.SuccessStyle.Render(ui.SymbolSuccess)
	case doctor.StatusWarn:
		symbol = ui.WarningStyle.Render(ui.SymbolWarning)
	default:
		symbol = ui.ErrorStyle.Render(ui.SymbolFail)
	}

	fmt.Fprintf(out, "  %s %s\n", symbol, r.Message)
	if r.Suggestion != "" && r.Status != doctor.StatusPass {
		for _, line := range strings.Split(r.Suggestion, "\n") {
			fmt.Fprintf(out, "    %s\n", ui.MutedStyle.Render(line))
		}
	}
}
