package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/cw/internal/model"
	"github.com/rileyhilliard/cw/internal/store"
	"github.com/rileyhilliard/cw/internal/ui"
	"github.com/rileyhilliard/cw/internal/util"
)

const (
	// sparkWidth is the number of samples drawn per metric.
	sparkWidth = 30
	// barWidth is the width of the per-node cpu and memory bars.
	barWidth = 10
	// maxAlerts caps how many alerts the panel lists.
	maxAlerts = 5
)

// frame is everything one render reads from the store.
type frame struct {
	conn     model.Connection
	cluster  model.ClusterStatus
	hasClust bool
	nodes    []model.Node
	models   []model.Model
	metrics  []metricLine
	alerts   []model.Alert
	now      time.Time
}

type metricLine struct {
	name   string
	values []float64
}

// capture reads a consistent-enough frame from st. Each getter takes the
// store lock separately; a write landing in between shows on the next
// change notification.
func capture(st *store.Store, now time.Time) frame {
	f := frame{
		conn:   st.Connection(),
		nodes:  st.Nodes(),
		models: st.Models(),
		alerts: st.Alerts(),
		now:    now,
	}
	f.cluster, f.hasClust = st.Cluster()
	for _, name := range st.MetricNames() {
		f.metrics = append(f.metrics, metricLine{name: name, values: st.MetricValues(name, sparkWidth)})
	}
	return f
}

// renderDashboard renders the complete dashboard view.
func (m Model) renderDashboard() string {
	f := capture(m.store, m.now())

	sections := []string{
		m.renderHeader(f),
		renderSection("Nodes", renderNodes(f.nodes)),
		renderSection("Models", renderModels(f.models)),
		renderSection("Metrics", renderMetrics(f.metrics)),
	}
	if len(f.alerts) > 0 {
		sections = append(sections, renderSection("Alerts", renderAlerts(f.alerts, f.now)))
	}
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders the title, connection badge and cluster summary.
func (m Model) renderHeader(f frame) string {
	frameGlyph := ""
	if f.conn.State == model.StateConnecting {
		frameGlyph = m.spinner.View()
	}

	title := ui.TitleStyle.Render("cw watch")
	parts := []string{title, connectionBadge(f.conn, frameGlyph)}

	if f.hasClust {
		cs := f.cluster
		parts = append(parts,
			clusterStatusStyle(cs.Status).Render(util.OrDash(cs.Status)),
			LabelStyle.Render(fmt.Sprintf("%d/%d nodes healthy", cs.HealthyNodes, cs.NodeCount)),
			LabelStyle.Render(fmt.Sprintf("%d models", cs.ModelCount)),
		)
		if cs.Leader != "" {
			parts = append(parts, LabelStyle.Render("leader "+cs.Leader))
		}
		if cs.Version != "" {
			parts = append(parts, LabelStyle.Render("v"+strings.TrimPrefix(cs.Version, "v")))
		}
		if !cs.UpdatedAt.IsZero() {
			parts = append(parts, LabelStyle.Render("updated "+ago(f.now.Sub(cs.UpdatedAt))))
		}
	} else {
		parts = append(parts, LabelStyle.Render("waiting for cluster status"))
	}

	return HeaderStyle.Render(strings.Join(parts, LabelStyle.Render(" | ")))
}

func renderSection(title, body string) string {
	return SectionStyle.Render(SectionTitleStyle.Render(title) + "\n" + body)
}

func renderNodes(nodes []model.Node) string {
	if len(nodes) == 0 {
		return LabelStyle.Render("No nodes reported")
	}

	idWidth := columnWidth(len("ID"), len(nodes), func(i int) string { return nodes[i].ID })
	var b strings.Builder
	for i, n := range nodes {
		if i > 0 {
			b.WriteString("\n")
		}
		status := nodeStatusStyle(n.Status).Render(pad(util.OrDash(string(n.Status)), 9))
		fmt.Fprintf(&b, "%s %s cpu %s  mem %s  %s",
			ValueStyle.Render(pad(n.ID, idWidth)),
			status,
			ui.RenderBar(n.CPU, barWidth),
			ui.RenderBar(n.Memory, barWidth),
			LabelStyle.Render(plural(len(n.Models), "model")),
		)
	}
	return b.String()
}

func renderModels(models []model.Model) string {
	if len(models) == 0 {
		return LabelStyle.Render("No models")
	}

	nameWidth := columnWidth(len("NAME"), len(models), func(i int) string { return models[i].Name })
	var b strings.Builder
	for i, md := range models {
		if i > 0 {
			b.WriteString("\n")
		}
		ready := ui.MutedStyle.Render("not ready")
		if md.Ready {
			ready = ui.SuccessStyle.Render(ui.SymbolSuccess + " ready")
		}
		fmt.Fprintf(&b, "%s %s %s %s  %s",
			ValueStyle.Render(pad(md.Name, nameWidth)),
			modelStatusStyle(md.Status).Render(pad(util.OrDash(string(md.Status)), 11)),
			LabelStyle.Render(pad(util.OrDash(md.Size), 7)),
			ready,
			LabelStyle.Render(plural(len(md.Replicas), "replica")),
		)
	}
	return b.String()
}

func renderMetrics(lines []metricLine) string {
	if len(lines) == 0 {
		return LabelStyle.Render("No metrics yet")
	}

	nameWidth := columnWidth(0, len(lines), func(i int) string { return lines[i].name })
	var b strings.Builder
	for i, ml := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		spark := ui.RenderSparklineNeutral(ml.values, sparkWidth)
		if isPercent(ml.name) {
			spark = ui.RenderSparkline(ml.values, sparkWidth)
		}
		last := "-"
		if len(ml.values) > 0 {
			last = formatValue(ml.name, ml.values[len(ml.values)-1])
		}
		fmt.Fprintf(&b, "%s %s %s", LabelStyle.Render(pad(ml.name, nameWidth)), pad(spark, sparkWidth), ValueStyle.Render(last))
	}
	return b.String()
}

// renderAlerts lists alerts newest first.
func renderAlerts(list []model.Alert, now time.Time) string {
	var b strings.Builder
	shown := 0
	for i := len(list) - 1; i >= 0 && shown < maxAlerts; i-- {
		a := list[i]
		if shown > 0 {
			b.WriteString("\n")
		}
		style := ui.SeverityStyle(string(a.Severity))
		fmt.Fprintf(&b, "%s %s %s",
			style.Render(ui.SeveritySymbol(string(a.Severity))),
			a.Message,
			LabelStyle.Render(ago(now.Sub(a.CreatedAt))),
		)
		shown++
	}
	if rest := len(list) - shown; rest > 0 {
		b.WriteString("\n" + LabelStyle.Render(fmt.Sprintf("+%d more", rest)))
	}
	return b.String()
}

// renderFooter renders the key hints and the last action's outcome.
func (m Model) renderFooter() string {
	hints := "q quit | r refresh | R reconnect | d dismiss | ? help"
	if m.notice != "" {
		hints += " | " + m.notice
	}
	return FooterStyle.Render(hints)
}

// isPercent reports whether a metric is a 0-100 utilisation value.
func isPercent(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "cpu") || strings.Contains(n, "memory") ||
		strings.Contains(n, "disk") || strings.Contains(n, "percent")
}

func formatValue(name string, v float64) string {
	if isPercent(name) {
		return fmt.Sprintf("%.1f%%", v)
	}
	return fmt.Sprintf("%.1f", v)
}

func ago(d time.Duration) string {
	switch {
	case d < time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d/time.Second))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	default:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// pad right-pads s to width cells, ignoring ANSI sequences.
func pad(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

func columnWidth(floor, n int, cell func(int) string) int {
	w := floor
	for i := 0; i < n; i++ {
		w = max(w, lipgloss.Width(cell(i)))
	}
	return w
}
