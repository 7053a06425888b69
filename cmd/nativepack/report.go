package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/animus-labs/nativepack/internal/credentials"
	"github.com/animus-labs/nativepack/internal/domain"
	"github.com/animus-labs/nativepack/internal/pipeline"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
)

func renderReport(r pipeline.Report) string {
	state := okStyle.Render(string(r.State))
	if r.State == domain.RunStateAborted || len(r.Failed()) > 0 {
		state = failStyle.Render(string(r.State))
	}
	summary := []string{
		titleStyle.Render("nativepack run " + r.RunID),
		field("version", r.Version),
		field("state", state),
	}
	if !r.Descriptor.IsZero() {
		summary = append(summary, field("coordinates", r.Descriptor.Coordinates()))
		summary = append(summary, field("descriptor", r.DescriptorSHA256))
	}
	if r.Package.ArchivePath != "" {
		summary = append(summary, field("archive", r.Package.ArchivePath))
	}
	if r.Err != nil {
		summary = append(summary, field("error", failStyle.Render(r.Err.Error())))
	}

	blocks := []string{lipgloss.JoinVertical(lipgloss.Left, summary...)}
	if len(r.Package.Artifacts) > 0 {
		blocks = append(blocks, artifactTable(r.Package.Artifacts))
	}
	if len(r.Endpoints) > 0 {
		rows := make([][]string, 0, len(r.Endpoints))
		for _, o := range r.Endpoints {
			detail := ""
			if o.Err != nil {
				detail = o.Err.Error()
			}
			rows = append(rows, []string{o.Endpoint.Name, o.Endpoint.Kind, stateCell(o.State), detail})
		}
		blocks = append(blocks, table([]string{"ENDPOINT", "KIND", "STATE", "DETAIL"}, rows))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, withGaps(blocks)...)) + "\n"
}

func renderPackage(pkg domain.Package) string {
	header := titleStyle.Render(fmt.Sprintf("payload %s (version %s)", pkg.Root, pkg.Version))
	return lipgloss.JoinVertical(lipgloss.Left, header, artifactTable(pkg.Artifacts)) + "\n"
}

func renderCredentials(rows []credentials.Resolution) string {
	if len(rows) == 0 {
		return "no endpoint requires credentials\n"
	}
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		status := failStyle.Render("missing")
		if r.Found {
			status = okStyle.Render("resolved")
		}
		out = append(out, []string{r.Endpoint, r.Key, status, r.Source, r.Masked})
	}
	return table([]string{"ENDPOINT", "KEY", "STATUS", "SOURCE", "VALUE"}, out) + "\n"
}

func renderEndpoints(endpoints []domain.RepositoryEndpoint) string {
	rows := make([][]string, 0, len(endpoints))
	for _, ep := range endpoints {
		needs := "no"
		if ep.RequiresCredential() {
			needs = "yes"
		}
		rows = append(rows, []string{ep.Name, ep.Kind, string(ep.Auth), needs, ep.URL})
	}
	return table([]string{"NAME", "KIND", "AUTH", "CREDENTIAL", "URL"}, rows) + "\n"
}

func artifactTable(artifacts []domain.Artifact) string {
	rows := make([][]string, 0, len(artifacts))
	for _, a := range artifacts {
		sum := a.SHA256
		if len(sum) > 12 {
			sum = sum[:12]
		}
		rows = append(rows, []string{a.Architecture, a.PackagePath, fmt.Sprintf("%d", a.SizeBytes), sum})
	}
	return table([]string{"ARCH", "PATH", "BYTES", "SHA256"}, rows)
}

func stateCell(state domain.EndpointState) string {
	if state == domain.EndpointPublished {
		return okStyle.Render(string(state))
	}
	return failStyle.Render(string(state))
}

func field(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-12s", label)) + value
}

// table left-aligns columns by rendered width so styled cells line up.
func table(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	line := func(cells []string, style *lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if style != nil {
				cell = style.Render(cell)
			}
			pad := widths[i] - lipgloss.Width(cell)
			if pad < 0 {
				pad = 0
			}
			parts[i] = cell + strings.Repeat(" ", pad)
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}
	lines := []string{line(headers, &headerStyle)}
	for _, row := range rows {
		lines = append(lines, line(row, nil))
	}
	return strings.Join(lines, "\n")
}

func withGaps(blocks []string) []string {
	out := make([]string, 0, len(blocks)*2)
	for i, b := range blocks {
		if i > 0 {
			out = append(out, "")
		}
		out = append(out, b)
	}
	return out
}
