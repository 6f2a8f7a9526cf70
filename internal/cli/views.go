package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"devservices/internal/dependency"
	"devservices/internal/orchestrator"
	"devservices/internal/state"
	dsstrings "devservices/pkg/strings"

	"github.com/jedib0t/go-pretty/v6/text"
)

// PrintResult prints the per-dependency outcome of up, down or purge
// followed by a one-line summary.
func (p *Printer) PrintResult(res *orchestrator.Result) error {
	if p.Structured() {
		return p.writeStructured(res)
	}

	if len(res.Dependencies) == 0 {
		fmt.Fprintln(p.Out, FormatWarning(fmt.Sprintf("%s: nothing to %s", displayService(res.Service), res.Operation)))
		return nil
	}

	t := p.newTable()
	t.SetHeaders([]string{"Dependency", "Action", "Status", "Runtime", "Referrers", "Message"})
	for _, d := range res.Dependencies {
		msg := d.Error
		if msg == "" {
			msg = d.Warning
		}
		t.AppendRow([]string{d.Name, string(d.Action), string(d.Status), dash(string(d.Runtime)), strconv.Itoa(d.Referrers), dash(dsstrings.Truncate(msg, dsstrings.MessageMaxLen))})
	}
	t.Render()

	summary := fmt.Sprintf("%s of %s: %s", res.Operation, displayService(res.Service), res.Outcome())
	switch res.Outcome() {
	case orchestrator.OutcomeSuccess:
		fmt.Fprintln(p.Out, FormatSuccess(summary))
	case orchestrator.OutcomePartial:
		fmt.Fprintln(p.Out, FormatWarning(summary))
	default:
		fmt.Fprintln(p.Out, text.FgRed.Sprint("✗ "+summary))
	}
	return nil
}

// PrintRecords prints the status table of service, or of everything when
// service is empty.
func (p *Printer) PrintRecords(service string, recs []state.Record) error {
	if p.Structured() {
		if recs == nil {
			recs = []state.Record{}
		}
		return p.writeStructured(recs)
	}
	if len(recs) == 0 {
		fmt.Fprintln(p.Out, FormatWarning(fmt.Sprintf("%s: no dependencies running", displayService(service))))
		return nil
	}

	t := p.newTable()
	t.SetHeaders([]string{"Dependency", "Status", "Runtime", "Referrers", "Modes", "Updated"})
	for _, r := range recs {
		t.AppendRow([]string{
			r.Name,
			string(r.Status),
			string(r.Runtime),
			strconv.Itoa(r.Referrers),
			dash(strings.Join(r.Modes, ",")),
			since(r.UpdatedAt),
		})
	}
	t.Render()
	return nil
}

// ServiceSummary is one row of list-services.
type ServiceSummary struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Status string   `json:"status"`
	Modes  []string `json:"modes,omitempty"`
}

// PrintServices prints the services found in the coderoot.
func (p *Printer) PrintServices(services []ServiceSummary) error {
	if p.Structured() {
		if services == nil {
			services = []ServiceSummary{}
		}
		return p.writeStructured(services)
	}
	if len(services) == 0 {
		fmt.Fprintln(p.Out, FormatWarning("no services found"))
		return nil
	}

	t := p.newTable()
	t.SetHeaders([]string{"Service", "Status", "Modes", "Path"})
	for _, s := range services {
		t.AppendRow([]string{s.Name, s.Status, dash(strings.Join(s.Modes, ",")), s.Path})
	}
	t.Render()
	return nil
}

// DependencySummary is one row of list-dependencies.
type DependencySummary struct {
	Name        string   `json:"name"`
	Key         string   `json:"key"`
	Kind        string   `json:"kind"`
	Description string   `json:"description,omitempty"`
	Remote      string   `json:"remote,omitempty"`
	Layer       int      `json:"layer"`
	DependsOn   []string `json:"dependsOn,omitempty"`
}

// SummarizePlan lists the nodes of sel in startup order.
func SummarizePlan(sel *dependency.Selection) []DependencySummary {
	g := sel.Graph()
	var out []DependencySummary
	for i, layer := range sel.Layers() {
		for _, id := range layer {
			n := g.Get(id)
			d := DependencySummary{
				Name:        n.Name,
				Key:         string(n.ID),
				Kind:        string(n.Kind),
				Description: n.Description,
				Layer:       i + 1,
			}
			if n.Remote != nil {
				d.Remote = n.Remote.Key()
			}
			for _, dep := range n.DependsOn {
				d.DependsOn = append(d.DependsOn, g.Get(dep).Name)
			}
			out = append(out, d)
		}
	}
	return out
}

// PrintDependencies prints the dependencies of the selected modes.
func (p *Printer) PrintDependencies(deps []DependencySummary) error {
	if p.Structured() {
		if deps == nil {
			deps = []DependencySummary{}
		}
		return p.writeStructured(deps)
	}
	if len(deps) == 0 {
		fmt.Fprintln(p.Out, FormatWarning("no dependencies"))
		return nil
	}

	t := p.newTable()
	t.SetHeaders([]string{"Layer", "Dependency", "Kind", "Remote", "Depends On", "Description"})
	for _, d := range deps {
		t.AppendRow([]string{strconv.Itoa(d.Layer), d.Name, d.Kind, dash(d.Remote), dash(strings.Join(d.DependsOn, ",")), dash(dsstrings.Truncate(d.Description, dsstrings.DescriptionMaxLen))})
	}
	t.Render()
	return nil
}

// PrintToggle prints the result of a runtime toggle.
func (p *Printer) PrintToggle(res *orchestrator.DependencyResult) error {
	if p.Structured() {
		return p.writeStructured(res)
	}
	switch {
	case res.Error != "":
		fmt.Fprintln(p.Out, text.FgRed.Sprintf("✗ %s: %s", res.Name, dsstrings.LastLine(res.Error)))
	case res.Action == orchestrator.ActionNoop:
		fmt.Fprintln(p.Out, FormatWarning(fmt.Sprintf("%s already uses the %s runtime", res.Name, res.Runtime)))
	case res.Warning != "":
		fmt.Fprintln(p.Out, FormatWarning(fmt.Sprintf("%s switched to %s: %s", res.Name, res.Runtime, res.Warning)))
	default:
		fmt.Fprintln(p.Out, FormatSuccess(fmt.Sprintf("%s switched to %s (%s)", res.Name, res.Runtime, res.Status)))
	}
	return nil
}

func displayService(service string) string {
	if service == "" {
		return "all services"
	}
	return service
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func since(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return time.Since(t).Round(time.Second).String() + " ago"
}
