package display

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/giantswarm/microerror"
	"github.com/liggitt/tabwriter"

	"github.com/giantswarm/autoscaling-scenario/scaling/provider"
)

const (
	empty      = "-"
	timeLayout = time.RFC3339
)

func Group(w io.Writer, g provider.Group) error {
	t := newTable(w)

	fmt.Fprintln(t, "NAME\tMIN\tMAX\tDESIRED\tINSTANCES\tZONES\tLAUNCH TEMPLATE")
	fmt.Fprintf(t, "%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
		g.Name,
		g.MinSize,
		g.MaxSize,
		g.DesiredCapacity,
		len(g.Instances),
		orEmpty(strings.Join(g.AvailabilityZones, ",")),
		orEmpty(launchTemplate(g)),
	)

	return flush(t)
}

func Instances(w io.Writer, instances []provider.Instance) error {
	t := newTable(w)

	fmt.Fprintln(t, "INSTANCE\tZONE\tLIFECYCLE\tHEALTH\tVERSION")
	for _, i := range instances {
		fmt.Fprintf(t, "%s\t%s\t%s\t%s\t%s\n",
			i.ID,
			orEmpty(i.AvailabilityZone),
			orEmpty(i.LifecycleState),
			orEmpty(i.HealthStatus),
			orEmpty(i.LaunchTemplateVersion),
		)
	}

	return flush(t)
}

func Activities(w io.Writer, activities []provider.Activity) error {
	t := newTable(w)

	fmt.Fprintln(t, "STATUS\tSTARTED\tDESCRIPTION")
	for _, a := range activities {
		fmt.Fprintf(t, "%s\t%s\t%s\n",
			orEmpty(a.StatusCode),
			formatTime(a.StartTime),
			orEmpty(a.Description),
		)
	}

	return flush(t)
}

func Metrics(w io.Writer, summaries []provider.MetricSummary) error {
	t := newTable(w)

	fmt.Fprintln(t, "METRIC\tSUM")
	for _, s := range summaries {
		fmt.Fprintf(t, "%s\t%g\n", s.Name, s.Sum)
	}

	return flush(t)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
}

func flush(t *tabwriter.Writer) error {
	err := t.Flush()
	if err != nil {
		return microerror.Mask(err)
	}

	return nil
}

func launchTemplate(g provider.Group) string {
	if g.LaunchTemplateID == "" {
		return ""
	}
	if g.LaunchTemplateVersion == "" {
		return g.LaunchTemplateID
	}

	return g.LaunchTemplateID + ":" + g.LaunchTemplateVersion
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return empty
	}

	return t.UTC().Format(timeLayout)
}

func orEmpty(s string) string {
	if s == "" {
		return empty
	}

	return s
}
