package scaling

import (
	"fmt"
	"strings"

	"github.com/giantswarm/autoscaling-scenario/scaling/provider"
)

type Description struct {
	Group      provider.Group
	Activities []provider.Activity
}

func (d Description) String() string {
	var b strings.Builder

	b.WriteString("\t        Instances:\n")
	for _, i := range d.Group.Instances {
		fmt.Fprintf(&b, "\t\t- %s\n", i.ID)
	}

	return b.String()
}
