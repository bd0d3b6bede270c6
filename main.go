package main

import "github.com/giantswarm/autoscaling-scenario/cmd"

func main() {
	cmd.Execute()
}
