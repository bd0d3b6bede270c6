package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const name = "autoscaling-scenario"

// rootFlags are the persistent flags shared by every subcommand. Non-empty
// values override the config file.
type rootFlags struct {
	fs afero.Fs

	config         string
	groupName      string
	metricsAddress string
	profile        string
	region         string
	templateName   string
}

func NewRootCommand(fs afero.Fs) *cobra.Command {
	f := &rootFlags{fs: fs}

	command := &cobra.Command{
		Use:   name,
		Short: "Walk an EC2 auto scaling group through its lifecycle",
		Long: heredoc.Doc(`
			Creates a launch template and an auto scaling group using it, scales the
			group up, replaces a terminated instance, reports the collected group
			metrics and tears everything down again.

			AWS credentials are taken from the default credential chain. Settings are
			read from the optional YAML file given by --config.
		`),
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	f.addFlags(command.PersistentFlags())

	command.AddCommand(newCleanupCommand(f))
	command.AddCommand(newDescribeCommand(f))
	command.AddCommand(newRunCommand(f))
	command.AddCommand(newUpdateCommand(f))

	return command
}

func (f *rootFlags) addFlags(flags *pflag.FlagSet) {
	flags.StringVar(&f.config, "config", "", "Path of the YAML config file")
	flags.StringVar(&f.groupName, "group-name", "", "Name of the auto scaling group")
	flags.StringVar(&f.metricsAddress, "metrics-address", "", "Address to serve prometheus metrics on, e.g. 127.0.0.1:8000")
	flags.StringVar(&f.profile, "profile", "", "Shared AWS config profile")
	flags.StringVar(&f.region, "region", "", "AWS region")
	flags.StringVar(&f.templateName, "template-name", "", "Name of the launch template")
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCommand(afero.NewOsFs()).ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
