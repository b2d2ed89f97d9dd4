package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/klog/v2"
	kcmdutil "k8s.io/kubectl/pkg/cmd/util"
	"k8s.io/kubectl/pkg/util/templates"

	"github.com/RedHatGov/openshift4-mirror/pkg/cli"
	"github.com/RedHatGov/openshift4-mirror/pkg/cli/bundle"
	"github.com/RedHatGov/openshift4-mirror/pkg/cli/runtime"
	"github.com/RedHatGov/openshift4-mirror/pkg/cli/version"
)

func main() {
	// Silence klog output from the k8s libraries.
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	kcmdutil.CheckErr(klogFlags.Set("stderrthreshold", "4"))
	klog.SetOutput(io.Discard)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	o := &cli.RootOptions{
		IOStreams: genericclioptions.IOStreams{
			In:     os.Stdin,
			Out:    os.Stdout,
			ErrOut: os.Stderr,
		},
	}

	cmd := &cobra.Command{
		Use:   "openshift4-mirror",
		Short: "Build offline mirror bundles for OpenShift 4",
		Long: templates.LongDesc(`
			Download everything needed to install OpenShift 4 without internet
			access into a single bundle directory: installer and client tools,
			release images, operator catalogs and the RHCOS image.

			The bundle can then be packed into split archives and carried to
			the disconnected environment.
		`),
		Example: templates.Examples(`
			# Create a bundle for OpenShift 4.14.1 on AWS
			openshift4-mirror bundle --openshift-version 4.14.1 --platform aws --pull-secret-file ./pull-secret.json

			# Open a shell in the container environment
			openshift4-mirror shell
		`),
		PersistentPreRun:  o.LogfilePreRun,
		PersistentPostRun: o.LogfilePostRun,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
		SilenceErrors: false,
		SilenceUsage:  true,
	}

	o.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(bundle.NewBundleCommand(o))
	cmd.AddCommand(runtime.NewBuildCommand(o))
	cmd.AddCommand(runtime.NewShellCommand(o))
	cmd.AddCommand(version.NewVersionCommand(o))

	return cmd
}
