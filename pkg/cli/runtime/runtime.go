package runtime

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	kcmdutil "k8s.io/kubectl/pkg/cmd/util"
	"k8s.io/kubectl/pkg/util/templates"

	"github.com/RedHatGov/openshift4-mirror/pkg/cli"
	"github.com/RedHatGov/openshift4-mirror/pkg/command"
	"github.com/RedHatGov/openshift4-mirror/pkg/config"
	"github.com/RedHatGov/openshift4-mirror/pkg/download"
	"github.com/RedHatGov/openshift4-mirror/pkg/runtime"
)

// Options are shared by the build and shell commands.
type Options struct {
	*cli.RootOptions

	ConfigPath       string
	ContainerRuntime string
	Image            string
	ContextDir       string
	Env              runtime.EnvPassthrough

	// newRunner is replaced in tests.
	newRunner func(o *Options) command.Runner
}

func (o *Options) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConfigPath, "config", "c", o.ConfigPath, "Path to a BundleConfiguration file. Flags override its values")
	fs.StringVar(&o.ContainerRuntime, "container-runtime", o.ContainerRuntime, "Override the container runtime to use (podman or docker)")
	fs.StringVar(&o.Image, "image", runtime.DefaultImage, "The container image to build and run")
	fs.StringVar(&o.ContextDir, "context-dir", ".", "The image build context, mounted at /app in the shell")
	fs.StringSliceVar(&o.Env.Prefixes, "env-prefix", []string{runtime.DefaultEnvPrefix}, "Forward host variables with these prefixes into the container")
	fs.StringSliceVar(&o.Env.Names, "env", o.Env.Names, "Forward these host variables into the container")
}

func NewBuildCommand(ro *cli.RootOptions) *cobra.Command {
	o := Options{RootOptions: ro}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the container image",
		Example: templates.Examples(`
			# Build the image with whichever of podman or docker is installed
			openshift4-mirror build

			# Build with docker
			openshift4-mirror build --container-runtime docker
		`),
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			kcmdutil.CheckErr(o.Complete(cmd))
			kcmdutil.CheckErr(o.RunBuild(cmd.Context()))
		},
	}

	o.BindFlags(cmd.Flags())

	return cmd
}

func NewShellCommand(ro *cli.RootOptions) *cobra.Command {
	o := Options{RootOptions: ro}

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Open a shell in the container environment",
		Long: templates.LongDesc(`
			Start an interactive shell in the container image, building it
			first when it is missing and the internet is reachable. Host
			variables prefixed with OPENSHIFT_MIRROR_ are forwarded.
		`),
		Example: templates.Examples(`
			# Open a shell
			OPENSHIFT_MIRROR_VERSION=4.14.1 openshift4-mirror shell
		`),
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			kcmdutil.CheckErr(o.Complete(cmd))
			kcmdutil.CheckErr(o.RunShell(cmd.Context()))
		},
	}

	o.BindFlags(cmd.Flags())

	return cmd
}

// Complete applies the runtime section of the configuration file to flags
// that were not set and resolves the context directory.
func (o *Options) Complete(cmd *cobra.Command) error {
	fs := cmd.Flags()
	if o.ConfigPath != "" {
		cfg, err := config.ReadConfig(o.ConfigPath)
		if err != nil {
			return err
		}
		if err := config.Validate(&cfg); err != nil {
			return err
		}
		rt := cfg.Runtime
		if !fs.Changed("container-runtime") && rt.ContainerRuntime != "" {
			o.ContainerRuntime = rt.ContainerRuntime
		}
		if !fs.Changed("image") && rt.Image != "" {
			o.Image = rt.Image
		}
		if !fs.Changed("context-dir") && rt.ContextDir != "" {
			o.ContextDir = rt.ContextDir
		}
		if !fs.Changed("env-prefix") && len(rt.Env.Prefixes) > 0 {
			o.Env.Prefixes = rt.Env.Prefixes
		}
		if !fs.Changed("env") && len(rt.Env.Names) > 0 {
			o.Env.Names = rt.Env.Names
		}
	}

	dir, err := filepath.Abs(o.ContextDir)
	if err != nil {
		return err
	}
	o.ContextDir = dir
	return nil
}

func (o *Options) runtime(ctx context.Context) (*runtime.Runtime, error) {
	client, err := download.NewClient()
	if err != nil {
		return nil, err
	}
	newRunner := o.newRunner
	if newRunner == nil {
		newRunner = func(o *Options) command.Runner {
			return &command.Exec{Stdin: o.In, Stdout: o.Out, Stderr: o.ErrOut}
		}
	}
	return runtime.New(ctx, newRunner(o), client, runtime.Options{
		Engine:     o.ContainerRuntime,
		Image:      o.Image,
		ContextDir: o.ContextDir,
		Env:        o.Env,
		Environ:    os.Environ(),
	})
}

func (o *Options) RunBuild(ctx context.Context) error {
	r, err := o.runtime(ctx)
	if err != nil {
		return err
	}
	return r.Build(ctx)
}

func (o *Options) RunShell(ctx context.Context) error {
	r, err := o.runtime(ctx)
	if err != nil {
		return err
	}
	return r.Shell(ctx)
}
