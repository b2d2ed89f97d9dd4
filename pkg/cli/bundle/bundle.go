package bundle

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	kcmdutil "k8s.io/kubectl/pkg/cmd/util"
	"k8s.io/kubectl/pkg/util/templates"

	ocpbundle "github.com/RedHatGov/openshift4-mirror/pkg/bundle"
	"github.com/RedHatGov/openshift4-mirror/pkg/catalog"
	"github.com/RedHatGov/openshift4-mirror/pkg/cli"
	"github.com/RedHatGov/openshift4-mirror/pkg/command"
	"github.com/RedHatGov/openshift4-mirror/pkg/config"
	"github.com/RedHatGov/openshift4-mirror/pkg/download"
	"github.com/RedHatGov/openshift4-mirror/pkg/openshift"
)

// DefaultBundleDir holds one bundle per version.
const DefaultBundleDir = "bundle"

type Options struct {
	*cli.RootOptions

	ConfigPath       string
	OpenShiftVersion string
	PullSecret       string
	PullSecretFile   string
	Platform         string
	Catalogs         []string
	BundleDir        string
	SkipExisting     bool
	SkipRelease      bool
	SkipCatalogs     bool
	SkipRhcos        bool
	VerifyChecksums  bool
	ArchiveSize      int64
	DeletePullSecret bool
	OCPath           string
	Progress         bool
}

func (o *Options) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConfigPath, "config", "c", o.ConfigPath, "Path to a BundleConfiguration file. Flags override its values")
	fs.StringVar(&o.OpenShiftVersion, "openshift-version", o.OpenShiftVersion, "The OpenShift version (e.g. 4.5.11)")
	fs.StringVar(&o.PullSecret, "pull-secret", o.PullSecret, "The content of your pull secret "+
		"(can be found at https://cloud.redhat.com/openshift/install/pull-secret)")
	fs.StringVar(&o.PullSecretFile, "pull-secret-file", o.PullSecretFile, "Path to a file containing your pull secret")
	fs.StringVar(&o.Platform, "platform", o.Platform, fmt.Sprintf("Target platform for install %v", openshift.Platforms))
	fs.StringSliceVar(&o.Catalogs, "catalogs", o.Catalogs, fmt.Sprintf("The catalog(s) content to download %v", catalog.Names()))
	fs.StringVar(&o.BundleDir, "bundle-dir", DefaultBundleDir, "Directory to save downloaded content")
	fs.BoolVar(&o.SkipExisting, "skip-existing", o.SkipExisting, "Skip downloading content that already exists on disk")
	fs.BoolVar(&o.SkipRelease, "skip-release", o.SkipRelease, "Skip downloading of release content")
	fs.BoolVar(&o.SkipCatalogs, "skip-catalogs", o.SkipCatalogs, "Skip downloading of catalog content")
	fs.BoolVar(&o.SkipRhcos, "skip-rhcos", o.SkipRhcos, "Skip downloading of RHCOS image")
	fs.BoolVar(&o.VerifyChecksums, "verify-checksums", o.VerifyChecksums, "Verify client downloads against the published sha256sum.txt")
	fs.Int64Var(&o.ArchiveSize, "archive-size", o.ArchiveSize, "If set, pack the finished bundle into archives of at most this many GiB")
	fs.BoolVar(&o.DeletePullSecret, "delete-pull-secret", o.DeletePullSecret, "Remove the stored pull secret when the bundle is done")
	fs.StringVar(&o.OCPath, "oc-path", o.OCPath, "Path to the oc binary (default the oc extracted into the bundle)")
	fs.BoolVar(&o.Progress, "progress", o.Progress, "Show download progress bars (default true when stderr is a terminal)")
}

func NewBundleCommand(ro *cli.RootOptions) *cobra.Command {
	o := Options{
		RootOptions: ro,
	}

	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Bundle the OpenShift content",
		Long: templates.LongDesc(`
			Download the OpenShift clients, release images, operator catalogs
			and the RHCOS image for one platform into a bundle directory that
			can be carried into a disconnected environment.
		`),
		Example: templates.Examples(`
			# Bundle everything for AWS
			openshift4-mirror bundle --openshift-version 4.14.1 --platform aws --pull-secret "$(cat pull-secret.json)"

			# Only download the clients and the RHCOS image, keeping what is already there
			openshift4-mirror bundle --openshift-version 4.14.1 --platform metal --pull-secret-file pull-secret.json \
				--skip-release --skip-catalogs --skip-existing

			# Use a configuration file and pack the result into 4GiB archives
			openshift4-mirror bundle --config bundle-config.yaml --archive-size 4
		`),
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			kcmdutil.CheckErr(o.Complete(cmd))
			kcmdutil.CheckErr(o.Validate())
			kcmdutil.CheckErr(o.Run(cmd.Context()))
		},
	}

	o.BindFlags(cmd.Flags())

	return cmd
}

// Complete fills options from the configuration file for every flag that
// was not set explicitly and reads the pull secret file.
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
		logrus.Debugf("Using configuration %s", o.ConfigPath)

		setString(fs, "openshift-version", &o.OpenShiftVersion, cfg.OpenShiftVersion)
		setString(fs, "platform", &o.Platform, cfg.Platform)
		setString(fs, "pull-secret-file", &o.PullSecretFile, cfg.PullSecretFile)
		setString(fs, "bundle-dir", &o.BundleDir, cfg.BundleDir)
		if !fs.Changed("catalogs") && len(cfg.Catalogs) > 0 {
			o.Catalogs = cfg.Catalogs
		}
		setBool(fs, "skip-existing", &o.SkipExisting, cfg.Skip.Existing)
		setBool(fs, "skip-release", &o.SkipRelease, cfg.Skip.Release)
		setBool(fs, "skip-catalogs", &o.SkipCatalogs, cfg.Skip.Catalogs)
		setBool(fs, "skip-rhcos", &o.SkipRhcos, cfg.Skip.Rhcos)
		setBool(fs, "verify-checksums", &o.VerifyChecksums, cfg.VerifyChecksums)
		setBool(fs, "delete-pull-secret", &o.DeletePullSecret, cfg.DeletePullSecret)
		if !fs.Changed("archive-size") && cfg.ArchiveSize > 0 {
			o.ArchiveSize = cfg.ArchiveSize
		}
	}

	if o.PullSecret == "" && o.PullSecretFile != "" {
		data, err := os.ReadFile(o.PullSecretFile)
		if err != nil {
			return fmt.Errorf("read pull secret: %w", err)
		}
		o.PullSecret = string(data)
	}

	if !fs.Changed("progress") {
		o.Progress = cli.IsTerminal(o.ErrOut)
	}
	return nil
}

func setString(fs *pflag.FlagSet, name string, dst *string, value string) {
	if !fs.Changed(name) && value != "" {
		*dst = value
	}
}

func setBool(fs *pflag.FlagSet, name string, dst *bool, value bool) {
	if !fs.Changed(name) && value {
		*dst = value
	}
}

func (o *Options) Validate() error {
	var errs []error
	if _, err := openshift.ParseVersion(o.OpenShiftVersion); err != nil {
		errs = append(errs, err)
	}
	if o.PullSecret == "" {
		errs = append(errs, errors.New("must specify --pull-secret or --pull-secret-file"))
	}
	if err := openshift.ValidatePlatform(o.Platform); err != nil {
		errs = append(errs, err)
	}
	if err := catalog.ValidateNames(o.Catalogs); err != nil {
		errs = append(errs, err)
	}
	if o.ArchiveSize < 0 {
		errs = append(errs, errors.New("--archive-size must not be negative"))
	}
	return utilerrors.NewAggregate(errs)
}

func (o *Options) Run(ctx context.Context) error {
	var dlOpts []download.Option
	if o.Progress {
		dlOpts = append(dlOpts, download.WithProgress(o.ErrOut))
	}
	client, err := download.NewClient(dlOpts...)
	if err != nil {
		return err
	}

	b, err := ocpbundle.New(ocpbundle.Options{
		Root:             o.BundleDir,
		Version:          o.OpenShiftVersion,
		PullSecret:       []byte(o.PullSecret),
		Platform:         o.Platform,
		Catalogs:         o.Catalogs,
		SkipExisting:     o.SkipExisting,
		SkipRelease:      o.SkipRelease,
		SkipCatalogs:     o.SkipCatalogs,
		SkipRhcos:        o.SkipRhcos,
		VerifyChecksums:  o.VerifyChecksums,
		ArchiveSize:      o.ArchiveSize,
		DeletePullSecret: o.DeletePullSecret,
		OCPath:           o.OCPath,
		Runner: &command.Exec{
			Stdin:  o.In,
			Stdout: o.Out,
			Stderr: o.ErrOut,
		},
		Client: client,
	})
	if err != nil {
		return err
	}
	return b.Run(ctx)
}
