// Package runtime builds and enters the container image that carries the
// bundling tools.
package runtime

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/RedHatGov/openshift4-mirror/pkg/command"
)

const (
	DefaultImage = "localhost/openshift4-mirror:latest"

	// ConnectivityURL is probed before building an image that is missing.
	ConnectivityURL     = "https://api.openshift.com/"
	ConnectivityTimeout = 5 * time.Second

	hostname  = "openshift4-mirror"
	mountPath = "/app"
)

// Engines are tried in order when no engine is configured.
var Engines = []string{"podman", "docker"}

var (
	// ErrContainerRuntimeMissing is returned when neither podman nor docker
	// can be executed.
	ErrContainerRuntimeMissing = errors.New("no container runtime found, install podman or docker")
	// ErrOffline is returned when the image is missing and cannot be built
	// because the internet is unreachable.
	ErrOffline = errors.New("not connected to the internet, import the container image and retry")
)

// Prober reports whether a URL can be reached.
type Prober interface {
	Reachable(ctx context.Context, url string, timeout time.Duration) bool
}

// DetectEngine returns the first of Engines that can be executed.
func DetectEngine(ctx context.Context, runner command.Runner) (string, error) {
	for _, engine := range Engines {
		_, err := runner.Output(ctx, engine, "--version")
		var nf *command.NotFoundError
		if errors.As(err, &nf) {
			logrus.Debugf("Container runtime %s not found", engine)
			continue
		}
		logrus.Debugf("Using container runtime %s", engine)
		return engine, nil
	}
	return "", ErrContainerRuntimeMissing
}

// ValidateEngine checks engine against Engines.
func ValidateEngine(engine string) error {
	for _, e := range Engines {
		if e == engine {
			return nil
		}
	}
	return fmt.Errorf("unsupported container runtime %q, must be one of: %v", engine, Engines)
}

// Options configures a Runtime.
type Options struct {
	// Engine is podman or docker. Detected when empty.
	Engine string
	// Image defaults to DefaultImage.
	Image string
	// ContextDir is the build context and is mounted into the shell.
	ContextDir string
	Env        EnvPassthrough
	// Environ is the host environment the passthrough is applied to.
	Environ []string
}

// Runtime drives a container engine.
type Runtime struct {
	Options
	runner command.Runner
	prober Prober
}

// New returns a Runtime, detecting the engine if none was configured.
func New(ctx context.Context, runner command.Runner, prober Prober, opts Options) (*Runtime, error) {
	if opts.Image == "" {
		opts.Image = DefaultImage
	}
	if _, err := name.ParseReference(opts.Image); err != nil {
		return nil, fmt.Errorf("invalid image %q: %w", opts.Image, err)
	}
	if opts.Engine == "" {
		engine, err := DetectEngine(ctx, runner)
		if err != nil {
			return nil, err
		}
		opts.Engine = engine
	} else if err := ValidateEngine(opts.Engine); err != nil {
		return nil, err
	}
	return &Runtime{
		Options: opts,
		runner:  runner,
		prober:  prober,
	}, nil
}

// ImageExists reports whether the image is present in local storage.
func (r *Runtime) ImageExists(ctx context.Context) (bool, error) {
	out, err := r.runner.Output(ctx, r.Engine, "images", r.Image, "--format", "json")
	if err != nil {
		return false, err
	}
	n, err := countImages(out)
	if err != nil {
		return false, fmt.Errorf("parse %s images output: %w", r.Engine, err)
	}
	return n > 0, nil
}

// countImages accepts a JSON array (podman) or one JSON object per line
// (docker).
func countImages(out []byte) (int, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return 0, nil
	}
	if out[0] == '[' {
		var images []json.RawMessage
		if err := json.Unmarshal(out, &images); err != nil {
			return 0, err
		}
		return len(images), nil
	}
	n := 0
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return 0, fmt.Errorf("invalid JSON line %q", line)
		}
		n++
	}
	return n, scanner.Err()
}

// Build builds the image from the context directory.
func (r *Runtime) Build(ctx context.Context) error {
	logrus.Infof("Building the container image %s", r.Image)
	if err := r.runner.Run(ctx, r.Engine, "build", "--tag", r.Image, r.ContextDir); err != nil {
		return fmt.Errorf("build image %s: %w", r.Image, err)
	}
	logrus.Info("Finished building the container image")
	return nil
}

// EnsureImage builds the image if it is missing and the internet can be
// reached.
func (r *Runtime) EnsureImage(ctx context.Context) error {
	exists, err := r.ImageExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	logrus.Warnf("The container image does not exist %s", r.Image)
	if !r.prober.Reachable(ctx, ConnectivityURL, ConnectivityTimeout) {
		logrus.Errorf("Please import the %s container image and retry", r.Image)
		return ErrOffline
	}
	return r.Build(ctx)
}

// ShellArgs returns the engine arguments that start an interactive
// container named instance.
func (r *Runtime) ShellArgs(instance string) []string {
	args := []string{
		"run",
		"--interactive",
		"--tty",
		"--rm",
		"--name", instance,
		"--hostname", hostname,
		"--security-opt", "label=disable",
		"--volume", r.ContextDir + ":" + mountPath,
	}
	for _, kv := range r.Env.Filter(r.Environ) {
		args = append(args, "--env", kv)
	}
	return append(args, r.Image)
}

// Shell starts an interactive shell in the container, building the
// image first if needed.
func (r *Runtime) Shell(ctx context.Context) error {
	if err := r.EnsureImage(ctx); err != nil {
		return err
	}
	instance := fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])
	logrus.Infof("Starting shell in container %s", instance)
	return r.runner.Run(ctx, r.Engine, r.ShellArgs(instance)...)
}
