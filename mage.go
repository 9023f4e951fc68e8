//go:build mage

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sort"

	"github.com/magefile/mage/mg"
	"github.com/pkg/errors"

	"github.com/rwool/gkfix/images"
	"github.com/rwool/gkfix/log"
)

// Build builds the gkfix binary.
func Build(ctx context.Context) error {
	args := []string{"build", "-ldflags=-s -w", "-o", "gkfix"}
	if runtime.GOOS == "linux" {
		args = append(args, "-buildmode=pie")
	}
	args = append(args, "./cmd/gkfix")
	cmd := exec.CommandContext(ctx, "go", args...)
	_, err := runCommand(cmd, mg.Verbose(), nil)
	return err
}

// Test runs all of the basic tests.
func Test(ctx context.Context) error {
	args := []string{"test"}
	if mg.Verbose() {
		args = append(args, "-v")
	}
	args = append(args, "./...")
	cmd := exec.CommandContext(ctx, "go", args...)
	_, err := runCommand(cmd, mg.Verbose(), nil)
	return err
}

// TestRepeat runs all of the basic tests multiple times with the race detector
// enabled to better determine if the tests are consistent and race free.
//
// TEST_PKG limits the run to one package and CPU_PROFILE writes a profile.
func TestRepeat(ctx context.Context) error {
	args := []string{"test", "-race", "-count=10"}
	if mg.Verbose() {
		args = append(args, "-v")
	}
	if env := os.Getenv("CPU_PROFILE"); env != "" {
		args = append(args, fmt.Sprintf("-cpuprofile=%s", env))
	}
	if env := os.Getenv("TEST_PKG"); env != "" {
		args = append(args, env)
	} else {
		args = append(args, "./...")
	}
	cmd := exec.CommandContext(ctx, "go", args...)
	_, err := runCommand(cmd, mg.Verbose(), nil)
	return err
}

// TestIntegration runs the integration tests, which need Docker for
// everything but the in-process server. TEST_RUN selects tests by name and
// GKFIX_IMAGES_SMTP_STUB enables the dev image.
func TestIntegration(ctx context.Context) error {
	args := []string{"test", "-tags=integration", "-timeout=30m"}
	if env := os.Getenv("TEST_RUN"); env != "" {
		args = append(args, fmt.Sprintf("-run=%s", env))
	}
	if mg.Verbose() {
		args = append(args, "-v")
	}
	args = append(args, "./test/integration/...")
	cmd := exec.CommandContext(ctx, "go", args...)
	_, err := runCommand(cmd, mg.Verbose(), map[string]string{"CGO_ENABLED": "0"})
	return err
}

// Lint runs the linters.
//
// Note that the linters emitting warnings will not be considered a failure.
func Lint(ctx context.Context) error {
	mg.SerialCtxDeps(ctx, vet, staticcheck)
	return nil
}

// vet runs go vet, including the integration and mage files.
func vet(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "go", "vet", "-tags=integration,mage", "./...")
	_, err := runCommand(cmd, mg.Verbose(), nil)
	return err
}

// staticcheck runs staticcheck when it is installed.
func staticcheck(ctx context.Context) error {
	if _, err := exec.LookPath("staticcheck"); err != nil {
		return errors.Wrap(err, "unable to run staticcheck")
	}

	cmd := exec.CommandContext(ctx, "staticcheck", "-tags=integration", "./...")
	_, err := runCommand(cmd, mg.Verbose(), nil)
	return err
}

// Images builds the fixture images that are missing. The dev image is only
// built when GKFIX_IMAGES_SMTP_STUB names the SMTP stub.
func Images(ctx context.Context) error {
	level := log.Info
	if mg.Verbose() {
		level = log.Debug
	}
	b := images.NewBuilder(log.NewLogger(os.Stderr, level), []string{"docker"})
	if stub := os.Getenv("GKFIX_IMAGES_SMTP_STUB"); stub != "" {
		b.Files[images.SMTPStub] = stub
	}

	for _, r := range images.Recipes() {
		if r.Name == images.Dev && b.Files[images.SMTPStub] == "" {
			fmt.Println("skipping dev image: GKFIX_IMAGES_SMTP_STUB is not set")
			continue
		}
		if err := b.Ensure(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// runCommand runs cmd with extra environment variables added to the current
// environment. Output is collected and also shown when useStdOutput is set.
func runCommand(cmd *exec.Cmd, useStdOutput bool, env map[string]string) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	var w io.Writer = buf
	if useStdOutput {
		w = io.MultiWriter(buf, os.Stdout)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	if len(env) > 0 {
		keys := make([]string, 0, len(env))
		for k := range env {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		cmd.Env = os.Environ()
		for _, k := range keys {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, env[k]))
		}
	}

	if err := cmd.Run(); err != nil {
		return buf, errors.Wrapf(err, "%v failed (output: %s)", cmd.Args, buf.String())
	}
	return buf, nil
}
