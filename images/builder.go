package images

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"

	pkgerrors "github.com/pkg/errors"

	"github.com/rwool/gkfix/engine"
	"github.com/rwool/gkfix/log"
)

var (
	// ErrNoImage indicates that no image matches a tag.
	ErrNoImage = errors.New("no matching image found")
	// ErrTooManyImages indicates that a tag matches more than one image.
	ErrTooManyImages = errors.New("too many images found")
	// ErrMissingAsset indicates that an external file of a recipe was not
	// supplied.
	ErrMissingAsset = errors.New("missing build asset")
)

// Builder builds recipes with the docker command line tool.
type Builder struct {
	Logger log.Logger
	Runner engine.Runner
	Docker []string

	// Files maps the external file names of recipes to paths on disk.
	Files map[string]string
}

// NewBuilder returns a Builder that runs docker with os/exec.
func NewBuilder(logger log.Logger, docker []string) *Builder {
	return &Builder{
		Logger: logger,
		Runner: engine.ExecRunner{Logger: logger},
		Docker: docker,
		Files:  map[string]string{},
	}
}

func (b *Builder) docker(args ...string) []string {
	return append(append([]string(nil), b.Docker...), args...)
}

// Exists checks that exactly one image has the given tag.
func (b *Builder) Exists(ctx context.Context, tag string) error {
	out, err := engine.Output(ctx, b.Runner, b.docker("images", tag)...)
	if err != nil {
		return pkgerrors.Wrap(err, "unable to get Docker images")
	}

	var lineCount int
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		lineCount++
	}
	if err = scanner.Err(); err != nil {
		return pkgerrors.Wrap(err, "unable to process Docker images output")
	}

	// The first line is the header.
	switch {
	case lineCount <= 1:
		return pkgerrors.WithStack(ErrNoImage)
	case lineCount == 2:
		return nil
	default:
		return pkgerrors.WithStack(ErrTooManyImages)
	}
}

// Build writes the recipe into a temporary build context and builds it.
func (b *Builder) Build(ctx context.Context, r Recipe) error {
	if err := r.checkExternal(b.Files); err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "gkfix-"+r.Name)
	if err != nil {
		return pkgerrors.Wrap(err, "unable to create build context")
	}
	defer os.RemoveAll(dir)

	if err = WriteContext(dir, r, b.Files); err != nil {
		return err
	}

	b.Logger.WithField("image", r.Tag).Infof("building %s image", r.Name)
	err = b.Runner.Run(ctx, engine.Command{
		Argv: b.docker("build", "-t", r.Tag, "."),
		Dir:  dir,
	})
	if err != nil {
		return pkgerrors.Wrapf(err, "unable to build %s image", r.Name)
	}

	if err = b.Exists(ctx, r.Tag); err != nil {
		return pkgerrors.Wrapf(err, "unexpected %s image creation failure", r.Name)
	}
	return nil
}

// Ensure builds the recipe unless its image already exists.
func (b *Builder) Ensure(ctx context.Context, r Recipe) error {
	err := b.Exists(ctx, r.Tag)
	if err == nil {
		b.Logger.Debugf("%s image %s already exists", r.Name, r.Tag)
		return nil
	}
	if pkgerrors.Cause(err) != ErrNoImage {
		return pkgerrors.Wrapf(err, "unable to ensure %s image exists", r.Name)
	}

	if err = b.Build(ctx, r); err != nil {
		return pkgerrors.Wrapf(err, "unable to ensure %s image exists", r.Name)
	}
	return nil
}
