package main

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rwool/gkfix/config"
	"github.com/rwool/gkfix/engine"
	"github.com/rwool/gkfix/fixture"
	"github.com/rwool/gkfix/images"
	"github.com/rwool/gkfix/log"
)

type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	v       *viper.Viper
	cfgFile string
	verbose bool

	cfg    config.Config
	logger log.Logger

	// runner runs docker and docker-machine. Nil means os/exec.
	runner engine.Runner
	// configure is applied to every Fixture before use.
	configure func(*fixture.Fixture)
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		in:     in,
		out:    out,
		errOut: errOut,
		v:      config.New(),
	}
}

func (a *app) run(ctx context.Context, args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	return exitCode(root.ExecuteContext(ctx), a.errOut)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gkfix",
		Short: "Run and log into the git-keeper test fixtures",
		Long: `gkfix builds and runs the container images used for testing git-keeper,
and logs into them over SSH with the test credentials.`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.config/gkfix/config.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	flags.String("driver", "", "login driver: openssh or native")
	flags.String("resolver", "", "container engine lookups: cli or api")
	// Flags take precedence over the environment and the config file.
	_ = a.v.BindPFlag(config.KeyLoginDriver, flags.Lookup("driver"))
	_ = a.v.BindPFlag(config.KeyEngineResolver, flags.Lookup("resolver"))

	root.AddCommand(
		a.loginCmd(),
		a.connectCmd(),
		a.imageCmd(),
		a.upCmd(),
		a.downCmd(),
		a.emailsCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, used, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.Level()
	if a.verbose {
		level = log.Debug
	}
	a.logger = log.NewLogger(a.errOut, level).WithField("cmd", cmd.Name())
	if used != "" {
		a.logger.Debugf("using config file %s", used)
	}
	return nil
}

func (a *app) newFixture() *fixture.Fixture {
	f := fixture.New(a.logger, a.cfg.FixtureOptions())
	if a.configure != nil {
		a.configure(f)
	}
	return f
}

func (a *app) execRunner() engine.Runner {
	if a.runner != nil {
		return a.runner
	}
	return engine.ExecRunner{Logger: a.logger}
}

// resolver returns the configured resolver and a function that releases it.
func (a *app) resolver() (fixture.Resolver, func(), error) {
	switch a.cfg.Engine.Resolver {
	case engine.ResolverAPI:
		api, err := engine.NewAPI(a.logger)
		if err != nil {
			return nil, nil, err
		}
		return api, func() { _ = api.Close() }, nil
	default:
		cli := engine.NewCLI(a.logger, a.cfg.Engine.Machine)
		cli.Runner = a.execRunner()
		cli.Docker = a.cfg.Docker()
		cli.DockerMachine = a.cfg.DockerMachine()
		cli.PortOffset = a.cfg.Engine.PortOffset
		return cli, func() {}, nil
	}
}

// connect resolves the fixture container's login target.
func (a *app) connect(ctx context.Context, f *fixture.Fixture) (fixture.Target, error) {
	r, release, err := a.resolver()
	if err != nil {
		return fixture.Target{}, err
	}
	defer release()

	f.SetResolver(r)
	return f.Connect(ctx)
}

// builder returns an image builder. A non-empty smtpStub overrides the
// configured stub path.
func (a *app) builder(smtpStub string) *images.Builder {
	b := images.NewBuilder(a.logger, a.cfg.Docker())
	b.Runner = a.execRunner()
	if smtpStub == "" {
		smtpStub = a.cfg.Images.SMTPStub
	}
	if smtpStub != "" {
		b.Files[images.SMTPStub] = smtpStub
	}
	return b
}

func (a *app) containers() *engine.Containers {
	return &engine.Containers{
		Logger: a.logger,
		Runner: a.execRunner(),
		Docker: a.cfg.Docker(),
	}
}

func lookupRecipe(name string) (images.Recipe, error) {
	r, err := images.Lookup(name)
	if err != nil {
		return images.Recipe{}, errors.Wrapf(err, "%q (have %s and %s)", name, images.Dev, images.Server)
	}
	return r, nil
}
