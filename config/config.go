// Package config loads gkfix settings from defaults, an optional config file,
// GKFIX_ environment variables and command line flags, in increasing order of
// precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/rwool/gkfix/engine"
	"github.com/rwool/gkfix/fixture"
	"github.com/rwool/gkfix/log"
)

// EnvPrefix prefixes the environment variable form of every key, so that
// login.password is read from GKFIX_LOGIN_PASSWORD.
const EnvPrefix = "GKFIX"

// Keys.
const (
	KeyLoginUser      = "login.user"
	KeyLoginPassword  = "login.password"
	KeyLoginPrompt    = "login.prompt"
	KeyLoginDriver    = "login.driver"
	KeyLoginSSHBinary = "login.ssh_binary"

	KeyHostKeyPolicy = "host_key_policy"

	KeyEngineResolver       = "engine.resolver"
	KeyEngineMachine        = "engine.machine"
	KeyEngineContainer      = "engine.container"
	KeyEngineContainerPort  = "engine.container_port"
	KeyEnginePortOffset     = "engine.port_offset"
	KeyEngineDockerCommand  = "engine.docker_command"
	KeyEngineMachineCommand = "engine.machine_command"

	KeyImagesSMTPStub = "images.smtp_stub"
	KeyEmailsDir      = "emails.dir"

	KeyLogLevel = "log_level"
)

// Config is the full set of settings.
type Config struct {
	Login         Login  `mapstructure:"login"`
	HostKeyPolicy string `mapstructure:"host_key_policy"`
	Engine        Engine `mapstructure:"engine"`
	Images        Images `mapstructure:"images"`
	Emails        Emails `mapstructure:"emails"`
	LogLevel      string `mapstructure:"log_level"`
}

// Login holds the credentials and how the login helper runs SSH.
type Login struct {
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
	Prompt    string `mapstructure:"prompt"`
	Driver    string `mapstructure:"driver"`
	SSHBinary string `mapstructure:"ssh_binary"`
}

// Engine describes how the fixture container is found.
type Engine struct {
	Resolver       string `mapstructure:"resolver"`
	Machine        string `mapstructure:"machine"`
	Container      string `mapstructure:"container"`
	ContainerPort  int    `mapstructure:"container_port"`
	PortOffset     int    `mapstructure:"port_offset"`
	DockerCommand  string `mapstructure:"docker_command"`
	MachineCommand string `mapstructure:"machine_command"`
}

// Images holds the files the image recipes need from outside the repository.
type Images struct {
	SMTPStub string `mapstructure:"smtp_stub"`
}

// Emails configures email inspection.
type Emails struct {
	Dir string `mapstructure:"dir"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Login: Login{
			User:      fixture.DefaultUser,
			Password:  fixture.DefaultPassword,
			Prompt:    fixture.DefaultPrompt,
			Driver:    string(fixture.DriverOpenSSH),
			SSHBinary: fixture.DefaultSSHBinary,
		},
		HostKeyPolicy: fixture.PolicyInsecure,
		Engine: Engine{
			Resolver:       engine.ResolverCLI,
			Machine:        "default",
			Container:      fixture.DefaultContainer,
			ContainerPort:  fixture.DefaultContainerPort,
			PortOffset:     engine.DefaultPortOffset,
			DockerCommand:  "docker",
			MachineCommand: "docker-machine",
		},
		Emails: Emails{
			Dir: fixture.DefaultEmailDir,
		},
		LogLevel: log.Warn.String(),
	}
}

// New returns a viper instance with the defaults and environment bindings in
// place. Flags may be bound to it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	d := Default()
	defaults := map[string]interface{}{
		KeyLoginUser:            d.Login.User,
		KeyLoginPassword:        d.Login.Password,
		KeyLoginPrompt:          d.Login.Prompt,
		KeyLoginDriver:          d.Login.Driver,
		KeyLoginSSHBinary:       d.Login.SSHBinary,
		KeyHostKeyPolicy:        d.HostKeyPolicy,
		KeyEngineResolver:       d.Engine.Resolver,
		KeyEngineMachine:        d.Engine.Machine,
		KeyEngineContainer:      d.Engine.Container,
		KeyEngineContainerPort:  d.Engine.ContainerPort,
		KeyEnginePortOffset:     d.Engine.PortOffset,
		KeyEngineDockerCommand:  d.Engine.DockerCommand,
		KeyEngineMachineCommand: d.Engine.MachineCommand,
		KeyImagesSMTPStub:       d.Images.SMTPStub,
		KeyEmailsDir:            d.Emails.Dir,
		KeyLogLevel:             d.LogLevel,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()
	return v
}

// DefaultPath returns $HOME/.config/gkfix/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "unable to get home directory")
	}
	return filepath.Join(home, ".config", "gkfix", "config.yaml"), nil
}

// Load reads the config file at path into v, validates the result and returns
// it. An empty path means DefaultPath, which is skipped when it does not exist;
// an explicitly given file must exist. The file used, if any, is returned too.
func Load(v *viper.Viper, path string) (Config, string, error) {
	used := ""
	if path != "" {
		used = path
	} else if def, err := DefaultPath(); err == nil {
		if _, err := os.Stat(def); err == nil {
			used = def
		}
	}

	if used != "" {
		v.SetConfigFile(used)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, "", errors.Wrapf(err, "unable to read config file %s", used)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, "", errors.Wrap(err, "unable to decode configuration")
	}
	if err := c.Validate(); err != nil {
		return Config{}, "", err
	}
	return c, used, nil
}

// Validate rejects unknown drivers, resolvers and host key policies, and
// values that cannot work.
func (c Config) Validate() error {
	if _, err := fixture.ParseDriver(c.Login.Driver); err != nil {
		return errors.Wrap(err, KeyLoginDriver)
	}
	if _, err := fixture.ParseHostKeyPolicy(c.HostKeyPolicy); err != nil {
		return errors.Wrap(err, KeyHostKeyPolicy)
	}
	switch c.Engine.Resolver {
	case engine.ResolverCLI, engine.ResolverAPI:
	default:
		return errors.Errorf("%s: unknown resolver %q", KeyEngineResolver, c.Engine.Resolver)
	}
	if p := c.Engine.ContainerPort; p < 1 || p > 65535 {
		return errors.Errorf("%s: port %d out of range", KeyEngineContainerPort, p)
	}
	if c.Engine.PortOffset < 1 {
		return errors.Errorf("%s: must be at least 1, got %d", KeyEnginePortOffset, c.Engine.PortOffset)
	}
	if _, err := engine.ParseCommand(c.Engine.DockerCommand); err != nil {
		return errors.Wrap(err, KeyEngineDockerCommand)
	}
	if _, err := engine.ParseCommand(c.Engine.MachineCommand); err != nil {
		return errors.Wrap(err, KeyEngineMachineCommand)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, KeyLogLevel)
	}
	return nil
}

// Level returns the configured log level. c must be valid.
func (c Config) Level() log.Level {
	l, _ := log.ParseLevel(c.LogLevel)
	return l
}

// FixtureOptions converts the login settings. c must be valid.
func (c Config) FixtureOptions() fixture.Options {
	driver, _ := fixture.ParseDriver(c.Login.Driver)
	keys, _ := fixture.ParseHostKeyPolicy(c.HostKeyPolicy)
	return fixture.Options{
		Driver:        driver,
		Prompt:        c.Login.Prompt,
		SSHBinary:     c.Login.SSHBinary,
		HostKeys:      keys,
		Container:     c.Engine.Container,
		ContainerPort: c.Engine.ContainerPort,
		User:          c.Login.User,
		Password:      c.Login.Password,
	}
}

// Docker returns the words of the docker command. c must be valid.
func (c Config) Docker() []string {
	words, _ := engine.ParseCommand(c.Engine.DockerCommand)
	return words
}

// DockerMachine returns the words of the docker-machine command. c must be
// valid.
func (c Config) DockerMachine() []string {
	words, _ := engine.ParseCommand(c.Engine.MachineCommand)
	return words
}
