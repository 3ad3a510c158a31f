package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/ssh/terminal"
	"gopkg.in/yaml.v2"
)

const (
	defaultDriver = "sqlserver"
	defaultOutput = "export_users.sql"
	defaultEnv    = ".env"
	envPrefix     = "DBUSERS_"
)

// Config holds everything needed to reach the source database and where to
// put the script. Zero values mean "not set" when sources are merged.
type Config struct {
	Driver   string `yaml:"driver"`
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Encrypt  string `yaml:"encrypt"`
	Output   string `yaml:"output"`
}

type configOptions struct {
	File    string
	EnvFile string

	// EnvFileExplicit makes a missing EnvFile an error.
	EnvFileExplicit bool

	Flags  Config
	Getenv func(string) string
}

func defaultConfig() Config {
	return Config{
		Driver: defaultDriver,
		Output: defaultOutput,
	}
}

// loadConfig merges defaults, the YAML file, the environment (after loading
// the dotenv file) and flags, later sources winning.
func loadConfig(opts configOptions) (Config, error) {
	defer timer("load config").done()

	cfg := defaultConfig()

	if opts.File != "" {
		fileCfg, err := ReadConfigFile(opts.File)
		if err != nil {
			return cfg, err
		}
		cfg.merge(fileCfg)
	}

	if err := loadEnvFile(opts.EnvFile, opts.EnvFileExplicit); err != nil {
		return cfg, err
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	envCfg, err := configFromEnv(getenv)
	if err != nil {
		return cfg, err
	}
	cfg.merge(envCfg)

	cfg.merge(opts.Flags)
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))

	return cfg, nil
}

func ReadConfigFile(filepath string) (Config, error) {
	defer timer("parse " + filepath).done()

	var cfg Config

	buf, err := ioutil.ReadFile(filepath)
	if err != nil {
		return cfg, configError(err, "Read file %#v", filepath)
	}

	if err := yaml.UnmarshalStrict(buf, &cfg); err != nil {
		return cfg, configError(err, "Parse file %#v", filepath)
	}

	return cfg, nil
}

func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return configError(err, "Env file %#v", path)
	}
	if err := godotenv.Load(path); err != nil {
		return configError(err, "Load env file %#v", path)
	}
	return nil
}

func configFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Driver:   getenv(envPrefix + "DRIVER"),
		Server:   getenv(envPrefix + "SERVER"),
		Database: getenv(envPrefix + "DATABASE"),
		User:     getenv(envPrefix + "USER"),
		Password: getenv(envPrefix + "PASSWORD"),
		Encrypt:  getenv(envPrefix + "ENCRYPT"),
		Output:   getenv(envPrefix + "OUTPUT"),
	}
	if port := strings.TrimSpace(getenv(envPrefix + "PORT")); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return cfg, configError(err, "Environment variable %s=%#v", envPrefix+"PORT", port)
		}
		cfg.Port = p
	}
	return cfg, nil
}

func (c *Config) merge(o Config) {
	if o.Driver != "" {
		c.Driver = o.Driver
	}
	if o.Server != "" {
		c.Server = o.Server
	}
	if o.Port != 0 {
		c.Port = o.Port
	}
	if o.Database != "" {
		c.Database = o.Database
	}
	if o.User != "" {
		c.User = o.User
	}
	if o.Password != "" {
		c.Password = o.Password
	}
	if o.Encrypt != "" {
		c.Encrypt = o.Encrypt
	}
	if o.Output != "" {
		c.Output = o.Output
	}
}

func (c Config) validate() error {
	if _, ok := connectors[c.Driver]; !ok {
		return configError(nil, "Unknown driver %#v (expected one of %s)", c.Driver, strings.Join(driverNames(), ", "))
	}

	var missing []string
	if c.Server == "" {
		missing = append(missing, "server")
	}
	if c.Database == "" {
		missing = append(missing, "database")
	}
	if c.User == "" {
		missing = append(missing, "user")
	}
	if len(missing) > 0 {
		return configError(nil, "Missing %s", strings.Join(missing, ", "))
	}

	if c.Port < 0 || c.Port > 65535 {
		return configError(nil, "Port %d out of range", c.Port)
	}
	return nil
}

// promptPassword asks for the password on the terminal if none was
// configured. Non-interactive runs keep the empty password.
func promptPassword(c *Config, in *os.File, out io.Writer) error {
	if c.Password != "" || in == nil {
		return nil
	}
	fd := int(in.Fd())
	if !terminal.IsTerminal(fd) {
		return nil
	}

	fmt.Fprintf(out, "Password for %s@%s: ", c.User, c.Server)
	pw, err := terminal.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return configError(err, "Read password")
	}
	c.Password = string(pw)
	return nil
}
