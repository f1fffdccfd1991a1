// Package config holds the application configuration read by viper from the
// YAML config file and TRANSFER_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/TrevorEdris/transfer-utils/pkg/awsconfig"
	"github.com/TrevorEdris/transfer-utils/pkg/descriptor"
	"github.com/TrevorEdris/transfer-utils/pkg/errors"
	"github.com/TrevorEdris/transfer-utils/pkg/journal"
	"github.com/TrevorEdris/transfer-utils/pkg/provision"
	"github.com/TrevorEdris/transfer-utils/pkg/result"
	"github.com/TrevorEdris/transfer-utils/pkg/session"
)

type (
	Config struct {
		Log Log `mapstructure:"log" yaml:"log"`
		// ConnectionStrings maps a name to a connection descriptor. Names are
		// case-insensitive.
		ConnectionStrings map[string]string `mapstructure:"connectionStrings" yaml:"connectionStrings"`
		Engine            Engine            `mapstructure:"engine" yaml:"engine"`
		Journal           journal.Config    `mapstructure:"journal" yaml:"journal"`
		AWS               AWS               `mapstructure:"aws" yaml:"aws"`
		API               API               `mapstructure:"api" yaml:"api"`
	}

	Log struct {
		Level       string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
		Development bool   `mapstructure:"development" yaml:"development"`
	}

	Engine struct {
		ExternalClient  bool   `mapstructure:"externalClient" yaml:"externalClient"`
		ExecutablePath  string `mapstructure:"executablePath" yaml:"executablePath"`
		RequiredVersion string `mapstructure:"requiredVersion" yaml:"requiredVersion"`
		// AutoProvision is kept as text; anything but a parsable boolean
		// means true.
		AutoProvision     string `mapstructure:"autoProvision" yaml:"autoProvision"`
		StrictDescriptors bool   `mapstructure:"strictDescriptors" yaml:"strictDescriptors"`
	}

	// AWS settings used by the journal.
	AWS struct {
		Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty" validate:"omitempty,url"`
		Region   string `mapstructure:"region" yaml:"region"`
	}

	API struct {
		Port              int `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
		RequestsPerMinute int `mapstructure:"requestsPerMinute" yaml:"requestsPerMinute" validate:"gte=0"`
	}
)

const (
	DefaultAPIPort           = 8000
	DefaultRequestsPerMinute = 60

	ExampleConnectionName = "example"
)

var example = Config{
	Log: Log{
		Level: "info",
	},
	ConnectionStrings: map[string]string{
		ExampleConnectionName: "host=sftp.example.com;user=deploy;pw=CHANGE_ME;hostkey=ssh-ed25519 255 SHA256:CHANGE_ME",
		"archive":             "protocol=s3;region=us-east-1",
	},
	Engine: Engine{
		AutoProvision: "true",
	},
	Journal: journal.Config{
		Enabled:                false,
		TableName:              "transfer-journal",
		CreateMissingResources: true,
	},
	AWS: AWS{
		Region: "us-east-1",
	},
	API: API{
		Port:              DefaultAPIPort,
		RequestsPerMinute: DefaultRequestsPerMinute,
	},
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// SetDefaults registers the defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", example.Log.Level)
	v.SetDefault("engine.autoProvision", example.Engine.AutoProvision)
	v.SetDefault("journal.tableName", example.Journal.TableName)
	v.SetDefault("journal.createMissingResources", example.Journal.CreateMissingResources)
	v.SetDefault("api.port", DefaultAPIPort)
	v.SetDefault("api.requestsPerMinute", DefaultRequestsPerMinute)
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, eris.Wrap(errors.ErrInvalidConfig, err.Error())
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConnectionString implements descriptor.Store.
func (c *Config) ConnectionString(name string) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for k, v := range c.ConnectionStrings {
		if strings.ToLower(k) == want {
			return v, true
		}
	}
	return "", false
}

// AutoProvisionEnabled defaults to true when the setting is blank or not a
// boolean.
func (e Engine) AutoProvisionEnabled() bool {
	return result.Try(func() (bool, error) {
		return strconv.ParseBool(strings.TrimSpace(e.AutoProvision))
	}).ValueOr(true)
}

func (e Engine) Provision() provision.Config {
	return provision.Config{
		ExecutablePath:  e.ExecutablePath,
		RequiredVersion: e.RequiredVersion,
	}
}

func (e Engine) Session() session.Config {
	return session.Config{
		StrictDescriptors: e.StrictDescriptors,
		ExternalClient:    e.ExternalClient,
	}
}

func (a AWS) Options() awsconfig.Options {
	return awsconfig.Options{
		Endpoint: a.Endpoint,
		Region:   a.Region,
	}
}

func CreateExample(outputDir string) error {
	err := os.MkdirAll(outputDir, os.ModePerm)
	if err != nil {
		return err
	}
	filename := filepath.Join(outputDir, "config.example.yaml")
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	yamlData, err := yaml.Marshal(&example)
	if err != nil {
		return err
	}
	_, err = f.Write(yamlData)
	if err != nil {
		return err
	}
	fmt.Printf("Created %s\n", filename)
	return nil
}

func ValidateConfigFile(configFile string) error {
	bytes, err := os.ReadFile(configFile)
	if err != nil {
		return err
	}
	config := &Config{}
	err = yaml.Unmarshal(bytes, config)
	if err != nil {
		return eris.Wrap(errors.ErrInvalidConfig, err.Error())
	}

	return ValidateConfig(config)
}

// ValidateConfig checks field constraints and that every connection string
// parses into connection options.
func ValidateConfig(config *Config) error {
	err := validate.Struct(config)
	if err != nil {
		return eris.Wrap(errors.ErrInvalidConfig, err.Error())
	}

	for name, raw := range config.ConnectionStrings {
		d, err := descriptor.ParseString(raw, descriptor.WithStrict(config.Engine.StrictDescriptors))
		if err != nil {
			return eris.Wrapf(errors.ErrInvalidConfig, "connection string %q: %v", name, err)
		}
		if _, err := d.ConnectionOptions(); err != nil {
			return eris.Wrapf(errors.ErrInvalidConfig, "connection string %q: %v", name, err)
		}
	}
	return nil
}
