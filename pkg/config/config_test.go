package config_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/TrevorEdris/transfer-utils/pkg/config"
	"github.com/TrevorEdris/transfer-utils/pkg/descriptor"
	"github.com/TrevorEdris/transfer-utils/pkg/errors"
	"github.com/TrevorEdris/transfer-utils/pkg/journal"
)

var _ = Describe("Config", func() {
	var _ descriptor.Store = &config.Config{}

	validConfig := func() config.Config {
		return config.Config{
			Log: config.Log{Level: "debug"},
			ConnectionStrings: map[string]string{
				"Prod": "host=prod.example.com;user=deploy;pw=secret",
			},
			Journal: journal.Config{Enabled: true, TableName: "transfers"},
			API:     config.API{Port: 8000, RequestsPerMinute: 60},
		}
	}

	Context("config is valid", func() {
		It("passes validation", func() {
			cfg := validConfig()
			Expect(config.ValidateConfig(&cfg)).To(Succeed())
		})

		It("looks up connection strings case-insensitively", func() {
			cfg := validConfig()
			cs, ok := cfg.ConnectionString(" PROD ")
			Expect(ok).To(BeTrue())
			Expect(cs).To(HavePrefix("host=prod.example.com"))

			_, ok = cfg.ConnectionString("staging")
			Expect(ok).To(BeFalse())
		})
	})

	Context("config is invalid", func() {
		When("the log level is unknown", func() {
			It("fails validation", func() {
				cfg := validConfig()
				cfg.Log.Level = "chatty"
				Expect(config.ValidateConfig(&cfg)).To(MatchError(errors.ErrInvalidConfig))
			})
		})

		When("the journal has no table", func() {
			It("fails validation", func() {
				cfg := validConfig()
				cfg.Journal.TableName = ""
				Expect(config.ValidateConfig(&cfg)).To(MatchError(errors.ErrInvalidConfig))
			})
		})

		When("a connection string has a bad port", func() {
			It("names the connection string", func() {
				cfg := validConfig()
				cfg.ConnectionStrings["broken"] = "host=h;port=abc"
				err := config.ValidateConfig(&cfg)
				Expect(err).To(MatchError(errors.ErrInvalidConfig))
				Expect(err.Error()).To(ContainSubstring(`"broken"`))
			})
		})

		When("descriptors are strict", func() {
			It("rejects malformed tokens", func() {
				cfg := validConfig()
				cfg.ConnectionStrings["prod"] = "host=h;oops"
				Expect(config.ValidateConfig(&cfg)).To(Succeed())

				cfg.Engine.StrictDescriptors = true
				Expect(config.ValidateConfig(&cfg)).To(MatchError(errors.ErrInvalidConfig))
			})
		})
	})

	DescribeTable("auto provisioning",
		func(value string, expected bool) {
			Expect(config.Engine{AutoProvision: value}.AutoProvisionEnabled()).To(Equal(expected))
		},
		Entry("blank defaults to true", "", true),
		Entry("garbage defaults to true", "sometimes", true),
		Entry("yes/no words are not booleans", "no", true),
		Entry("explicit true", "TRUE", true),
		Entry("explicit false", "false", false),
		Entry("numeric false", " 0 ", false),
	)

	It("loads from viper with defaults", func() {
		v := viper.New()
		v.SetConfigType("yaml")
		config.SetDefaults(v)
		Expect(v.ReadConfig(strings.NewReader(`
connectionStrings:
  Backups: "protocol=s3;region=eu-west-1"
engine:
  externalClient: true
  autoProvision: "false"
`))).To(Succeed())

		cfg, err := config.Load(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Log.Level).To(Equal("info"))
		Expect(cfg.API.Port).To(Equal(config.DefaultAPIPort))
		Expect(cfg.Engine.ExternalClient).To(BeTrue())
		Expect(cfg.Engine.AutoProvisionEnabled()).To(BeFalse())
		Expect(cfg.Engine.Session().ExternalClient).To(BeTrue())
		Expect(cfg.Journal.TableName).To(Equal("transfer-journal"))

		cs, ok := cfg.ConnectionString("backups")
		Expect(ok).To(BeTrue())
		Expect(cs).To(Equal("protocol=s3;region=eu-west-1"))
	})

	It("writes an example that validates", func() {
		dir := GinkgoT().TempDir()
		Expect(config.CreateExample(dir)).To(Succeed())

		path := filepath.Join(dir, "config.example.yaml")
		Expect(path).To(BeAnExistingFile())
		Expect(config.ValidateConfigFile(path)).To(Succeed())

		b, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(b)).To(ContainSubstring("connectionStrings:"))
		Expect(string(b)).To(ContainSubstring("pw=CHANGE_ME"))
	})

	It("rejects an unreadable file", func() {
		Expect(config.ValidateConfigFile(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))).NotTo(Succeed())
	})
})
