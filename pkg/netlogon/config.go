package netlogon

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ineffectivecoder/NLGooser/pkg/auth"
)

// DefaultTimeout bounds each transport operation
const DefaultTimeout = 30 * time.Second

// Config holds the parameters of a secure channel
type Config struct {
	// Host is the domain controller name or address
	Host string `yaml:"host" validate:"required,hostname_rfc1123|ip"`

	// Port of the Netlogon endpoint; 0 resolves it through the endpoint mapper
	Port int `yaml:"port" validate:"gte=0,lte=65535"`

	// ServiceAccount is the machine or service account owning the channel
	ServiceAccount string `yaml:"service_account" validate:"required"`

	// ServicePassword, ServiceHash and KeytabPath are the credential sources,
	// tried hash first, then password, then keytab
	ServicePassword string `yaml:"service_password" validate:"required_without_all=ServiceHash KeytabPath"`
	ServiceHash     string `yaml:"service_hash" validate:"omitempty,nthash"`
	KeytabPath      string `yaml:"keytab" validate:"omitempty,file"`
	Realm           string `yaml:"realm" validate:"required_with=KeytabPath"`

	// Hostname is the client identity sent as ComputerName
	Hostname string `yaml:"hostname"`

	// PrimaryName is the optional logon server name sent with each call
	PrimaryName string `yaml:"primary_name"`

	SecureChannelType SecureChannelType `yaml:"secure_channel_type" validate:"oneof=2 6"`
	NegotiateFlags    uint32            `yaml:"negotiate_flags"`

	Timeout   time.Duration `yaml:"timeout" validate:"gte=0"`
	Socks5URL string        `yaml:"socks5" validate:"omitempty,url"`
}

var validate = newValidator()

// newValidator adds the nthash rule, which accepts whatever auth.ParseHash
// accepts: 32 hex characters or the LM:NT pair
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("nthash", func(fl validator.FieldLevel) bool {
		_, err := auth.ParseHash(fl.Field().String())
		return err == nil
	})
	return v
}

// LoadConfig reads a YAML configuration file. Defaults are applied but the
// result is not validated.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(ErrConfiguration, "", StageConfig, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, newError(ErrConfiguration, "", StageConfig, fmt.Errorf("failed to parse %s: %w", path, err))
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills unset optional fields
func (c *Config) applyDefaults() {
	if c.Hostname == "" {
		c.Hostname = strings.TrimSuffix(c.ServiceAccount, "$")
	}
	if c.SecureChannelType == 0 {
		c.SecureChannelType = WorkstationSecureChannel
	}
	if c.NegotiateFlags == 0 {
		c.NegotiateFlags = DefaultNegotiateFlags
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// Validate applies defaults and checks the configuration
func (c *Config) Validate() error {
	c.applyDefaults()

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			err = errors.New(strings.Join(fields, ", "))
		}
		return newError(ErrConfiguration, c.Host, StageConfig, err)
	}

	if c.NegotiateFlags&NegotiateStrongKeys == 0 {
		return newError(ErrConfiguration, c.Host, StageConfig,
			fmt.Errorf("negotiate flags 0x%08X lack strong keys", c.NegotiateFlags))
	}
	if c.NegotiateFlags&NegotiateAES != 0 {
		return newError(ErrConfiguration, c.Host, StageConfig,
			fmt.Errorf("negotiate flags 0x%08X request AES, which is not supported", c.NegotiateFlags))
	}
	return nil
}

// HashSources returns the configured credential strategies in the order
// they are tried
func (c *Config) HashSources() []auth.HashSource {
	var sources []auth.HashSource

	if c.ServiceHash != "" {
		sources = append(sources, &hashSource{hash: c.ServiceHash})
	}
	if c.ServicePassword != "" {
		sources = append(sources, auth.NewPasswordCredentials(c.ServiceAccount, c.ServicePassword))
	}
	if c.KeytabPath != "" {
		sources = append(sources, &keytabSource{path: c.KeytabPath, principal: c.ServiceAccount, realm: c.Realm})
	}
	return sources
}

// hashSource parses the configured hash when it is tried, so a malformed
// value shows up as a failed attempt
type hashSource struct {
	hash string
}

func (h *hashSource) Name() string { return "hash" }

func (h *hashSource) NTHash() ([]byte, error) {
	return auth.ParseHash(h.hash)
}

// keytabSource loads the keytab only when it is actually tried
type keytabSource struct {
	path, principal, realm string
}

func (k *keytabSource) Name() string { return "keytab" }

func (k *keytabSource) NTHash() ([]byte, error) {
	kt, err := auth.NewKeytabCredentials(k.path, k.principal, k.realm)
	if err != nil {
		return nil, err
	}
	return kt.NTHash()
}
