package identity

import (
	"fmt"

	"github.com/spf13/viper"
	"github.com/srand/jolt/grid/pkg/utils"
)

// Statically configured worker.
//
//	workers:
//	  - id: linux-builder
//	    count: 2
//	    defaults: true
//	    attributes:
//	      - node.os=linux
//	      - label=QFT
type WorkerConfig struct {
	// Identifier of the worker. Suffixed with -<n> when Count > 1.
	Id string `mapstructure:"id"`
	// Number of identical workers to register.
	Count int `mapstructure:"count"`
	// Add the local node's default attributes.
	Defaults bool `mapstructure:"defaults"`
	// List of key=value attributes.
	Attributes []string `mapstructure:"attributes"`
}

// Identities expands the configuration into worker identities.
func (c *WorkerConfig) Identities() ([]*Identity, error) {
	if c.Id == "" {
		return nil, fmt.Errorf("%w: worker without id", utils.ErrBadRequest)
	}

	attributes, err := ParseAttributes(c.Attributes)
	if err != nil {
		return nil, fmt.Errorf("worker %s: %w", c.Id, err)
	}

	count := max(c.Count, 1)
	identities := make([]*Identity, 0, count)

	for n := 0; n < count; n++ {
		id := c.Id
		if count > 1 {
			id = fmt.Sprintf("%s-%d", c.Id, n)
		}

		if c.Defaults {
			identities = append(identities, NewIdentityWithDefaults(id, attributes))
		} else {
			identities = append(identities, NewIdentity(id, attributes, nil))
		}
	}

	return identities, nil
}

// LoadConfig loads the attributes of the local worker from the viper
// config key "attributes". The value can be a comma separated string
// (environment variable) or a list of key=value strings.
func LoadConfig(v *viper.Viper, id string) (*Identity, error) {
	attributes, err := ParseAttributes(v.GetStringSlice("attributes"))
	if err != nil {
		return nil, err
	}
	return NewIdentityWithDefaults(id, attributes), nil
}
