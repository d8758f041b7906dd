package identity

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"runtime"
	"slices"
	"strings"

	"github.com/denisbrodbeck/machineid"
	"github.com/srand/jolt/grid/pkg/utils"
)

// Identity is the advertised capability descriptor of a worker.
//
// Attributes describe what the worker offers. Interests describe what
// the holder of the identity wants from a counterpart; they are only
// used when the identity acts as a requester.
//
// An identity is immutable once constructed.
type Identity struct {
	id         string
	attributes map[string]string
	interests  map[string]Interest
}

// NewIdentity creates an identity. The maps are copied.
func NewIdentity(id string, attributes map[string]string, interests map[string]Interest) *Identity {
	return &Identity{
		id:         id,
		attributes: maps.Clone(nonNil(attributes)),
		interests:  maps.Clone(nonNilInterests(interests)),
	}
}

// NewIdentityWithDefaults creates an identity with default attributes
// like the architecture, operating system, number of cpus, a unique
// machine id and the hostname. Explicit attributes take precedence.
func NewIdentityWithDefaults(id string, attributes map[string]string) *Identity {
	merged := DefaultAttributes()
	maps.Copy(merged, attributes)
	return NewIdentity(id, merged, nil)
}

// DefaultAttributes returns the attributes describing the local node.
func DefaultAttributes() map[string]string {
	attributes := map[string]string{
		"node.arch": runtime.GOARCH,
		"node.os":   runtime.GOOS,
		"node.cpus": fmt.Sprint(runtime.NumCPU()),
	}
	if id, err := machineid.ProtectedID("grid-worker"); err == nil {
		attributes["node.id"] = id
	}
	if hostname, err := os.Hostname(); err == nil {
		attributes["worker.hostname"] = hostname
	}
	return attributes
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nonNilInterests(m map[string]Interest) map[string]Interest {
	if m == nil {
		return map[string]Interest{}
	}
	return m
}

// Id returns the opaque identifier.
func (i *Identity) Id() string {
	return i.id
}

// Attributes returns a copy of the attributes.
func (i *Identity) Attributes() map[string]string {
	return maps.Clone(i.attributes)
}

// Attribute returns the value of one attribute.
func (i *Identity) Attribute(key string) (string, bool) {
	value, ok := i.attributes[key]
	return value, ok
}

// Interests returns a copy of the interests.
func (i *Identity) Interests() map[string]Interest {
	return maps.Clone(i.interests)
}

// Satisfies checks if the identity's attributes fulfill the interests.
func (i *Identity) Satisfies(interests map[string]Interest) bool {
	return Matches(i.attributes, interests)
}

// Hostname returns the worker.hostname attribute, or the empty string.
func (i *Identity) Hostname() string {
	return i.attributes["worker.hostname"]
}

// String returns a string representation of the identity,
// one sorted key=value pair per line.
func (i *Identity) String() string {
	data := bytes.Buffer{}
	fmt.Fprintf(&data, "id=%s\n", i.id)
	for _, key := range slices.Sorted(maps.Keys(i.attributes)) {
		fmt.Fprintf(&data, "%s=%s\n", key, i.attributes[key])
	}
	return data.String()
}

// ParseAttributes parses a list of "key=value" strings.
func ParseAttributes(list []string) (map[string]string, error) {
	attributes := map[string]string{}
	for _, item := range list {
		key, value, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%w: invalid attribute: %q", utils.ErrBadRequest, item)
		}
		attributes[strings.TrimSpace(key)] = value
	}
	return attributes, nil
}
