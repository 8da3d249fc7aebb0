// Package tags provides consistent tagging for AWS resources.
//
// All resources created by meshlab carry the meshlab.io/environment tag so
// they can be located by filter and destroyed as a group. Standard tag keys
// use the meshlab.io prefix for namespacing.
package tags

// Standard tag keys.
const (
	// KeyEnvironment identifies which demo environment a resource belongs to.
	KeyEnvironment = "meshlab.io/environment"

	// KeySide identifies the account side (local or external).
	KeySide = "meshlab.io/side"

	// KeyRole identifies the role of a resource within the environment.
	KeyRole = "meshlab.io/role"

	// KeyManagedBy identifies the management system.
	KeyManagedBy = "meshlab.io/managed-by"

	// KeyName is the AWS console display name.
	KeyName = "Name"
)

// Side values.
const (
	SideLocal    = "local"
	SideExternal = "external"
)

// ManagedBy value.
const ManagedByMeshlab = "meshlab"

// Builder provides a fluent interface for building AWS resource tag sets.
type Builder struct {
	tags map[string]string
}

// NewBuilder creates a tag builder with the environment name pre-set.
func NewBuilder(env string) *Builder {
	return &Builder{
		tags: map[string]string{
			KeyEnvironment: env,
			KeyManagedBy:   ManagedByMeshlab,
		},
	}
}

// WithName sets the Name tag.
func (b *Builder) WithName(name string) *Builder {
	b.tags[KeyName] = name
	return b
}

// WithSide sets the account side tag.
func (b *Builder) WithSide(side string) *Builder {
	b.tags[KeySide] = side
	return b
}

// WithRole sets the role tag.
func (b *Builder) WithRole(role string) *Builder {
	b.tags[KeyRole] = role
	return b
}

// Build returns the accumulated tag map.
func (b *Builder) Build() map[string]string {
	out := make(map[string]string, len(b.tags))
	for k, v := range b.tags {
		out[k] = v
	}
	return out
}

// Environment returns the minimal tag set used to select all resources of an
// environment.
func Environment(env string) map[string]string {
	return map[string]string{KeyEnvironment: env}
}
