// Package models defines the core data structures for credentials,
// identities and envelopes.
package models

import (
	"regexp"
	"time"
)

// Kind is the discriminator identifying which credential variant a
// repository operation targets.
type Kind string

const (
	// KindSecret represents a generic secret value (passwords, tokens).
	KindSecret Kind = "secret"
	// KindAPIKey represents an API key with an associated service.
	KindAPIKey Kind = "api_key"
	// KindEnvVar represents an environment variable.
	KindEnvVar Kind = "env_var"
	// KindFolder represents a container grouping other credentials.
	// Folders carry no encrypted value.
	KindFolder Kind = "folder"
)

// envVarNamePattern is the required shape of an environment variable name.
var envVarNamePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// KindDescriptor captures the per-kind validation and shape rules so a
// single repository can serve every kind without duplicated CRUD logic.
type KindDescriptor struct {
	// Kind is the variant this descriptor applies to.
	Kind Kind
	// NamePattern, when non-nil, must match the credential name.
	NamePattern *regexp.Regexp
	// RequiresValue reports whether a plaintext value is mandatory on create.
	RequiresValue bool
	// Container reports whether records of this kind may own dependents.
	Container bool
}

// descriptors holds the descriptor table for all known kinds.
var descriptors = map[Kind]KindDescriptor{
	KindSecret: {Kind: KindSecret, RequiresValue: true},
	KindAPIKey: {Kind: KindAPIKey, RequiresValue: true},
	KindEnvVar: {Kind: KindEnvVar, RequiresValue: true, NamePattern: envVarNamePattern},
	KindFolder: {Kind: KindFolder, Container: true},
}

// DescriptorFor returns the descriptor for the given kind.
// The second result is false for unknown kinds.
func DescriptorFor(kind Kind) (KindDescriptor, bool) {
	d, ok := descriptors[kind]
	return d, ok
}

// Envelope is the triple that together makes a stored value decryptable.
// All three fields are base64-encoded. A partially populated envelope is
// corrupt and must fail decryption rather than yield empty data.
type Envelope struct {
	// Ciphertext is the AES-GCM output including the integrity tag.
	Ciphertext string `json:"ciphertext"`
	// IV is the 96-bit nonce used for this encryption.
	IV string `json:"iv"`
	// Salt is the 128-bit salt the key was stretched with.
	Salt string `json:"salt"`
}

// Empty reports whether no envelope field is set at all.
func (e Envelope) Empty() bool {
	return e.Ciphertext == "" && e.IV == "" && e.Salt == ""
}

// Credential is one stored item. The plaintext value never appears here;
// only the envelope is persisted.
type Credential struct {
	// ID is the opaque unique identifier of the record.
	ID string `json:"id"`
	// OwnerID identifies the identity that owns this record.
	OwnerID string `json:"owner_id"`
	// Kind is the credential variant.
	Kind Kind `json:"kind"`
	// Name is the user-visible name of the record.
	Name string `json:"name"`
	// Envelope holds the encrypted value.
	Envelope Envelope `json:"envelope"`
	// Description is optional free-form text.
	Description string `json:"description,omitempty"`
	// Tags is an optional set of labels.
	Tags []string `json:"tags,omitempty"`
	// URL is an optional kind-specific field.
	URL string `json:"url,omitempty"`
	// Username is an optional kind-specific field.
	Username string `json:"username,omitempty"`
	// Service is an optional kind-specific field for API keys.
	Service string `json:"service,omitempty"`
	// Environment is an optional label for environment variables.
	Environment string `json:"environment,omitempty"`
	// ContainerID optionally references a folder this record belongs to.
	ContainerID string `json:"container_id,omitempty"`
	// ExpiresAt optionally marks when the credential stops being valid.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	// AccessCount is persisted but never incremented; no record-access
	// operation exists yet.
	AccessCount int64 `json:"access_count"`
	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is the last-modification timestamp.
	UpdatedAt time.Time `json:"updated_at"`
}

// Identity describes the currently authenticated caller as supplied by
// the identity provider.
type Identity struct {
	// ID is the stable subject identifier.
	ID string
	// Contact is the primary contact address.
	Contact string
	// CreatedAt is the account-creation time.
	CreatedAt time.Time
}
