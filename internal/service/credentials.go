// Package service implements the credential business logic: validation,
// envelope encryption, read-through caching and audit emission, with
// persistence delegated to a repository interface.
package service

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vkotelnikov/credvault/internal/audit"
	"github.com/vkotelnikov/credvault/internal/cache"
	"github.com/vkotelnikov/credvault/internal/crypto"
	"github.com/vkotelnikov/credvault/internal/keys"
	"github.com/vkotelnikov/credvault/internal/models"
)

// defaultListTTL bounds the staleness of cached list and search results.
const defaultListTTL = 30 * time.Second

// CredentialRepository defines the persistence operations needed by the
// CredentialService. Implementations must scope every query by owner id.
type CredentialRepository interface {
	// Insert persists a new credential, envelope and metadata together.
	Insert(ctx context.Context, c *models.Credential) error
	// GetByID fetches one credential with its envelope, scoped by owner.
	GetByID(ctx context.Context, ownerID, id string) (*models.Credential, error)
	// ListByOwner returns metadata-only records of one kind for an owner.
	ListByOwner(ctx context.Context, ownerID string, kind models.Kind, containerID string) ([]models.Credential, error)
	// Search returns metadata-only records matching the query.
	Search(ctx context.Context, ownerID string, kind models.Kind, query string) ([]models.Credential, error)
	// Update rewrites an existing credential row scoped by owner.
	Update(ctx context.Context, c *models.Credential) error
	// Delete removes a credential row scoped by owner.
	Delete(ctx context.Context, ownerID, id string) error
	// CountByContainer counts records referencing a container.
	CountByContainer(ctx context.Context, ownerID, containerID string) (int, error)
}

// IdentityProvider supplies the currently authenticated identity.
type IdentityProvider interface {
	Current(ctx context.Context) (*models.Identity, error)
}

// CredentialService implements credential CRUD and search over all kinds,
// parameterized by the per-kind descriptor table. It is the only
// component that talks to the repository and the audit sink.
type CredentialService struct {
	repo    CredentialRepository
	ids     IdentityProvider
	cache   *cache.Cache
	audit   audit.Sink
	log     *zap.Logger
	listTTL time.Duration
}

// NewCredentialService constructs a CredentialService. The cache is an
// explicit collaborator; its sweep timer belongs to the composition root.
func NewCredentialService(
	repo CredentialRepository,
	ids IdentityProvider,
	c *cache.Cache,
	sink audit.Sink,
	log *zap.Logger,
) *CredentialService {
	return &CredentialService{
		repo:    repo,
		ids:     ids,
		cache:   c,
		audit:   sink,
		log:     log,
		listTTL: defaultListTTL,
	}
}

// CreateInput holds the fields accepted when creating a credential.
// Value is the plaintext; it is consumed, encrypted and discarded.
type CreateInput struct {
	Name        string     `json:"name"`
	Value       string     `json:"value"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags"`
	URL         string     `json:"url"`
	Username    string     `json:"username"`
	Service     string     `json:"service"`
	Environment string     `json:"environment"`
	ContainerID string     `json:"container_id"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// UpdateInput holds a partial patch. Nil fields are left unchanged.
type UpdateInput struct {
	Name        *string    `json:"name"`
	Value       *string    `json:"value"`
	Description *string    `json:"description"`
	Tags        *[]string  `json:"tags"`
	URL         *string    `json:"url"`
	Username    *string    `json:"username"`
	Service     *string    `json:"service"`
	Environment *string    `json:"environment"`
	ContainerID *string    `json:"container_id"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// Create validates the input, encrypts the value under the caller's
// identity key and persists the record. The returned record carries the
// envelope, never the plaintext.
func (s *CredentialService) Create(ctx context.Context, kind models.Kind, in CreateInput) (*models.Credential, error) {
	desc, ok := models.DescriptorFor(kind)
	if !ok {
		return nil, models.NewValidationError("kind", "unknown kind")
	}
	if err := validateName(desc, in.Name); err != nil {
		return nil, err
	}
	if desc.RequiresValue && in.Value == "" {
		return nil, models.NewValidationError("value", "must not be empty")
	}
	if !desc.RequiresValue && in.Value != "" {
		return nil, models.NewValidationError("value", "containers cannot hold a value")
	}
	if err := validateExpiry(in.ExpiresAt); err != nil {
		return nil, err
	}

	ident, err := s.ids.Current(ctx)
	if err != nil {
		return nil, err
	}

	var envelope models.Envelope
	if desc.RequiresValue {
		keyMaterial, err := keys.FromIdentity(ident)
		if err != nil {
			return nil, err
		}
		envelope, err = crypto.Encrypt([]byte(in.Value), keyMaterial)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	cred := &models.Credential{
		ID:          uuid.NewString(),
		OwnerID:     ident.ID,
		Kind:        kind,
		Name:        in.Name,
		Envelope:    envelope,
		Description: in.Description,
		Tags:        in.Tags,
		URL:         in.URL,
		Username:    in.Username,
		Service:     in.Service,
		Environment: in.Environment,
		ContainerID: in.ContainerID,
		ExpiresAt:   in.ExpiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, cred); err != nil {
		return nil, err
	}

	s.invalidateScope(kind, ident.ID)
	s.emitAudit(ctx, kind, cred.ID, audit.ActionCreate, map[string]any{
		"name":         cred.Name,
		"container_id": cred.ContainerID,
	})
	return cred, nil
}

// Read fetches one credential and decrypts its value under the caller's
// identity key. A record owned by a different identity resolves as
// ErrNotFound and is never decrypted. The plaintext is returned alongside
// the record and is never written into the cache.
func (s *CredentialService) Read(ctx context.Context, kind models.Kind, id string) (*models.Credential, string, error) {
	ident, err := s.ids.Current(ctx)
	if err != nil {
		return nil, "", err
	}
	keyMaterial, err := keys.FromIdentity(ident)
	if err != nil {
		return nil, "", err
	}
	return s.read(ctx, ident, kind, id, keyMaterial)
}

// ReadLegacy fetches one credential and decrypts it under the legacy
// passphrase strategy, for records created before identity-derived keys.
func (s *CredentialService) ReadLegacy(ctx context.Context, kind models.Kind, id, passphrase string) (*models.Credential, string, error) {
	ident, err := s.ids.Current(ctx)
	if err != nil {
		return nil, "", err
	}
	return s.read(ctx, ident, kind, id, keys.FromPassphrase(passphrase))
}

func (s *CredentialService) read(ctx context.Context, ident *models.Identity, kind models.Kind, id string, keyMaterial []byte) (*models.Credential, string, error) {
	cred, err := s.repo.GetByID(ctx, ident.ID, id)
	if err != nil {
		return nil, "", err
	}
	if cred.Kind != kind {
		return nil, "", models.ErrNotFound
	}
	if desc, _ := models.DescriptorFor(kind); !desc.RequiresValue {
		return cred, "", nil
	}

	plaintext, err := crypto.Decrypt(cred.Envelope, keyMaterial)
	if err != nil {
		return nil, "", err
	}
	return cred, string(plaintext), nil
}

// List returns metadata-only records of one kind for the caller,
// optionally restricted to a container. Results are cached with a bounded
// staleness; decrypted data never enters the cache.
func (s *CredentialService) List(ctx context.Context, kind models.Kind, containerID string) ([]models.Credential, error) {
	ident, err := s.ids.Current(ctx)
	if err != nil {
		return nil, err
	}
	key := listKey(kind, ident.ID, containerID)
	return cache.Fetch(ctx, s.cache, key, s.listTTL, func(ctx context.Context) ([]models.Credential, error) {
		return s.repo.ListByOwner(ctx, ident.ID, kind, containerID)
	})
}

// Search returns metadata-only records whose name or description contains
// the query, case-insensitively. An empty query behaves as List.
func (s *CredentialService) Search(ctx context.Context, kind models.Kind, query string) ([]models.Credential, error) {
	if query == "" {
		return s.List(ctx, kind, "")
	}
	ident, err := s.ids.Current(ctx)
	if err != nil {
		return nil, err
	}
	key := searchKey(kind, ident.ID, query)
	return cache.Fetch(ctx, s.cache, key, s.listTTL, func(ctx context.Context) ([]models.Credential, error) {
		return s.repo.Search(ctx, ident.ID, kind, query)
	})
}

// Update verifies ownership, re-validates changed fields and persists the
// patch. A changed value is re-encrypted under a brand-new salt and iv,
// never reusing the previous ones.
func (s *CredentialService) Update(ctx context.Context, kind models.Kind, id string, in UpdateInput) (*models.Credential, error) {
	desc, ok := models.DescriptorFor(kind)
	if !ok {
		return nil, models.NewValidationError("kind", "unknown kind")
	}

	ident, err := s.ids.Current(ctx)
	if err != nil {
		return nil, err
	}

	cred, err := s.repo.GetByID(ctx, ident.ID, id)
	if err != nil {
		return nil, err
	}
	if cred.Kind != kind {
		return nil, models.ErrNotFound
	}

	before := redactedSnapshot(cred)

	if in.Name != nil {
		if err := validateName(desc, *in.Name); err != nil {
			return nil, err
		}
		cred.Name = *in.Name
	}
	if in.Value != nil {
		if !desc.RequiresValue {
			return nil, models.NewValidationError("value", "containers cannot hold a value")
		}
		if *in.Value == "" {
			return nil, models.NewValidationError("value", "must not be empty")
		}
		keyMaterial, err := keys.FromIdentity(ident)
		if err != nil {
			return nil, err
		}
		envelope, err := crypto.Encrypt([]byte(*in.Value), keyMaterial)
		if err != nil {
			return nil, err
		}
		cred.Envelope = envelope
	}
	if in.ExpiresAt != nil {
		if err := validateExpiry(in.ExpiresAt); err != nil {
			return nil, err
		}
		cred.ExpiresAt = in.ExpiresAt
	}
	if in.Description != nil {
		cred.Description = *in.Description
	}
	if in.Tags != nil {
		cred.Tags = *in.Tags
	}
	if in.URL != nil {
		cred.URL = *in.URL
	}
	if in.Username != nil {
		cred.Username = *in.Username
	}
	if in.Service != nil {
		cred.Service = *in.Service
	}
	if in.Environment != nil {
		cred.Environment = *in.Environment
	}
	if in.ContainerID != nil {
		cred.ContainerID = *in.ContainerID
	}
	cred.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, cred); err != nil {
		return nil, err
	}

	s.invalidateScope(kind, ident.ID)
	s.emitAudit(ctx, kind, cred.ID, audit.ActionUpdate, map[string]any{
		"before": before,
		"after":  redactedSnapshot(cred),
	})
	return cred, nil
}

// Delete verifies ownership and removes the record. Deleting a container
// that still has dependents fails with ErrNotEmpty.
func (s *CredentialService) Delete(ctx context.Context, kind models.Kind, id string) error {
	desc, ok := models.DescriptorFor(kind)
	if !ok {
		return models.NewValidationError("kind", "unknown kind")
	}

	ident, err := s.ids.Current(ctx)
	if err != nil {
		return err
	}

	cred, err := s.repo.GetByID(ctx, ident.ID, id)
	if err != nil {
		return err
	}
	if cred.Kind != kind {
		return models.ErrNotFound
	}

	if desc.Container {
		dependents, err := s.repo.CountByContainer(ctx, ident.ID, id)
		if err != nil {
			return err
		}
		if dependents > 0 {
			return models.ErrNotEmpty
		}
	}

	if err := s.repo.Delete(ctx, ident.ID, id); err != nil {
		return err
	}

	s.invalidateScope(kind, ident.ID)
	s.emitAudit(ctx, kind, id, audit.ActionDelete, map[string]any{
		"name": cred.Name,
	})
	return nil
}

// validateName checks the name against the kind descriptor rules.
func validateName(desc models.KindDescriptor, name string) error {
	if name == "" {
		return models.NewValidationError("name", "must not be empty")
	}
	if desc.NamePattern != nil && !desc.NamePattern.MatchString(name) {
		return models.NewValidationError("name", "must match "+desc.NamePattern.String())
	}
	return nil
}

// validateExpiry requires expires_at, when present, to be strictly in
// the future.
func validateExpiry(expiresAt *time.Time) error {
	if expiresAt != nil && !expiresAt.After(time.Now()) {
		return models.NewValidationError("expires_at", "must be in the future")
	}
	return nil
}

// redactedSnapshot captures non-sensitive fields for audit metadata.
// The envelope and any plaintext are deliberately left out.
func redactedSnapshot(c *models.Credential) map[string]any {
	return map[string]any{
		"name":         c.Name,
		"description":  c.Description,
		"tags":         len(c.Tags),
		"container_id": c.ContainerID,
		"expires_at":   c.ExpiresAt,
	}
}

// listKey builds the cache key for a list query.
func listKey(kind models.Kind, ownerID, containerID string) string {
	return "list:" + string(kind) + ":" + ownerID + ":" + containerID
}

// searchKey builds the cache key for a search query.
func searchKey(kind models.Kind, ownerID, query string) string {
	return "search:" + string(kind) + ":" + ownerID + ":" + query
}

// invalidateScope drops every cached list and search entry for the
// given kind and owner.
func (s *CredentialService) invalidateScope(kind models.Kind, ownerID string) {
	pattern := "^(list|search):" + regexp.QuoteMeta(string(kind)) + ":" + regexp.QuoteMeta(ownerID) + ":"
	s.cache.InvalidateByPattern(regexp.MustCompile(pattern))
}

// emitAudit delivers an audit event. Failures are logged and swallowed;
// they never fail the primary operation.
func (s *CredentialService) emitAudit(ctx context.Context, kind models.Kind, id, action string, metadata map[string]any) {
	e := audit.NewEvent(string(kind), id, action, metadata)
	if err := s.audit.Log(ctx, e); err != nil {
		s.log.Warn("failed to deliver audit event",
			zap.String("action", action),
			zap.String("resource_id", id),
			zap.Error(err),
		)
	}
}
