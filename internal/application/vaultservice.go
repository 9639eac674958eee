// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"github.com/ericfisherdev/gitvault/internal/apperror"
	"github.com/ericfisherdev/gitvault/internal/cipher"
	"github.com/ericfisherdev/gitvault/internal/domain/model"
	"github.com/ericfisherdev/gitvault/internal/domain/port/driven"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// VaultService manages git labels: provider-validated, per-user encrypted
// tokens. Read paths only ever return the masked token.
type VaultService struct {
	users    driven.UserStore
	creds    driven.CredentialStore
	cipher   *cipher.Cipher
	registry *Registry
	metrics  *Metrics
	logger   *slog.Logger
}

// NewVaultService creates a VaultService. metrics may be nil.
func NewVaultService(
	users driven.UserStore,
	creds driven.CredentialStore,
	c *cipher.Cipher,
	registry *Registry,
	metrics *Metrics,
) *VaultService {
	return &VaultService{
		users:    users,
		creds:    creds,
		cipher:   c,
		registry: registry,
		metrics:  metrics,
		logger:   slog.Default(),
	}
}

// RegisterUser creates the owner's secret envelope if it does not exist yet.
// It reports whether a new envelope was created.
func (s *VaultService) RegisterUser(ctx context.Context, ownerID string) (*model.User, bool, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, false, apperror.Validation("owner_id", "owner id is required")
	}

	existing, err := s.users.FindByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, false, s.internal("find user", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	salt, err := s.cipher.NewSalt()
	if err != nil {
		return nil, false, s.internal("generate salt", err)
	}
	sealed, err := s.cipher.Encrypt(salt)
	if err != nil {
		return nil, false, s.internal("seal salt", err)
	}

	created, err := s.users.Create(ctx, model.User{OwnerID: ownerID, EncryptionSaltCiphertext: sealed})
	if err != nil {
		return nil, false, s.internal("create user", err)
	}

	// A concurrent registration may have won; return whichever envelope is stored.
	user, err := s.users.FindByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, false, s.internal("reload user", err)
	}
	if user == nil {
		return nil, false, s.internal("reload user", errors.New("user missing after create"))
	}

	if created {
		s.logger.Info("user registered", "owner_id", ownerID)
	}
	return user, created, nil
}

// Add validates token against the provider and stores it encrypted. Nothing
// is written unless every step up to persistence succeeds.
func (s *VaultService) Add(ctx context.Context, ownerID, label string, provider model.ProviderTag, token string) (cred *model.Credential, err error) {
	defer func() { s.metrics.credentialOp("add", err) }()

	token = stripWhitespace(token)
	if token == "" {
		return nil, apperror.Validation("token", "token is required")
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, apperror.Validation("label", "label is required")
	}

	user, err := s.users.FindByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, s.internal("find user", err)
	}
	if user == nil {
		return nil, apperror.NotFound("user")
	}

	factory, normalizer := s.registry.GetComponents(provider)
	if factory == nil || normalizer == nil {
		return nil, apperror.UnsupportedProvider(string(provider))
	}

	client := instrument(factory.NewClient(token), provider, s.metrics)
	raw, err := client.GetAuthenticatedUser(ctx)
	if err != nil {
		s.logger.Warn("token validation failed", "provider", provider, "owner_id", ownerID, "error", causeOf(err))
		return nil, providerError(provider, err)
	}
	if raw == nil {
		return nil, apperror.ProviderAuth(string(provider), "invalid or missing token", nil)
	}

	providerUser, err := normalizer.NormalizeUser(raw)
	if err != nil {
		return nil, s.internal("normalize provider user", err)
	}
	if providerUser == nil || providerUser.Username == "" {
		return nil, apperror.ProviderAuth(string(provider), "invalid or missing token", nil)
	}

	salt, err := s.cipher.Decrypt(user.EncryptionSaltCiphertext)
	if err != nil {
		s.logger.Error("unable to open user envelope", "owner_id", ownerID, "error", causeOf(err))
		return nil, err
	}
	ciphertext, err := s.cipher.EncryptForUser(token, salt)
	if err != nil {
		return nil, err
	}
	fingerprint, err := s.cipher.FingerprintForUser(token, salt)
	if err != nil {
		return nil, err
	}

	cred, err = s.creds.Save(ctx, model.NewCredential{
		Label:            label,
		OwnerID:          ownerID,
		Provider:         provider,
		TokenCiphertext:  ciphertext,
		TokenFingerprint: fingerprint,
		MaskedToken:      cipher.Mask(token),
		ProviderUsername: providerUser.Username,
	})
	if err != nil {
		if errors.Is(err, driven.ErrCredentialExists) {
			return nil, apperror.Conflict("git label", err)
		}
		return nil, s.internal("save credential", err)
	}

	s.logger.Info("git label added", "id", cred.ID, "owner_id", ownerID, "provider", provider)
	return cred, nil
}

// Get returns the owner's credential. A credential owned by someone else is
// reported exactly like a missing one.
func (s *VaultService) Get(ctx context.Context, id, ownerID string) (*model.Credential, error) {
	cred, err := s.creds.FindByID(ctx, id)
	if err != nil {
		return nil, s.internal("find credential", err)
	}
	if cred == nil || cred.OwnerID != ownerID {
		return nil, apperror.NotFound("git label")
	}
	return cred, nil
}

// List returns one page of the owner's credentials. An empty provider lists
// every provider.
func (s *VaultService) List(ctx context.Context, ownerID string, offset, limit int, provider model.ProviderTag) (model.CredentialPage, error) {
	if provider != "" && !provider.Valid() {
		return model.CredentialPage{}, apperror.UnsupportedProvider(string(provider))
	}
	offset, limit = clampList(offset, limit)

	page, err := s.creds.FindByOwner(ctx, offset, limit, ownerID, provider)
	if err != nil {
		return model.CredentialPage{}, s.internal("list credentials", err)
	}
	if page.Items == nil {
		page.Items = []model.Credential{}
	}
	return page, nil
}

// Delete removes the credential when ownerID owns it and returns how many
// rows went away. Zero is not an error.
func (s *VaultService) Delete(ctx context.Context, id, ownerID string) (n int64, err error) {
	defer func() { s.metrics.credentialOp("delete", err) }()

	n, err = s.creds.DeleteByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return 0, s.internal("delete credential", err)
	}
	if n > 0 {
		s.logger.Info("git label deleted", "id", id, "owner_id", ownerID)
	}
	return n, nil
}

// UseToken resolves the owner's credential, decrypts its token and passes it
// to fn. The plaintext is only valid for the duration of fn.
func (s *VaultService) UseToken(ctx context.Context, ownerID, credentialID string, fn func(cred *model.Credential, token string) error) error {
	user, err := s.users.FindByOwnerID(ctx, ownerID)
	if err != nil {
		return s.internal("find user", err)
	}
	if user == nil {
		return apperror.NotFound("user")
	}

	cred, err := s.Get(ctx, credentialID, ownerID)
	if err != nil {
		return err
	}

	salt, err := s.cipher.Decrypt(user.EncryptionSaltCiphertext)
	if err != nil {
		s.logger.Error("unable to open user envelope", "owner_id", ownerID, "error", causeOf(err))
		return err
	}

	return s.cipher.WithUserToken(cred.TokenCiphertext, salt, func(token string) error {
		return fn(cred, token)
	})
}

func (s *VaultService) internal(op string, err error) error {
	s.logger.Error("vault operation failed", "op", op, "error", err)
	return apperror.Internal(err)
}

// stripWhitespace removes every whitespace rune, not only the ends, since
// pasted tokens often carry line breaks.
func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func clampList(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return offset, limit
}

// providerError passes classified provider failures through and treats
// anything else as the provider being unavailable.
func providerError(provider model.ProviderTag, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.ProviderUnavailable(string(provider), "request failed", err)
}

// causeOf returns the server-side cause of an AppError for logging.
func causeOf(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Cause != nil {
		return appErr.Cause
	}
	return err
}
