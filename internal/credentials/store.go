// Package credentials persists user accounts with bcrypt-hashed passwords and
// exchange API secrets.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iudanet/tradeguard/internal/crypto"
	"github.com/iudanet/tradeguard/internal/models"
	"github.com/iudanet/tradeguard/internal/storage"
	"github.com/iudanet/tradeguard/internal/validation"
)

var (
	// ErrDuplicateEmail - email уже зарегистрирован
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateAPIKey - API key уже привязан к другому аккаунту
	ErrDuplicateAPIKey = errors.New("api key already registered")
	// ErrInvalidCredentials - неверный email или пароль (без уточнения, что именно)
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidPermission - право вне {read, trade, withdraw}
	ErrInvalidPermission = errors.New("invalid permission")
	// ErrInvalidInput - некорректные регистрационные данные
	ErrInvalidInput = errors.New("invalid registration data")
)

// DefaultBcryptCost используется, если Config.BcryptCost не задан
const DefaultBcryptCost = 12

// Config holds Store dependencies besides the user storage.
type Config struct {
	Now                func() time.Time
	Logger             *zap.Logger
	MasterKey          []byte // 32 байта, шифрует API secret
	DefaultPermissions models.Permissions
	BcryptCost         int
}

// Store is the Credential Store.
type Store struct {
	users      storage.UserStorage
	now        func() time.Time
	logger     *zap.Logger
	masterKey  []byte
	defaults   models.Permissions
	dummyHash  string
	bcryptCost int
}

// NewStore creates a credential store. Missing DefaultPermissions means the
// full set; missing BcryptCost means DefaultBcryptCost.
func NewStore(users storage.UserStorage, cfg Config) (*Store, error) {
	if len(cfg.MasterKey) != crypto.KeySize {
		return nil, fmt.Errorf("master key must be %d bytes", crypto.KeySize)
	}

	cost := cfg.BcryptCost
	if cost == 0 {
		cost = DefaultBcryptCost
	}

	defaults := cfg.DefaultPermissions
	if defaults == nil {
		defaults = models.Permissions(models.AllPermissions)
	}
	if err := checkPermissions(defaults); err != nil {
		return nil, fmt.Errorf("default permissions: %w", err)
	}

	// Хеш для сравнения при неизвестном email: время ответа не выдает наличие аккаунта
	dummy, err := crypto.HashSecret(uuid.NewString(), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	s := &Store{
		users:      users,
		now:        cfg.Now,
		logger:     cfg.Logger,
		masterKey:  append([]byte(nil), cfg.MasterKey...),
		defaults:   append(models.Permissions(nil), defaults...),
		dummyHash:  dummy,
		bcryptCost: cost,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	return s, nil
}

// CreateUser registers a new account with the default permission set.
func (s *Store) CreateUser(ctx context.Context, email, password, apiKey, apiSecret string) (*models.User, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := validation.ValidateAPICredentials(apiKey, apiSecret); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	passwordHash, err := crypto.HashSecret(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	secretHash, err := crypto.HashSecret(apiSecret, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash api secret: %w", err)
	}

	user := &models.User{
		ID:            uuid.New().String(),
		Email:         email,
		PasswordHash:  passwordHash,
		APIKey:        apiKey,
		APISecretHash: secretHash,
		Permissions:   append(models.Permissions(nil), s.defaults...),
		IsActive:      true,
		CreatedAt:     s.now().UTC(),
	}

	// Секрет биржи нужен в открытом виде для HMAC заголовков, поэтому
	// хранится еще и зашифрованным, с привязкой к id владельца
	user.APISecretEnc, err = crypto.Encrypt([]byte(apiSecret), s.masterKey, []byte(user.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt api secret: %w", err)
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, storage.ErrUserAlreadyExists):
			return nil, ErrDuplicateEmail
		case errors.Is(err, storage.ErrAPIKeyAlreadyExists):
			return nil, ErrDuplicateAPIKey
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user created",
		zap.String("user_id", user.ID),
		zap.Strings("permissions", user.Permissions.Strings()),
	)

	return user, nil
}

// Authenticate returns the account for a matching email and password.
// Any mismatch, including an unknown email or a deactivated account,
// is ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			crypto.CompareSecret(s.dummyHash, password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !crypto.CompareSecret(user.PasswordHash, password) || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// GetUser returns the account by id.
func (s *Store) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

// RecordLogin stamps the last login time.
func (s *Store) RecordLogin(ctx context.Context, userID string) error {
	return s.users.UpdateLastLogin(ctx, userID, s.now().UTC())
}

// VerifyAPISecret compares apiSecret with the stored bcrypt hash.
func (s *Store) VerifyAPISecret(ctx context.Context, userID, apiSecret string) (bool, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return crypto.CompareSecret(user.APISecretHash, apiSecret), nil
}

// ExchangeCredentials decrypts the exchange API secret of user. The caller
// must wipe APISecret once the headers are built.
func (s *Store) ExchangeCredentials(user *models.User) (*models.ExchangeCredentials, error) {
	secret, err := crypto.Decrypt(user.APISecretEnc, s.masterKey, []byte(user.ID))
	if err != nil {
		s.logger.Error("api secret decryption failed", zap.String("user_id", user.ID))
		return nil, fmt.Errorf("failed to open api secret: %w", crypto.ErrDecrypt)
	}
	return &models.ExchangeCredentials{APIKey: user.APIKey, APISecret: secret}, nil
}

// SetPermissions replaces the permission set; only known permissions are accepted.
func (s *Store) SetPermissions(ctx context.Context, userID string, perms models.Permissions) error {
	if err := checkPermissions(perms); err != nil {
		return err
	}

	if err := s.users.UpdatePermissions(ctx, userID, dedupe(perms)); err != nil {
		return fmt.Errorf("failed to update permissions: %w", err)
	}

	s.logger.Info("permissions changed",
		zap.String("user_id", userID),
		zap.Strings("permissions", perms.Strings()),
	)
	return nil
}

// Deactivate disables the account. Accounts are never deleted.
func (s *Store) Deactivate(ctx context.Context, userID string) error {
	if err := s.users.DeactivateUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	s.logger.Info("user deactivated", zap.String("user_id", userID))
	return nil
}

func checkPermissions(perms models.Permissions) error {
	for _, p := range perms {
		if _, err := models.ParsePermission(string(p)); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidPermission, p)
		}
	}
	return nil
}

func dedupe(perms models.Permissions) models.Permissions {
	out := make(models.Permissions, 0, len(perms))
	for _, p := range perms {
		if !out.Has(p) {
			out = append(out, p)
		}
	}
	return out
}
