package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/protomind/user-service/internal/core/domain"
	"github.com/protomind/user-service/internal/core/ports"
)

const (
	defaultPageLimit = 15
	maxPageLimit     = 100
)

// UserServiceConfig holds the tunables of UserService.
type UserServiceConfig struct {
	DefaultLimit int // page size when the request gives none
	MaxLimit     int // upper bound on any requested page size
}

// UserService implements role-scoped listing and creation of accounts.
type UserService struct {
	users    ports.UserRepository
	roles    ports.RoleRepository
	links    ports.ManagerSecretaryRepository
	tx       ports.TxRunner
	media    ports.MediaStore
	notifier ports.Notifier
	cfg      UserServiceConfig
	logger   zerolog.Logger
	now      func() time.Time
}

func NewUserService(
	users ports.UserRepository,
	roles ports.RoleRepository,
	links ports.ManagerSecretaryRepository,
	tx ports.TxRunner,
	media ports.MediaStore,
	notifier ports.Notifier,
	cfg UserServiceConfig,
	logger zerolog.Logger,
) *UserService {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = defaultPageLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = maxPageLimit
	}
	return &UserService{
		users:    users,
		roles:    roles,
		links:    links,
		tx:       tx,
		media:    media,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetAll returns a page of users visible to actor. Role rules are cumulative:
// secretaries never see admins, managers only see their own secretaries and
// admins never see themselves.
func (s *UserService) GetAll(ctx context.Context, actor domain.Actor, in ports.ListUsersInput) (*ports.Page[*domain.User], error) {
	q := ports.ListUsersQuery{
		Filter:     in.Filter,
		Visibility: domain.HideBlocked,
		Page:       in.Page,
		Limit:      s.limit(in.Limit),
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	if actor.HasRole(domain.RoleSecretary) {
		q.ExcludeRoles = append(q.ExcludeRoles, domain.RoleAdmin)
	}

	if actor.HasRole(domain.RoleManager) {
		visibility := domain.HideBlocked
		if in.WithBlocked {
			visibility = domain.IncludeBlocked
		}
		ids, err := s.links.SecretaryIDs(ctx, actor.ID, visibility)
		if err != nil {
			return nil, fmt.Errorf("list secretaries: %w", err)
		}
		q.OnlyIDs = ids
		q.RestrictIDs = true
		q.Visibility = visibility
	}

	if actor.HasRole(domain.RoleAdmin) {
		q.ExcludeIDs = append(q.ExcludeIDs, actor.ID)
	}

	users, total, err := s.users.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return ports.NewPage(users, total, q.Page, q.Limit), nil
}

// Create registers a new account on behalf of actor. External accounts skip
// every role check; internal ones need an ADMIN or MANAGER actor.
func (s *UserService) Create(ctx context.Context, actor domain.Actor, in ports.CreateUserInput) (*domain.User, error) {
	if in.External {
		return s.createExternal(ctx, in)
	}

	role, ok := actor.RoleForNewUser()
	if !ok {
		s.logger.Warn().Str("actor_id", actor.ID).Msg("user creation rejected: unexpected role")
		return nil, domain.ErrUnexpectedRole
	}

	plain := in.Password
	if plain == "" {
		generated, err := generatePassword()
		if err != nil {
			return nil, err
		}
		plain = generated
	}
	hash, err := hashPassword(plain)
	if err != nil {
		return nil, err
	}

	if _, err := s.roles.Ensure(ctx, role, domain.DefaultGuard); err != nil {
		return nil, fmt.Errorf("ensure role %s: %w", role, err)
	}

	user := s.newUser(in, hash, role)
	linkToManager := actor.HasRole(domain.RoleManager)

	err = s.tx.WithinTx(ctx, func(ctx context.Context, stores ports.TxStores) error {
		if err := stores.Users.Create(ctx, user); err != nil {
			return err
		}
		if !linkToManager {
			return nil
		}
		return stores.ManagerSecretaries.Create(ctx, &domain.ManagerSecretary{
			ManagerID:   actor.ID,
			SecretaryID: user.ID,
			CreatedAt:   user.CreatedAt,
		})
	})
	if err != nil {
		s.logger.Error().Err(err).Str("email", in.Email).Msg("failed to create user")
		return nil, err
	}

	// The account is committed at this point; later failures are logged and
	// the user is still returned.
	s.attachAvatar(ctx, user, in.Avatar)

	if err := s.notifier.SendConfirmEmail(ctx, user, plain); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to queue confirm email")
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("role", role.String()).
		Str("actor_id", actor.ID).
		Bool("linked_to_manager", linkToManager).
		Msg("user created")

	return user, nil
}

// createExternal registers an EXTERNAL account. The password is optional and
// no notification is sent.
func (s *UserService) createExternal(ctx context.Context, in ports.CreateUserInput) (*domain.User, error) {
	var hash string
	if in.Password != "" {
		h, err := hashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		hash = h
	}

	if _, err := s.roles.Ensure(ctx, domain.RoleExternal, domain.DefaultGuard); err != nil {
		return nil, fmt.Errorf("ensure role %s: %w", domain.RoleExternal, err)
	}

	user := s.newUser(in, hash, domain.RoleExternal)
	if err := s.users.Create(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("email", in.Email).Msg("failed to create external user")
		return nil, err
	}

	s.attachAvatar(ctx, user, in.Avatar)

	s.logger.Info().Str("user_id", user.ID).Msg("external user created")
	return user, nil
}

// SetBlocked blocks or unblocks an account. Admins may toggle anyone except
// themselves; managers only their own secretaries.
func (s *UserService) SetBlocked(ctx context.Context, actor domain.Actor, userID string, blocked bool) (*domain.User, error) {
	switch {
	case actor.HasRole(domain.RoleAdmin):
		if userID == actor.ID {
			return nil, domain.ErrForbidden
		}
	case actor.HasRole(domain.RoleManager):
		ok, err := s.links.IsSecretaryOf(ctx, actor.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("check secretary: %w", err)
		}
		if !ok {
			return nil, domain.ErrForbidden
		}
	default:
		return nil, domain.ErrForbidden
	}

	if err := s.users.SetBlocked(ctx, userID, blocked); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", userID).Bool("blocked", blocked).Str("actor_id", actor.ID).Msg("user block state changed")
	return s.users.FindByID(ctx, userID, domain.IncludeBlocked)
}

// attachAvatar stores the optional avatar of a committed account. A failure
// leaves the account without an avatar.
func (s *UserService) attachAvatar(ctx context.Context, user *domain.User, avatar *ports.AvatarUpload) {
	if avatar == nil || avatar.Content == nil {
		return
	}

	media, err := s.media.Put(ctx, user.ID, ports.AvatarCollection, *avatar)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to store avatar")
		return
	}
	if err := s.users.SetAvatar(ctx, user.ID, media); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to attach avatar")
		return
	}
	user.Avatar = media
}

func (s *UserService) newUser(in ports.CreateUserInput, hash string, role domain.Role) *domain.User {
	now := s.now()
	return &domain.User{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
		Roles:        []domain.Role{role},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *UserService) limit(requested int) int {
	switch {
	case requested <= 0:
		return s.cfg.DefaultLimit
	case requested > s.cfg.MaxLimit:
		return s.cfg.MaxLimit
	default:
		return requested
	}
}

func hashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// generatePassword returns a random first-login password for accounts created
// without one.
func generatePassword() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
