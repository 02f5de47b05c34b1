package identity

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
	"github.com/vaxtrack/vaxtrack/internal/platform/db"
)

type Service struct {
	users      UserRepository
	tokens     *auth.TokenIssuer
	revoker    auth.Revoker
	bcryptCost int
	logger     zerolog.Logger
}

func NewService(users UserRepository, tokens *auth.TokenIssuer, revoker auth.Revoker, bcryptCost int, logger zerolog.Logger) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		revoker:    revoker,
		bcryptCost: bcryptCost,
		logger:     logger.With().Str("component", "identity").Logger(),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateAccount(name, email, password string) error {
	if strings.TrimSpace(name) == "" || email == "" || password == "" {
		return apperr.Validation("Please provide all required details.")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperr.Validation("Invalid email address.")
	}
	if len(password) < auth.MinPasswordLength {
		return apperr.Validation("Password must be at least %d characters.", auth.MinPasswordLength)
	}
	return nil
}

// createUser persists a new account with the given role. exists is the
// message returned when the email is taken.
func (s *Service) createUser(ctx context.Context, req CreateUserRequest, role, exists string) (*User, error) {
	email := normalizeEmail(req.Email)
	if err := validateAccount(req.Name, email, req.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperr.Conflict("%s", exists)
	} else if !db.IsNoRows(err) {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{Name: strings.TrimSpace(req.Name), Email: email, PasswordHash: hash, Role: role}
	if err := s.users.Create(ctx, u); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperr.Conflict("%s", exists)
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) issue(u *User) (*AuthResponse, error) {
	token, _, err := s.tokens.Issue(u.ID, u.Role, u.Name)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Token: token, User: u}, nil
}

// Signup registers a parent account. Self-registration can never grant the
// doctor or admin role.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	if req.Role != "" && req.Role != auth.RoleParent {
		return nil, apperr.Validation("Only parent accounts can be registered.")
	}
	u, err := s.createUser(ctx, CreateUserRequest{Name: req.Name, Email: req.Email, Password: req.Password},
		auth.RoleParent, "User already exists")
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

func (s *Service) Signin(ctx context.Context, req SigninRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, apperr.Validation("Please provide all required details.")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.Validation("Invalid Credentials")
		}
		return nil, err
	}

	ok, err := auth.CheckPassword(u.PasswordHash, req.Password)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", u.ID.String()).Msg("stored password hash is unreadable")
	}
	if !ok {
		return nil, apperr.Validation("Invalid Credentials")
	}
	return s.issue(u)
}

// Logout revokes the token that authenticated ctx.
func (s *Service) Logout(ctx context.Context) error {
	jti, exp := auth.TokenFromContext(ctx)
	if jti == "" || s.revoker == nil {
		return nil
	}
	if err := s.revoker.Revoke(ctx, jti, exp); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("User not found.")
		}
		return nil, err
	}
	return u, nil
}

// RoleOf returns the role of the user with the given id.
func (s *Service) RoleOf(ctx context.Context, id uuid.UUID) (string, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

// Exists lets the JWT middleware confirm that a token's subject was not
// deleted.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.users.Exists(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	if role != "" && !auth.ValidRole(role) {
		return nil, 0, apperr.Validation("Invalid role: %s", role)
	}
	return s.users.List(ctx, role, limit, offset)
}

// ListDoctors returns every doctor account, for assigning regions.
func (s *Service) ListDoctors(ctx context.Context) ([]*User, error) {
	var all []*User
	const page = 100
	for offset := 0; ; offset += page {
		users, total, err := s.users.List(ctx, auth.RoleDoctor, page, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, users...)
		if offset+page >= total || len(users) == 0 {
			break
		}
	}
	if all == nil {
		all = []*User{}
	}
	return all, nil
}

func (s *Service) CreateDoctor(ctx context.Context, req CreateUserRequest) (*User, error) {
	return s.createUser(ctx, req, auth.RoleDoctor, "Doctor already exists.")
}

// CreateAdmin bootstraps an admin account. It is only reachable from the CLI.
func (s *Service) CreateAdmin(ctx context.Context, req CreateUserRequest) (*User, error) {
	return s.createUser(ctx, req, auth.RoleAdmin, "User already exists")
}

// DeleteUser removes a parent or doctor account. Children and finished
// schedules of a parent cascade with it.
func (s *Service) DeleteUser(ctx context.Context, actorID, id uuid.UUID) error {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if u.Role == auth.RoleAdmin {
		return apperr.Validation("Cannot delete admin.")
	}
	if u.ID == actorID {
		return apperr.Validation("You cannot delete yourself.")
	}

	switch u.Role {
	case auth.RoleDoctor:
		used, err := s.users.DoctorInUse(ctx, u.ID)
		if err != nil {
			return err
		}
		if used {
			return apperr.Conflict("Doctor cannot be deleted. It is assigned to a region or vaccination schedules.")
		}
	case auth.RoleParent:
		live, err := s.users.HasLiveSchedules(ctx, u.ID)
		if err != nil {
			return err
		}
		if live {
			return apperr.Conflict("User cannot be deleted. It has active or pending vaccination schedules.")
		}
	}

	if err := s.users.Delete(ctx, u.ID); err != nil {
		if db.IsNoRows(err) {
			return apperr.NotFound("User not found.")
		}
		if db.IsForeignKeyViolation(err) {
			return apperr.Conflict("User cannot be deleted. It is still referenced.")
		}
		return err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("role", u.Role).Str("actor_id", actorID.String()).Msg("user deleted")
	return nil
}
