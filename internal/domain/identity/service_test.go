package identity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
	"github.com/vaxtrack/vaxtrack/internal/platform/clock"
)

// =========== Mock Repository ===========

type mockUserRepo struct {
	store        map[uuid.UUID]*User
	doctorsInUse map[uuid.UUID]bool
	liveParents  map[uuid.UUID]bool
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		store:        make(map[uuid.UUID]*User),
		doctorsInUse: make(map[uuid.UUID]bool),
		liveParents:  make(map[uuid.UUID]bool),
	}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	for _, existing := range m.store {
		if existing.Email == u.Email {
			return fmt.Errorf("duplicate email")
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.store[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.store[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", pgx.ErrNoRows)
	}
	return u, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range m.store {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, fmt.Errorf("get user by email: %w", pgx.ErrNoRows)
}

func (m *mockUserRepo) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.store[id]
	return ok, nil
}

func (m *mockUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return fmt.Errorf("delete user: %w", pgx.ErrNoRows)
	}
	delete(m.store, id)
	return nil
}

func (m *mockUserRepo) List(_ context.Context, role string, limit, offset int) ([]*User, int, error) {
	var result []*User
	for _, u := range m.store {
		if role == "" || u.Role == role {
			result = append(result, u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Email < result[j].Email })
	total := len(result)
	if offset >= total {
		return []*User{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return result[offset:end], total, nil
}

func (m *mockUserRepo) DoctorInUse(_ context.Context, id uuid.UUID) (bool, error) {
	return m.doctorsInUse[id], nil
}

func (m *mockUserRepo) HasLiveSchedules(_ context.Context, id uuid.UUID) (bool, error) {
	return m.liveParents[id], nil
}

// =========== Helpers ===========

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mockUserRepo, *auth.MemoryRevocationStore) {
	repo := newMockUserRepo()
	tokens := auth.NewTokenIssuer([]byte("test-secret"), "vaxtrack", time.Hour, clock.NewFixed(testNow))
	revoker := auth.NewMemoryRevocationStore(time.Hour)
	return NewService(repo, tokens, revoker, 4, zerolog.Nop()), repo, revoker
}

func seedUser(t *testing.T, s *Service, role, email string) *User {
	t.Helper()
	u, err := s.createUser(context.Background(), CreateUserRequest{Name: "Seed " + role, Email: email, Password: "password123"}, role, "exists")
	if err != nil {
		t.Fatalf("seed %s: %v", role, err)
	}
	return u
}

func assertKind(t *testing.T, err error, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}

// =========== Signup / Signin ===========

func TestService_Signup(t *testing.T) {
	s, repo, revoker := newTestService()
	defer revoker.Close()

	resp, err := s.Signup(context.Background(), SignupRequest{Name: "Asha", Email: "  Asha@Example.com ", Password: "password123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Token == "" {
		t.Error("expected a token")
	}
	if resp.User.Role != auth.RoleParent {
		t.Errorf("expected parent role, got %s", resp.User.Role)
	}
	if resp.User.Email != "asha@example.com" {
		t.Errorf("expected normalized email, got %s", resp.User.Email)
	}
	stored := repo.store[resp.User.ID]
	if stored.PasswordHash == "password123" || stored.PasswordHash == "" {
		t.Error("expected password to be hashed")
	}
}

func TestService_Signup_Validation(t *testing.T) {
	s, _, revoker := newTestService()
	defer revoker.Close()

	tests := []struct {
		name string
		req  SignupRequest
	}{
		{"missing name", SignupRequest{Email: "a@b.com", Password: "password123"}},
		{"missing email", SignupRequest{Name: "A", Password: "password123"}},
		{"bad email", SignupRequest{Name: "A", Email: "not-an-email", Password: "password123"}},
		{"short password", SignupRequest{Name: "A", Email: "a@b.com", Password: "short"}},
		{"doctor role", SignupRequest{Name: "A", Email: "a@b.com", Password: "password123", Role: auth.RoleDoctor}},
		{"admin role", SignupRequest{Name: "A", Email: "a@b.com", Password: "password123", Role: auth.RoleAdmin}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Signup(context.Background(), tt.req)
			assertKind(t, err, apperr.ErrValidation)
		})
	}
}

func TestService_Signup_Duplicate(t *testing.T) {
	s, _, revoker := newTestService()
	defer revoker.Close()
	seedUser(t, s, auth.RoleParent, "dup@example.com")

	_, err := s.Signup(context.Background(), SignupRequest{Name: "Dup", Email: "DUP@example.com", Password: "password123"})
	assertKind(t, err, apperr.ErrConflict)
	if apperr.Message(err) != "User already exists" {
		t.Errorf("unexpected message %q", apperr.Message(err))
	}
}

func TestService_Signin(t *testing.T) {
	s, _, revoker := newTestService()
	defer revoker.Close()
	u := seedUser(t, s, auth.RoleDoctor, "doc@example.com")

	resp, err := s.Signin(context.Background(), SigninRequest{Email: "Doc@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	claims, err := s.tokens.Parse(resp.Token)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.Subject != u.ID.String() || claims.Role != auth.RoleDoctor {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestService_Signin_InvalidCredentials(t *testing.T) {
	s, _, revoker := newTestService()
	defer revoker.Close()
	seedUser(t, s, auth.RoleParent, "p@example.com")

	for _, req := range []SigninRequest{
		{Email: "p@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "password123"},
	} {
		_, err := s.Signin(context.Background(), req)
		assertKind(t, err, apperr.ErrValidation)
		if apperr.Message(err) != "Invalid Credentials" {
			t.Errorf("unexpected message %q", apperr.Message(err))
		}
	}
}

func TestService_Logout_RevokesToken(t *testing.T) {
	s, _, revoker := newTestService()
	defer revoker.Close()

	ctx := context.WithValue(context.Background(), auth.TokenIDKey, "jti-1")
	ctx = context.WithValue(ctx, auth.TokenExpKey, time.Now().Add(time.Hour))
	if err := s.Logout(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	revoked, _ := revoker.IsRevoked(context.Background(), "jti-1")
	if !revoked {
		t.Error("expected token to be revoked")
	}
}

// =========== Admin user management ===========

func TestService_CreateDoctor(t *testing.T) {
	s, _, revoker := newTestService()
	defer revoker.Close()

	doc, err := s.CreateDoctor(context.Background(), CreateUserRequest{Name: "Dr. Rao", Email: "rao@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Role != auth.RoleDoctor {
		t.Errorf("expected doctor role, got %s", doc.Role)
	}

	_, err = s.CreateDoctor(context.Background(), CreateUserRequest{Name: "Dr. Rao", Email: "rao@example.com", Password: "password123"})
	assertKind(t, err, apperr.ErrConflict)
	if apperr.Message(err) != "Doctor already exists." {
		t.Errorf("unexpected message %q", apperr.Message(err))
	}

	_, err = s.CreateDoctor(context.Background(), CreateUserRequest{Email: "x@example.com"})
	assertKind(t, err, apperr.ErrValidation)
}

func TestService_ListUsers_RoleFilter(t *testing.T) {
	s, _, revoker := newTestService()
	defer revoker.Close()
	seedUser(t, s, auth.RoleParent, "p1@example.com")
	seedUser(t, s, auth.RoleParent, "p2@example.com")
	seedUser(t, s, auth.RoleDoctor, "d1@example.com")

	users, total, err := s.ListUsers(context.Background(), auth.RoleParent, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(users) != 2 {
		t.Errorf("expected 2 parents, got %d/%d", len(users), total)
	}

	_, _, err = s.ListUsers(context.Background(), "nurse", 10, 0)
	assertKind(t, err, apperr.ErrValidation)
}

func TestService_ListDoctors(t *testing.T) {
	s, _, revoker := newTestService()
	defer revoker.Close()

	doctors, err := s.ListDoctors(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doctors == nil || len(doctors) != 0 {
		t.Errorf("expected empty non-nil list, got %v", doctors)
	}

	seedUser(t, s, auth.RoleDoctor, "d1@example.com")
	seedUser(t, s, auth.RoleParent, "p1@example.com")
	doctors, _ = s.ListDoctors(context.Background())
	if len(doctors) != 1 {
		t.Errorf("expected 1 doctor, got %d", len(doctors))
	}
}

func TestService_DeleteUser(t *testing.T) {
	s, repo, revoker := newTestService()
	defer revoker.Close()
	admin := seedUser(t, s, auth.RoleAdmin, "admin@example.com")
	otherAdmin := seedUser(t, s, auth.RoleAdmin, "admin2@example.com")
	busyDoctor := seedUser(t, s, auth.RoleDoctor, "busy@example.com")
	freeDoctor := seedUser(t, s, auth.RoleDoctor, "free@example.com")
	liveParent := seedUser(t, s, auth.RoleParent, "live@example.com")
	idleParent := seedUser(t, s, auth.RoleParent, "idle@example.com")
	repo.doctorsInUse[busyDoctor.ID] = true
	repo.liveParents[liveParent.ID] = true

	tests := []struct {
		name    string
		target  uuid.UUID
		wantErr error
		wantMsg string
	}{
		{"unknown", uuid.New(), apperr.ErrNotFound, "User not found."},
		{"admin", otherAdmin.ID, apperr.ErrValidation, "Cannot delete admin."},
		{"self", admin.ID, apperr.ErrValidation, "Cannot delete admin."},
		{"doctor in use", busyDoctor.ID, apperr.ErrConflict, ""},
		{"parent with live schedules", liveParent.ID, apperr.ErrConflict, ""},
		{"free doctor", freeDoctor.ID, nil, ""},
		{"idle parent", idleParent.ID, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.DeleteUser(context.Background(), admin.ID, tt.target)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if _, ok := repo.store[tt.target]; ok {
					t.Error("expected user to be removed")
				}
				return
			}
			assertKind(t, err, tt.wantErr)
			if tt.wantMsg != "" && apperr.Message(err) != tt.wantMsg {
				t.Errorf("expected %q, got %q", tt.wantMsg, apperr.Message(err))
			}
		})
	}
}

func TestService_DeleteUser_Self(t *testing.T) {
	s, _, revoker := newTestService()
	defer revoker.Close()
	doc := seedUser(t, s, auth.RoleDoctor, "self@example.com")

	err := s.DeleteUser(context.Background(), doc.ID, doc.ID)
	assertKind(t, err, apperr.ErrValidation)
	if apperr.Message(err) != "You cannot delete yourself." {
		t.Errorf("unexpected message %q", apperr.Message(err))
	}
}

func TestService_Exists(t *testing.T) {
	s, _, revoker := newTestService()
	defer revoker.Close()
	u := seedUser(t, s, auth.RoleParent, "e@example.com")

	if ok, _ := s.Exists(context.Background(), u.ID); !ok {
		t.Error("expected user to exist")
	}
	if ok, _ := s.Exists(context.Background(), uuid.New()); ok {
		t.Error("expected unknown user not to exist")
	}
}

func TestService_RoleOf(t *testing.T) {
	s, _, revoker := newTestService()
	defer revoker.Close()
	doc := seedUser(t, s, auth.RoleDoctor, "doc@example.com")

	role, err := s.RoleOf(context.Background(), doc.ID)
	if err != nil || role != auth.RoleDoctor {
		t.Errorf("RoleOf() = %q, %v", role, err)
	}
	_, err = s.RoleOf(context.Background(), uuid.New())
	assertKind(t, err, apperr.ErrNotFound)
}
