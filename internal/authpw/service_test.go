package authpw

import (
	"context"
	"database/sql"
	"testing"

	"workbench/api/internal/store"
)

type fakeUserStore struct {
	byEmail map[string]store.User
	byID    map[string]store.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byEmail: map[string]store.User{},
		byID:    map[string]store.User{},
	}
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserStore) CreateUser(_ context.Context, user store.User) error {
	f.byEmail[user.Email] = user
	f.byID[user.ID] = user
	return nil
}

func TestSignUpAndSignIn(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	user, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "avery@acme.com",
		Password:    "long-enough-pass",
		DisplayName: "Avery",
		Company:     "Acme",
	})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if user.ID == "" || user.Company != "Acme" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.PasswordHash == "long-enough-pass" {
		t.Fatal("password stored in plain text")
	}

	signedIn, err := svc.SignIn(ctx, SignInRequest{Email: "avery@acme.com", Password: "long-enough-pass"})
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if signedIn.ID != user.ID {
		t.Fatalf("SignIn() returned user %q, want %q", signedIn.ID, user.ID)
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	req := SignUpRequest{Email: "a@acme.com", Password: "long-enough-pass", DisplayName: "A"}
	if _, err := svc.SignUp(ctx, req); err != nil {
		t.Fatalf("first SignUp() error = %v", err)
	}
	if _, err := svc.SignUp(ctx, req); err == nil {
		t.Fatal("expected duplicate email to be rejected")
	}
}

func TestSignUpRejectsShortPassword(t *testing.T) {
	svc := NewService(newFakeUserStore())
	if _, err := svc.SignUp(context.Background(), SignUpRequest{
		Email: "a@acme.com", Password: "short", DisplayName: "A",
	}); err == nil {
		t.Fatal("expected short password to be rejected")
	}
}

func TestSignInRejectsWrongPassword(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "a@acme.com", Password: "long-enough-pass", DisplayName: "A"}); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "a@acme.com", Password: "wrong-password"}); err == nil {
		t.Fatal("expected wrong password to be rejected")
	}
}
