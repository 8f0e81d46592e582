package services

import (
	"context"
	"errors"
	"testing"

	"github.com/isdelr/reminder-be/internal/testutil"
	"golang.org/x/crypto/bcrypt"
)

func TestUserSignupAndLogin(t *testing.T) {
	t.Parallel()
	svc := NewUserService(testutil.NewDB(t)).WithHashCost(bcrypt.MinCost)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, " Jane Doe ", "Jane@Example.com", "hunter22")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Email != "jane@example.com" || user.FullName != "Jane Doe" || user.PasswordHash != "" {
		t.Fatalf("user = %+v", user)
	}

	if _, err := svc.CreateUser(ctx, "Other", "jane@example.com", "pw"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate signup: err = %v, want ErrEmailTaken", err)
	}

	got, err := svc.AuthenticateUser(ctx, "JANE@example.com", "hunter22")
	if err != nil {
		t.Fatalf("AuthenticateUser: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("authenticated %s, want %s", got.ID, user.ID)
	}

	if _, err := svc.AuthenticateUser(ctx, "jane@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: err = %v", err)
	}
	if _, err := svc.AuthenticateUser(ctx, "nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: err = %v", err)
	}

	byID, err := svc.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if byID.Email != user.Email {
		t.Fatalf("GetUserByID = %+v", byID)
	}
	if _, err := svc.GetUserByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetUserByID(missing): err = %v", err)
	}
}

func TestCreateUserValidation(t *testing.T) {
	t.Parallel()
	svc := NewUserService(testutil.NewDB(t)).WithHashCost(bcrypt.MinCost)

	cases := [][3]string{
		{"", "a@b.c", "pw"},
		{"Name", "not-an-email", "pw"},
		{"Name", "a@b.c", ""},
	}
	for _, c := range cases {
		if _, err := svc.CreateUser(context.Background(), c[0], c[1], c[2]); !IsValidation(err) {
			t.Fatalf("CreateUser(%q, %q, %q): err = %v, want ValidationError", c[0], c[1], c[2], err)
		}
	}
}
