package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func TestStoreSeedsAndAuthenticates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	store, err := NewStore(path, []SeedUser{
		{Username: "alice", PasswordHash: hashPassword(t, "s3cret")},
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Authenticate("alice", "s3cret", ""); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := store.Authenticate("alice", "wrong", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if err := store.Authenticate("nobody", "s3cret", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestStoreTOTPSecondFactor(t *testing.T) {
	secret, err := totp.Generate(totp.GenerateOpts{Issuer: "vibedeck", AccountName: "bob"})
	if err != nil {
		t.Fatalf("generate totp: %v", err)
	}
	path := filepath.Join(t.TempDir(), "users.json")
	store, err := NewStore(path, []SeedUser{
		{Username: "bob", PasswordHash: hashPassword(t, "hunter2"), TOTPSecret: secret.Secret()},
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Authenticate("bob", "hunter2", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected totp to be required, got %v", err)
	}
	code, err := totp.GenerateCode(secret.Secret(), time.Now())
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if err := store.Authenticate("bob", "hunter2", code); err != nil {
		t.Fatalf("authenticate with totp: %v", err)
	}
}

func TestStoreRejectsInvalidUsername(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.AddUser(User{Username: "bad user!", PasswordHash: "hash"}); err == nil {
		t.Fatalf("expected invalid username error")
	}
	if _, err := NewStore(filepath.Join(t.TempDir(), "users.json"), []SeedUser{
		{Username: "bad user!", PasswordHash: "hash"},
	}); err == nil {
		t.Fatalf("expected error for invalid seed user")
	}
}

func TestStoreUserCRUD(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.AddUser(User{Username: "carol", PasswordHash: hashPassword(t, "pw")}); err != nil {
		t.Fatalf("add user: %v", err)
	}
	if err := store.AddUser(User{Username: "carol", PasswordHash: "other"}); err == nil {
		t.Fatalf("expected duplicate user error")
	}
	if err := store.ChangePassword("carol", "pw", "", "newpw"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if err := store.Authenticate("carol", "newpw", ""); err != nil {
		t.Fatalf("authenticate after change: %v", err)
	}
	names := store.Usernames()
	if len(names) != 1 || names[0] != "carol" {
		t.Fatalf("unexpected usernames: %+v", names)
	}
	if err := store.DeleteUser("carol"); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if err := store.Authenticate("carol", "newpw", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials after delete, got %v", err)
	}
}

func TestStorePicksUpExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	store, err := NewStore(path, []SeedUser{
		{Username: "dave", PasswordHash: hashPassword(t, "pw")},
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Authenticate("dave", "pw", ""); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	// Simulate an out-of-band edit that removes the account.
	if err := os.WriteFile(path, []byte("[]"), 0o600); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}
	// Force a distinguishable mtime on coarse-grained filesystems.
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := store.Authenticate("dave", "pw", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected reload to drop the account, got %v", err)
	}
}
