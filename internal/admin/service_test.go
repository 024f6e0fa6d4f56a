package admin

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"lordre.org/internal/history"
	"lordre.org/internal/identity"
	"lordre.org/internal/member"
)

type fixture struct {
	svc      *Service
	idp      *identity.Directory
	accounts *identity.InMemory
	members  *member.InMemory
	hist     *history.InMemory
	guardian string
	token    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	accounts := identity.NewInMemory()
	tokens, err := identity.NewTokens("test-secret", "lordre", time.Hour)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	idp := identity.NewDirectory(accounts, tokens)
	members := member.NewInMemory()
	accounts.OnDelete = func(userID string) { members.DeleteCascade(context.Background(), userID) }
	hist := history.NewInMemory()
	svc := NewService(idp, members, members, history.NewLogger(hist))

	ctx := context.Background()
	guardianID, err := idp.CreateUser(ctx, "gardien@ordre.example", "tres-secret")
	if err != nil {
		t.Fatalf("create guardian: %v", err)
	}
	if err := members.Create(ctx, &member.Profile{
		ID:        guardianID,
		Pseudonym: "Ombre",
		Grade:     member.GradeOracle,
		Status:    member.StatusActive,
		JoinedAt:  time.Now().UTC(),
	}); err != nil {
		t.Fatalf("guardian profile: %v", err)
	}
	if err := members.Assign(ctx, guardianID, member.RoleGuardianSupreme); err != nil {
		t.Fatalf("assign guardian: %v", err)
	}
	token, _, err := idp.Mint(guardianID, true)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	return &fixture{
		svc:      svc,
		idp:      idp,
		accounts: accounts,
		members:  members,
		hist:     hist,
		guardian: guardianID,
		token:    token,
	}
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateUser(ctx, f.token, CreateUserInput{
		Email:     "nova@ordre.example",
		Password:  "motdepasse",
		Pseudonym: "Nova",
		Grade:     "apprenti",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.UserID == "" {
		t.Fatal("empty user id")
	}

	p, err := f.members.Find(ctx, res.UserID)
	if err != nil {
		t.Fatalf("find profile: %v", err)
	}
	if p.Pseudonym != "Nova" || p.Grade != member.GradeApprenti || p.Status != member.StatusActive {
		t.Fatalf("profile = %+v", p)
	}
	ok, err := f.members.HasRole(ctx, res.UserID, member.RoleInitiate)
	if err != nil || !ok {
		t.Fatalf("initiate role = %v, %v", ok, err)
	}

	entries, err := f.hist.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Type != history.TypeStatusChanged || e.ActorID != f.guardian {
		t.Fatalf("entry = %+v", e)
	}
	if e.Metadata["event"] != "member_created" {
		t.Fatalf("metadata = %v", e.Metadata)
	}
}

func TestCreateUserRollsBackIdentityOnProfileFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Occupy the pseudonym so profile creation conflicts.
	blocker, err := f.idp.CreateUser(ctx, "luna@ordre.example", "motdepasse")
	if err != nil {
		t.Fatalf("blocker identity: %v", err)
	}
	if err := f.members.Create(ctx, &member.Profile{
		ID:        blocker,
		Pseudonym: "Luna",
		Grade:     member.GradeNovice,
		Status:    member.StatusActive,
		JoinedAt:  time.Now().UTC(),
	}); err != nil {
		t.Fatalf("blocker profile: %v", err)
	}
	before := f.accounts.Len()

	_, err = f.svc.CreateUser(ctx, f.token, CreateUserInput{
		Email:     "luna2@ordre.example",
		Password:  "motdepasse",
		Pseudonym: "Luna",
	})
	if !errors.Is(err, ErrDependency) {
		t.Fatalf("err = %v, want ErrDependency", err)
	}
	if got := f.accounts.Len(); got != before {
		t.Fatalf("accounts = %d, want %d (identity must be rolled back)", got, before)
	}
	if f.hist.Len() != 0 {
		t.Fatal("failed creation must not be recorded")
	}
}

func TestCreateUserRejectsNonGuardian(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	plainID, err := f.idp.CreateUser(ctx, "simple@ordre.example", "motdepasse")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	token, _, err := f.idp.Mint(plainID, false)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	_, err = f.svc.CreateUser(ctx, token, CreateUserInput{
		Email:     "x@ordre.example",
		Password:  "motdepasse",
		Pseudonym: "X",
	})
	if !errors.Is(err, member.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestCreateUserRejectsBadToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateUser(context.Background(), "not-a-token", CreateUserInput{
		Email:     "x@ordre.example",
		Password:  "motdepasse",
		Pseudonym: "X",
	})
	if !errors.Is(err, identity.ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestUpdateUserGradeOnlySkipsCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateUser(ctx, f.token, CreateUserInput{
		Email:     "nova@ordre.example",
		Password:  "motdepasse",
		Pseudonym: "Nova",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	grade := "sage"
	if err := f.svc.UpdateUser(ctx, f.token, UpdateUserInput{UserID: res.UserID, Grade: &grade}); err != nil {
		t.Fatalf("update: %v", err)
	}

	p, err := f.members.Find(ctx, res.UserID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if p.Grade != member.GradeSage {
		t.Fatalf("grade = %s, want sage", p.Grade)
	}
	// Original credentials must still work.
	if _, err := f.idp.Login(ctx, "nova@ordre.example", "motdepasse"); err != nil {
		t.Fatalf("login after grade-only update: %v", err)
	}
}

func TestUpdateUserCredentialFailureAbortsProfilePart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateUser(ctx, f.token, CreateUserInput{
		Email:     "nova@ordre.example",
		Password:  "motdepasse",
		Pseudonym: "Nova",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Guardian's own email is taken, so the credential update conflicts.
	email := "gardien@ordre.example"
	pseudonym := "Eclipse"
	err = f.svc.UpdateUser(ctx, f.token, UpdateUserInput{
		UserID:    res.UserID,
		Email:     &email,
		Pseudonym: &pseudonym,
	})
	if !errors.Is(err, ErrDependency) {
		t.Fatalf("err = %v, want ErrDependency", err)
	}
	p, err := f.members.Find(ctx, res.UserID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if p.Pseudonym != "Nova" {
		t.Fatalf("pseudonym = %s, profile part must not run", p.Pseudonym)
	}
}

func TestUpdateUserEmptyIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateUser(ctx, f.token, CreateUserInput{
		Email:     "nova@ordre.example",
		Password:  "motdepasse",
		Pseudonym: "Nova",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	before := f.hist.Len()

	if err := f.svc.UpdateUser(ctx, f.token, UpdateUserInput{UserID: res.UserID}); err != nil {
		t.Fatalf("empty update: %v", err)
	}
	if f.hist.Len() != before {
		t.Fatal("no-op update must not be recorded")
	}
}

func TestUpdateUserRejectsBadGrade(t *testing.T) {
	f := newFixture(t)

	grade := "empereur"
	err := f.svc.UpdateUser(context.Background(), f.token, UpdateUserInput{UserID: "u1", Grade: &grade})
	if !errors.Is(err, member.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateUser(ctx, f.token, CreateUserInput{
		Email:     "nova@ordre.example",
		Password:  "motdepasse",
		Pseudonym: "Nova",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.svc.DeleteUser(ctx, f.token, res.UserID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.members.Find(ctx, res.UserID); !errors.Is(err, member.ErrNotFound) {
		t.Fatalf("profile after delete: %v", err)
	}
	roles, err := f.members.Roles(ctx, res.UserID)
	if err != nil {
		t.Fatalf("roles: %v", err)
	}
	if len(roles) != 0 {
		t.Fatalf("roles after delete = %v", roles)
	}
}

func TestDeleteUserRejectsSelfDeletion(t *testing.T) {
	f := newFixture(t)
	before := f.accounts.Len()

	err := f.svc.DeleteUser(context.Background(), f.token, f.guardian)
	if !errors.Is(err, member.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if !strings.Contains(err.Error(), "self-deletion") {
		t.Fatalf("err = %v", err)
	}
	if f.accounts.Len() != before {
		t.Fatal("self-deletion must not touch the store")
	}
}

func TestDeleteUserUnknownTarget(t *testing.T) {
	f := newFixture(t)

	err := f.svc.DeleteUser(context.Background(), f.token, "missing")
	if !errors.Is(err, ErrDependency) {
		t.Fatalf("err = %v, want ErrDependency", err)
	}
}
