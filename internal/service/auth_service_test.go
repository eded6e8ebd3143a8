package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
)

type mockAccountRepo struct {
	teacher *models.Teacher
	err     error
}

func (m *mockAccountRepo) FindByEmail(ctx context.Context, email string) (*models.Teacher, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.teacher, nil
}

func newAuthFixture(t *testing.T, teacher *models.Teacher, repoErr error) *AuthService {
	return NewAuthService(&mockAccountRepo{teacher: teacher, err: repoErr}, validator.New(), zap.NewNop(), AuthConfig{
		Secret: "test-secret",
		Expiry: time.Hour,
		Issuer: "supervision-api",
	})
}

func activeTeacher(t *testing.T) *models.Teacher {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.Teacher{
		ID:           "teacher-1",
		Email:        "teacher@example.com",
		FullName:     "Teacher One",
		Active:       true,
		Supervising:  true,
		PasswordHash: string(hash),
	}
}

func TestAuthLoginIssuesValidToken(t *testing.T) {
	svc := newAuthFixture(t, activeTeacher(t), nil)

	res, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "teacher@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.AccessToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, "teacher-1", res.Teacher.ID)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", claims.TeacherID)
	assert.Equal(t, "Teacher One", claims.FullName)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	svc := newAuthFixture(t, activeTeacher(t), nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "teacher@example.com",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidCredentials))
}

func TestAuthLoginUnknownEmail(t *testing.T) {
	svc := newAuthFixture(t, nil, sql.ErrNoRows)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ghost@example.com",
		Password: "whatever",
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidCredentials))
}

func TestAuthLoginInactiveTeacher(t *testing.T) {
	teacher := activeTeacher(t)
	teacher.Active = false
	svc := newAuthFixture(t, teacher, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "teacher@example.com",
		Password: "s3cret-pass",
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInactiveAccount))
}

func TestAuthLoginValidatesPayload(t *testing.T) {
	svc := newAuthFixture(t, activeTeacher(t), nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: ""})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestAuthValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthFixture(t, activeTeacher(t), nil)

	_, err := svc.ValidateToken("not.a.jwt")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
}

func TestAuthValidateTokenRejectsForeignSecret(t *testing.T) {
	issuer := newAuthFixture(t, activeTeacher(t), nil)
	res, err := issuer.Login(context.Background(), models.LoginRequest{
		Email:    "teacher@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	verifier := NewAuthService(&mockAccountRepo{}, validator.New(), zap.NewNop(), AuthConfig{
		Secret: "different-secret",
		Expiry: time.Hour,
	})
	_, err = verifier.ValidateToken(res.AccessToken)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
}
