package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDemoMode(t *testing.T) {
	rec := &recordingAudit{}
	r := NewRegistrar(rec)

	res, err := r.Register(context.Background(), RegistrationRequest{
		Email:    " New.Trader@Example.com ",
		Password: "longenough",
		Name:     "New Trader",
		Company:  "Grid Co",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, RegistrationDemoMessage, res.Message)
	assert.Equal(t, "new.trader@example.com", res.Data.Email)
	assert.Equal(t, "Grid Co", res.Data.Company)

	records := rec.all()
	require.Len(t, records, 1)
	assert.Equal(t, "auth.register.demo", records[0].event)
}

func TestRegisterDoesNotCreateCredential(t *testing.T) {
	svc, _, _ := newTestService(t)
	r := NewRegistrar(nil)
	ctx := context.Background()

	_, err := r.Register(ctx, RegistrationRequest{Email: "fresh@example.com", Password: "password1", Name: "Fresh"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "fresh@example.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Existing emails are acknowledged the same way.
	res, err := r.Register(ctx, RegistrationRequest{Email: "admin@optibid.com", Password: "password1", Name: "Impostor"})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistrar(nil)

	_, err := r.Register(context.Background(), RegistrationRequest{
		Email:    "not-an-email",
		Password: "short",
	})
	require.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Validation failed", verr.Message)
	assert.Equal(t, "email must be a valid email", verr.Fields["email"])
	assert.Equal(t, "password must be at least 8 characters", verr.Fields["password"])
	assert.Equal(t, "name is required", verr.Fields["name"])
}
