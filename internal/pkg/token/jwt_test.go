package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milsupply/internal/domain"
	"milsupply/internal/pkg/token"
)

func TestIssueAndParse_RoundTripsActor(t *testing.T) {
	svc := token.NewService("segredo-de-teste", time.Hour)
	actor := domain.Actor{UserID: "0b6c1f7e-8d2a-4c1e-9f3b-2a7d5e6f8a90", Role: domain.RoleAdmin}

	signed, err := svc.Issue(actor)
	require.NoError(t, err)

	parsed, err := svc.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, actor, parsed)
}

func TestParse_RejectsForeignSignature(t *testing.T) {
	signed, err := token.NewService("outro-segredo", time.Hour).Issue(domain.Actor{UserID: "u-1", Role: domain.RoleUser})
	require.NoError(t, err)

	_, err = token.NewService("segredo-de-teste", time.Hour).Parse(signed)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "token inválido")
}

func TestParse_RejectsExpiredToken(t *testing.T) {
	svc := token.NewService("segredo-de-teste", -time.Minute) // Já nasce expirado

	signed, err := svc.Issue(domain.Actor{UserID: "u-1", Role: domain.RoleUser})
	require.NoError(t, err)

	_, err = svc.Parse(signed)
	assert.Error(t, err)
}

func TestParse_RejectsUnknownRole(t *testing.T) {
	svc := token.NewService("segredo-de-teste", time.Hour)

	signed, err := svc.Issue(domain.Actor{UserID: "u-1", Role: domain.UserRole("guest")})
	require.NoError(t, err)

	_, err = svc.Parse(signed)
	assert.Error(t, err)
}
