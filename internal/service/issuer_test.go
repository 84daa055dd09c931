package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"pass-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueRequest(origin string) *IssueRequest {
	return &IssueRequest{
		CustomerName:   "Ana Martin",
		CustomerEmail:  "ana@example.com",
		Guests:         2,
		Days:           3,
		SellerID:       "seller-7",
		DeliveryMethod: models.DeliveryBoth,
		Origin:         origin,
		ActivatedAt:    time.Now().UTC(),
	}
}

func TestIssueCodePrefixByOrigin(t *testing.T) {
	store := newFakePassStore()
	issuer := NewIssuer(store)

	res, err := issuer.Issue(context.Background(), issueRequest(OriginCheckout), testConfig())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Pass.Code, "WEB-"), "code=%s", res.Pass.Code)

	res, err = issuer.Issue(context.Background(), issueRequest(OriginSeller), testConfig())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Pass.Code, "POS-"), "code=%s", res.Pass.Code)
}

func TestIssueExpiryFromActivationInstant(t *testing.T) {
	store := newFakePassStore()
	issuer := NewIssuer(store)

	req := issueRequest(OriginSeller)
	req.ActivatedAt = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	req.Days = 3

	res, err := issuer.Issue(context.Background(), req, testConfig())
	require.NoError(t, err)

	want := time.Date(2026, 3, 13, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, want, res.Pass.ExpiresAt)
}

func TestIssueCredentialIndependentLifetime(t *testing.T) {
	store := newFakePassStore()
	issuer := NewIssuer(store)

	req := issueRequest(OriginCheckout)
	req.Days = 2 // pass expires in 2 days, token must still live 30

	res, err := issuer.Issue(context.Background(), req, testConfig())
	require.NoError(t, err)
	require.NotNil(t, res.Credential)

	assert.Equal(t, req.ActivatedAt.Add(30*24*time.Hour), res.Credential.ExpiresAt)
	assert.Len(t, res.Credential.Token, 64)
	assert.Equal(t, res.Pass.ID, res.Credential.PassID)
}

func TestIssuePartialSuccessOnAnalyticsFailure(t *testing.T) {
	store := newFakePassStore()
	store.failAnalytics = true
	issuer := NewIssuer(store)

	res, err := issuer.Issue(context.Background(), issueRequest(OriginCheckout), testConfig())

	// The pass is the durable commitment; a missing analytics row is a
	// partial-success condition, not a failure.
	require.NoError(t, err)
	require.NotNil(t, res.Pass)
	assert.Error(t, res.PartialErr)
	assert.Nil(t, res.Analytics)
	assert.Equal(t, 1, store.passCount())
}

func TestIssuePartialSuccessOnCredentialFailure(t *testing.T) {
	store := newFakePassStore()
	store.failCredential = true
	issuer := NewIssuer(store)

	res, err := issuer.Issue(context.Background(), issueRequest(OriginCheckout), testConfig())

	require.NoError(t, err)
	require.NotNil(t, res.Pass)
	assert.Error(t, res.PartialErr)
	assert.Nil(t, res.Credential)
	// Analytics still written even though the credential failed.
	assert.NotNil(t, res.Analytics)
}

func TestIssueRejectsOutOfBounds(t *testing.T) {
	store := newFakePassStore()
	issuer := NewIssuer(store)

	req := issueRequest(OriginSeller)
	req.Guests = 50

	_, err := issuer.Issue(context.Background(), req, testConfig())
	assert.ErrorIs(t, err, ErrInvalidGuestsOrDays)
	assert.Equal(t, 0, store.passCount())
}

func TestIssueAnalyticsSnapshotPopulated(t *testing.T) {
	store := newFakePassStore()
	issuer := NewIssuer(store)

	cfg := testConfig()
	cfg.Commission = 100

	req := issueRequest(OriginSeller)
	req.Guests = 3
	req.Days = 5

	res, err := issuer.Issue(context.Background(), req, cfg)
	require.NoError(t, err)
	require.NotNil(t, res.Analytics)

	assert.Equal(t, int64(1000), res.Analytics.BaseAmount)
	assert.Equal(t, int64(1000), res.Analytics.GuestAmount)
	assert.Equal(t, int64(1200), res.Analytics.DayAmount)
	assert.Equal(t, int64(100), res.Analytics.CommissionAmount)
	assert.Equal(t, res.Pass.Cost, res.Analytics.TotalAmount)
	assert.False(t, res.Analytics.WelcomeEmailSent)
	assert.Equal(t, cfg.SellerName, res.Analytics.SellerName)
}

func TestIssuePartialErrCarriesBothFailures(t *testing.T) {
	store := newFakePassStore()
	store.failCredential = true
	store.failAnalytics = true
	issuer := NewIssuer(store)

	res, err := issuer.Issue(context.Background(), issueRequest(OriginCheckout), testConfig())
	require.NoError(t, err)
	require.NotNil(t, res.Pass)

	// Both follow-up writes failed; neither may mask the other.
	require.Error(t, res.PartialErr)
	assert.Contains(t, res.PartialErr.Error(), "credential")
	assert.Contains(t, res.PartialErr.Error(), "analytics")
}
