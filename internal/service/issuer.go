package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"pass-service/internal/models"
	"pass-service/internal/util"

	"go.uber.org/zap"
)

// Pass origins. The origin selects the code prefix family, which downstream
// systems use to pick the notification template family and to attribute
// revenue.
const (
	OriginCheckout = "checkout"
	OriginSeller   = "seller"
)

const (
	codePrefixCheckout = "WEB"
	codePrefixSeller   = "POS"

	credentialTTL = 30 * 24 * time.Hour
)

// codeAlphabet deliberately omits 0/O/1/I to keep codes readable over the
// phone.
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// PassStore is the persistence surface the issuer needs
type PassStore interface {
	CreatePass(ctx context.Context, pass *models.Pass) error
	CreateAccessCredential(ctx context.Context, cred *models.AccessCredential) error
	CreatePassAnalytics(ctx context.Context, pa *models.PassAnalytics) error
}

// Issuer mints passes together with their access credential and analytics
// snapshot
type Issuer struct {
	store  PassStore
	logger *zap.Logger
}

// NewIssuer creates a new pass issuer
func NewIssuer(store PassStore) *Issuer {
	return &Issuer{
		store:  store,
		logger: util.GetLogger(),
	}
}

// IssueRequest carries the validated parameters for one pass
type IssueRequest struct {
	CustomerName   string
	CustomerEmail  string
	Guests         int
	Days           int
	SellerID       string
	DeliveryMethod string
	Origin         string
	// ActivatedAt is the activation instant, always "now" at the moment of
	// issuance. Expiry is computed from it, never from the originally
	// requested schedule time.
	ActivatedAt time.Time
}

// IssueResult is the outcome of a successful issuance. PartialErr is non-nil
// when a write after the pass insert failed; the pass itself is still the
// durable commitment and must be honored.
type IssueResult struct {
	Pass       *models.Pass
	Credential *models.AccessCredential
	Analytics  *models.PassAnalytics
	PartialErr error
}

// Issue prices the request, mints a pass code, and persists the pass, its
// access credential, and the analytics snapshot. Once the pass row is
// written the operation never rolls back: a missing credential or analytics
// row is worse than a missing pass would be for a paying customer, so those
// failures surface as PartialErr instead.
func (i *Issuer) Issue(ctx context.Context, req *IssueRequest, cfg *models.PassConfig) (*IssueResult, error) {
	ctx, span := util.StartSpan(ctx, "Issuer.Issue")
	defer span.End()

	if req.Guests < cfg.MinGuests || req.Guests > cfg.MaxGuests ||
		req.Days < cfg.MinDays || req.Days > cfg.MaxDays {
		return nil, fmt.Errorf("%w: guests=%d days=%d", ErrInvalidGuestsOrDays, req.Guests, req.Days)
	}

	breakdown := Price(cfg, req.Guests, req.Days)

	code, err := generatePassCode(req.Origin)
	if err != nil {
		return nil, fmt.Errorf("failed to generate pass code: %w", err)
	}

	pass := &models.Pass{
		Code:          code,
		SellerID:      req.SellerID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Guests:        req.Guests,
		Days:          req.Days,
		Cost:          breakdown.Total,
		ExpiresAt:     req.ActivatedAt.Add(time.Duration(req.Days) * 24 * time.Hour),
		IsActive:      true,
		LandingURL:    cfg.LandingURL,
	}

	if err := i.store.CreatePass(ctx, pass); err != nil {
		return nil, fmt.Errorf("failed to create pass: %w", err)
	}

	util.PassesIssuedTotal.WithLabelValues(req.Origin).Inc()
	i.logger.Info("Pass issued",
		zap.Int64("pass_id", pass.ID),
		zap.String("code", pass.Code),
		zap.Int64("cost", pass.Cost))

	result := &IssueResult{Pass: pass}

	token, err := generateCredentialToken()
	if err == nil {
		cred := &models.AccessCredential{
			Token:         token,
			PassID:        pass.ID,
			CustomerName:  req.CustomerName,
			CustomerEmail: req.CustomerEmail,
			ExpiresAt:     req.ActivatedAt.Add(credentialTTL),
		}
		if cerr := i.store.CreateAccessCredential(ctx, cred); cerr != nil {
			err = fmt.Errorf("failed to create access credential: %w", cerr)
		} else {
			result.Credential = cred
		}
	} else {
		err = fmt.Errorf("failed to generate credential token: %w", err)
	}
	if err != nil {
		result.PartialErr = err
		i.logger.Error("Pass issued without access credential",
			zap.Int64("pass_id", pass.ID),
			zap.Error(err))
	}

	analytics := &models.PassAnalytics{
		PassID:           pass.ID,
		BaseAmount:       breakdown.Base,
		GuestAmount:      breakdown.Guest,
		DayAmount:        breakdown.Day,
		CommissionAmount: breakdown.Commission,
		TaxAmount:        breakdown.Tax,
		TotalAmount:      breakdown.Total,
		DeliveryMethod:   req.DeliveryMethod,
		SellerName:       cfg.SellerName,
		LocationName:     cfg.LocationName,
		DistributorName:  cfg.DistributorName,
		WelcomeEmailSent: false,
	}
	if aerr := i.store.CreatePassAnalytics(ctx, analytics); aerr != nil {
		// Join rather than overwrite: a failed credential write above must
		// stay visible alongside this one.
		result.PartialErr = errors.Join(result.PartialErr,
			fmt.Errorf("failed to create pass analytics: %w", aerr))
		i.logger.Error("Pass issued without analytics record",
			zap.Int64("pass_id", pass.ID),
			zap.Error(aerr))
	} else {
		result.Analytics = analytics
	}

	return result, nil
}

// generatePassCode builds a code like "WEB-7GK2M9QX". The prefix encodes
// provenance: checkout-originated passes and seller-originated passes use
// different families.
func generatePassCode(origin string) (string, error) {
	prefix := codePrefixSeller
	if origin == OriginCheckout {
		prefix = codePrefixCheckout
	}

	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}

	return fmt.Sprintf("%s-%s", prefix, string(buf)), nil
}

// generateCredentialToken returns a 64-character hex bearer token
func generateCredentialToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
