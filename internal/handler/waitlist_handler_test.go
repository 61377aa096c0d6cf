package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenxAI-Network/miniapp-factory/internal/models"
)

func TestWaitlistAllowedForFreshIP(t *testing.T) {
	h := NewWaitlistHandler(&fakeWaitlistRepo{
		getByIP: func(ctx context.Context, ip string) (*models.WaitlistEntry, error) {
			assert.Equal(t, "203.0.113.9", ip)
			return nil, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/waitlist/allowed", nil)
	req.Header.Set("X-Real-IP", "203.0.113.9")
	rec := serve(h.Routes(), "/api/waitlist", req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `true`, rec.Body.String())
}

func TestWaitlistPositionMissingAccountIsZero(t *testing.T) {
	h := NewWaitlistHandler(&fakeWaitlistRepo{
		getByAccount: func(ctx context.Context, account string) (*models.WaitlistEntry, error) {
			return nil, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/waitlist/"+caller+"/position", nil)
	rec := serve(h.Routes(), "/api/waitlist", req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `0`, rec.Body.String())
}

func TestWaitlistPositionIsOneBased(t *testing.T) {
	h := NewWaitlistHandler(&fakeWaitlistRepo{
		getByAccount: func(ctx context.Context, account string) (*models.WaitlistEntry, error) {
			assert.Equal(t, caller, account)
			return &models.WaitlistEntry{ID: 12, Account: account}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/waitlist/"+caller+"/position", nil)
	rec := serve(h.Routes(), "/api/waitlist", req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `12`, rec.Body.String())
}

func TestWaitlistEnrollRejectsKnownIP(t *testing.T) {
	h := NewWaitlistHandler(&fakeWaitlistRepo{
		getByIP: func(ctx context.Context, ip string) (*models.WaitlistEntry, error) {
			return &models.WaitlistEntry{ID: 1, IP: ip}, nil
		},
		insert: func(ctx context.Context, entry *models.WaitlistEntry) error {
			t.Fatal("an already enrolled ip must not enroll again")
			return nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/waitlist/"+caller+"/enroll", nil)
	req.Header.Set("X-Real-IP", "203.0.113.9")
	rec := serve(h.Routes(), "/api/waitlist", req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWaitlistEnrollRecordsAccountAndIP(t *testing.T) {
	var inserted *models.WaitlistEntry
	h := NewWaitlistHandler(&fakeWaitlistRepo{
		getByIP: func(ctx context.Context, ip string) (*models.WaitlistEntry, error) {
			return nil, nil
		},
		insert: func(ctx context.Context, entry *models.WaitlistEntry) error {
			inserted = entry
			return nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/waitlist/"+caller+"/enroll", nil)
	req.Header.Set("X-Real-IP", "203.0.113.9")
	rec := serve(h.Routes(), "/api/waitlist", req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, inserted)
	assert.Equal(t, caller, inserted.Account)
	assert.Equal(t, "203.0.113.9", inserted.IP)
	assert.NotZero(t, inserted.Date)
}
