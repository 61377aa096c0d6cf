package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/OpenxAI-Network/miniapp-factory/internal/pkg/errors"
)

const caller = "eth:1111111111111111111111111111111111111111"

func TestOwnerReturnsSigningAccount(t *testing.T) {
	h := NewFactoryHandler(&fakeFactory{owner: func() string { return caller }})

	req := httptest.NewRequest(http.MethodGet, "/api/factory/owner", nil)
	rec := serve(h.Routes(), "/api/factory", req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"`+caller+`"`, rec.Body.String())
}

func TestUserProjectsRequiresHeader(t *testing.T) {
	h := NewFactoryHandler(&fakeFactory{})

	req := httptest.NewRequest(http.MethodGet, "/api/factory/user/projects", nil)
	rec := serve(h.Routes(), "/api/factory", req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestUserProjectsReturnsNames(t *testing.T) {
	h := NewFactoryHandler(&fakeFactory{
		userProjects: func(ctx context.Context, account string) ([]string, error) {
			assert.Equal(t, caller, account)
			return []string{"demo", "other"}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/factory/user/projects", nil)
	req.Header.Set("xnode-auth-user", caller)
	rec := serve(h.Routes(), "/api/factory", req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["demo","other"]`, rec.Body.String())
}

func TestCreateMapsPaymentRequired(t *testing.T) {
	h := NewFactoryHandler(&fakeFactory{
		createProject: func(ctx context.Context, account, name string) error {
			return apierrors.ErrPaymentRequired
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/factory/project/create",
		strings.NewReader(`{"project":"demo"}`))
	req.Header.Set("xnode-auth-user", caller)
	rec := serve(h.Routes(), "/api/factory", req)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestChangeConflictCarriesErrorBody(t *testing.T) {
	h := NewFactoryHandler(&fakeFactory{
		changeProject: func(ctx context.Context, account, name, instructions string) (int32, error) {
			return 0, apierrors.ErrConflict.WithMessage("project %s already has a queued deployment", name)
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/factory/project/change",
		strings.NewReader(`{"project":"demo","instructions":"add a dark mode"}`))
	req.Header.Set("xnode-auth-user", caller)
	rec := serve(h.Routes(), "/api/factory", req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "demo")
}

func TestChangeReturnsDeploymentID(t *testing.T) {
	h := NewFactoryHandler(&fakeFactory{
		changeProject: func(ctx context.Context, account, name, instructions string) (int32, error) {
			assert.Equal(t, "add a dark mode", instructions)
			return 9, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/factory/project/change",
		strings.NewReader(`{"project":"demo","instructions":"add a dark mode"}`))
	req.Header.Set("xnode-auth-user", caller)
	rec := serve(h.Routes(), "/api/factory", req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `9`, rec.Body.String())
}

func TestChangeValidatesBody(t *testing.T) {
	h := NewFactoryHandler(&fakeFactory{})

	req := httptest.NewRequest(http.MethodPost, "/api/factory/project/change",
		strings.NewReader(`{"project":"demo"}`))
	req.Header.Set("xnode-auth-user", caller)
	rec := serve(h.Routes(), "/api/factory", req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestProjectAvailableReadsQuery(t *testing.T) {
	h := NewFactoryHandler(&fakeFactory{
		projectAvailable: func(ctx context.Context, name string) (bool, error) {
			assert.Equal(t, "demo", name)
			return true, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/factory/project/available?project=demo", nil)
	rec := serve(h.Routes(), "/api/factory", req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `true`, rec.Body.String())
}

func TestResetForwardsOptionalTarget(t *testing.T) {
	h := NewFactoryHandler(&fakeFactory{
		resetProject: func(ctx context.Context, account, name string, deployment *int32) (uint32, error) {
			require.NotNil(t, deployment)
			assert.Equal(t, int32(7), *deployment)
			return 33, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/factory/project/reset",
		strings.NewReader(`{"project":"demo","deployment":7}`))
	req.Header.Set("xnode-auth-user", caller)
	rec := serve(h.Routes(), "/api/factory", req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `33`, rec.Body.String())
}

func TestQueueRejectsBadDeploymentParam(t *testing.T) {
	h := NewFactoryHandler(&fakeFactory{})

	req := httptest.NewRequest(http.MethodGet, "/api/factory/deployment/queue?deployment=nope", nil)
	rec := serve(h.Routes(), "/api/factory", req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestQueueReturnsPosition(t *testing.T) {
	h := NewFactoryHandler(&fakeFactory{
		queuePosition: func(ctx context.Context, deployment int32) (int64, error) {
			assert.Equal(t, int32(9), deployment)
			return 4, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/factory/deployment/queue?deployment=9", nil)
	rec := serve(h.Routes(), "/api/factory", req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `4`, rec.Body.String())
}

func TestAddPromoCodesRejectsMissingSignature(t *testing.T) {
	h := NewFactoryHandler(&fakeFactory{})

	req := httptest.NewRequest(http.MethodPost, "/api/factory/promo_code/add",
		strings.NewReader(`{"promo_codes":[{"code":"LAUNCH","credits":500}]}`))
	rec := serve(h.Routes(), "/api/factory", req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddPromoCodesForwardsRawPayload(t *testing.T) {
	var payload string
	h := NewFactoryHandler(&fakeFactory{
		addPromoCodesBatch: func(ctx context.Context, raw json.RawMessage, signature string) error {
			payload = string(raw)
			assert.Equal(t, "0xsig", signature)
			return nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/factory/promo_code/add",
		strings.NewReader(`{"promo_codes":[{"code":"LAUNCH","credits":500}],"signature":"0xsig"}`))
	rec := serve(h.Routes(), "/api/factory", req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"code":"LAUNCH","credits":500}]`, payload)
}
