package usecase_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"marketplace/internal/domain/model"
	"marketplace/internal/infra/memstore"
	"marketplace/internal/logger"
	"marketplace/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmin_ForceLogout(t *testing.T) {
	st := memstore.New()
	st.PutUser(model.User{ID: buyerID, Email: "budi@example.com", TokenVersion: 2, IsActive: true})
	uc := usecase.NewAdminUsecase(st.Users(), st.Audits(), newStepClock(), logger.Discard())
	ctx := context.Background()

	out, err := uc.ForceLogout(ctx, adminID, buyerID)
	require.NoError(t, err)
	assert.Equal(t, buyerID, out.UserID)
	assert.Equal(t, 3, out.NewTokenVersion)

	logs := auditsOf(t, st, model.AuditActionForceLogout)
	require.Len(t, logs, 1)
	assert.Equal(t, buyerID, logs[0].ResourceID)
	assert.JSONEq(t, `{"token_version":3}`, logs[0].AfterJSON)

	_, err = uc.ForceLogout(ctx, adminID, sellerAID)
	requireHTTPStatus(t, err, http.StatusNotFound)

	_, err = uc.ForceLogout(ctx, adminID, "1")
	requireHTTPStatus(t, err, http.StatusBadRequest)

	_, err = uc.ForceLogout(ctx, "", buyerID)
	requireHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestAdmin_ListAuditLogs(t *testing.T) {
	st := memstore.New()
	st.PutUser(model.User{ID: buyerID, IsActive: true})
	st.PutSeller(model.SellerProfile{SellerID: sellerAID, StoreName: "Toko Satu"})
	clock := newStepClock()
	admin := usecase.NewAdminUsecase(st.Users(), st.Audits(), clock, logger.Discard())
	sellers := usecase.NewSellerUsecase(st.Sellers(), st.Audits(), clock, logger.Discard())
	ctx := context.Background()

	require.NoError(t, sellers.AdminSetRecommended(ctx, adminID, sellerAID, true))
	_, err := admin.ForceLogout(ctx, adminID, buyerID)
	require.NoError(t, err)

	//新しい順
	logs, err := admin.ListAuditLogs(ctx, usecase.AuditLogQuery{})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, model.AuditActionForceLogout, logs[0].Action)

	logs, err = admin.ListAuditLogs(ctx, usecase.AuditLogQuery{ResourceType: string(model.AuditResourceSeller)})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, sellerAID, logs[0].ResourceID)

	from := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)
	_, err = admin.ListAuditLogs(ctx, usecase.AuditLogQuery{From: &from, To: &to})
	requireHTTPStatus(t, err, http.StatusBadRequest)

	_, err = admin.ListAuditLogs(ctx, usecase.AuditLogQuery{Limit: 500})
	requireHTTPStatus(t, err, http.StatusBadRequest)
}
