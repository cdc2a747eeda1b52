package service

import (
	"testing"
	"time"

	"electricity-billing/internal/apperror"
	"electricity-billing/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditor_ProviderScopedReads(t *testing.T) {
	w := newInvoiceWorld(t)
	auditor := w.user("auditor@example.com", &w.provider.ID, model.RoleAuditor)
	p := as(auditor, model.RoleAuditor)

	inv := w.create(t, w.creator, model.RoleInvoiceCreator, "100")
	w.clock.Advance(time.Minute)
	_, err := w.invoices.UpdateInvoice(w.ctx, as(w.creator, model.RoleInvoiceCreator), inv.ID, UpdateInvoiceRequest{KwhConsumed: ptr("110")})
	require.NoError(t, err)

	foreign := w.fixture.provider("South Grid", "8")
	foreignCreator := w.user("fc@example.com", &foreign.ID, model.RoleInvoiceCreator)
	foreignCustomer := w.user("fk@example.com", &foreign.ID, model.RoleCustomer)
	w.clock.Advance(time.Second)
	foreignInv, err := w.invoices.CreateInvoice(w.ctx, as(foreignCreator, model.RoleInvoiceCreator), CreateInvoiceRequest{
		CustomerID: foreignCustomer.ID.String(), KwhConsumed: "1", IssueDate: "2025-03-01", DueDate: "2025-03-31",
	})
	require.NoError(t, err)

	invoices, total, err := w.auditor.ListInvoices(w.ctx, p, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, invoices, 1)
	assert.Equal(t, inv.ID, invoices[0].ID)

	found, err := w.auditor.SearchInvoiceByNumber(w.ctx, p, inv.InvoiceNumber)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, found.ID)

	_, err = w.auditor.SearchInvoiceByNumber(w.ctx, p, foreignInv.InvoiceNumber)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	logs, total, err := w.auditor.ListAuditLogs(w.ctx, p, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, logs, 2)

	history, err := w.auditor.InvoiceHistory(w.ctx, p, inv.ID)
	require.NoError(t, err)
	require.Len(t, history.Logs, 2)
	assert.Equal(t, string(model.AuditActionCreate), history.Logs[0].Action)
	assert.Nil(t, history.Logs[0].OldValue)
	assert.Equal(t, string(model.AuditActionUpdate), history.Logs[1].Action)
	require.NotNil(t, history.Logs[1].NewValue)
	assert.True(t, history.Logs[1].NewValue.TotalAmount.Equal(decimal.NewFromInt(1100)))

	_, err = w.auditor.InvoiceHistory(w.ctx, p, foreignInv.ID)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	byNumber, err := w.auditor.SearchAuditLogsByInvoiceNumber(w.ctx, p, inv.InvoiceNumber)
	require.NoError(t, err)
	assert.Len(t, byNumber, 2)

	foreignLogs, err := w.auditor.SearchAuditLogsByInvoiceNumber(w.ctx, p, foreignInv.InvoiceNumber)
	require.NoError(t, err)
	assert.Empty(t, foreignLogs)

	prices, err := w.auditor.PricingHistory(w.ctx, p)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.True(t, prices[0].Current)
}

func TestAuditor_RequiresProviderAndRole(t *testing.T) {
	f := newFixture(t)
	unassigned := f.user("loose@example.com", nil, model.RoleAuditor)

	_, _, err := f.auditor.ListInvoices(f.ctx, as(unassigned, model.RoleAuditor), 1, 10)
	assert.ErrorIs(t, err, apperror.ErrBadRequest)

	p := f.provider("North Grid", "10")
	customer := f.user("c@example.com", &p.ID, model.RoleCustomer)
	_, err = f.auditor.PricingHistory(f.ctx, as(customer, model.RoleCustomer))
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = f.auditor.PricingHistory(f.ctx, as(customer, model.RoleAuditor))
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = f.auditor.InvoiceHistory(f.ctx, model.Principal{UserID: uuid.New(), Role: model.RoleAuditor}, "not-a-uuid")
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
}
