package service

import (
	"context"
	"testing"
	"time"

	"electricity-billing/internal/clock"
	"electricity-billing/internal/database/dbtest"
	"electricity-billing/internal/lock"
	"electricity-billing/internal/metrics"
	"electricity-billing/internal/model"
	"electricity-billing/internal/repository"
	"electricity-billing/internal/token"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var baseTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// recordingPublisher keeps every published event type.
type recordingPublisher struct {
	types []string
}

func (p *recordingPublisher) Publish(eventType string, providerID uuid.UUID, payload any) {
	p.types = append(p.types, eventType)
}

type fixture struct {
	t   *testing.T
	ctx context.Context
	db  *gorm.DB

	clock     *clock.FakeClock
	metrics   *metrics.Metrics
	publisher *recordingPublisher

	providerRepo repository.ProviderRepository
	pricingRepo  repository.PricingRepository
	userRepo     repository.UserRepository
	roleRepo     repository.RoleRepository
	invoiceRepo  repository.InvoiceRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager

	pricing  PricingService
	roles    RoleService
	audit    AuditService
	invoices InvoiceService
	auditor  AuditorService
	admin    AdminService
	users    UserService
	auth     AuthService
	stats    StatisticsService
	issuer   *token.Issuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	f := &fixture{
		t:         t,
		ctx:       context.Background(),
		db:        db,
		clock:     clock.NewFakeClock(baseTime),
		metrics:   metrics.New(nil),
		publisher: &recordingPublisher{},

		providerRepo: repository.NewProviderRepository(db),
		pricingRepo:  repository.NewPricingRepository(db),
		userRepo:     repository.NewUserRepository(db),
		roleRepo:     repository.NewRoleRepository(db),
		invoiceRepo:  repository.NewInvoiceRepository(db),
		auditRepo:    repository.NewAuditRepository(db),
		txManager:    repository.NewTransactionManager(db),
	}
	log := zap.NewNop()

	f.pricing = NewPricingService(f.providerRepo, f.pricingRepo, f.txManager, lock.NewNoop(), f.publisher, f.clock, f.metrics, log)
	f.roles = NewRoleService(f.userRepo, f.roleRepo, f.txManager, f.clock, log)
	f.audit = NewAuditService(f.auditRepo, f.clock, f.metrics, log)
	f.invoices = f.newInvoiceService(f.audit)
	f.auditor = NewAuditorService(f.userRepo, f.invoiceRepo, f.roles, f.pricing, f.audit, log)
	f.admin = NewAdminService(f.providerRepo, f.pricing, f.txManager, log)
	f.users = NewUserService(f.providerRepo, f.userRepo, f.roleRepo, f.roles, f.txManager, f.clock, log)
	f.issuer = token.NewIssuer("test-secret", time.Hour, f.clock)
	f.auth = NewAuthService(f.userRepo, f.roles, f.issuer, log)
	f.stats = NewStatisticsService(repository.NewStatisticsRepository(db), f.userRepo, f.roles, f.clock, log)
	return f
}

func (f *fixture) newInvoiceService(audit AuditService) InvoiceService {
	return NewInvoiceService(InvoiceServiceDeps{
		UserRepo:    f.userRepo,
		InvoiceRepo: f.invoiceRepo,
		PricingRepo: f.pricingRepo,
		Roles:       f.roles,
		Pricing:     f.pricing,
		Audit:       audit,
		TxManager:   f.txManager,
		Publisher:   f.publisher,
		Clock:       f.clock,
		Metrics:     f.metrics,
		Log:         zap.NewNop(),
	})
}

// provider creates a provider with an open price.
func (f *fixture) provider(name, price string) *model.Provider {
	f.t.Helper()
	p := &model.Provider{Name: name, IsActive: true}
	require.NoError(f.t, f.providerRepo.Create(f.ctx, p))
	_, err := f.pricing.OpenInitial(f.ctx, p.ID, decimal.RequireFromString(price), uuid.New())
	require.NoError(f.t, err)
	p.CurrentKwhPrice = decimal.RequireFromString(price)
	return p
}

// user creates an active user holding the given roles.
func (f *fixture) user(email string, providerID *uuid.UUID, roles ...model.Role) *model.User {
	f.t.Helper()
	u := &model.User{
		ProviderID: providerID,
		Name:       email,
		Email:      email,
		Password:   "secret",
		IsActive:   true,
	}
	require.NoError(f.t, f.userRepo.Create(f.ctx, u))
	for _, r := range roles {
		require.NoError(f.t, f.roleRepo.Create(f.ctx, &model.UserRole{UserID: u.ID, Role: r, AssignedAt: f.clock.Now()}))
	}
	return u
}

func as(u *model.User, role model.Role) model.Principal {
	return model.Principal{UserID: u.ID, Role: role}
}

func (f *fixture) auditRows(invoiceID string) []model.AuditLog {
	f.t.Helper()
	var rows []model.AuditLog
	require.NoError(f.t, f.db.Where("invoice_id = ?", invoiceID).Order("performed_at asc").Find(&rows).Error)
	return rows
}
