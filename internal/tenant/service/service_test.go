package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	entityStore "obligo/internal/tenant/store/entity"
	roleStore "obligo/internal/tenant/store/role"
	tenantStore "obligo/internal/tenant/store/tenant"
	id "obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
	"obligo/pkg/platform/sentinel"
	"obligo/pkg/requestcontext"
	"obligo/pkg/testutil"
)

type fakePurger struct {
	purged []id.TenantID
}

func (p *fakePurger) PurgeTenant(_ context.Context, tenantID id.TenantID) (int, error) {
	p.purged = append(p.purged, tenantID)
	return 7, nil
}

type TenantServiceSuite struct {
	suite.Suite
	ctx     context.Context
	purger  *fakePurger
	service *Service
}

func TestTenantServiceSuite(t *testing.T) {
	suite.Run(t, new(TenantServiceSuite))
}

func (s *TenantServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), testutil.Date(2025, time.February, 1))
	s.purger = &fakePurger{}
	s.service = New(tenantStore.NewMemory(), entityStore.NewMemory(), roleStore.NewMemory(),
		WithInstancePurger(s.purger))
}

func (s *TenantServiceSuite) TestCreateTenant() {
	s.Run("issues a one-time secret", func() {
		t, secret, err := s.service.CreateTenant(s.ctx, "Acme Group")
		s.Require().NoError(err)
		s.NotEmpty(secret)
		s.NotEmpty(t.SecretHash)
		s.NotEqual(secret, t.SecretHash)
		s.True(t.IsActive())

		s.NoError(s.service.VerifySecret(s.ctx, t.ID, secret))
	})

	s.Run("duplicate name conflicts", func() {
		_, _, err := s.service.CreateTenant(s.ctx, "Dup Co")
		s.Require().NoError(err)
		_, _, err = s.service.CreateTenant(s.ctx, "dup co")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("empty name rejected", func() {
		_, _, err := s.service.CreateTenant(s.ctx, "   ")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *TenantServiceSuite) TestSecretVerification() {
	t, secret, err := s.service.CreateTenant(s.ctx, "Acme")
	s.Require().NoError(err)

	s.Run("wrong secret rejected", func() {
		err := s.service.VerifySecret(s.ctx, t.ID, "wrong")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rotation invalidates the old secret", func() {
		fresh, err := s.service.RotateSecret(s.ctx, t.ID)
		s.Require().NoError(err)
		s.NoError(s.service.VerifySecret(s.ctx, t.ID, fresh))
		s.Error(s.service.VerifySecret(s.ctx, t.ID, secret))
	})

	s.Run("inactive tenant always fails", func() {
		_, err := s.service.DeactivateTenant(s.ctx, t.ID)
		s.Require().NoError(err)
		fresh, err := s.service.RotateSecret(s.ctx, t.ID)
		s.Require().NoError(err)
		err = s.service.VerifySecret(s.ctx, t.ID, fresh)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *TenantServiceSuite) TestTenantLifecycle() {
	t, _, err := s.service.CreateTenant(s.ctx, "Acme")
	s.Require().NoError(err)

	deactivated, err := s.service.DeactivateTenant(s.ctx, t.ID)
	s.Require().NoError(err)
	s.False(deactivated.IsActive())

	_, err = s.service.DeactivateTenant(s.ctx, t.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	reactivated, err := s.service.ReactivateTenant(s.ctx, t.ID)
	s.Require().NoError(err)
	s.True(reactivated.IsActive())
}

func (s *TenantServiceSuite) TestEntitiesAndDirectory() {
	t, _, err := s.service.CreateTenant(s.ctx, "Acme")
	s.Require().NoError(err)

	alpha, err := s.service.CreateEntity(s.ctx, t.ID, "Acme Alpha")
	s.Require().NoError(err)
	beta, err := s.service.CreateEntity(s.ctx, t.ID, "Acme Beta")
	s.Require().NoError(err)

	refs, err := s.service.ListActiveEntities(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Len(refs, 2)

	_, err = s.service.DeactivateEntity(s.ctx, beta.ID)
	s.Require().NoError(err)

	refs, err = s.service.ListActiveEntities(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Require().Len(refs, 1)
	s.Equal(alpha.ID, refs[0].ID)

	// The full listing still shows both.
	all, err := s.service.ListEntities(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *TenantServiceSuite) TestActiveTenantListing() {
	a, _, err := s.service.CreateTenant(s.ctx, "Active Co")
	s.Require().NoError(err)
	b, _, err := s.service.CreateTenant(s.ctx, "Suspended Co")
	s.Require().NoError(err)
	_, err = s.service.DeactivateTenant(s.ctx, b.ID)
	s.Require().NoError(err)

	active, err := s.service.ListActiveTenantIDs(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(a.ID, active[0])
}

func (s *TenantServiceSuite) TestRoleResolution() {
	t, _, err := s.service.CreateTenant(s.ctx, "Acme")
	s.Require().NoError(err)
	preparer := id.NewUserID()

	s.Run("unmapped role is a sentinel miss", func() {
		_, err := s.service.ResolveRole(s.ctx, t.ID, "preparer")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("assignment resolves", func() {
		_, err := s.service.AssignRole(s.ctx, t.ID, "Preparer", preparer)
		s.Require().NoError(err)

		got, err := s.service.ResolveRole(s.ctx, t.ID, "preparer")
		s.Require().NoError(err)
		s.Equal(preparer, got)
	})

	s.Run("reassignment replaces the user", func() {
		replacement := id.NewUserID()
		_, err := s.service.AssignRole(s.ctx, t.ID, "preparer", replacement)
		s.Require().NoError(err)

		got, err := s.service.ResolveRole(s.ctx, t.ID, "preparer")
		s.Require().NoError(err)
		s.Equal(replacement, got)
	})

	s.Run("unassignment removes the mapping", func() {
		s.Require().NoError(s.service.UnassignRole(s.ctx, t.ID, "preparer"))
		_, err := s.service.ResolveRole(s.ctx, t.ID, "preparer")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *TenantServiceSuite) TestDeleteTenantData() {
	t, _, err := s.service.CreateTenant(s.ctx, "Acme")
	s.Require().NoError(err)

	s.Run("active tenant refuses purge", func() {
		_, err := s.service.DeleteTenantData(s.ctx, t.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("inactive tenant purges", func() {
		_, err := s.service.DeactivateTenant(s.ctx, t.ID)
		s.Require().NoError(err)

		removed, err := s.service.DeleteTenantData(s.ctx, t.ID)
		s.Require().NoError(err)
		s.Equal(7, removed)
		s.Equal([]id.TenantID{t.ID}, s.purger.purged)
	})
}
