package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"obligo/internal/compliance/models"
	masterStore "obligo/internal/compliance/store/master"
	id "obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
	"obligo/pkg/testutil"
)

type CatalogSuite struct {
	suite.Suite
	ctx     context.Context
	service *Service
}

func TestCatalogSuite(t *testing.T) {
	suite.Run(t, new(CatalogSuite))
}

func (s *CatalogSuite) SetupTest() {
	s.ctx = testutil.JobContext(testutil.Date(2025, time.January, 10))
	s.service = New(masterStore.NewMemory())
}

func (s *CatalogSuite) monthlyParams(tenantID *id.TenantID, code string) CreateMasterParams {
	return CreateMasterParams{
		TenantID:  tenantID,
		Code:      code,
		Category:  "tax",
		Frequency: models.FrequencyMonthly,
		Rule:      models.RuleDescriptor{Type: models.RuleMonthly, Day: 20},
	}
}

func (s *CatalogSuite) TestCreateMaster() {
	tenantID := id.NewTenantID()

	s.Run("valid tenant master", func() {
		m, err := s.service.CreateMaster(s.ctx, s.monthlyParams(&tenantID, "vat-return"))
		s.Require().NoError(err)
		s.True(m.Active)
		s.False(m.IsGlobal())
		s.Equal("vat-return", m.Code)
	})

	s.Run("duplicate code in scope conflicts", func() {
		_, err := s.service.CreateMaster(s.ctx, s.monthlyParams(&tenantID, "vat-return"))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("same code is free in the global scope", func() {
		m, err := s.service.CreateMaster(s.ctx, s.monthlyParams(nil, "vat-return"))
		s.Require().NoError(err)
		s.True(m.IsGlobal())
	})

	s.Run("rule and frequency must agree", func() {
		p := s.monthlyParams(&tenantID, "mismatched")
		p.Frequency = models.FrequencyQuarterly
		_, err := s.service.CreateMaster(s.ctx, p)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *CatalogSuite) TestListIncludesGlobal() {
	tenantID := id.NewTenantID()
	otherTenant := id.NewTenantID()

	_, err := s.service.CreateMaster(s.ctx, s.monthlyParams(&tenantID, "own"))
	s.Require().NoError(err)
	_, err = s.service.CreateMaster(s.ctx, s.monthlyParams(nil, "shared"))
	s.Require().NoError(err)
	_, err = s.service.CreateMaster(s.ctx, s.monthlyParams(&otherTenant, "foreign"))
	s.Require().NoError(err)

	masters, err := s.service.ListMasters(s.ctx, tenantID)
	s.Require().NoError(err)
	s.Require().Len(masters, 2)

	codes := []string{masters[0].Code, masters[1].Code}
	s.Contains(codes, "own")
	s.Contains(codes, "shared")
}

func (s *CatalogSuite) TestActivationCycle() {
	tenantID := id.NewTenantID()
	m, err := s.service.CreateMaster(s.ctx, s.monthlyParams(&tenantID, "vat-return"))
	s.Require().NoError(err)

	deactivated, err := s.service.DeactivateMaster(s.ctx, m.ID)
	s.Require().NoError(err)
	s.False(deactivated.Active)

	_, err = s.service.DeactivateMaster(s.ctx, m.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	reactivated, err := s.service.ReactivateMaster(s.ctx, m.ID)
	s.Require().NoError(err)
	s.True(reactivated.Active)
}

func (s *CatalogSuite) TestGetUnknownMaster() {
	_, err := s.service.GetMaster(s.ctx, id.NewMasterID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
