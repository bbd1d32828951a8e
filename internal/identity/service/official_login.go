package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"farmshield/internal/identity/models"
	"farmshield/internal/identity/secrets"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/audit"
	"farmshield/pkg/platform/sentinel"
	"farmshield/pkg/requestcontext"
)

// OfficialLogin checks a government ID and password. Unknown IDs and wrong
// passwords return the same error.
func (s *Service) OfficialLogin(ctx context.Context, req *models.OfficialLoginRequest) (*models.AuthResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	governmentID := strings.TrimSpace(req.GovernmentID)

	official, err := s.officials.FindByGovernmentID(ctx, governmentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.authFailure(ctx, "official_unknown", "government_id", governmentID)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load official")
	}
	if err := secrets.Verify(req.Password, official.PasswordHash); err != nil {
		s.authFailure(ctx, "official_bad_password", "official_id", official.ID.String())
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
	}
	if !official.Active {
		s.authFailure(ctx, "official_inactive", "official_id", official.ID.String())
		return nil, dErrors.New(dErrors.CodeForbidden, "official account is inactive")
	}

	result, err := s.startSession(ctx, officialCaller(official))
	if err != nil {
		return nil, err
	}
	result.Name = official.Name
	if s.metrics != nil {
		s.metrics.IncrementLogin(string(requestcontext.RoleOfficial))
	}
	s.logAudit(ctx, string(audit.EventOfficialLoggedIn), "official_id", official.ID.String())
	return result, nil
}

// RequireActiveOfficial resolves an official acting on a verification.
func (s *Service) RequireActiveOfficial(ctx context.Context, officialID id.OfficialID) (*models.Official, error) {
	official, err := s.officials.FindByID(ctx, officialID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "official not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load official")
	}
	if !official.Active {
		return nil, dErrors.New(dErrors.CodeForbidden, "official account is inactive")
	}
	return official, nil
}

// SeedOfficial is one entry of the officials seed file.
type SeedOfficial struct {
	GovernmentID string `yaml:"government_id"`
	Name         string `yaml:"name"`
	Password     string `yaml:"password"`
	Area         string `yaml:"area"`
}

// LoadSeedFile reads the YAML list of officials provisioned out of band.
func LoadSeedFile(path string) ([]SeedOfficial, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read officials seed: %w", err)
	}
	var doc struct {
		Officials []SeedOfficial `yaml:"officials"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse officials seed: %w", err)
	}
	return doc.Officials, nil
}

// SeedOfficials upserts officials by government ID, re-hashing passwords.
func (s *Service) SeedOfficials(ctx context.Context, seeds []SeedOfficial) (int, error) {
	now := requestcontext.Now(ctx)
	for i, seed := range seeds {
		hash, err := secrets.Hash(seed.Password)
		if err != nil {
			return i, fmt.Errorf("seed official %q: %w", seed.GovernmentID, err)
		}
		official, err := models.NewOfficial(id.OfficialID(s.newID()), strings.TrimSpace(seed.GovernmentID), seed.Name, hash, seed.Area, now)
		if err != nil {
			return i, fmt.Errorf("seed official %q: %w", seed.GovernmentID, err)
		}
		if err := s.officials.Upsert(ctx, official); err != nil {
			return i, fmt.Errorf("seed official %q: %w", seed.GovernmentID, err)
		}
		s.logAudit(ctx, string(audit.EventOfficialSeeded),
			"official_id", official.ID.String(),
			"government_id", official.GovernmentID,
		)
	}
	return len(seeds), nil
}

func officialCaller(o *models.Official) requestcontext.Caller {
	return requestcontext.Caller{SubjectID: uuid.UUID(o.ID), Role: requestcontext.RoleOfficial, Area: o.Area}
}
