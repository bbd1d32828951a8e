package service

import (
	"context"
	"errors"
	"fmt"

	policymodels "farmshield/internal/policy/models"
	"farmshield/internal/verification/models"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/audit"
	"farmshield/pkg/platform/sentinel"
	"farmshield/pkg/requestcontext"
)

// Decide records an official's verdict. Approval may assign a sensor to the
// land and always activates the policy; rejection leaves the policy paid.
//
// Everything runs in one transaction keyed on the policy. Writes are ordered
// so that the in-memory runner, which cannot roll back, never leaves a
// partial decision: the pending re-check comes first, the sensor bind is the
// first write and can fail cleanly, and activation comes last.
func (s *Service) Decide(ctx context.Context, officialID id.OfficialID, verificationID id.VerificationID, req *models.DecideRequest) (*models.View, error) {
	outcome, err := req.Validate()
	if err != nil {
		return nil, err
	}
	if _, err := s.officials.RequireActiveOfficial(ctx, officialID); err != nil {
		return nil, err
	}
	current, err := s.find(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	if !current.IsPending() {
		return nil, s.conflict("verification has already been decided")
	}
	details, err := s.policies.Details(ctx, current.PolicyID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var (
		decided   *models.Verification
		activated *policymodels.Policy
	)
	err = s.tx.RunInTx(ctx, "policy:"+current.PolicyID.String(), func(ctx context.Context) error {
		fresh, err := s.find(ctx, verificationID)
		if err != nil {
			return err
		}
		if !fresh.IsPending() {
			return s.conflict("verification has already been decided")
		}

		var sensorID *id.SensorID
		if outcome == models.StatusApproved && req.SensorCode != "" {
			sensor, err := s.sensors.Bind(ctx, req.SensorCode, details.Land.ID)
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeConflict) && s.metrics != nil {
					s.metrics.IncrementConflict()
				}
				return err
			}
			if err := s.policies.AttachSensor(ctx, details.Land.ID, sensor.ID); err != nil {
				return err
			}
			sensorID = &sensor.ID
		}

		decided, err = s.store.Decide(ctx, models.Decision{
			VerificationID: verificationID,
			OfficialID:     officialID,
			Outcome:        outcome,
			Remarks:        req.Remarks,
			SensorID:       sensorID,
			DecidedAt:      now,
		})
		switch {
		case errors.Is(err, sentinel.ErrInvalidState):
			return s.conflict("verification has already been decided")
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "verification not found")
		case err != nil:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record decision")
		}

		if outcome == models.StatusApproved {
			activated, err = s.policies.Activate(ctx, current.PolicyID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementDecision(string(outcome))
		s.metrics.ObserveWaitHours(now.Sub(current.CreatedAt).Hours())
	}
	p := details.Policy
	s.logAudit(ctx, string(audit.EventVerificationDecided),
		"farmer_id", p.FarmerID.String(),
		"official_id", officialID.String(),
		"policy_number", p.Number,
		"outcome", string(outcome),
		"remarks", req.Remarks,
		"sensor_code", req.SensorCode,
	)

	if outcome == models.StatusApproved {
		s.notify(ctx, p.FarmerID, verificationID.String(), "Insurance Verified! ✅",
			fmt.Sprintf("Your insurance %s has been verified and activated.", p.Number))
		s.policies.NotifyActivated(ctx, activated)
	} else {
		s.notify(ctx, p.FarmerID, verificationID.String(), "Verification Rejected ❌",
			fmt.Sprintf("Your insurance %s verification was rejected. Reason: %s", p.Number, req.Remarks))
	}

	view, _, err := s.view(ctx, decided)
	return view, err
}

func (s *Service) conflict(msg string) error {
	if s.metrics != nil {
		s.metrics.IncrementConflict()
	}
	return dErrors.New(dErrors.CodeConflict, msg)
}
