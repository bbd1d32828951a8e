package service

import (
	"context"
	"errors"
	"fmt"

	"farmshield/internal/policy/models"
	vmodels "farmshield/internal/verification/models"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/audit"
	"farmshield/pkg/platform/sentinel"
	"farmshield/pkg/requestcontext"
)

// Apply registers the land and opens a pending policy priced from the crop
// table. Both rows are written in one transaction; a khasra that is already
// registered anywhere is Conflict.
func (s *Service) Apply(ctx context.Context, farmerID id.FarmerID, req *models.ApplyRequest) (*models.PaymentOrderResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.farmers.GetProfile(ctx, farmerID); err != nil {
		return nil, err
	}
	quote, err := s.pricer.Quote(req.CropType, *req.AreaAcres)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	land, err := models.NewLand(id.LandID(s.newID()), farmerID, req.KhasraNumber, *req.AreaAcres,
		quote.Crop, *req.Latitude, *req.Longitude, now)
	if err != nil {
		return nil, err
	}
	policyID := id.PolicyID(s.newID())
	orderRef := newOrderRef()

	var policy *models.Policy
	err = s.tx.RunInTx(ctx, txKey(policyID), func(ctx context.Context) error {
		if err := s.lands.Create(ctx, land); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "khasra number is already registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register land")
		}
		for range maxNumberAttempts {
			candidate, err := models.NewPolicy(models.NewPolicyParams{
				ID:             policyID,
				FarmerID:       farmerID,
				LandID:         land.ID,
				Number:         s.newNumber(now),
				Quote:          quote,
				OrderRef:       orderRef,
				Now:            now,
				ValidityMonths: s.cfg.ValidityMonths,
			})
			if err != nil {
				return err
			}
			err = s.policies.Create(ctx, candidate)
			if errors.Is(err, models.ErrNumberTaken) {
				if s.metrics != nil {
					s.metrics.IncrementNumberCollision()
				}
				continue
			}
			if err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					return dErrors.New(dErrors.CodeConflict, "land already has a policy")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create policy")
			}
			policy = candidate
			return nil
		}
		return dErrors.New(dErrors.CodeInternal, "could not allocate a unique policy number")
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementTransition(string(models.StatusPending))
		s.metrics.ObservePremium(policy.Premium.InexactFloat64())
	}
	s.logAudit(ctx, string(audit.EventLandRegistered),
		"farmer_id", farmerID.String(),
		"khasra_number", land.KhasraNumber,
	)
	s.logAudit(ctx, string(audit.EventPolicyApplied),
		"farmer_id", farmerID.String(),
		"policy_number", policy.Number,
		"crop_type", policy.CropType,
		"premium", policy.Premium.String(),
		"coverage", policy.Coverage.String(),
	)
	return &models.PaymentOrderResponse{
		PolicyID:     policy.ID.String(),
		PolicyNumber: policy.Number,
		OrderID:      policy.OrderRef,
		Amount:       policy.Premium,
		Coverage:     policy.Coverage,
		Currency:     s.cfg.Currency,
		KeyID:        s.cfg.PaymentKeyID,
	}, nil
}

// ConfirmPayment moves the farmer's pending policy to paid and opens its
// single pending verification in the same transaction.
func (s *Service) ConfirmPayment(ctx context.Context, farmerID id.FarmerID, req *models.ConfirmPaymentRequest) (*models.Policy, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	current, err := s.policies.FindByOrderRef(ctx, req.OrderRef)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "payment order not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load policy")
	}
	if !current.OwnedBy(farmerID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "policy belongs to another farmer")
	}
	if current.Status != models.StatusPending {
		return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("policy is already %s", current.Status))
	}

	now := requestcontext.Now(ctx)
	var paid *models.Policy
	err = s.tx.RunInTx(ctx, txKey(current.ID), func(ctx context.Context) error {
		p, err := s.policies.MarkPaid(ctx, current.ID, req.PaymentRef, now)
		if err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeConflict, "policy is no longer awaiting payment")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record payment")
		}
		v, err := vmodels.NewPending(id.VerificationID(s.newID()), p.ID, now)
		if err != nil {
			return err
		}
		if err := s.verifications.Create(ctx, v); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "verification already opened for policy")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to open verification")
		}
		paid = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementTransition(string(models.StatusPaid))
	}
	s.logAudit(ctx, string(audit.EventPaymentConfirmed),
		"farmer_id", farmerID.String(),
		"policy_number", paid.Number,
		"status", string(paid.Status),
	)
	s.notify(ctx, paid, "Payment Received",
		fmt.Sprintf("Your insurance application %s payment is confirmed. Verification pending by Patwari.", paid.Number),
		id.NotificationPayment)
	return paid, nil
}

// Activate moves a paid policy to active. It is only reached from an
// approved verification, so any other current state is a logic error.
// Callers announce activation with NotifyActivated once their transaction
// has committed.
func (s *Service) Activate(ctx context.Context, policyID id.PolicyID) (*models.Policy, error) {
	var active *models.Policy
	err := s.tx.RunInTx(ctx, txKey(policyID), func(ctx context.Context) error {
		p, err := s.policies.Transition(ctx, policyID,
			[]models.Status{models.StatusPaid}, models.StatusActive, requestcontext.Now(ctx))
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "policy not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "only a paid policy can be activated")
		case err != nil:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to activate policy")
		}
		active = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(models.StatusActive))
	}
	s.logAudit(ctx, string(audit.EventPolicyActivated),
		"farmer_id", active.FarmerID.String(),
		"policy_number", active.Number,
		"status", string(active.Status),
	)
	return active, nil
}

func (s *Service) NotifyActivated(ctx context.Context, p *models.Policy) {
	s.notify(ctx, p, "Insurance Activated! 🎉",
		fmt.Sprintf("Your crop insurance %s is now active. Coverage: ₹%s", p.Number, p.Coverage.StringFixed(2)),
		id.NotificationPolicy)
}

// MarkClaimed reserves the policy for a claim. Only one caller can win the
// transition; the rest get Conflict.
func (s *Service) MarkClaimed(ctx context.Context, policyID id.PolicyID, allowed []models.Status) (*models.Policy, error) {
	if len(allowed) == 0 {
		allowed = []models.Status{models.StatusActive}
	}
	var claimed *models.Policy
	err := s.tx.RunInTx(ctx, txKey(policyID), func(ctx context.Context) error {
		p, err := s.policies.Transition(ctx, policyID, allowed, models.StatusClaimed, requestcontext.Now(ctx))
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "policy not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.New(dErrors.CodeConflict, "policy is not eligible for a claim")
		case err != nil:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reserve policy for claim")
		}
		claimed = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(models.StatusClaimed))
	}
	return claimed, nil
}

// AttachSensor records the sensor bound to a land. A land keeps its first
// sensor for life.
func (s *Service) AttachSensor(ctx context.Context, landID id.LandID, sensorID id.SensorID) error {
	err := s.lands.SetSensor(ctx, landID, sensorID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "land not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeConflict, "land already has a sensor")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to attach sensor")
}

// ExpireDue closes every active policy whose validity window has ended and
// reports how many were expired.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	expired, err := s.policies.ExpireDue(ctx, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire policies")
	}
	for _, p := range expired {
		s.logAudit(ctx, string(audit.EventPolicyExpired),
			"farmer_id", p.FarmerID.String(),
			"policy_number", p.Number,
			"status", string(p.Status),
		)
	}
	if s.metrics != nil && len(expired) > 0 {
		s.metrics.AddTransitions(string(models.StatusExpired), len(expired))
	}
	return len(expired), nil
}
