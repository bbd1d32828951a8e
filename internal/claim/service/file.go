package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"farmshield/internal/claim/models"
	policymodels "farmshield/internal/policy/models"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/audit"
	"farmshield/pkg/platform/sentinel"
	"farmshield/pkg/requestcontext"
)

// uploadConcurrency bounds parallel writes to the image store per claim.
const uploadConcurrency = 4

// File runs the claim pipeline and returns the adjudicated claim.
//
// Images are uploaded before the policy is reserved. The in-memory runner
// cannot roll back, so a failed upload after reservation would leave the
// policy claimed with no evidence; uploading first only risks orphaned files
// when two filings race for the same policy.
func (s *Service) File(ctx context.Context, farmerID id.FarmerID, req *models.FileRequest) (*models.Claim, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "claim.file",
		trace.WithAttributes(attribute.String("farmer_id", farmerID.String())))
	defer span.End()

	claim, err := s.file(ctx, farmerID, req)
	if s.metrics != nil {
		s.metrics.ObservePipeline(time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("claim_id", claim.ID.String()),
		attribute.String("claim.status", string(claim.Status)),
	)
	return claim, nil
}

func (s *Service) file(ctx context.Context, farmerID id.FarmerID, req *models.FileRequest) (*models.Claim, error) {
	policyID, err := req.Validate()
	if err != nil {
		return nil, s.reject("validation", err)
	}

	details, err := s.policies.Details(ctx, policyID)
	if err != nil {
		return nil, s.reject("policy", err)
	}
	policy, land := details.Policy, details.Land
	if policy.FarmerID != farmerID {
		return nil, s.reject("ownership", dErrors.New(dErrors.CodeForbidden, "policy does not belong to farmer"))
	}
	if err := s.checkStatus(policy.Status); err != nil {
		return nil, s.reject("status", err)
	}

	var distance float64
	err = s.step(ctx, "geofence", func(ctx context.Context) error {
		res, err := s.cfg.Fence.Check(*req.Latitude, *req.Longitude, land.Latitude, land.Longitude)
		distance = res.DistanceMeters
		if err != nil {
			return err
		}
		if !res.Within {
			if s.metrics != nil {
				s.metrics.IncrementGeofenceOutside()
			}
			if s.logger == nil {
				return nil
			}
			s.logger.WarnContext(ctx, "claim filed outside geofence",
				"farmer_id", farmerID.String(),
				"policy_id", policyID.String(),
				"distance_meters", res.DistanceMeters,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return nil
	})
	if err != nil {
		return nil, s.reject("geofence", err)
	}

	minImages := max(s.cfg.MinImages, 1)
	if len(req.Images) < minImages {
		return nil, s.reject("evidence", dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("at least %d images are required, got %d", minImages, len(req.Images))))
	}

	claimID := id.ClaimID(uuid.New())
	var images []models.Image
	err = s.step(ctx, "store_images", func(ctx context.Context) error {
		images, err = s.storeImages(ctx, claimID, req.Images)
		return err
	})
	if err != nil {
		return nil, s.reject("images", err)
	}

	now := requestcontext.Now(ctx)
	var claim *models.Claim
	err = s.step(ctx, "reserve", func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, txKey(policyID), func(ctx context.Context) error {
			if _, err := s.policies.MarkClaimed(ctx, policyID, s.cfg.AllowedPolicyStatuses); err != nil {
				return err
			}
			c, err := models.NewProcessing(models.NewClaimParams{
				ID:             claimID,
				PolicyID:       policyID,
				PolicyNumber:   policy.Number,
				FarmerID:       farmerID,
				SensorID:       land.SensorID,
				Latitude:       *req.Latitude,
				Longitude:      *req.Longitude,
				DistanceMeters: distance,
				Images:         images,
				Now:            now,
			})
			if err != nil {
				return err
			}
			if err := s.store.Create(ctx, c); err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					return dErrors.New(dErrors.CodeConflict, "a claim has already been filed for this policy")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create claim")
			}
			claim = c
			return nil
		})
	})
	if err != nil {
		return nil, s.reject("reserve", err)
	}
	if s.metrics != nil {
		s.metrics.IncrementFiled()
	}
	s.logAudit(ctx, string(audit.EventClaimFiled),
		"farmer_id", farmerID.String(),
		"policy_number", policy.Number,
		"claim_id", claimID.String(),
		"images", len(images),
	)

	var prediction *models.Prediction
	err = s.step(ctx, "assess", func(ctx context.Context) error {
		p, err := s.assessor.Predict(ctx, claim.ImagePaths())
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "damage assessment failed")
		}
		prediction = p
		return nil
	})
	if err != nil {
		s.logStuck(ctx, claim, err)
		return nil, s.reject("assess", err)
	}
	assessment := models.NewAssessment(claimID, prediction, requestcontext.Now(ctx))
	if assessment.Fallback {
		reason, _ := assessment.Details["fallback_reason"].(string)
		s.logAudit(ctx, string(audit.EventAssessorFallback),
			"farmer_id", farmerID.String(),
			"policy_number", policy.Number,
			"claim_id", claimID.String(),
			"reason", reason,
		)
	}

	// The threshold is compared against the unrounded estimate.
	decision := models.Decide(prediction.DamagePercent, s.cfg.ApprovalThreshold, policy.Coverage)
	var decided *models.Claim
	err = s.step(ctx, "adjudicate", func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, txKey(policyID), func(ctx context.Context) error {
			c, err := s.store.Adjudicate(ctx, claimID, decision, assessment, requestcontext.Now(ctx))
			switch {
			case errors.Is(err, sentinel.ErrInvalidState):
				return dErrors.New(dErrors.CodeConflict, "claim has already been adjudicated")
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "claim not found")
			case err != nil:
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record adjudication")
			}
			decided = c
			return nil
		})
	})
	if err != nil {
		s.logStuck(ctx, claim, err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementAdjudicated(string(decided.Status))
		s.metrics.ObservePayout(decided.Payout.InexactFloat64())
	}
	s.logAudit(ctx, string(audit.EventClaimAdjudicated),
		"farmer_id", farmerID.String(),
		"policy_number", policy.Number,
		"claim_id", claimID.String(),
		"status", string(decided.Status),
		"damage_percent", assessment.DamagePercent.String(),
		"payout", decided.Payout.StringFixed(2),
		"fallback", assessment.Fallback,
	)
	s.notifyOutcome(ctx, decided)
	return decided, nil
}

func (s *Service) checkStatus(status policymodels.Status) error {
	if slices.Contains(s.cfg.AllowedPolicyStatuses, status) {
		return nil
	}
	switch status {
	case policymodels.StatusClaimed:
		return dErrors.New(dErrors.CodeConflict, "a claim has already been filed for this policy")
	case policymodels.StatusExpired:
		return dErrors.New(dErrors.CodeConflict, "policy has expired")
	}
	return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("claims cannot be filed on a %s policy", status))
}

// storeImages uploads the evidence concurrently under the claim's scope and
// keeps the submission order.
func (s *Service) storeImages(ctx context.Context, claimID id.ClaimID, evidence []models.EvidenceImage) ([]models.Image, error) {
	scope := "claims/" + claimID.String()
	images := make([]models.Image, len(evidence))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i, ev := range evidence {
		g.Go(func() error {
			path, err := s.images.Store(gctx, scope, ev.File)
			if err != nil {
				return err
			}
			images[i] = models.Image{Path: path, Latitude: ev.Latitude, Longitude: ev.Longitude}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementUploadError()
		}
		var de *dErrors.Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store claim images")
	}
	return images, nil
}

// logStuck records a claim that reserved its policy but could not be
// adjudicated, so it can be picked up by hand.
func (s *Service) logStuck(ctx context.Context, c *models.Claim, err error) {
	if s.logger == nil {
		return
	}
	s.logger.ErrorContext(ctx, "claim left in processing",
		"error", err,
		"claim_id", c.ID.String(),
		"policy_id", c.PolicyID.String(),
		"farmer_id", c.FarmerID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (s *Service) notifyOutcome(ctx context.Context, c *models.Claim) {
	damage := decimal.Zero
	if c.DamagePercent != nil {
		damage = *c.DamagePercent
	}
	if c.Status == models.StatusApproved {
		s.notify(ctx, c, "Claim Approved! ✅",
			fmt.Sprintf("Your claim is approved! Damage: %s%%, Amount: ₹%s", damage.StringFixed(1), c.Payout.StringFixed(2)))
		return
	}
	s.notify(ctx, c, "Claim Rejected ❌",
		fmt.Sprintf("Your claim is rejected. Damage detected: %s%% (minimum: %s%% required)",
			damage.StringFixed(1), s.cfg.ApprovalThreshold.StringFixed(0)))
}

func txKey(policyID id.PolicyID) string {
	return "policy:" + policyID.String()
}
