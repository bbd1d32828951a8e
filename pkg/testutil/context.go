package testutil

import (
	"net/http"

	"github.com/google/uuid"

	id "farmshield/pkg/domain"
	"farmshield/pkg/requestcontext"
)

// WithFarmer simulates RequireAuth for a farmer token.
func WithFarmer(req *http.Request, farmerID id.FarmerID) *http.Request {
	return WithCaller(req, requestcontext.Caller{
		SubjectID: uuid.UUID(farmerID),
		SessionID: id.SessionID(uuid.New()),
		Role:      requestcontext.RoleFarmer,
	})
}

// WithOfficial simulates RequireAuth for an official token scoped to area.
func WithOfficial(req *http.Request, officialID id.OfficialID, area string) *http.Request {
	return WithCaller(req, requestcontext.Caller{
		SubjectID: uuid.UUID(officialID),
		SessionID: id.SessionID(uuid.New()),
		Role:      requestcontext.RoleOfficial,
		Area:      area,
	})
}

// WithCaller injects an arbitrary principal.
func WithCaller(req *http.Request, caller requestcontext.Caller) *http.Request {
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), caller))
}
