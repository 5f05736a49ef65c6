package ports

import (
	"context"

	"github.com/pilltong/pill-identifier/internal/core/domain"
)

// RequestProcessor runs the identification pipeline for one request.
type RequestProcessor interface {
	Identify(ctx context.Context, request domain.IdentifyRequest) ([]domain.CandidateRecord, error)
}
