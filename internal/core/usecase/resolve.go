package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilltong/pill-identifier/internal/core/domain"
)

// resolveTags runs the two-stage cascade for every ranked tag. Tags are
// resolved concurrently with per-tag failure isolation, but the output
// concatenation always follows tag-rank order.
func (uc *IdentifyUseCase) resolveTags(ctx context.Context, log *slog.Logger, rank []domain.TagScore) []domain.CandidateRecord {
	perTag := make([][]domain.CandidateRecord, len(rank))

	sem := make(chan struct{}, uc.opts.MaxTagWorkers)
	var wg sync.WaitGroup

	for i, score := range rank {
		wg.Add(1)
		go func(index int, tag string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			records, err := uc.resolveTag(ctx, tag)
			if err != nil {
				uc.observeFailure(err)
				log.Warn("tag dropped from result", "tag", tag, "error", err)
				return
			}
			perTag[index] = records
		}(i, score.TagName)
	}

	wg.Wait()

	merged := make([]domain.CandidateRecord, 0)
	for _, records := range perTag {
		// The same catalog row may appear under two predicted tags;
		// that is accepted, not deduplicated.
		merged = append(merged, records...)
	}
	return merged
}

// resolveTag is the per-tag cascade: identifier lookup, name
// normalization, full catalog lookup. An empty first stage skips the
// tag without error.
func (uc *IdentifyUseCase) resolveTag(ctx context.Context, tag string) ([]domain.CandidateRecord, error) {
	identifiers, err := uc.catalog.LookupIdentifiers(ctx, tag)
	if err != nil {
		return nil, err
	}
	if len(identifiers) == 0 {
		return nil, nil
	}
	identifier := identifiers[0]

	name := NormalizeName(identifier.Name)
	if name == "" {
		return nil, nil
	}

	entries, err := uc.catalog.LookupCatalog(ctx, name)
	if err != nil {
		return nil, err
	}

	records := make([]domain.CandidateRecord, 0, len(entries))
	for _, entry := range entries {
		imageKey := entry.ImageKey
		if imageKey == "" {
			imageKey = identifier.ImageKey
		}
		records = append(records, domain.CandidateRecord{
			CatalogID:   entry.ID,
			DisplayName: entry.DisplayName,
			Company:     entry.Company,
			Appearance:  entry.Appearance,
			DosageForm:  entry.FormCodeName,
			ImageKey:    imageKey,
		})
	}
	return records, nil
}

// NormalizeName truncates a catalog display name at the first
// whitespace, comma or parenthesis, stripping dosage and packaging
// suffixes so the second-stage lookup matches the base product name.
func NormalizeName(name string) string {
	cut := strings.IndexFunc(name, func(r rune) bool {
		switch r {
		case ',', '(', ')':
			return true
		}
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if cut >= 0 {
		name = name[:cut]
	}
	return strings.TrimSpace(name)
}
