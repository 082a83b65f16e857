package safety

import (
	"context"
	"log/slog"
	"time"

	"shortly/internal/entities"
)

// DefaultTimeout bounds each external call made by the pipeline
const DefaultTimeout = 5 * time.Second

// Pipeline fuses the threat list and the content classifier into one verdict.
// Either stage may be nil. Provider failures never fail classification.
type Pipeline struct {
	threats    ThreatListChecker
	classifier ContentClassifier
	timeout    time.Duration
	logger     *slog.Logger
}

// NewPipeline builds a pipeline. A non-positive timeout uses DefaultTimeout.
func NewPipeline(threats ThreatListChecker, classifier ContentClassifier, timeout time.Duration, logger *slog.Logger) *Pipeline {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Pipeline{
		threats:    threats,
		classifier: classifier,
		timeout:    timeout,
		logger:     logger,
	}
}

// Classify normalizes the URL and produces a verdict. The only error it
// returns is ErrInvalidURL; the normalized URL is returned alongside.
func (p *Pipeline) Classify(ctx context.Context, rawURL string) (string, *Verdict, error) {
	url, err := NormalizeURL(rawURL)
	if err != nil {
		return "", nil, err
	}

	threat := p.checkThreat(ctx, url)

	classification := p.classify(ctx, url, threat)
	if classification == nil {
		return url, degradedVerdict(threat), nil
	}

	confidence := classification.Confidence
	category := classification.Category
	return url, &Verdict{
		Flagged:    threat != nil || classification.Flagged,
		Category:   &category,
		Reason:     classification.Reason,
		Threat:     threat,
		Confidence: confidence,
	}, nil
}

func (p *Pipeline) checkThreat(ctx context.Context, url string) *entities.ThreatType {
	if p.threats == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	threat, err := p.threats.Check(ctx, url)
	if err != nil {
		p.logger.Warn("threat list unavailable, treating as no match", slog.String("url", url), slog.Any("error", err))
		return nil
	}
	return threat
}

func (p *Pipeline) classify(ctx context.Context, url string, hint *entities.ThreatType) *Classification {
	if p.classifier == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	c, err := p.classifier.Classify(ctx, url, hint)
	if err != nil {
		p.logger.Warn("content classifier unavailable, using threat list only", slog.String("url", url), slog.Any("error", err))
		return nil
	}
	return c
}

// degradedVerdict is the threat-list-only verdict
func degradedVerdict(threat *entities.ThreatType) *Verdict {
	if threat != nil {
		return &Verdict{
			Flagged:    true,
			Threat:     threat,
			Confidence: 1.0,
		}
	}
	safe := entities.CategorySafe
	return &Verdict{Category: &safe, Confidence: 1.0}
}
