package vision

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"kycgate/internal/document"
)

const (
	attemptsPerModel = 2
	attemptTimeout   = 8 * time.Second
	maxRetryWait     = 10 * time.Second
)

// Charger records one quota unit per network attempt. Attempts that are
// cancelled or fail still consumed upstream quota.
type Charger interface {
	RecordCall() (bool, string)
}

type action int

const (
	retrySame action = iota
	advanceModel
	giveUp
)

// Orchestrator drives model fallback across an ordered candidate list. It
// never returns an error: every failure mode becomes a structured result.
type Orchestrator struct {
	client  Client
	models  []string
	charger Charger
	logger  *slog.Logger
	sleep   func(time.Duration)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithSleeper overrides the backoff sleep, used in tests.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

func NewOrchestrator(client Client, models []string, charger Charger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:  client,
		models:  models,
		charger: charger,
		logger:  slog.Default(),
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Extract runs the fallback loop and always yields a result.
func (o *Orchestrator) Extract(ctx context.Context, image []byte, kind document.Kind, country string, side document.Side) ExtractionResult {
	if o.client == nil || len(o.models) == 0 {
		return failureResult(FailureNoProviderConfigured, kind, side)
	}

	instruction := buildInstruction(kind, country, side)
	allRateLimited := true
	attempted := false

modelLoop:
	for _, model := range o.models {
		for attempt := 1; attempt <= attemptsPerModel; attempt++ {
			if ok, msg := o.charger.RecordCall(); !ok {
				o.logger.WarnContext(ctx, "usage budget exhausted mid-extraction", "message", msg)
				return failureResult(FailureRateLimited, kind, side)
			}
			attempted = true

			attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
			text, err := o.client.Generate(attemptCtx, model, instruction, image)
			cancel()

			if err == nil {
				o.logger.InfoContext(ctx, "extraction succeeded", "model", model, "attempt", attempt)
				p, perr := parseResponse(text)
				if perr != nil {
					o.logger.WarnContext(ctx, "no structured object in response, degrading to keyword verdict", "model", model)
					return fallbackVerdict(text, kind, side, model)
				}
				return convert(p, kind, side, model)
			}

			if ctx.Err() != nil {
				return failureResult(FailureAllModelsFailed, kind, side)
			}

			if !isRateLimited(err) {
				allRateLimited = false
			}

			act, wait := nextAction(err, attempt)
			o.logger.WarnContext(ctx, "extraction attempt failed",
				"model", model, "attempt", attempt, "error", err, "wait", wait)

			switch act {
			case retrySame:
				if wait > 0 {
					o.sleep(wait)
				}
			case advanceModel:
				continue modelLoop
			case giveUp:
				return failureResult(FailureAllModelsFailed, kind, side)
			}
		}
	}

	if attempted && allRateLimited {
		return failureResult(FailureRateLimited, kind, side)
	}
	return failureResult(FailureAllModelsFailed, kind, side)
}

func failureResult(reason FailureReason, kind document.Kind, side document.Side) ExtractionResult {
	return ExtractionResult{
		Success:       false,
		DetectedKind:  string(kind),
		Side:          side,
		Quality:       QualityUnreadable,
		Fields:        map[string]*string{},
		FailureReason: reason,
	}
}

var retryHintPattern = regexp.MustCompile(`retry in (\d+\.?\d*)`)

// nextAction decides how one failed attempt is handled. Pure: no clock, no
// network, fully table-testable.
//
// Quota errors honor an embedded retry-after hint only when it is short;
// waiting out a long quota window is worse than trying the next model, which
// has its own quota. Unknown-model errors advance immediately. Anything
// else retries the same model once with a flat pause.
func nextAction(err error, attempt int) (action, time.Duration) {
	switch {
	case isRateLimited(err):
		if hint, ok := retryAfterHint(err); ok && hint < maxRetryWait {
			if attempt < attemptsPerModel {
				return retrySame, hint + time.Second
			}
		}
		return advanceModel, 0
	case isNotFound(err):
		return advanceModel, 0
	default:
		if attempt < attemptsPerModel {
			return retrySame, time.Second
		}
		return advanceModel, 0
	}
}

func isRateLimited(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == 429 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota")
}

func isNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "404") || strings.Contains(msg, "not found")
}

func retryAfterHint(err error) (time.Duration, bool) {
	match := retryHintPattern.FindStringSubmatch(strings.ToLower(err.Error()))
	if match == nil {
		return 0, false
	}
	seconds, convErr := strconv.ParseFloat(match[1], 64)
	if convErr != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}
