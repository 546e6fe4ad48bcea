package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"payment-reconciler/internal/models"
	"payment-reconciler/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher routes a verified, structurally valid event to its handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *models.WebhookEvent) error
}

// AuditSink records one audit entry per delivery, best-effort: it never
// returns an error and must never block the HTTP response.
type AuditSink interface {
	Record(ctx context.Context, rec *models.WebhookAuditRecord)
}

// DedupeCache remembers fully processed event ids for a bounded window.
// Optional; the durable ledger is what correctness rests on.
type DedupeCache interface {
	EventSeen(ctx context.Context, eventID string) (bool, error)
	MarkEventSeen(ctx context.Context, eventID string) error
}

// Gateway is the HTTP face of the reconciliation core: it verifies
// signatures over the raw body, validates the envelope, dispatches, and maps
// outcomes to the response codes the processor's retry policy expects.
type Gateway struct {
	secret     []byte
	sigHeader  string
	tsHeader   string
	dispatcher Dispatcher
	audit      AuditSink
	dedupe     DedupeCache
	logger     *zap.Logger
}

// NewGateway creates a webhook gateway. dedupe may be nil.
func NewGateway(secret []byte, sigHeader, tsHeader string, dispatcher Dispatcher, audit AuditSink, dedupe DedupeCache) *Gateway {
	return &Gateway{
		secret:     secret,
		sigHeader:  sigHeader,
		tsHeader:   tsHeader,
		dispatcher: dispatcher,
		audit:      audit,
		dedupe:     dedupe,
		logger:     util.GetLogger(),
	}
}

// Handle processes POST /webhooks.
func (g *Gateway) Handle(c *gin.Context) {
	start := time.Now()

	rawBody, err := c.GetRawData()
	if err != nil {
		g.finish(c, start, nil, models.AuditOutcomeMalformed, http.StatusBadRequest,
			gin.H{"error": "unreadable body"})
		return
	}

	signature := c.GetHeader(g.sigHeader)
	timestamp := c.GetHeader(g.tsHeader)
	if signature == "" || timestamp == "" {
		g.finish(c, start, nil, models.AuditOutcomeMissingSignature, http.StatusBadRequest,
			gin.H{"error": "missing signature headers"})
		return
	}

	if !VerifySignature(rawBody, signature, timestamp, g.secret) {
		util.WebhookSignatureFailures.Inc()
		g.finish(c, start, nil, models.AuditOutcomeInvalidSignature, http.StatusUnauthorized,
			gin.H{"error": "invalid signature"})
		return
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		g.finish(c, start, nil, models.AuditOutcomeMalformed, http.StatusBadRequest,
			gin.H{"error": "invalid JSON body"})
		return
	}
	if err := event.Validate(); err != nil {
		g.finish(c, start, &event, models.AuditOutcomeMalformed, http.StatusBadRequest,
			gin.H{"error": err.Error()})
		return
	}

	if !models.SupportedEventType(event.Type) {
		// Acknowledge so the processor does not retry an event we ignore
		// on purpose.
		g.finish(c, start, &event, models.AuditOutcomeIgnored, http.StatusOK,
			gin.H{"event_id": event.ID, "event_type": event.Type, "status": "ignored"})
		return
	}

	if g.dedupe != nil {
		seen, err := g.dedupe.EventSeen(c.Request.Context(), event.ID)
		if err != nil {
			g.logger.Warn("Dedupe cache lookup failed", zap.Error(err))
		} else if seen {
			g.finish(c, start, &event, models.AuditOutcomeDuplicate, http.StatusOK,
				gin.H{"event_id": event.ID, "event_type": event.Type, "status": "duplicate"})
			return
		}
	}

	dispatchStart := time.Now()
	err = g.dispatcher.Dispatch(c.Request.Context(), &event)
	util.WebhookDispatchLatency.Observe(time.Since(dispatchStart).Seconds())
	if err != nil {
		g.logger.Error("Webhook dispatch failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.Error(err))
		g.finish(c, start, &event, models.AuditOutcomeFailed, http.StatusInternalServerError,
			gin.H{"error": "event processing failed"})
		return
	}

	if g.dedupe != nil {
		if err := g.dedupe.MarkEventSeen(c.Request.Context(), event.ID); err != nil {
			g.logger.Warn("Failed to mark event seen", zap.Error(err))
		}
	}

	g.finish(c, start, &event, models.AuditOutcomeProcessed, http.StatusOK,
		gin.H{"event_id": event.ID, "event_type": event.Type, "status": "ok"})
}

// HandleChallenge answers the processor's liveness probe:
// GET /webhooks?challenge=<token> echoes the token.
func (g *Gateway) HandleChallenge(c *gin.Context) {
	challenge := c.Query("challenge")
	if challenge == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing challenge"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"challenge": challenge})
}

func (g *Gateway) finish(c *gin.Context, start time.Time, event *models.WebhookEvent, outcome string, status int, body gin.H) {
	util.WebhookDeliveriesTotal.WithLabelValues(outcome).Inc()

	rec := &models.WebhookAuditRecord{
		ID:         uuid.New().String(),
		Outcome:    outcome,
		StatusCode: status,
		DurationMS: time.Since(start).Milliseconds(),
		ReceivedAt: start,
	}
	if event != nil {
		rec.EventID = event.ID
		rec.EventType = event.Type
	}
	if g.audit != nil {
		g.audit.Record(c.Request.Context(), rec)
	}

	c.JSON(status, body)
}
