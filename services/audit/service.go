package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upb/minichat-gateway/models"
	"github.com/upb/minichat-gateway/repositories"
	"go.uber.org/zap"
)

// ErrBufferFull is returned when an event is dropped because every buffer slot is taken
var ErrBufferFull = errors.New("audit event buffer full")

// AuditEvent represents an event to be audited
type AuditEvent struct {
	Log *models.AuditLog
}

// AuditService handles asynchronous audit logging.
// Events go through a bounded channel drained by a fixed worker pool; request paths never block on it.
type AuditService struct {
	auditRepo   repositories.AuditRepository
	logger      *zap.Logger
	eventChan   chan *AuditEvent
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	started     bool
	stopped     bool
	dropped     int64
	mu          sync.Mutex
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 2,
	}
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repositories.AuditRepository, logger *zap.Logger, config Config) *AuditService {
	if config.BufferSize <= 0 || config.WorkerCount <= 0 {
		config = DefaultConfig()
	}

	return &AuditService{
		auditRepo:   auditRepo,
		logger:      logger,
		eventChan:   make(chan *AuditEvent, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop stops accepting events and waits for the queued ones to be written
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("audit service not running")
	}
	s.stopped = true
	pending := len(s.eventChan)
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", pending))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogEvent queues an event without blocking. A full buffer drops the event.
func (s *AuditService) LogEvent(event *AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopped {
		return fmt.Errorf("audit service not running")
	}

	select {
	case s.eventChan <- event:
		return nil
	default:
		s.dropped++
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("action", string(event.Log.Action)),
			zap.String("request_id", event.Log.RequestID))
		return ErrBufferFull
	}
}

// worker processes events from the channel
func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for event := range s.eventChan {
		if err := s.processEvent(event); err != nil {
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(event.Log.Action)),
				zap.String("request_id", event.Log.RequestID))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// processEvent processes a single audit event
func (s *AuditService) processEvent(event *AuditEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, event.Log); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Dropped:       s.dropped,
		Started:       s.started && !s.stopped,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Dropped       int64
	Started       bool
}

// Convenience methods for logging common events

// LogLogin records a successful login
func (s *AuditService) LogLogin(meta models.RequestMeta, userID uuid.UUID, openID string, created bool) error {
	log := models.NewAuditLog(models.AuditActionLogin, "session").
		WithUser(userID).
		WithRequest(meta).
		WithDetails(map[string]interface{}{
			"openid":      openID,
			"new_account": created,
		})

	return s.LogEvent(&AuditEvent{Log: log})
}

// LogTokenRefreshed records a credential rotation
func (s *AuditService) LogTokenRefreshed(meta models.RequestMeta, userID uuid.UUID) error {
	log := models.NewAuditLog(models.AuditActionTokenRefreshed, "session").
		WithUser(userID).
		WithRequest(meta)

	return s.LogEvent(&AuditEvent{Log: log})
}

// LogLogout records a revocation
func (s *AuditService) LogLogout(meta models.RequestMeta, userID uuid.UUID) error {
	log := models.NewAuditLog(models.AuditActionLogout, "session").
		WithUser(userID).
		WithRequest(meta)

	return s.LogEvent(&AuditEvent{Log: log})
}

// LogChatCompleted records a proxied chat turn that was answered and stored
func (s *AuditService) LogChatCompleted(meta models.RequestMeta, userID, logID uuid.UUID, provider string, latency time.Duration, count int) error {
	log := models.NewAuditLog(models.AuditActionChatCompleted, "chat").
		WithUser(userID).
		WithResource(logID).
		WithRequest(meta).
		WithUpstream(provider, latency).
		WithDetails(map[string]interface{}{
			"daily_count": count,
		})

	return s.LogEvent(&AuditEvent{Log: log})
}

// LogChatDenied records a chat request refused before reaching the provider
func (s *AuditService) LogChatDenied(meta models.RequestMeta, userID uuid.UUID, reason string, details map[string]interface{}) error {
	payload := map[string]interface{}{"reason": reason}
	for k, v := range details {
		payload[k] = v
	}

	log := models.NewAuditLog(models.AuditActionChatDenied, "chat").
		WithUser(userID).
		WithRequest(meta).
		WithDetails(payload)

	return s.LogEvent(&AuditEvent{Log: log})
}

// LogChatFailed records a chat turn that consumed quota but produced no stored reply
func (s *AuditService) LogChatFailed(meta models.RequestMeta, userID uuid.UUID, provider string, latency time.Duration, statusCode int, message string) error {
	log := models.NewAuditLog(models.AuditActionChatFailed, "chat").
		WithUser(userID).
		WithRequest(meta).
		WithUpstream(provider, latency).
		WithError(statusCode, message)

	return s.LogEvent(&AuditEvent{Log: log})
}
