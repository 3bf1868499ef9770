// Package audit writes the API-call trail in the background so that
// persistence never delays or fails an answer.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/upb/math-rag-agent/internal/prompt"
	"github.com/upb/math-rag-agent/models"
	"github.com/upb/math-rag-agent/repositories"
	"go.uber.org/zap"
)

// Event is one API-call log row waiting to be written
type Event struct {
	Log *models.APICallLog
}

// DropObserver is told when an event is dropped because the buffer is full
type DropObserver interface {
	ObserveAuditDrop()
}

// Service handles asynchronous API-call logging
type Service struct {
	repo         repositories.APICallLogRepository
	logger       *zap.Logger
	drops        DropObserver
	eventChan    chan *Event
	workerCount  int
	bufferSize   int
	writeTimeout time.Duration
	wg           sync.WaitGroup
	started      bool
	stopped      bool
	mu           sync.RWMutex
}

// Config holds configuration for the Service
type Config struct {
	BufferSize   int // Size of the event buffer channel
	WorkerCount  int // Number of concurrent workers
	WriteTimeout time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:   10000,
		WorkerCount:  5,
		WriteTimeout: 5 * time.Second,
	}
}

// NewService creates a new audit service. drops may be nil.
func NewService(repo repositories.APICallLogRepository, drops DropObserver, logger *zap.Logger, config Config) *Service {
	def := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = def.WorkerCount
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}

	return &Service{
		repo:         repo,
		logger:       logger,
		drops:        drops,
		eventChan:    make(chan *Event, config.BufferSize),
		workerCount:  config.WorkerCount,
		bufferSize:   config.BufferSize,
		writeTimeout: config.WriteTimeout,
	}
}

// Start starts the background workers
func (s *Service) Start() error {
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

// Stop closes the buffer and waits up to timeout for queued rows to be
// written.
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("audit service not running")
	}
	s.stopped = true
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))

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

// LogAPICall queues log without blocking. Secrets and PII are redacted from
// the question and both payloads before they leave the request goroutine.
// A full buffer drops the row.
func (s *Service) LogAPICall(log *models.APICallLog) error {
	if prompt.HasSecrets(log.Question) || prompt.DetectPII(log.Question) {
		s.logger.Info("redacting sensitive content from audited question",
			zap.String("request_id", log.RequestID))
		log.Question = prompt.RedactSensitive(log.Question)
	}
	log.RequestData = redactPayload(log.RequestData)
	log.ResponseData = redactPayload(log.ResponseData)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started || s.stopped {
		return fmt.Errorf("audit service not running")
	}

	select {
	case s.eventChan <- &Event{Log: log}:
		return nil
	default:
		if s.drops != nil {
			s.drops.ObserveAuditDrop()
		}
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("request_id", log.RequestID),
			zap.String("endpoint", log.Endpoint))
		return fmt.Errorf("audit event buffer full")
	}
}

// redactPayload runs on the encoded JSON. Placeholders contain no quotes or
// backslashes, so the document stays valid.
func redactPayload(data json.RawMessage) json.RawMessage {
	if len(data) == 0 {
		return data
	}
	return json.RawMessage(prompt.RedactSensitive(string(data)))
}

// worker processes events from the channel
func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for event := range s.eventChan {
		if err := s.processEvent(event); err != nil {
			s.logger.Error("failed to write api call log",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("request_id", event.Log.RequestID))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// processEvent writes one row with a fresh deadline; the originating
// request may be long gone.
func (s *Service) processEvent(event *Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	if err := s.repo.Insert(ctx, event.Log); err != nil {
		return fmt.Errorf("failed to insert api call log: %w", err)
	}
	return nil
}

// GetStats returns statistics about the audit service
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started && !s.stopped,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int  `json:"buffer_size"`
	PendingEvents int  `json:"pending_events"`
	WorkerCount   int  `json:"worker_count"`
	Started       bool `json:"started"`
}
