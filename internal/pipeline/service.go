package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/narravox/narravox/internal/assemble"
	"github.com/narravox/narravox/internal/bus"
	"github.com/narravox/narravox/internal/extract"
	"github.com/narravox/narravox/internal/library"
	"github.com/narravox/narravox/internal/protocol"
	"github.com/nats-io/nats.go"
)

// Service exposes the pipeline over the bus: front ends publish a
// BookRequest and receive JobProgress after every chunk plus a terminal
// JobDone. One goroutine per job; cancellation arrives on its own subject.
type Service struct {
	bus       *bus.Client
	pipeline  *Pipeline
	extractor extract.Extractor
	logger    *slog.Logger

	subRequest *nats.Subscription
	subCancel  *nats.Subscription
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

func NewService(parent context.Context, busClient *bus.Client, p *Pipeline, extractor extract.Extractor, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		bus:       busClient,
		pipeline:  p,
		extractor: extractor,
		logger:    log.With(slog.String("component", "pipeline-service")),
		ctx:       ctx,
		cancel:    cancel,
		running:   make(map[string]context.CancelFunc),
	}
}

func (s *Service) Start() error {
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectBookRequest, s.handleRequest)
	if err != nil {
		return err
	}
	s.subRequest = sub

	cancelSub, err := s.bus.Conn().Subscribe(protocol.SubjectJobCancel, s.handleCancel)
	if err != nil {
		s.subRequest.Drain()
		return err
	}
	s.subCancel = cancelSub
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.subRequest != nil {
		_ = s.subRequest.Drain()
	}
	if s.subCancel != nil {
		_ = s.subCancel.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return s.subRequest != nil && s.subCancel != nil }

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.BookRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode book request", slogError(err))
		return
	}
	if req.SourcePath == "" {
		s.logger.Warn("book request missing source path")
		return
	}
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}

	jobCtx, cancelJob := context.WithCancel(s.ctx)
	s.mu.Lock()
	s.running[req.JobID] = cancelJob
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			cancelJob()
			s.mu.Lock()
			delete(s.running, req.JobID)
			s.mu.Unlock()
		}()
		s.runJob(jobCtx, req)
	}()
}

func (s *Service) handleCancel(msg *nats.Msg) {
	var req protocol.JobCancel
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode cancel request", slogError(err))
		return
	}
	s.mu.Lock()
	cancelJob, ok := s.running[req.JobID]
	s.mu.Unlock()
	if !ok {
		s.logger.Warn("cancel for unknown job", slog.String("job", req.JobID))
		return
	}
	s.logger.Info("cancelling job", slog.String("job", req.JobID))
	cancelJob()
}

func (s *Service) runJob(ctx context.Context, req protocol.BookRequest) {
	book, err := s.extractor.Extract(ctx, req.SourcePath)
	if err != nil {
		s.logger.Warn("extraction failed", slog.String("job", req.JobID), slogError(err))
		s.publishDone(protocol.JobDone{JobID: req.JobID, Status: library.StatusFailed, Error: err.Error()})
		return
	}
	if req.Title != "" {
		book.Metadata.Title = req.Title
	}
	if req.Author != "" {
		book.Metadata.Author = req.Author
	}

	opts := Options{
		JobID:     req.JobID,
		Voice:     req.Voice,
		Format:    req.Format,
		OutputDir: req.OutputDir,
		Metadata:  assemble.Metadata{Title: book.Metadata.Title, Artist: book.Metadata.Author},
		Progress: func(done, total int, chapter string) {
			s.publishProgress(protocol.JobProgress{
				JobID:     req.JobID,
				Done:      done,
				Total:     total,
				Chapter:   chapter,
				Timestamp: time.Now().UTC(),
			})
		},
	}

	manifest, err := s.pipeline.Run(ctx, book, opts)
	done := protocol.JobDone{
		JobID:        req.JobID,
		MergedPath:   manifest.MergedPath,
		ChapterPaths: manifest.ChapterPaths,
		Timestamp:    time.Now().UTC(),
	}
	switch {
	case err != nil && !errors.Is(err, context.Canceled):
		done.Status = library.StatusFailed
		done.Error = err.Error()
	case manifest.Cancelled || errors.Is(err, context.Canceled):
		done.Status = library.StatusCancelled
	default:
		done.Status = library.StatusCompleted
	}
	s.publishDone(done)
}

func (s *Service) publishProgress(evt protocol.JobProgress) {
	data, err := json.Marshal(evt)
	if err != nil {
		s.logger.Warn("failed to marshal progress event", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectJobProgress, data); err != nil {
		s.logger.Warn("failed to publish progress event", slogError(err))
	}
}

func (s *Service) publishDone(evt protocol.JobDone) {
	data, err := json.Marshal(evt)
	if err != nil {
		s.logger.Warn("failed to marshal done event", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectJobDone, data); err != nil {
		s.logger.Warn("failed to publish done event", slogError(err))
	}
}
