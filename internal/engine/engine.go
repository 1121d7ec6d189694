// Package engine runs the long-lived services of the dev server together.
package engine

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Service is one long-running part of the dev server.
type Service interface {
	Name() string
	Run(ctx context.Context) error
}

type funcService struct {
	name string
	run  func(ctx context.Context) error
}

func (s funcService) Name() string                  { return s.name }
func (s funcService) Run(ctx context.Context) error { return s.run(ctx) }

// Func adapts a function to a Service.
func Func(name string, run func(ctx context.Context) error) Service {
	return funcService{name: name, run: run}
}

// Engine manages and runs all services.
type Engine struct {
	services []Service
	logger   *logrus.Entry
}

// New creates a new Engine instance.
func New(logger *logrus.Entry) *Engine {
	return &Engine{logger: logger}
}

// Register adds a service to the engine.
func (e *Engine) Register(s Service) {
	e.services = append(e.services, s)
}

// Start runs every service and blocks until all have returned. The first
// service to fail cancels the others; its error is returned.
func (e *Engine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for _, s := range e.services {
		wg.Add(1)
		go func(svc Service) {
			defer wg.Done()
			logger := e.logger.WithField("service", svc.Name())
			logger.Debug("Starting service")
			err := svc.Run(ctx)
			if err != nil && ctx.Err() == nil {
				logger.WithError(err).Error("Service failed")
				once.Do(func() {
					firstErr = err
					cancel()
				})
				return
			}
			logger.Debug("Service stopped")
		}(s)
	}

	wg.Wait()
	return firstErr
}
