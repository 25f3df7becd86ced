package app

import (
	"context"
	"errors"
	"fmt"

	"radiohub/internal/acl"
	"radiohub/internal/affiliation"
	"radiohub/internal/hub"
	"radiohub/internal/logging"
	"radiohub/internal/metrics"
	"radiohub/internal/notify"
	"radiohub/internal/protocol"
	"radiohub/internal/registration"
	"radiohub/internal/schedule"
	"radiohub/internal/voice"
)

type BuildOptions struct {
	Context   context.Context
	Logger    *logging.Logger
	Metrics   *metrics.Registry
	Scheduler schedule.Scheduler
	Publisher protocol.Publisher
	Store     acl.Store
	Notifier  *notify.Notifier
	Stamper   protocol.Stamper
	Dice      voice.Dice
	Polarity  acl.Polarity
	Threshold int
	SystemRID string
}

// Console is the set of components that share the serialized loop.
type Console struct {
	Hub          *hub.Hub
	Voice        *voice.Engine
	Affiliations *affiliation.Registry
	Gatekeeper   *registration.Gatekeeper
	Router       *Router
}

type BuildError struct {
	Stage string
	Err   error
}

func (e BuildError) Error() string {
	if e.Err == nil {
		return e.Stage
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e BuildError) Unwrap() error {
	return e.Err
}

const (
	StageRegistration = "registration"
)

func Build(options BuildOptions) (*Console, error) {
	if options.Scheduler == nil {
		return nil, errors.New("scheduler is required")
	}
	if options.Publisher == nil {
		return nil, errors.New("publisher is required")
	}
	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	affiliations := affiliation.NewRegistry(affiliation.Options{
		Scheduler: options.Scheduler,
		Publisher: options.Publisher,
		Notifier:  options.Notifier,
		Stamper:   options.Stamper,
		Logger:    logger,
		Metrics:   options.Metrics,
	})

	sessions := hub.New(hub.Options{
		Publisher:    options.Publisher,
		Affiliations: affiliations,
		Logger:       logger,
		Registry:     options.Metrics,
	})

	engine := voice.NewEngine(voice.Options{
		Scheduler: options.Scheduler,
		Publisher: options.Publisher,
		Notifier:  options.Notifier,
		Stamper:   options.Stamper,
		Dice:      options.Dice,
		Logger:    logger,
		Registry:  options.Metrics,
	})

	gatekeeper, err := registration.NewGatekeeper(registration.Options{
		Store:     options.Store,
		Polarity:  options.Polarity,
		Threshold: options.Threshold,
		SystemRID: options.SystemRID,
		Scheduler: options.Scheduler,
		Publisher: options.Publisher,
		Notifier:  options.Notifier,
		Stamper:   options.Stamper,
		Context:   options.Context,
		Logger:    logger,
		Metrics:   options.Metrics,
	})
	if err != nil {
		return nil, BuildError{Stage: StageRegistration, Err: err}
	}

	console := &Console{
		Hub:          sessions,
		Voice:        engine,
		Affiliations: affiliations,
		Gatekeeper:   gatekeeper,
	}
	console.Router = NewRouter(RouterOptions{
		Console:   console,
		Scheduler: options.Scheduler,
		Notifier:  options.Notifier,
		Stamper:   options.Stamper,
		Logger:    logger,
	})
	return console, nil
}
