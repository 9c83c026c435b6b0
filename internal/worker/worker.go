// Package worker consumes transfer requests from the queue, runs the
// transfers and reports their outcome. Each delivery is handled on its
// own goroutine so one slow transfer never blocks the rest of the
// prefetch window.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"github.com/viaa/transfer-service/internal/events"
	"github.com/viaa/transfer-service/internal/message"
	"github.com/viaa/transfer-service/internal/remote"
	"github.com/viaa/transfer-service/internal/secrets"
	"github.com/viaa/transfer-service/internal/transfer"
)

// Runner executes one transfer to completion.
type Runner interface {
	Run(ctx context.Context, desc transfer.Descriptor, destination secrets.Credentials) error
}

// EventProducer publishes outcome events on a topic.
type EventProducer interface {
	Produce(ctx context.Context, topic string, payload []byte) error
}

// TransferRunner is the production Runner. It dials the destination
// with per-request credentials and shares one size resolver across all
// transfers.
type TransferRunner struct {
	SSHPort int
	Sizer   transfer.Sizer
	Options transfer.Options
	Log     zerolog.Logger
}

func (r *TransferRunner) Run(ctx context.Context, desc transfer.Descriptor, destination secrets.Credentials) error {
	dialer := remote.NewDialer(remote.Config{
		Host:     desc.DestinationHost,
		Port:     r.SSHPort,
		Username: destination.Username,
		Password: destination.Password,
	})
	return transfer.New(desc, dialer, r.Sizer, r.Options, r.Log).Run(ctx)
}

// Worker ties the queue consumer to the transfer runner.
type Worker struct {
	runner   Runner
	producer EventProducer
	resolver secrets.Resolver
	log      zerolog.Logger

	wg sync.WaitGroup
}

// New creates a Worker.
func New(runner Runner, producer EventProducer, resolver secrets.Resolver, log zerolog.Logger) *Worker {
	return &Worker{
		runner:   runner,
		producer: producer,
		resolver: resolver,
		log:      log,
	}
}

// Start consumes deliveries until the channel closes or ctx is
// cancelled, then waits for in-flight handlers to finish. Cancelling
// ctx stops accepting new deliveries; running transfers complete.
func (w *Worker) Start(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			return
		case delivery, ok := <-deliveries:
			if !ok {
				w.wg.Wait()
				return
			}
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				w.handle(ctx, delivery)
			}()
		}
	}
}

func (w *Worker) handle(ctx context.Context, delivery amqp.Delivery) {
	// Shutdown only stops the intake of new deliveries. A transfer
	// already in flight runs to completion, so detach from the signal
	// context before touching anything cancellable.
	ctx = context.WithoutCancel(ctx)

	req, err := message.Parse(delivery.Body)
	if err != nil {
		// Without a valid request there is no outcome topic to report
		// on. Drop the message.
		w.log.Error().Err(err).Msg("dropping invalid message")
		w.nack(delivery)
		return
	}

	log := w.log.With().
		Str("source", req.Source.URL).
		Str("destination", req.Destination.Path).
		Str("host", req.Destination.Host).
		Logger()

	destination, err := secrets.Resolve(ctx, w.resolver, req.Destination.Credentials)
	if err != nil {
		log.Error().Err(err).Str("path", req.Destination.Credentials).
			Msg("resolving destination credentials failed")
		w.fail(ctx, req, delivery, err)
		return
	}

	desc := transfer.Descriptor{
		SourceURL:       req.Source.URL,
		HostHeader:      req.HostHeader(),
		DestinationHost: req.Destination.Host,
		DestinationPath: req.Destination.Path,
	}
	if req.Source.Credentials != "" {
		source, err := secrets.Resolve(ctx, w.resolver, req.Source.Credentials)
		if err != nil {
			log.Error().Err(err).Str("path", req.Source.Credentials).
				Msg("resolving source credentials failed")
			w.fail(ctx, req, delivery, err)
			return
		}
		desc.SourceCredentials = &source
	}

	log.Info().Msg("starting transfer")
	if err := w.runner.Run(ctx, desc, destination); err != nil {
		log.Error().Err(err).Msg("transfer failed")
		w.fail(ctx, req, delivery, err)
		return
	}

	log.Info().Msg("transfer successful")
	w.publish(ctx, req, "Transfer successful", events.OutcomeSuccess)
	if err := delivery.Ack(false); err != nil {
		log.Error().Err(err).Msg("ack failed")
	}
}

func (w *Worker) fail(ctx context.Context, req *message.TransferRequest, delivery amqp.Delivery, cause error) {
	w.publish(ctx, req, fmt.Sprintf("Transfer failed - %s", cause), events.OutcomeFail)
	w.nack(delivery)
}

func (w *Worker) publish(ctx context.Context, req *message.TransferRequest, msg string, outcome events.Outcome) {
	payload, err := events.New(req, msg, outcome).Marshal()
	if err != nil {
		w.log.Error().Err(err).Msg("marshalling outcome event failed")
		return
	}
	if err := w.producer.Produce(ctx, req.Outcome.PulsarTopic, payload); err != nil {
		w.log.Error().Err(err).
			Str("topic", req.Outcome.PulsarTopic).
			Msg("publishing outcome event failed")
	}
}

func (w *Worker) nack(delivery amqp.Delivery) {
	if err := delivery.Nack(false, false); err != nil {
		w.log.Error().Err(err).Msg("nack failed")
	}
}
