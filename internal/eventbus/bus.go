// Package eventbus runs an embedded NATS server used for two purposes:
// broadcasting job-progress notifications to in-process subscribers, and
// mirroring completed audio into a JetStream object-store bucket as a
// best-effort durable replica of the on-disk file. Neither use requires
// or assumes an external NATS deployment.
package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-pipeline/internal/core"
)

const progressSubject = "tts.job.progress"

// ProgressEvent is published every time a job's status or progress
// changes. It carries only what a subscriber needs to render status,
// never the job's text or credentials.
type ProgressEvent struct {
	JobID           string         `json:"job_id"`
	Status          core.JobStatus `json:"status"`
	Progress        float64        `json:"progress"`
	TotalChunks     int            `json:"total_chunks"`
	CompletedChunks int            `json:"completed_chunks"`
	ErrorMessage    string         `json:"error_message,omitempty"`
}

// Bus wraps an embedded NATS server and a client connection to it.
type Bus struct {
	server *server.Server
	conn   *nats.Conn
	log    *logger.Logger
}

// Start boots an embedded NATS server on clientPort (0 picks a free
// port) and connects a client to it.
func Start(clientPort int, log *logger.Logger) (*Bus, error) {
	opts := &server.Options{
		Port:      clientPort,
		JetStream: true,
		NoLog:     true,
		NoSigs:    true,
	}

	natsServer, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("eventbus: failed to build embedded nats server: %w", err)
	}

	go natsServer.Start()

	if !natsServer.ReadyForConnections(5 * time.Second) {
		return nil, fmt.Errorf("eventbus: embedded nats server did not become ready")
	}

	conn, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		natsServer.Shutdown()

		return nil, fmt.Errorf("eventbus: failed to connect to embedded nats: %w", err)
	}

	return &Bus{server: natsServer, conn: conn, log: log}, nil
}

// Shutdown drains the client connection and stops the embedded server.
func (b *Bus) Shutdown() {
	if b.conn != nil {
		b.conn.Drain()
	}

	if b.server != nil {
		b.server.Shutdown()
	}
}

// Connected reports whether the embedded server is currently accepting
// connections, the one degradable dependency /api/health reports on.
func (b *Bus) Connected() bool {
	return b.server != nil && b.server.ReadyForConnections(0)
}

// PublishProgress implements jobs.ProgressPublisher.
func (b *Bus) PublishProgress(job core.Job) {
	event := ProgressEvent{
		JobID:           job.ID,
		Status:          job.Status,
		Progress:        job.Progress,
		TotalChunks:     job.TotalChunks,
		CompletedChunks: job.CompletedChunks,
		ErrorMessage:    job.ErrorMessage,
	}

	data, err := json.Marshal(event)
	if err != nil {
		if b.log != nil {
			b.log.Error("eventbus: failed to marshal progress event for job %s: %v", job.ID, err)
		}

		return
	}

	if err := b.conn.Publish(progressSubject, data); err != nil && b.log != nil {
		b.log.Error("eventbus: failed to publish progress event for job %s: %v", job.ID, err)
	}
}

// Subscribe registers fn to be called with every ProgressEvent published
// from this point on.
func (b *Bus) Subscribe(fn func(ProgressEvent)) (*nats.Subscription, error) {
	sub, err := b.conn.Subscribe(progressSubject, func(msg *nats.Msg) {
		var event ProgressEvent

		if err := json.Unmarshal(msg.Data, &event); err != nil {
			if b.log != nil {
				b.log.Error("eventbus: failed to unmarshal progress event: %v", err)
			}

			return
		}

		fn(event)
	})
	if err != nil {
		return nil, fmt.Errorf("eventbus: failed to subscribe: %w", err)
	}

	return sub, nil
}

// Conn exposes the underlying client connection for components (the
// object-store mirror) that need to construct their own JetStream
// context against the same embedded server.
func (b *Bus) Conn() *nats.Conn {
	return b.conn
}
