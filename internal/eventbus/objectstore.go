package eventbus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/book-expert/logger"
)

const mirrorBucket = "tts-audio-mirror"

// Mirror stores a best-effort durable replica of completed audio in a
// JetStream object-store bucket backed by the same embedded NATS server
// the progress bus runs on. It is never the primary source of truth: the
// on-disk file the audio store writes remains authoritative, and a
// mirror failure here is logged, never propagated to the job.
type Mirror struct {
	store jetstream.ObjectStore
	log   *logger.Logger
}

// NewMirror creates or binds the mirror bucket on conn's JetStream
// context.
func NewMirror(ctx context.Context, conn *nats.Conn, log *logger.Logger) (*Mirror, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("eventbus: failed to get jetstream context: %w", err)
	}

	store, err := js.ObjectStore(ctx, mirrorBucket)
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketNotFound) {
			return nil, fmt.Errorf("eventbus: failed to bind mirror bucket: %w", err)
		}

		store, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{Bucket: mirrorBucket})
		if err != nil {
			return nil, fmt.Errorf("eventbus: failed to create mirror bucket: %w", err)
		}
	}

	return &Mirror{store: store, log: log}, nil
}

// Mirror implements jobs.AudioMirror. Failures are logged, never
// returned, since replication is best-effort.
func (m *Mirror) Mirror(ctx context.Context, jobID string, data []byte) {
	_, err := m.store.Put(ctx, jetstream.ObjectMeta{Name: jobID}, bytes.NewReader(data))
	if err != nil && m.log != nil {
		m.log.Error("eventbus: failed to mirror audio for job %s: %v", jobID, err)
	}
}

// Fetch reads back a mirrored copy, used only for diagnostics/recovery,
// never by the normal serving path.
func (m *Mirror) Fetch(ctx context.Context, jobID string) ([]byte, error) {
	obj, err := m.store.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("eventbus: failed to fetch mirrored audio for job %s: %w", jobID, err)
	}

	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("eventbus: failed to read mirrored audio for job %s: %w", jobID, err)
	}

	return data, nil
}
