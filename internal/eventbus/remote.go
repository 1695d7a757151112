package eventbus

import (
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/moosync/moosyncd/internal/logger"
)

// remoteBridge republishes select topics onto a NATS subject namespace so an
// out-of-process scrobble dispatcher can subscribe without linking this
// process. This is a domain-stack enrichment (§4.12a), not required by
// §4.12, and only runs when a NATS URL is configured.
type remoteBridge struct {
	nc      *nats.Conn
	topics  map[string]bool
}

const natsSubjectPrefix = "moosync.events."

var bridgedTopics = map[string]bool{
	TopicProviderStatus:  true,
	TopicLibrarySong:     true,
	TopicLibraryPlaylist: true,
}

// AttachRemote connects to a NATS server and begins republishing
// provider.status and library.* events under "moosync.events.<topic>".
// Failure to connect is logged and non-fatal: the in-process bus keeps
// working without the remote bridge.
func (b *Bus) AttachRemote(url string) {
	nc, err := nats.Connect(url, nats.Name("moosyncd-eventbus"))
	if err != nil {
		logger.EventBus().Warn().Err(err).Str("url", url).Msg("NATS bridge disabled: connect failed")
		return
	}

	b.mu.Lock()
	b.remote = &remoteBridge{nc: nc, topics: bridgedTopics}
	b.mu.Unlock()

	logger.EventBus().Info().Str("url", url).Msg("NATS event bridge attached")
}

func (r *remoteBridge) publish(topic string, payload any) {
	if !r.topics[topic] {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = r.nc.Publish(natsSubjectPrefix+topic, data)
}

// DetachRemote closes the NATS connection, if any.
func (b *Bus) DetachRemote() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remote != nil {
		b.remote.nc.Close()
		b.remote = nil
	}
}
