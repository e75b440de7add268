package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
)

// Channel is the postgres NOTIFY channel carrying change events between API instances.
const Channel = "ensalamento_changes"

// PGNotifier publishes events through postgres NOTIFY so every listening instance sees them.
type PGNotifier struct {
	exec   core.DBExecutor
	logger core.Logger
}

var _ core.ChangePublisher = (*PGNotifier)(nil)

func NewPGNotifier(exec core.DBExecutor, logger core.Logger) *PGNotifier {
	return &PGNotifier{exec: exec, logger: logger}
}

func (n *PGNotifier) Publish(evt core.ChangeEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		n.logger.Error(fmt.Sprintf("realtime: encoding event: %v", err), err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err = n.exec.ExecContext(ctx, "SELECT pg_notify($1, $2)", Channel, string(payload)); err != nil {
		n.logger.Error(fmt.Sprintf("realtime: notifying %s: %v", Channel, err), err)
	}
}

// Listen relays the events notified on Channel to hub until ctx is done.
func Listen(ctx context.Context, dsn string, hub *Hub, logger core.Logger) error {
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Error(fmt.Sprintf("realtime: listener event %d: %v", ev, err), err)
		}
	})
	if err := listener.Listen(Channel); err != nil {
		_ = listener.Close()
		return errors.Wrapf(err, "listening on %s", Channel)
	}

	go func() {
		defer func() { _ = listener.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				if n == nil { // connection re-established, events may have been lost
					continue
				}
				var evt core.ChangeEvent
				if err := json.Unmarshal([]byte(n.Extra), &evt); err != nil {
					logger.Warn(fmt.Sprintf("realtime: bad payload on %s: %v", Channel, err))
					continue
				}
				hub.Publish(evt)
			case <-time.After(90 * time.Second):
				go func() { _ = listener.Ping() }()
			}
		}
	}()
	return nil
}
