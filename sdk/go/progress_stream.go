package bandsweep

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fslongjin/bandsweep/pkg/model"
	"github.com/gorilla/websocket"
)

// ProgressStream receives server-sent progress for an in-flight deletion.
type ProgressStream struct {
	ws      *websocket.Conn
	updates chan ProgressEstimate

	errMu sync.Mutex
	err   error

	closeCh   chan struct{}
	closeOnce sync.Once
}

// StreamProgress opens the progress websocket for the band and scope. Servers
// without the endpoint answer the upgrade with an error status.
func (s *ContentService) StreamProgress(ctx context.Context, accessToken, bandKey string, scope DeleteScope) (*ProgressStream, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	q := tokenQuery(accessToken)
	q.Set("scope", string(scope.Kind))
	if scope.Kind == ScopeKeywordComments {
		q.Set("keyword", scope.NormalizedKeyword())
	}
	u := s.client.resolve(s.client.buildPath("bands", bandKey, "progress"), q)
	u.Scheme = wsScheme(u.Scheme)

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 15 * time.Second,
	}
	header := http.Header{}
	header.Set("User-Agent", s.client.userAgent)
	ws, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: "progress stream unavailable", Err: err}
		}
		return nil, fmt.Errorf("failed to dial progress stream: %w", err)
	}

	ps := &ProgressStream{
		ws:      ws,
		updates: make(chan ProgressEstimate, 8),
		closeCh: make(chan struct{}),
	}
	go ps.readLoop()
	return ps, nil
}

// Updates yields estimates until the stream ends. The channel is closed on
// a done frame, an error frame, or a read failure.
func (p *ProgressStream) Updates() <-chan ProgressEstimate {
	return p.updates
}

// Err returns the error that ended the stream, if any.
func (p *ProgressStream) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

// Close closes the stream and the underlying websocket connection.
func (p *ProgressStream) Close() error {
	p.closeOnce.Do(func() { close(p.closeCh) })
	return p.ws.Close()
}

func (p *ProgressStream) setErr(err error) {
	p.errMu.Lock()
	p.err = err
	p.errMu.Unlock()
}

func (p *ProgressStream) readLoop() {
	defer close(p.updates)

	for {
		_, message, err := p.ws.ReadMessage()
		if err != nil {
			select {
			case <-p.closeCh:
			default:
				p.setErr(err)
			}
			return
		}

		var msg ProgressMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case model.ProgressMessageUpdate:
			select {
			case p.updates <- msg.Estimate():
			case <-p.closeCh:
				return
			}
		case model.ProgressMessageDone:
			return
		case model.ProgressMessageError:
			p.setErr(fmt.Errorf("progress stream: %s", msg.Message))
			return
		}
	}
}

func wsScheme(httpScheme string) string {
	if httpScheme == "https" || httpScheme == "wss" {
		return "wss"
	}
	return "ws"
}
