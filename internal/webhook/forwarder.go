// Package webhook forwards inbound messages to an HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"wagate/internal/domain"
)

// DefaultWorkers is the number of concurrent deliveries Run keeps in flight.
const DefaultWorkers = 4

// DeliveryHeader carries a unique id per POST so receivers can dedupe.
const DeliveryHeader = "X-Wagate-Delivery"

// Payload is the JSON body posted for each inbound message.
type Payload struct {
	Phone     string `json:"phone"`
	Message   string `json:"message"`
	ID        string `json:"id,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Forwarder posts MessageReceived events to URL.
type Forwarder struct {
	URL  string
	HTTP *http.Client
	// Workers bounds concurrent deliveries. Zero means DefaultWorkers.
	Workers int
	log     *logrus.Entry
}

// New returns a Forwarder with a client bounded by timeout.
func New(url string, timeout time.Duration, log *logrus.Entry) *Forwarder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = logrus.WithField("component", "webhook")
	}
	return &Forwarder{URL: url, HTTP: &http.Client{Timeout: timeout}, log: log}
}

// Run forwards every MessageReceived from events until ctx is done or the
// channel closes. Deliveries run on a fixed pool of workers so one slow
// endpoint call does not stall the subscription. Failures are logged and
// dropped. Run returns after in-flight deliveries finish.
func (f *Forwarder) Run(ctx context.Context, events <-chan domain.Event) {
	workers := f.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	jobs := make(chan domain.InboundMessage)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range jobs {
				f.deliverLogged(ctx, msg)
			}
		}()
	}
	defer wg.Wait()
	defer close(jobs)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			received, isMsg := ev.(domain.MessageReceived)
			if !isMsg {
				continue
			}
			select {
			case jobs <- received.Message:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (f *Forwarder) deliverLogged(ctx context.Context, msg domain.InboundMessage) {
	if err := f.Deliver(ctx, msg); err != nil {
		f.log.WithFields(logrus.Fields{
			"from": msg.SenderID,
			"id":   msg.ID,
		}).WithError(err).Warn("Webhook delivery failed")
	}
}

// Deliver posts one message.
func (f *Forwarder) Deliver(ctx context.Context, msg domain.InboundMessage) error {
	body := Payload{
		Phone:   msg.SenderID,
		Message: msg.Body,
		ID:      string(msg.ID),
	}
	if !msg.Timestamp.IsZero() {
		body.Timestamp = msg.Timestamp.Unix()
	}
	return f.post(ctx, body)
}

func (f *Forwarder) post(ctx context.Context, in any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.URL, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(DeliveryHeader, uuid.NewString())
	resp, err := f.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook post %s: %s", f.URL, resp.Status)
	}
	return nil
}
