package push

import (
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
)

// Sender defines the capability for delivering one payload to one push
// endpoint. Credential setup and wire-protocol encryption live behind it.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real Sender backed by the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}
