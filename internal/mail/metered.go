package mail

import "context"

// MeteredMailer records delivery latency and outcome around the inner
// mailer. The observe func comes from the metrics layer so this package
// stays free of a prometheus dependency.
type MeteredMailer struct {
	inner   Mailer
	observe func(fn func() error) error
}

func NewMeteredMailer(inner Mailer, observe func(fn func() error) error) *MeteredMailer {
	return &MeteredMailer{inner: inner, observe: observe}
}

func (m *MeteredMailer) Send(ctx context.Context, msg Message) error {
	return m.observe(func() error {
		return m.inner.Send(ctx, msg)
	})
}
