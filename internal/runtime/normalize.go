package runtime

import (
	"context"
	"time"

	"github.com/aretw0/espalier/pkg/domain"
)

// normalize wraps a pipeline outcome into the transport envelope.
// A plain state becomes plain/redirect depending on the marker; an envelope
// built by a handler passes through completely unchanged.
func normalize(out domain.Outcome, plain domain.Disposition) domain.Envelope {
	switch v := out.(type) {
	case *domain.State:
		if v.Redirected() {
			return domain.Envelope{
				Disposition: domain.DispositionRedirect,
				Target:      v.Redirect.Target,
				State:       v,
			}
		}
		return domain.Envelope{Disposition: plain, State: v}
	case *domain.Envelope:
		return *v
	default:
		// Outcome is sealed; only nil can land here.
		return domain.Envelope{Disposition: plain}
	}
}

func (p *Pipeline) emitMount(ctx context.Context, action string, env domain.Envelope, took time.Duration) {
	if p.hooks.OnMount == nil {
		return
	}
	p.hooks.OnMount(ctx, &domain.MountEvent{
		EventBase:  p.eventBase(domain.EventMounted),
		Action:     action,
		Redirected: env.Disposition == domain.DispositionRedirect,
		Duration:   took,
	})
}

func (p *Pipeline) emitDispatch(ctx context.Context, event string, env domain.Envelope, took time.Duration) {
	if p.hooks.OnDispatch == nil {
		return
	}
	p.hooks.OnDispatch(ctx, &domain.DispatchEventInfo{
		EventBase:  p.eventBase(domain.EventDispatched),
		Event:      event,
		Redirected: env.Disposition == domain.DispositionRedirect,
		Duration:   took,
	})
}

func (p *Pipeline) emitReject(ctx context.Context, kind domain.RejectKind, raw string) {
	if p.hooks.OnReject == nil {
		return
	}
	p.hooks.OnReject(ctx, &domain.RejectEventInfo{
		EventBase: p.eventBase(domain.EventRejected),
		Kind:      kind,
		RawName:   domain.TruncateName(raw),
	})
}

func (p *Pipeline) eventBase(t domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp:  time.Now(),
		Type:       t,
		Controller: p.controller,
	}
}
