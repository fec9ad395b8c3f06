// Package dispatch routes decoded client requests to the hub and the catalog
// store and sends each client its reply.
package dispatch

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/catalog"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/metrics"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/protocol"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/ws"
)

// Error replies.
const (
	ErrInvalidMessage     = "invalid message"
	ErrUnrecognizedAction = "unrecognized action"
	ErrLoadProducts       = "failed to load products"
	ErrAddProduct         = "failed to add product"
	ErrInvalidProduct     = "invalid product"
)

// Hub is the part of *ws.Hub the dispatcher drives.
type Hub interface {
	SendTo(c *ws.Client, msg any) error
	Subscribe(c *ws.Client, channel string) error
	Unsubscribe(c *ws.Client, channel string)
	Publish(channel string, msg any, exclude *ws.Client) (int, error)
	Broadcast(msg any, exclude *ws.Client) (int, error)
}

// Mirror forwards a locally delivered notification to other instances.
type Mirror interface {
	Mirror(channel string, payload any) error
}

// Dispatcher handles one request at a time per client. It holds no
// per-client state.
type Dispatcher struct {
	hub        Hub
	store      catalog.Store
	normalizer *catalog.Normalizer
	mirror     Mirror
	timeout    time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMirror relays notify requests through m.
func WithMirror(m Mirror) Option {
	return func(d *Dispatcher) { d.mirror = m }
}

// WithTimeout bounds the storage work of a single request.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

func New(hub Hub, store catalog.Store, normalizer *catalog.Normalizer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		hub:        hub,
		store:      store,
		normalizer: normalizer,
		timeout:    10 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.normalizer == nil {
		d.normalizer = catalog.DefaultNormalizer(nil)
	}
	return d
}

// Dispatch decodes raw, performs the request and replies to c. Fan-out to
// other clients happens after the reply is queued.
func (d *Dispatcher) Dispatch(ctx context.Context, c *ws.Client, raw []byte) {
	req, err := protocol.Decode(raw)
	if err != nil {
		d.reply(c, decodeFailure(err), "decode")
		log.Printf("dispatch: client %s sent bad frame: %v", c.ID, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	switch r := req.(type) {
	case protocol.Subscribe:
		metrics.Request(r.Action())
		if err := d.hub.Subscribe(c, r.Channel); err != nil {
			return
		}
		d.reply(c, protocol.Subscribed(r.Channel), "")
		log.Printf("dispatch: client %s subscribed to %s", c.ID, r.Channel)

	case protocol.Unsubscribe:
		metrics.Request(r.Action())
		d.hub.Unsubscribe(c, r.Channel)
		d.reply(c, protocol.Unsubscribed(r.Channel), "")
		log.Printf("dispatch: client %s unsubscribed from %s", c.ID, r.Channel)

	case protocol.Ping:
		metrics.Request(r.Action())
		d.reply(c, protocol.Pong(), "")

	case protocol.GetProducts:
		metrics.Request(r.Action())
		d.getProducts(ctx, c)

	case protocol.AddProduct:
		metrics.Request(r.Action())
		d.addProduct(ctx, c, r)

	case protocol.Notify:
		metrics.Request(r.Action())
		d.notify(c, r)

	case protocol.Unknown:
		metrics.Request("unknown")
		d.reply(c, protocol.ErrorDetail(ErrUnrecognizedAction, r.Name), "unknown_action")
		log.Printf("dispatch: client %s sent unrecognized action %q", c.ID, r.Name)

	default:
		log.Printf("dispatch: client %s request %T has no handler", c.ID, r)
	}
}

func (d *Dispatcher) getProducts(ctx context.Context, c *ws.Client) {
	records, err := d.store.QueryAll(ctx)
	if err != nil {
		log.Printf("dispatch: client %s get_products failed: %v", c.ID, err)
		d.reply(c, protocol.ErrorDetail(ErrLoadProducts, err.Error()), "storage")
		return
	}
	d.reply(c, protocol.Products(records), "")
}

func (d *Dispatcher) addProduct(ctx context.Context, c *ws.Client, r protocol.AddProduct) {
	fields, err := d.normalizer.Normalize(r.Product)
	if err != nil {
		d.reply(c, protocol.ErrorDetail(ErrInvalidProduct, err.Error()), "validation")
		return
	}

	record, err := d.store.Insert(ctx, fields)
	if err != nil {
		log.Printf("dispatch: client %s add_product failed: %v", c.ID, err)
		d.reply(c, protocol.ErrorDetail(ErrAddProduct, err.Error()), "storage")
		return
	}

	d.reply(c, protocol.ProductAdded(record), "")
	n, err := d.hub.Broadcast(protocol.NewProduct(record), c)
	if err != nil {
		log.Printf("dispatch: client %s new_product broadcast failed: %v", c.ID, err)
		return
	}
	log.Printf("dispatch: client %s added product, announced to %d clients", c.ID, n)
}

func (d *Dispatcher) notify(c *ws.Client, r protocol.Notify) {
	n, err := d.hub.Publish(r.Channel, protocol.Notification(r.Channel, r.Payload), c)
	if err != nil {
		log.Printf("dispatch: client %s notify on %s failed: %v", c.ID, r.Channel, err)
		d.reply(c, protocol.ErrorDetail(ErrInvalidMessage, err.Error()), "encode")
		return
	}
	if d.mirror != nil {
		if err := d.mirror.Mirror(r.Channel, r.Payload); err != nil {
			log.Printf("dispatch: client %s notify on %s not relayed: %v", c.ID, r.Channel, err)
		}
	}

	d.reply(c, protocol.NotifyAck(r.Channel), "")
	log.Printf("dispatch: client %s notified %s (%d local subscribers)", c.ID, r.Channel, n)
}

// reply queues msg for c. A non-empty kind counts the reply as an error.
func (d *Dispatcher) reply(c *ws.Client, msg protocol.Message, kind string) {
	if kind != "" {
		metrics.RequestError(kind)
	}
	if err := d.hub.SendTo(c, msg); err != nil && !errors.Is(err, ws.ErrClientClosed) {
		log.Printf("dispatch: reply to client %s failed: %v", c.ID, err)
	}
}

func decodeFailure(err error) protocol.Message {
	var ve *protocol.ValidationError
	if errors.As(err, &ve) {
		return protocol.Error(ve.Error())
	}
	var de *protocol.DecodeError
	if errors.As(err, &de) {
		return protocol.ErrorDetail(ErrInvalidMessage, de.Reason)
	}
	return protocol.ErrorDetail(ErrInvalidMessage, err.Error())
}
