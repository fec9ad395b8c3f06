package protocol

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Outbound message types.
const (
	TypeSubscribed   = "subscribed"
	TypeUnsubscribed = "unsubscribed"
	TypePong         = "pong"
	TypeProducts     = "products"
	TypeAddProduct   = "add_product"
	TypeNewProduct   = "new_product"
	TypeNotification = "notification"
	TypeNotifyAck    = "notify_ack"
	TypeStats        = "stats"
	TypeClientsCount = "clients_count"

	StatusSuccess = "success"
)

// Message is an outbound frame. Exactly one of Type or Error is set.
type Message struct {
	Type    string `json:"type,omitempty"`
	Status  string `json:"status,omitempty"`
	Channel string `json:"channel,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Stats is the periodic server statistics event.
type Stats struct {
	Type          string  `json:"type"`
	TotalClients  int     `json:"total_clients"`
	TotalChannels int     `json:"total_channels"`
	Timestamp     float64 `json:"timestamp"`
}

// ClientsCount is sent whenever a client connects or disconnects.
type ClientsCount struct {
	Type string           `json:"type"`
	Data ClientsCountData `json:"data"`
}

// ClientsCountData is the payload of a clients_count event.
type ClientsCountData struct {
	Count         int    `json:"count"`
	ClientsOnline int    `json:"clientsOnline"`
	Timestamp     string `json:"timestamp"`
}

// Subscribed confirms a subscription to channel.
func Subscribed(channel string) Message {
	return Message{Type: TypeSubscribed, Channel: channel}
}

// Unsubscribed confirms channel was left.
func Unsubscribed(channel string) Message {
	return Message{Type: TypeUnsubscribed, Channel: channel}
}

// Pong answers an application-level ping.
func Pong() Message {
	return Message{Type: TypePong}
}

// Products wraps the full catalog listing. A nil slice is sent as [].
func Products[T any](records []T) Message {
	if records == nil {
		records = []T{}
	}
	return Message{Type: TypeProducts, Data: records}
}

// ProductAdded acknowledges an add_product request with the stored record.
func ProductAdded(record any) Message {
	return Message{Type: TypeAddProduct, Status: StatusSuccess, Data: []any{record}}
}

// NewProduct announces a record that was not seen before.
func NewProduct(record any) Message {
	return Message{Type: TypeNewProduct, Data: []any{record}}
}

// Notification carries a notify payload to the subscribers of channel.
func Notification(channel string, payload any) Message {
	return Message{Type: TypeNotification, Channel: channel, Data: payload}
}

// NotifyAck confirms a notify request was published.
func NotifyAck(channel string) Message {
	return Message{Type: TypeNotifyAck, Channel: channel}
}

// Error is an error reply with no type field.
func Error(msg string) Message {
	return Message{Error: msg}
}

// ErrorDetail is an error reply with the underlying reason attached.
func ErrorDetail(msg, detail string) Message {
	return Message{Error: msg, Detail: detail}
}

// NewStats builds a stats event stamped with now in fractional seconds.
func NewStats(clients, channels int, now time.Time) Stats {
	return Stats{
		Type:          TypeStats,
		TotalClients:  clients,
		TotalChannels: channels,
		Timestamp:     float64(now.UnixMilli()) / 1000,
	}
}

// NewClientsCount builds a clients_count event. count is reported in both
// count and clientsOnline.
func NewClientsCount(count int, now time.Time) ClientsCount {
	return ClientsCount{
		Type: TypeClientsCount,
		Data: ClientsCountData{
			Count:         count,
			ClientsOnline: count,
			Timestamp:     now.UTC().Format(time.RFC3339Nano),
		},
	}
}

// Encode serializes an outbound event. Map keys are emitted in sorted order,
// and fixed-point decimals inside Message.Data are flattened to float64 first.
func Encode(v any) ([]byte, error) {
	switch m := v.(type) {
	case Message:
		m.Data = JSONCompatible(m.Data)
		v = m
	case *Message:
		cp := *m
		cp.Data = JSONCompatible(cp.Data)
		v = cp
	}
	return json.Marshal(v)
}

// JSONCompatible returns v with every decimal value replaced by its float64
// approximation. Maps and slices are copied; other values are returned as is.
func JSONCompatible(v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.InexactFloat64()
	case *decimal.Decimal:
		if x == nil {
			return nil
		}
		return x.InexactFloat64()
	case decimal.NullDecimal:
		if !x.Valid {
			return nil
		}
		return x.Decimal.InexactFloat64()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = JSONCompatible(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = JSONCompatible(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = JSONCompatible(val)
		}
		return out
	default:
		return v
	}
}
