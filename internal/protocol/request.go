package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Action names accepted on the wire.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPing        = "ping"
	ActionGetProducts = "get_products"
	ActionAddProduct  = "add_product"
	ActionNotify      = "notify"
)

// Request is a decoded inbound frame. The concrete type is one of Subscribe,
// Unsubscribe, Ping, GetProducts, AddProduct, Notify or Unknown.
type Request interface {
	Action() string
	isRequest()
}

// Subscribe adds the sender to a channel.
type Subscribe struct {
	Channel string
}

// Unsubscribe removes the sender from a channel.
type Unsubscribe struct {
	Channel string
}

// Ping asks for an application-level pong.
type Ping struct{}

// GetProducts lists every record in the catalog.
type GetProducts struct{}

// AddProduct inserts a product. Field names are normalized by the dispatcher.
type AddProduct struct {
	Product map[string]any
}

// Notify publishes Payload to every other subscriber of Channel.
type Notify struct {
	Channel string
	Payload any
}

// Unknown carries an action the server does not recognise.
type Unknown struct {
	Name string
}

func (Subscribe) Action() string   { return ActionSubscribe }
func (Unsubscribe) Action() string { return ActionUnsubscribe }
func (Ping) Action() string        { return ActionPing }
func (GetProducts) Action() string { return ActionGetProducts }
func (AddProduct) Action() string  { return ActionAddProduct }
func (Notify) Action() string      { return ActionNotify }
func (u Unknown) Action() string   { return u.Name }

func (Subscribe) isRequest()   {}
func (Unsubscribe) isRequest() {}
func (Ping) isRequest()        {}
func (GetProducts) isRequest() {}
func (AddProduct) isRequest()  {}
func (Notify) isRequest()      {}
func (Unknown) isRequest()     {}

func (r Subscribe) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"action": ActionSubscribe, "channel": r.Channel})
}

func (r Unsubscribe) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"action": ActionUnsubscribe, "channel": r.Channel})
}

func (Ping) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"action": ActionPing})
}

func (GetProducts) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"action": ActionGetProducts})
}

func (r AddProduct) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"action": ActionAddProduct, "product": r.Product})
}

func (r Notify) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"action": ActionNotify, "channel": r.Channel, "payload": r.Payload})
}

func (r Unknown) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"action": r.Name})
}

// DecodeError reports a frame that could not be parsed, even after repair,
// into an object with a string action.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "decode: " + e.Reason
}

// ValidationError reports a recognised action missing a required field.
type ValidationError struct {
	Action string
	Field  string
}

func (e *ValidationError) Error() string {
	return "missing " + e.Field
}

// linePrefixes are non-JSON prefixes some clients prepend to every frame.
var linePrefixes = []string{"data:", "message:", "msg:", "json:"}

const bom = "\uFEFF"

// Decode parses one inbound text frame. Strict JSON is tried first; if that
// fails the repair chain in repair.go is consulted.
func Decode(raw []byte) (Request, error) {
	text := clean(raw)
	if text == "" {
		return nil, &DecodeError{Reason: "empty frame"}
	}

	obj, ok := parseObject(text)
	if !ok {
		obj, ok = Repair(text)
	}
	if !ok {
		return nil, &DecodeError{Reason: "invalid json"}
	}

	return FromObject(obj)
}

// FromObject builds a Request from an already parsed JSON object.
func FromObject(obj map[string]any) (Request, error) {
	action, ok := obj["action"].(string)
	if !ok || action == "" {
		return nil, &DecodeError{Reason: "missing action"}
	}

	switch action {
	case ActionSubscribe:
		ch, err := channelField(action, obj)
		if err != nil {
			return nil, err
		}
		return Subscribe{Channel: ch}, nil
	case ActionUnsubscribe:
		ch, err := channelField(action, obj)
		if err != nil {
			return nil, err
		}
		return Unsubscribe{Channel: ch}, nil
	case ActionPing:
		return Ping{}, nil
	case ActionGetProducts:
		return GetProducts{}, nil
	case ActionAddProduct:
		product, err := productField(obj)
		if err != nil {
			return nil, err
		}
		return AddProduct{Product: product}, nil
	case ActionNotify:
		ch, err := channelField(action, obj)
		if err != nil {
			return nil, err
		}
		payload, present := obj["payload"]
		if !present || payload == nil {
			return nil, &ValidationError{Action: action, Field: "payload"}
		}
		return Notify{Channel: ch, Payload: payload}, nil
	default:
		return Unknown{Name: action}, nil
	}
}

func channelField(action string, obj map[string]any) (string, error) {
	ch, _ := obj["channel"].(string)
	if ch == "" {
		return "", &ValidationError{Action: action, Field: "channel"}
	}
	return ch, nil
}

// productField accepts the product either as an object or as a string holding
// a JSON object.
func productField(obj map[string]any) (map[string]any, error) {
	switch p := obj["product"].(type) {
	case map[string]any:
		if len(p) == 0 {
			return nil, &ValidationError{Action: ActionAddProduct, Field: "product"}
		}
		return p, nil
	case string:
		inner, ok := parseObject(strings.TrimSpace(p))
		if !ok || len(inner) == 0 {
			return nil, &ValidationError{Action: ActionAddProduct, Field: "product"}
		}
		return inner, nil
	default:
		return nil, &ValidationError{Action: ActionAddProduct, Field: "product"}
	}
}

func clean(raw []byte) string {
	raw = bytes.ReplaceAll(raw, []byte{0}, nil)
	text := strings.TrimPrefix(string(raw), bom)
	text = strings.TrimSpace(text)

	lower := strings.ToLower(text)
	for _, p := range linePrefixes {
		if strings.HasPrefix(lower, p) {
			text = strings.TrimSpace(text[len(p):])
			break
		}
	}
	return text
}

// parseObject is the strict path: the text must be exactly one JSON object.
// Numbers are kept as json.Number so integers survive a round trip.
func parseObject(text string) (map[string]any, bool) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return obj, true
}

// String renders a request for logs.
func String(r Request) string {
	switch v := r.(type) {
	case Subscribe:
		return fmt.Sprintf("subscribe(%s)", v.Channel)
	case Unsubscribe:
		return fmt.Sprintf("unsubscribe(%s)", v.Channel)
	case Notify:
		return fmt.Sprintf("notify(%s)", v.Channel)
	default:
		return r.Action()
	}
}
