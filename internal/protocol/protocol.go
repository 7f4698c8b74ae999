// Package protocol defines the realtime events exchanged between the hub and its
// viewers, and the HTTP request bodies they share. Every payload has a strict schema
// that is checked when a frame is decoded, so nothing downstream trusts raw shapes.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/psidex/graphmind/internal/graph"
)

// Event names. Directions are from the viewer's point of view.
const (
	EventGetKnowledges    = "get_knowledges"    // out
	EventKnowledgesList   = "knowledges_list"   // in
	EventSubscribe        = "subscribe"         // out
	EventUnsubscribe      = "unsubscribe"       // out
	EventSubscribed       = "subscribed"        // in
	EventUnsubscribed     = "unsubscribed"      // in
	EventTopicUpdate      = "topic_update"      // in
	EventKnowledgeCreated = "knowledge_created" // in
	EventError            = "error"             // in
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrMalformed    = errors.New("malformed payload")
)

const (
	MinDepth = 1
	MaxDepth = 10
)

type Envelope struct {
	Event string          `json:"event" validate:"required"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type SubscribePayload struct {
	Topic string `json:"topic" validate:"required"`
}

type UnsubscribePayload struct {
	Topic string `json:"topic"`
}

// SubscribedPayload acknowledges a subscribe. Topic is set by the hub so viewers can
// tell which subscription the ack answers, older hubs leave it empty.
type SubscribedPayload struct {
	Message     string          `json:"message"`
	Topic       string          `json:"topic,omitempty"`
	CurrentData *graph.Snapshot `json:"currentData,omitempty"`
}

type UnsubscribedPayload struct {
	Message string `json:"message"`
}

// TopicUpdatePayload carries a full replacement snapshot, never a diff.
type TopicUpdatePayload struct {
	Topic  string          `json:"topic,omitempty"`
	Update *graph.Snapshot `json:"update,omitempty"`
}

type KnowledgeCreatedPayload struct {
	Topic string `json:"topic,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message" validate:"required"`
}

// CreateRequest is the body of POST /knowledges.
type CreateRequest struct {
	Idea  string `json:"idea" validate:"required,max=200"`
	Depth int    `json:"depth" validate:"min=1,max=10"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// Message is a decoded frame. Payload holds one of the *Payload types above, a
// []string for knowledges_list, or nil for events without data.
type Message struct {
	Event   string
	Payload any
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator, configured to report json field names.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Encode builds a frame. A nil payload produces an envelope without data.
func Encode(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", event, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Decode parses and validates a frame.
func Decode(frame []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Message{}, fmt.Errorf("%w: envelope: %v", ErrMalformed, err)
	}
	if env.Event == "" {
		return Message{}, fmt.Errorf("%w: envelope has no event", ErrMalformed)
	}

	var payload any
	switch env.Event {
	case EventGetKnowledges:
		if !isEmpty(env.Data) {
			return Message{}, fmt.Errorf("%w: %s takes no data", ErrMalformed, env.Event)
		}
	case EventKnowledgeCreated:
		p := &KnowledgeCreatedPayload{}
		if !isEmpty(env.Data) {
			if err := decodeInto(env.Event, env.Data, p); err != nil {
				return Message{}, err
			}
		}
		payload = p
	case EventKnowledgesList:
		var topics []string
		if err := decodeJSON(env.Data, &topics); err != nil || topics == nil {
			return Message{}, fmt.Errorf("%w: %s wants a list of topic names", ErrMalformed, env.Event)
		}
		payload = topics
	case EventSubscribe:
		payload = &SubscribePayload{}
	case EventUnsubscribe:
		payload = &UnsubscribePayload{}
	case EventSubscribed:
		payload = &SubscribedPayload{}
	case EventUnsubscribed:
		payload = &UnsubscribedPayload{}
	case EventTopicUpdate:
		payload = &TopicUpdatePayload{}
	case EventError:
		payload = &ErrorPayload{}
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	switch env.Event {
	case EventGetKnowledges, EventKnowledgeCreated, EventKnowledgesList:
	default:
		if err := decodeInto(env.Event, env.Data, payload); err != nil {
			return Message{}, err
		}
	}
	return Message{Event: env.Event, Payload: payload}, nil
}

func decodeInto(event string, data json.RawMessage, into any) error {
	if isEmpty(data) {
		return fmt.Errorf("%w: %s needs data", ErrMalformed, event)
	}
	if err := decodeJSON(data, into); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, event, err)
	}
	if err := Validator().Struct(into); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, event, err)
	}
	return nil
}

func decodeJSON(data json.RawMessage, into any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(into); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}

func isEmpty(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
