package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Connection is one sub-topic of an idea together with the sub-topics it branches
// into.
type Connection struct {
	Subtopic string
	Children []string
}

// Connections is what is known about one idea. On disk it is a JSON object mapping
// each sub-topic to a list of its own sub-topics. Key order is kept because it decides
// the order nodes appear in, and with it where they are placed.
type Connections []Connection

func (c Connections) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, conn := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(conn.Subtopic)
		if err != nil {
			return nil, err
		}
		children := conn.Children
		if children == nil {
			children = []string{}
		}
		value, err := json.Marshal(children)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Connections) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("connections: expected an object, got %v", tok)
	}

	out := Connections{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("connections: expected a key, got %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		children, err := decodeChildren(raw)
		if err != nil {
			return fmt.Errorf("connections: %q: %w", key, err)
		}
		out = append(out, Connection{Subtopic: key, Children: children})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}

// decodeChildren accepts a list of names. Generated data sometimes nests a further
// object instead, in which case its keys are used.
func decodeChildren(raw json.RawMessage) ([]string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var nested Connections
	if err := json.Unmarshal(raw, &nested); err == nil {
		return nested.Subtopics(), nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	return nil, fmt.Errorf("unsupported value %s", string(raw))
}

// Subtopics returns the keys in order.
func (c Connections) Subtopics() []string {
	out := make([]string, len(c))
	for i, conn := range c {
		out[i] = conn.Subtopic
	}
	return out
}
