package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://127.0.0.1:8080", "ws://127.0.0.1:8080/ws"},
		{"https://graphs.example.com/", "wss://graphs.example.com/ws"},
		{"http://example.com/graphmind", "ws://example.com/graphmind/ws"},
		{"ws://localhost:9000", "ws://localhost:9000/ws"},
	}
	for _, tt := range tests {
		got, err := websocketURL(tt.base)
		require.NoError(t, err, tt.base)
		assert.Equal(t, tt.want, got)
	}

	_, err := websocketURL("ftp://example.com")
	assert.Error(t, err)
}
