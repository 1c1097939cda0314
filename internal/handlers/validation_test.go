package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name string
		req  any
		want string
	}{
		{"valid login", &LoginRequest{Username: "alice", Password: "pw"}, ""},
		{"missing fields", &LoginRequest{}, "username: is required; password: is required"},
		{"unknown action", &ReviewRequest{Action: "explode"},
			"action: must be one of reset_password, permanent_block, unblock, stop_monitoring, dismiss"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateRequest(tt.req))
		})
	}
}
