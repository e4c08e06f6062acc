package response

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOKFlattensPayload(t *testing.T) {
	b, err := json.Marshal(OK("Login successful", map[string]any{"token": "t", "success": false}))
	require.NoError(t, err)
	require.JSONEq(t, `{"success":true,"message":"Login successful","token":"t"}`, string(b))
}

func TestOKWithoutMessage(t *testing.T) {
	b, err := json.Marshal(OK("", map[string]any{"userId": "u1"}))
	require.NoError(t, err)
	require.JSONEq(t, `{"success":true,"userId":"u1"}`, string(b))
}

func TestErrorDefaultsMessage(t *testing.T) {
	b, err := json.Marshal(Error(CodeTooManyRequests, ""))
	require.NoError(t, err)
	require.JSONEq(t, `{"success":false,"message":"Too many requests.","code":"TOO_MANY_REQUESTS"}`, string(b))

	b, err = json.Marshal(Error(CodeNotFound, "User not found"))
	require.NoError(t, err)
	require.JSONEq(t, `{"success":false,"message":"User not found","code":"NOT_FOUND"}`, string(b))
}
