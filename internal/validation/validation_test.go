package validation

import (
	"encoding/json"
	"testing"

	"engage-ws/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinRequest(t *testing.T) {
	v := New()

	t.Run("valid", func(t *testing.T) {
		var req domain.JoinRequest
		err := v.Decode(json.RawMessage(`{"companyId":"c1","pageUrl":"https://example.com/pricing","sessionId":"s1"}`), &req)
		require.NoError(t, err)
		assert.Equal(t, "c1", req.CompanyID)
		assert.Equal(t, "s1", req.SessionID)
	})

	t.Run("missing company", func(t *testing.T) {
		var req domain.JoinRequest
		err := v.Decode(json.RawMessage(`{"pageUrl":"https://example.com"}`), &req)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
		assert.Contains(t, err.Error(), "companyId")
	})

	t.Run("malformed json", func(t *testing.T) {
		var req domain.JoinRequest
		err := v.Decode(json.RawMessage(`{"companyId":`), &req)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
	})
}

func TestLeadCaptureRequest(t *testing.T) {
	v := New()

	valid := `{"name":"Ada Lovelace","email":"ada@example.com","phone":"+1 (555) 123-4567","visitorId":"v1","companyId":"c1"}`

	t.Run("valid", func(t *testing.T) {
		var req domain.LeadCaptureRequest
		require.NoError(t, v.Decode(json.RawMessage(valid), &req))
	})

	t.Run("missing email", func(t *testing.T) {
		var req domain.LeadCaptureRequest
		err := v.Decode(json.RawMessage(`{"name":"Ada Lovelace","phone":"555-123-4567","visitorId":"v1","companyId":"c1"}`), &req)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
		assert.Contains(t, err.Error(), "email")
	})

	t.Run("bad email", func(t *testing.T) {
		var req domain.LeadCaptureRequest
		err := v.Decode(json.RawMessage(`{"name":"Ada","email":"not-an-email","phone":"555-123-4567","visitorId":"v1","companyId":"c1"}`), &req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "email")
	})

	t.Run("bad phone", func(t *testing.T) {
		var req domain.LeadCaptureRequest
		err := v.Decode(json.RawMessage(`{"name":"Ada Lovelace","email":"ada@example.com","phone":"call me","visitorId":"v1","companyId":"c1"}`), &req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "phone")
	})

	t.Run("name too short", func(t *testing.T) {
		var req domain.LeadCaptureRequest
		err := v.Decode(json.RawMessage(`{"name":"A","email":"ada@example.com","phone":"555-123-4567","visitorId":"v1","companyId":"c1"}`), &req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name")
	})
}

func TestPhoneFormats(t *testing.T) {
	for _, phone := range []string{
		"+1 (555) 123-4567",
		"555-123-4567",
		"555.123.4567",
		"5551234567",
		"(555)123-456789",
	} {
		assert.True(t, phonePattern.MatchString(phone), "expected %q to be accepted", phone)
	}
	for _, phone := range []string{"", "abc", "12-34", "555 12"} {
		assert.False(t, phonePattern.MatchString(phone), "expected %q to be rejected", phone)
	}
}

func TestHeartbeatRequest(t *testing.T) {
	v := New()

	var req domain.HeartbeatRequest
	require.NoError(t, v.Decode(json.RawMessage(`{"sessionId":"s1"}`), &req))

	err := v.Decode(json.RawMessage(`{}`), &domain.HeartbeatRequest{})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}
