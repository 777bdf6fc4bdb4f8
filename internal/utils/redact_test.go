package utils

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSensitiveName(t *testing.T) {
	sensitive := []string{"password", "db_password", "client_secret", "access_token", "token",
		"api_key", "X-API-Key", "apiKey", "key", "credentials", "Authorization", "card_number",
		"cardNumber", "cvv", "ssn"}
	for _, name := range sensitive {
		assert.True(t, IsSensitiveName(name), name)
	}

	plain := []string{"api_key_id", "tokens_used", "total_tokens", "email", "operation", "keyboard", "account_id"}
	for _, name := range plain {
		assert.False(t, IsSensitiveName(name), name)
	}
}

func TestRedact_NestedStructures(t *testing.T) {
	input := map[string]interface{}{
		"user": "dev",
		"auth": map[string]interface{}{
			"password": "hunter2",
			"headers": []interface{}{
				map[string]string{"Authorization": "Bearer dcp_abc", "Accept": "json"},
			},
		},
		"count": 3,
	}

	out, ok := Redact(input).(map[string]interface{})
	require.True(t, ok)

	assert.Equal(t, "dev", out["user"])
	assert.Equal(t, 3, out["count"])

	auth := out["auth"].(map[string]interface{})
	assert.Equal(t, RedactedValue, auth["password"])

	headers := auth["headers"].([]interface{})
	first := headers[0].(map[string]interface{})
	assert.Equal(t, RedactedValue, first["Authorization"])
	assert.Equal(t, "json", first["Accept"])

	// the original is untouched
	assert.Equal(t, "hunter2", input["auth"].(map[string]interface{})["password"])
}

func TestRedact_Structs(t *testing.T) {
	type card struct {
		Holder     string `json:"holder"`
		CardNumber string `json:"card_number"`
	}
	type payload struct {
		ID      uuid.UUID `json:"id"`
		When    time.Time `json:"when"`
		Secret  string    `json:"secret"`
		Card    *card     `json:"card"`
		Ignored string    `json:"-"`
		private string
	}

	id := uuid.New()
	now := time.Now()
	out := Redact(payload{ID: id, When: now, Secret: "s", Card: &card{Holder: "A", CardNumber: "4111"}, private: "p"})
	m := out.(map[string]interface{})

	assert.Equal(t, id, m["id"])
	assert.Equal(t, now, m["when"])
	assert.Equal(t, RedactedValue, m["secret"])
	assert.NotContains(t, m, "Ignored")
	assert.NotContains(t, m, "private")

	c := m["card"].(map[string]interface{})
	assert.Equal(t, "A", c["holder"])
	assert.Equal(t, RedactedValue, c["card_number"])
}

func TestRedactKeyvals(t *testing.T) {
	out := RedactKeyvals([]interface{}{"token", "abc", "error", errors.New("boom"), "dangling"})
	require.Len(t, out, 5)
	assert.Equal(t, RedactedValue, out[1])
	assert.EqualError(t, out[3].(error), "boom")
	assert.Equal(t, "dangling", out[4])
}

func TestLogger_RedactsAndFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("test", Info)
	logger.SetOutput(&buf)

	logger.Debug("hidden", "k", "v")
	logger.Info("visible", "api_key", "dcp_123", "operation", "json")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "component=test")
	assert.Contains(t, out, "operation=json")
	assert.NotContains(t, out, "dcp_123")
	assert.True(t, strings.Contains(out, RedactedValue))

	buf.Reset()
	logger.SetLogLevel(Error)
	logger.Warn("quiet")
	assert.Empty(t, buf.String())
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, Debug, ParseLogLevel("DEBUG"))
	assert.Equal(t, Info, ParseLogLevel("info"))
	assert.Equal(t, Warning, ParseLogLevel("warn"))
	assert.Equal(t, Error, ParseLogLevel("error"))
	assert.Equal(t, Warning, ParseLogLevel("nonsense"))
}
