package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vgprice/engine/internal/ingesterr"
)

func TestAgentFromAttributes(t *testing.T) {
	tests := []struct {
		name         string
		attrs        []byte
		wantAgent    string
		wantPriority int16
	}{
		{"full attributes", []byte(`{"agent":"steam","agent_priority":50}`), "steam", 50},
		{"missing priority defaults to zero", []byte(`{"agent":"itad"}`), "itad", 0},
		{"empty attributes", nil, "", 0},
		{"malformed json", []byte(`{not json`), "", 0},
		{"unrelated keys", []byte(`{"appid":620}`), "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent, priority := agentFromAttributes(tt.attrs)
			assert.Equal(t, tt.wantAgent, agent)
			assert.Equal(t, tt.wantPriority, priority)
		})
	}
}

func TestClassifyRecordError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want RecordErrorKind
	}{
		{"invariant", &ingesterr.Error{Kind: ingesterr.KindInvariantViolation, Err: errors.New("x")}, RecordErrorInvariant},
		{"conflict", &ingesterr.Error{Kind: ingesterr.KindConflict, Err: errors.New("x")}, RecordErrorConflict},
		{"lock", &ingesterr.Error{Kind: ingesterr.KindLock, Err: errors.New("x")}, RecordErrorLock},
		{"upstream", &ingesterr.Error{Kind: ingesterr.KindUpstream, Err: errors.New("x")}, RecordErrorParse},
		{"transport", &ingesterr.Error{Kind: ingesterr.KindTransport, Err: errors.New("x")}, RecordErrorParse},
		{"plain error", errors.New("x"), RecordErrorValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyRecordError(tt.err))
		})
	}
}
