// Package events decodes the tagged envelopes delivered over the push channel.
package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aristath/sentimentedge/internal/domain"
)

// EventType is the envelope tag
type EventType string

const (
	TypeSignal         EventType = "signal"
	TypePerformance    EventType = "performance"
	TypePositionUpdate EventType = "position_update"
)

var (
	// ErrUnknownType is returned for envelopes whose tag is not a known EventType
	ErrUnknownType = errors.New("unknown envelope type")
	// ErrMissingData is returned when a tag that requires a payload arrives without one
	ErrMissingData = errors.New("envelope has no data")
)

// EventData is the interface that all envelope payloads implement
type EventData interface {
	// EventType returns the envelope tag this payload is carried under
	EventType() EventType
	// Validate checks the payload shape
	Validate() error
}

// SignalData carries a newly generated trading signal
type SignalData struct {
	domain.Signal
}

// EventType returns the event type for SignalData
func (d *SignalData) EventType() EventType {
	return TypeSignal
}

// PerformanceData carries a full performance record
type PerformanceData struct {
	domain.Performance
}

// EventType returns the event type for PerformanceData
func (d *PerformanceData) EventType() EventType {
	return TypePerformance
}

// PositionUpdateData carries the position that changed. The payload is advisory:
// the monitor re-fetches positions instead of applying it.
type PositionUpdateData struct {
	domain.Position
}

// EventType returns the event type for PositionUpdateData
func (d *PositionUpdateData) EventType() EventType {
	return TypePositionUpdate
}

// Validate only requires a ticker; a closing update may carry a zero quantity.
func (d *PositionUpdateData) Validate() error {
	if d.Ticker == "" {
		return fmt.Errorf("%w: position update ticker is empty", domain.ErrInvalid)
	}
	return nil
}

// Envelope is one push-channel frame
type Envelope struct {
	Type EventType `json:"type"`
	Data EventData `json:"data"`
}

// Signal returns the signal payload, or false if the envelope carries something else
func (e Envelope) Signal() (domain.Signal, bool) {
	d, ok := e.Data.(*SignalData)
	if !ok || d == nil {
		return domain.Signal{}, false
	}
	return d.Signal, true
}

// Performance returns the performance payload, or false if the envelope carries something else
func (e Envelope) Performance() (domain.Performance, bool) {
	d, ok := e.Data.(*PerformanceData)
	if !ok || d == nil {
		return domain.Performance{}, false
	}
	return d.Performance, true
}

// MarshalJSON customizes JSON serialization for Envelope
func (e Envelope) MarshalJSON() ([]byte, error) {
	aux := struct {
		Type EventType       `json:"type"`
		Data json.RawMessage `json:"data,omitempty"`
	}{Type: e.Type}

	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}

	return json.Marshal(aux)
}

// UnmarshalJSON decodes the payload according to the type tag and validates it
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var aux struct {
		Type EventType       `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var eventData EventData
	switch aux.Type {
	case TypeSignal:
		eventData = &SignalData{}
	case TypePerformance:
		eventData = &PerformanceData{}
	case TypePositionUpdate:
		eventData = &PositionUpdateData{}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, aux.Type)
	}

	e.Type = aux.Type
	e.Data = nil

	if len(aux.Data) == 0 || bytes.Equal(aux.Data, []byte("null")) {
		// position_update is a bare notification in older backends
		if aux.Type == TypePositionUpdate {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrMissingData, aux.Type)
	}

	if err := json.Unmarshal(aux.Data, eventData); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", aux.Type, err)
	}
	if err := eventData.Validate(); err != nil {
		return err
	}

	e.Data = eventData
	return nil
}

// Decode parses one text frame into an Envelope
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
