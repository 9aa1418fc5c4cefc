// Package alerts implements the supervisor alert pipeline: the API enqueues
// an alert when an operator's classification degrades, and the notifier
// process drains the queue and emails the line supervisor. Redis backs the
// queue; a per-operator cooldown key keeps repeated Slow cycles from spamming.
package alerts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindSlowOperator Kind = "slow_operator"
)

type Alert struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	OperatorID   int64     `json:"operator_id"`
	OperatorName string    `json:"operator_name"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewAlert(kind Kind, operatorID int64, operatorName, message string) *Alert {
	return &Alert{
		ID:           uuid.New().String(),
		Kind:         kind,
		OperatorID:   operatorID,
		OperatorName: operatorName,
		Message:      message,
		CreatedAt:    time.Now(),
	}
}

func (a *Alert) Subject() string {
	return fmt.Sprintf("[boteo] %s: %s", a.Kind, a.OperatorName)
}

func (a *Alert) ToJSON() (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func AlertFromJSON(data string) (*Alert, error) {
	var alert Alert
	if err := json.Unmarshal([]byte(data), &alert); err != nil {
		return nil, err
	}

	return &alert, nil
}
