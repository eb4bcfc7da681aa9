package outbox

import (
	"errors"
	"fmt"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestDeliveredPrefix(t *testing.T) {
	errLeader := errors.New("not leader for partition")

	tests := []struct {
		name  string
		err   error
		total int
		want  int
	}{
		{name: "all_delivered", err: nil, total: 3, want: 3},
		{name: "transport_failure", err: errors.New("dial tcp: connection refused"), total: 3, want: 0},
		{name: "middle_failed", err: kafka.WriteErrors{nil, errLeader, nil}, total: 3, want: 1},
		{name: "first_failed", err: kafka.WriteErrors{errLeader, nil, nil}, total: 3, want: 0},
		{name: "wrapped", err: fmt.Errorf("write: %w", kafka.WriteErrors{nil, nil, errLeader}), total: 3, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deliveredPrefix(tt.err, tt.total))
		})
	}
}
