package mongodb

import (
	"context"
	"errors"
	"testing"

	"github.com/fjod/mongomart/internal/repository"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

func TestWrapErr_MarksOnlyConnectivityFailures(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"server selection", topology.ServerSelectionError{Wrapped: topology.ErrServerSelectionTimeout}, true},
		{"client disconnected", mongo.ErrClientDisconnected, true},
		{"deadline", context.DeadlineExceeded, true},
		{"duplicate key", mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}, false},
		{"bad price", errors.New("encode price 1e7000: value out of range"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapErr("failed to save item", tt.err)
			assert.Equal(t, tt.unavailable, errors.Is(err, repository.ErrUnavailable))
		})
	}
}
