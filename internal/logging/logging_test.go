package logging

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	eventbus "github.com/hanpama/fedgraph/internal/eventbus"
	events "github.com/hanpama/fedgraph/internal/events"
	reqid "github.com/hanpama/fedgraph/internal/reqid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc/codes"
)

func TestNew(t *testing.T) {
	logger, err := New(Config{Level: "debug", Format: "console"})
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = New(Config{Level: "WARN"})
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = New(Config{Level: "loud"})
	require.Error(t, err)
}

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
	core, logs := observer.New(zapcore.DebugLevel)
	unsubscribe := Subscribe(zap.New(core))
	t.Cleanup(unsubscribe)
	return logs
}

func TestSubscribeLogsEvents(t *testing.T) {
	logs := observe(t)
	ctx, rid := reqid.NewContext(context.Background())

	req := httptest.NewRequest("POST", "/graphql", nil)
	eventbus.Publish(ctx, events.HTTPFinish{Request: req, Status: 200, Duration: time.Millisecond})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationName: "Entities", OperationType: "query"})
	eventbus.Publish(ctx, events.GRPCClientFinish{Service: "fedgraph.entities.EntityService", Method: "ResolveUserEntity", Code: codes.Unavailable, Err: errors.New("down")})
	eventbus.Publish(ctx, events.EntityResolveFinish{TypeName: "User", Index: 2, Err: errors.New("down")})
	eventbus.Publish(ctx, events.EntityResolveFinish{TypeName: "User", Index: 3, Found: true})
	eventbus.Publish(ctx, events.EntityBatchFinish{Size: 4, Failed: 1})

	entries := logs.AllUntimed()
	var messages []string
	for _, e := range entries {
		messages = append(messages, e.Message)
		require.Equal(t, rid, e.ContextMap()["request_id"], e.Message)
	}
	require.Equal(t, []string{
		"http request",
		"graphql operation",
		"entity backend call failed",
		"entity resolution failed",
		"entities resolved",
	}, messages)

	failed := logs.FilterMessage("entity resolution failed").All()[0]
	require.Equal(t, zapcore.WarnLevel, failed.Level)
	require.Equal(t, "User", failed.ContextMap()["typename"])
	require.Equal(t, int64(2), failed.ContextMap()["index"])
	require.Equal(t, "down", failed.ContextMap()["error"])

	call := logs.FilterMessage("entity backend call failed").All()[0]
	require.Equal(t, "Unavailable", call.ContextMap()["code"])
}

func TestGraphQLErrorsAreWarnings(t *testing.T) {
	logs := observe(t)
	eventbus.Publish(context.Background(), events.GraphQLFinish{
		OperationName: "Q",
		Errors:        []error{errors.New("a"), errors.New("b")},
	})
	entries := logs.FilterMessage("graphql operation failed").All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.WarnLevel, entries[0].Level)
	require.Equal(t, int64(2), entries[0].ContextMap()["errors"])
	_, ok := entries[0].ContextMap()["request_id"]
	require.False(t, ok)
}

func TestUnsubscribe(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
	core, logs := observer.New(zapcore.DebugLevel)
	Subscribe(zap.New(core))()

	eventbus.Publish(context.Background(), events.EntityBatchFinish{Size: 1})
	require.Zero(t, logs.Len())
}
