package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-commerce/jobs"
)

func TestBuildTask(t *testing.T) {
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	task, err := BuildTask(jobs.TaskStockReconcile, "p-1", now)
	require.NoError(t, err)
	require.Equal(t, jobs.TaskStockReconcile, task.Type())

	var payload jobs.ReconcilePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, "p-1", payload.ID)
	require.True(t, payload.RequestedAt.Equal(now))

	for _, name := range []string{jobs.TaskInvoiceReconcile, jobs.TaskPipelineSweep, jobs.TaskAnalyticsWarmup} {
		task, err := BuildTask(name, "", now)
		require.NoError(t, err)
		require.Equal(t, name, task.Type())
	}

	_, err = BuildTask("fx:rates", "", now)
	require.Error(t, err)
}

func TestRunRejectsBadUsage(t *testing.T) {
	var out bytes.Buffer
	require.Error(t, Run(context.Background(), &JobsCLI{}, nil, &out))
	require.Error(t, Run(context.Background(), &JobsCLI{}, []string{"trigger"}, &out))
	require.Error(t, Run(context.Background(), &JobsCLI{}, []string{"trigger", jobs.TaskStockReconcile}, &out))
	require.Error(t, Run(context.Background(), &JobsCLI{}, []string{"stats"}, &out))
	require.Error(t, Run(context.Background(), &JobsCLI{}, []string{"purge"}, &out))
}
