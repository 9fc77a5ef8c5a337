package resilience

import (
	"context"
	goerrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *DegradationManager {
	return NewDegradationManager(DefaultDegradationConfig())
}

func TestDegradationLevelsByErrorRate(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		failures int
		want     DegradationLevel
	}{
		{"all healthy", 20, 0, LevelNormal},
		{"below degraded threshold", 20, 1, LevelNormal},
		{"degraded", 20, 3, LevelDegraded},
		{"critical", 20, 6, LevelCritical},
		{"emergency", 20, 12, LevelEmergency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dm := newTestManager()
			dm.RegisterService("openalex-api", nil)

			for i := 0; i < tt.total; i++ {
				dm.RecordRequest("openalex-api", i >= tt.failures)
			}

			health := dm.GetAllServiceHealth()["openalex-api"]
			assert.Equal(t, tt.want, health.Level)
		})
	}
}

func TestDegradationRecovery(t *testing.T) {
	dm := newTestManager()
	dm.RegisterService("ror-api", nil)

	for i := 0; i < 4; i++ {
		dm.RecordRequest("ror-api", false)
	}
	assert.Equal(t, LevelEmergency, dm.GetAllServiceHealth()["ror-api"].Level)
	assert.False(t, dm.IsAvailable("ror-api"))

	// Enough successes dilute the error rate back under the thresholds.
	for i := 0; i < 100; i++ {
		dm.RecordRequest("ror-api", true)
	}
	assert.Equal(t, LevelNormal, dm.GetAllServiceHealth()["ror-api"].Level)
	assert.True(t, dm.IsAvailable("ror-api"))
}

func TestDegradationUnregisteredServiceIsNoop(t *testing.T) {
	dm := newTestManager()

	// Recording against unknown services must not panic or register them.
	dm.RecordRequest("unknown", false)
	dm.RecordError("unknown", goerrors.New("boom"))

	assert.Empty(t, dm.GetAllServiceHealth())
	assert.True(t, dm.IsAvailable("unknown"))
}

func TestDegradationRecordErrorNilIsIgnored(t *testing.T) {
	dm := newTestManager()
	dm.RegisterService("resend-api", nil)

	dm.RecordError("resend-api", nil)

	health := dm.GetAllServiceHealth()["resend-api"]
	assert.Equal(t, int64(0), health.TotalRequests)
	assert.Equal(t, LevelNormal, health.Level)
}

func TestHealthCheckKeepsFailureHistory(t *testing.T) {
	dm := newTestManager()
	dm.RegisterService("openalex-api", func(ctx context.Context) error { return nil })

	for i := 0; i < 10; i++ {
		dm.RecordRequest("openalex-api", false)
	}
	require.Equal(t, LevelEmergency, dm.GetAllServiceHealth()["openalex-api"].Level)

	// A passing check is a single success among ten failures; the
	// provider must still read as down.
	dm.runHealthChecks(context.Background())

	health := dm.GetAllServiceHealth()["openalex-api"]
	assert.Equal(t, LevelEmergency, health.Level)
	assert.Equal(t, int64(10), health.ErrorCount)
	assert.Equal(t, int64(11), health.TotalRequests)
	assert.False(t, dm.IsAvailable("openalex-api"))
}

func TestHealthChecksSkipNilCheck(t *testing.T) {
	dm := newTestManager()
	dm.RegisterService("resend-api", nil)

	for i := 0; i < 4; i++ {
		dm.RecordRequest("resend-api", false)
	}
	dm.runHealthChecks(context.Background())

	// Without a registered check the request history stands untouched.
	health := dm.GetAllServiceHealth()["resend-api"]
	assert.Equal(t, int64(4), health.TotalRequests)
	assert.Equal(t, LevelEmergency, health.Level)
}

func TestDegradationHealthSnapshot(t *testing.T) {
	dm := newTestManager()
	dm.RegisterService("openalex-api", nil)
	dm.RegisterService("ror-api", nil)

	dm.RecordRequest("openalex-api", false)

	snapshot := dm.GetAllServiceHealth()
	require.Len(t, snapshot, 2)
	assert.Equal(t, int64(1), snapshot["openalex-api"].ErrorCount)
	assert.Equal(t, "openalex-api", snapshot["openalex-api"].ServiceName)

	// Mutating the snapshot must not leak back into the manager.
	entry := snapshot["ror-api"]
	entry.ErrorCount = 99
	snapshot["ror-api"] = entry
	assert.Equal(t, int64(0), dm.GetAllServiceHealth()["ror-api"].ErrorCount)
}
