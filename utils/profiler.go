package utils

import (
	"github.com/Luismorlan/insighthub/utils/dotenv"
	. "github.com/Luismorlan/insighthub/utils/log"
	"gopkg.in/DataDog/dd-trace-go.v1/profiler"
)

// StartProfiler starts the Datadog continuous profiler in production.
func StartProfiler(serviceName string) {
	if !dotenv.IsProd() {
		return
	}

	if err := profiler.Start(
		profiler.WithService(serviceName),
		profiler.WithEnv(dotenv.CurrentEnv()),
		profiler.WithProfileTypes(
			profiler.CPUProfile,
			profiler.HeapProfile,
		),
	); err != nil {
		Log.Errorf("fail to start profiler: %v", err)
	}
}

// Stop profiler, OK to be closed multiple times
func CloseProfiler() {
	profiler.Stop()
}
