package utils

import (
	"github.com/Luismorlan/insighthub/utils/dotenv"
	. "github.com/Luismorlan/insighthub/utils/log"
	"github.com/sirupsen/logrus"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

// StartTracer starts the Datadog tracer for the given service. It is a no-op
// outside production where no agent is expected to run.
func StartTracer(serviceName string) {
	if !dotenv.IsProd() {
		return
	}

	tracer.Start(
		tracer.WithService(serviceName),
		tracer.WithEnv(dotenv.CurrentEnv()),
	)

	Log.WithFields(
		logrus.Fields{"service": serviceName},
	).Info("tracer initialized")
}

// Stop tracer, OK to be closed multiple times
func CloseTracer() {
	tracer.Stop()
}
