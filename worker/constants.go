package worker

const (
	// New content ids waiting for company extraction.
	TopicContentExtract = "topic.content_extract"
	// Content ids with extraction done, ready for the selective pipeline.
	TopicContentDispatch = "topic.content_dispatch"
	// Pipeline outcomes, consumed for monitoring.
	TopicContentProcessed = "topic.content_processed"
)

const (
	DdogPipelineOutcomeCounter = "insighthub.worker.pipeline_outcome"
	DdogPipelineFailureCounter = "insighthub.worker.pipeline_failure"
	DdogIngestedCounter        = "insighthub.worker.ingested"
)
