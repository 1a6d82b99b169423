package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the pipeline job ID
	FieldJobID = "job_id"

	// FieldCampaignID is the campaign the job is bound to
	FieldCampaignID = "campaign_id"

	// FieldOwnerID is the id of the user who submitted the job
	FieldOwnerID = "owner_id"

	// FieldStage is the pipeline stage name
	FieldStage = "stage"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldPlatform is the social platform (instagram, tiktok, ...)
	FieldPlatform = "platform"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldBatchIndex is the collection batch index within a job
	FieldBatchIndex = "batch_index"
)
