package constants

// ResultKind is how a document request ended. The values are stable and are
// used as response fields and metric labels.
type ResultKind string

const (
	ResultStructured ResultKind = "structured" // classified record
	ResultDegraded   ResultKind = "degraded"   // raw words, classification failed
	ResultFailed     ResultKind = "failed"     // fatal stage error, no data
)
