// Package capture defines the contracts shared by the recorder controller,
// the sensor readers and the write coordinator.
//
// A reader implements Callback to follow session boundaries and Readable to
// hand completed jobs to the writer. Jobs leave a reader as a slice of
// Payload values, one per modality, each carrying the function that knows how
// to persist it. Queue is the only container passed between goroutines
// without additional locking.
package capture
