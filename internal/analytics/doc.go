// Package analytics derives behavioral metrics from a snapshot of user actions.
//
// It contains the pure, stateless parts of the engine:
//   - normalization of raw store rows into canonical records
//   - the fragility score and its classification
//   - first-order action transition counts
//   - example windows around a chosen transition
//   - per-user sequence length statistics
//
// Every function operates on an in-memory snapshot; nothing here performs I/O
// except LoadSnapshot, which reads once from an EventReader.
//
// Example usage:
//
//	snap, err := analytics.LoadSnapshot(ctx, store)
//	if err != nil {
//	    return err
//	}
//	table := analytics.AnalyzeTransitions(snap.Events, 50)
//	examples := analytics.ExtractExamples(snap.Events, "browse", "purchase", analytics.DefaultWindowOptions())
package analytics
