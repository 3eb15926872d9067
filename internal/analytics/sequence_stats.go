package analytics

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"github.com/harrison/fragility/internal/models"
)

// SequenceLengthStats summarizes how many events each user has.
type SequenceLengthStats struct {
	Users  int     `json:"users"`
	Events int     `json:"events"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// SequenceStats computes per-user sequence length statistics.
// An empty snapshot yields zero-valued stats.
func SequenceStats(events []models.Event) (*SequenceLengthStats, error) {
	partitions := partitionByUser(events)
	result := &SequenceLengthStats{Users: len(partitions), Events: len(events)}
	if len(partitions) == 0 {
		return result, nil
	}

	lengths := make(stats.Float64Data, len(partitions))
	for i, p := range partitions {
		lengths[i] = float64(len(p.events))
	}

	var err error
	if result.Mean, err = lengths.Mean(); err != nil {
		return nil, fmt.Errorf("mean: %w", err)
	}
	if result.Median, err = lengths.Median(); err != nil {
		return nil, fmt.Errorf("median: %w", err)
	}
	if result.P90, err = lengths.Percentile(90); err != nil {
		return nil, fmt.Errorf("p90: %w", err)
	}
	if result.Min, err = lengths.Min(); err != nil {
		return nil, fmt.Errorf("min: %w", err)
	}
	if result.Max, err = lengths.Max(); err != nil {
		return nil, fmt.Errorf("max: %w", err)
	}
	return result, nil
}
