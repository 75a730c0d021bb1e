package repository

import (
	"encoding/json"
	"fmt"

	"weatherbot/models"
)

// encodeBreakdown stores a nil breakdown as SQL NULL
func encodeBreakdown(b models.Breakdown) ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to encode breakdown: %w", err)
	}
	return data, nil
}

func decodeBreakdown(data []byte) (models.Breakdown, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var b models.Breakdown
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode breakdown: %w", err)
	}
	return b, nil
}
