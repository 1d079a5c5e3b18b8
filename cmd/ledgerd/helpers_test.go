package main

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestPipelineConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg := pipelineConfig()
	assert.Equal(t, 85, cfg.ConfidenceThreshold)
	assert.Equal(t, 50, cfg.ChunkSize)
	assert.Equal(t, 4, cfg.MaxParallelChunks)
	assert.Equal(t, 2, cfg.Detector.TiebreakMargin)
	assert.Equal(t, 500, cfg.Detector.MaxScanRows)
}

func TestPipelineConfigOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("classify.confidence_threshold", 90)
	viper.Set("classify.chunk_size", 25)
	viper.Set("classify.max_parallel_chunks", 2)
	viper.Set("detect.tiebreak_margin", 0)
	viper.Set("detect.max_scan_rows", 100)

	cfg := pipelineConfig()
	assert.Equal(t, 90, cfg.ConfidenceThreshold)
	assert.Equal(t, 25, cfg.ChunkSize)
	assert.Equal(t, 2, cfg.MaxParallelChunks)
	assert.Equal(t, 0, cfg.Detector.TiebreakMargin, "an explicit zero margin must stick")
	assert.Equal(t, 100, cfg.Detector.MaxScanRows)
}
