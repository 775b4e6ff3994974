package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/negros-cram/brrs/internal/config"
	"github.com/negros-cram/brrs/internal/ingest"
	"github.com/negros-cram/brrs/internal/model"
	"github.com/negros-cram/brrs/internal/narrative"
	"github.com/negros-cram/brrs/internal/pipeline"
)

func TestFormatRunsList(t *testing.T) {
	started := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	finished := started.Add(1500 * time.Millisecond)
	runs := []model.Run{
		{
			ID: "7f9c2d1e-0000-4000-8000-000000000000", Kind: model.RunKindOverlay,
			Subject: "flood/100yr", Status: model.RunStatusComplete,
			Processed: 557, Skipped: 3, StartedAt: started, FinishedAt: &finished,
		},
		{
			ID: "short", Kind: model.RunKindLoad, Subject: "barangays",
			Status: model.RunStatusRunning, StartedAt: started,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	out := buf.String()
	assert.Contains(t, out, "7f9c2d1e")
	assert.NotContains(t, out, "7f9c2d1e-0000")
	assert.Contains(t, out, "flood/100yr")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "2026-03-01 08:00")
	assert.Contains(t, out, "running")
}

func TestFormatStatistics(t *testing.T) {
	s := &model.Statistics{
		TotalMunicipalities: 25,
		TotalBarangays:      557,
		CoastalBarangays:    210,
		Resilience:          model.ScoreAverages{Overall: model.Some(48.25), High: 40, Medium: 300, Low: 217},
		Coverage:            model.HazardCoverage{NOAHFlood: 500},
	}
	var buf bytes.Buffer
	formatStatistics(&buf, s)
	out := buf.String()
	assert.Contains(t, out, "557 (210 coastal)")
	assert.Contains(t, out, "high=40 medium=300 low=217")
	assert.Contains(t, out, "flood=500")
	assert.Contains(t, out, "Average BRRS:")

	buf.Reset()
	formatStatistics(&buf, &model.Statistics{})
	assert.NotContains(t, buf.String(), "Average BRRS")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abcdefgh", truncateID("abcdefghijkl"))
	assert.Equal(t, "abc", truncateID("abc"))
}

func TestPrintOutcome(t *testing.T) {
	started := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	finished := started.Add(2 * time.Second)
	rep := &ingest.Report{Processed: 10}
	rep.Skip("Bagacay (Dumaguete City): no geometry")

	var buf bytes.Buffer
	printOutcome(&buf, &pipeline.Outcome{
		Run: model.Run{
			Kind: model.RunKindLoad, Subject: "barangays", Status: model.RunStatusComplete,
			Processed: 10, Skipped: 1, StartedAt: started, FinishedAt: &finished,
		},
		Report: rep,
	})
	out := buf.String()
	assert.Contains(t, out, "load barangays: complete processed=10 skipped=1 errored=0 (2s)")
	assert.Contains(t, out, "  - Bagacay (Dumaguete City): no geometry")

	buf.Reset()
	printOutcome(&buf, nil)
	assert.Empty(t, buf.String())
}

func TestNewBackend(t *testing.T) {
	n := config.NarrativeConfig{Provider: config.ProviderNone}
	assert.Nil(t, newBackend(n))

	n = config.NarrativeConfig{Provider: config.ProviderGroq}
	assert.Nil(t, newBackend(n), "missing key serves placeholders")

	n = config.NarrativeConfig{Provider: config.ProviderAnthropic, AnthropicKey: "sk-ant-test", AnthropicModel: "claude-haiku-4-5"}
	assert.IsType(t, &narrative.Anthropic{}, newBackend(n))

	n = config.NarrativeConfig{Provider: config.ProviderGroq, OpenAIKey: "gsk-test", OpenAIBaseURL: "https://api.groq.com/openai/v1"}
	assert.IsType(t, &narrative.OpenAI{}, newBackend(n))
}

func TestNewNarrator_NoKey(t *testing.T) {
	svc := newNarrator(config.NarrativeConfig{Provider: config.ProviderGroq}, nil)
	assert.Equal(t, narrative.ProviderNone, svc.Provider())
}
