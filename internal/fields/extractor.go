// Package fields extracts the fixed clinical field schema from document text
// via an LLM completion with a delimiter-based output contract, chunking
// long documents and merging per-chunk results.
package fields

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/carelane/chartscan/internal/config"
	"github.com/carelane/chartscan/internal/model"
	"github.com/carelane/chartscan/internal/resilience"
	"github.com/carelane/chartscan/pkg/anthropic"
)

// Extractor runs structured field extraction against the Anthropic API.
type Extractor struct {
	client   anthropic.Client
	aiCfg    config.AnthropicConfig
	chunkCfg config.ExtractConfig
	limiter  *rate.Limiter
}

// New creates an Extractor. Completion calls are rate-limited to
// aiCfg.RequestsPerMinute.
func New(client anthropic.Client, aiCfg config.AnthropicConfig, chunkCfg config.ExtractConfig) *Extractor {
	rpm := aiCfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	return &Extractor{
		client:   client,
		aiCfg:    aiCfg,
		chunkCfg: chunkCfg,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}
}

// Extract produces a FieldRecord for the document text. The returned record
// always carries every schema key. Chunk-level call failures are absorbed
// into a partial result; the error return is non-nil only when every chunk's
// completion call failed.
func (e *Extractor) Extract(ctx context.Context, text string) (*model.FieldRecord, error) {
	record := model.NewFieldRecord()
	log := zap.L()

	chunks := SplitChunks(text, e.chunkCfg.ChunkCeiling, e.chunkCfg.ChunkOverlap)
	log.Info("fields: extracting",
		zap.Int("chars", len(text)),
		zap.Int("chunks", len(chunks)),
	)

	systemBlocks := anthropic.BuildCachedSystemBlocks(systemText)

	var (
		chunkValues  []map[model.FieldKey]string
		totalUsage   anthropic.TokenUsage
		matchedLines int
		callErrs     int
		lastErr      error
	)

	for i, chunk := range chunks {
		if err := e.limiter.Wait(ctx); err != nil {
			return failRecord(record, eris.Wrap(err, "fields: rate limit wait"))
		}

		resp, err := resilience.DoVal(ctx, retryConfig(), func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return e.client.CreateMessage(ctx, anthropic.MessageRequest{
				Model:         e.aiCfg.Model,
				MaxTokens:     e.aiCfg.MaxTokens,
				System:        systemBlocks,
				Messages:      []anthropic.Message{{Role: "user", Content: buildPrompt(chunk)}},
				Temperature:   &e.aiCfg.Temperature,
				StopSequences: []string{stopSequence},
			})
		})
		if err != nil {
			callErrs++
			lastErr = err
			log.Warn("fields: chunk extraction call failed",
				zap.Int("chunk", i+1),
				zap.Int("chunks", len(chunks)),
				zap.Error(err),
			)
			continue
		}

		totalUsage.Add(resp.Usage)
		values, matched := ParseResponse(resp.Text())
		matchedLines += matched
		chunkValues = append(chunkValues, values)
	}

	totalUsage.LogCost(e.aiCfg.Model, "fields")

	if callErrs == len(chunks) {
		return failRecord(record, eris.Wrapf(model.ErrModelCall, "all %d chunks failed: %v", len(chunks), lastErr))
	}

	merged := MergeChunkValues(chunkValues)
	for key, value := range merged {
		if value != "" {
			record.Set(key, value)
		}
	}

	switch {
	case matchedLines == 0:
		record.Method = model.MethodFormatError
		record.Err = model.ErrFormat.Error()
	case callErrs > 0:
		record.Method = model.MethodPartial
		record.Err = eris.Wrapf(model.ErrModelCall, "%d of %d chunks failed", callErrs, len(chunks)).Error()
	default:
		record.Method = model.MethodStructured
	}
	record.ExtractedAt = time.Now().UTC()

	log.Info("fields: extraction complete",
		zap.String("method", string(record.Method)),
		zap.Int("populated", record.Populated()),
	)

	return record, nil
}

// failRecord marks the record failed and passes the pipeline-level error up.
func failRecord(record *model.FieldRecord, err error) (*model.FieldRecord, error) {
	record.Method = model.MethodFailed
	record.Err = err.Error()
	record.ExtractedAt = time.Now().UTC()
	return record, err
}

func retryConfig() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("anthropic", "create_message")
	return cfg
}
