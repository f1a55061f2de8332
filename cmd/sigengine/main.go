package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/signumlab/sigengine/internal/analyze"
	"github.com/signumlab/sigengine/internal/audit"
	"github.com/signumlab/sigengine/internal/batch"
	"github.com/signumlab/sigengine/internal/config"
	"github.com/signumlab/sigengine/internal/detect"
	"github.com/signumlab/sigengine/internal/document"
	"github.com/signumlab/sigengine/internal/feature"
	"github.com/signumlab/sigengine/internal/health"
	"github.com/signumlab/sigengine/internal/model"
	"github.com/signumlab/sigengine/internal/source"
	"github.com/signumlab/sigengine/internal/system"
)

func main() {
	system.InitResourceLimits()

	modePtr := flag.String("mode", "analyze", "Operation: analyze, compare, batch, health")
	inputPtr := flag.String("input", "", "Document file (PDF/PNG/JPEG) or directory")
	baselinePtr := flag.String("baseline", "", "Baseline document for compare/batch-compare")
	configPtr := flag.String("config", "", "YAML configuration file (optional)")
	verbosePtr := flag.Bool("v", false, "Debug logging")

	flag.Parse()

	level := slog.LevelInfo
	if *verbosePtr {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPtr)
	if err != nil {
		fatal("configuration: %v", err)
	}

	m, err := model.New(cfg.Model.Variant, cfg.Model.Version)
	if err != nil {
		fatal("model: %v", err)
	}

	ctx := context.Background()

	if *modePtr == "health" {
		printJSON(health.Check(ctx, m))
		return
	}

	if *inputPtr == "" {
		fatal("-input is required for mode %s", *modePtr)
	}

	detector, err := detect.NewDetector(cfg.Detector.Variant)
	if err != nil {
		fatal("detector: %v", err)
	}
	if cd, ok := detector.(*detect.ContrastDetector); ok {
		cd.MinRegionArea = cfg.Detector.MinRegionArea
		cd.EdgeThreshold = cfg.Detector.EdgeThreshold
		cd.OverlapThreshold = cfg.Detector.OverlapThreshold
	}

	sink, err := audit.Open(cfg.Audit.DSN, cfg.Audit.WriteRetries, cfg.Audit.BufferSize, logger)
	if err != nil {
		fatal("audit sink: %v", err)
	}
	defer sink.Close()

	validator := document.NewValidator(cfg.Limits.MaxDocumentBytes, cfg.Limits.PageTiers)
	pipeline := analyze.NewPipeline(validator, detector, feature.NewExtractor(), m, analyze.Options{
		ConfidenceFloor:  cfg.Model.ConfidenceFloor,
		MatchThreshold:   cfg.Compare.MatchThreshold,
		NoMatchThreshold: cfg.Compare.NoMatchThreshold,
		Recorder:         sink,
		Logger:           logger,
	})

	switch *modePtr {
	case "analyze":
		runAnalyze(ctx, pipeline, cfg, *inputPtr)
	case "compare":
		if *baselinePtr == "" {
			fatal("-baseline is required for mode compare")
		}
		runCompare(ctx, pipeline, cfg, *inputPtr, *baselinePtr)
	case "batch":
		runBatch(pipeline, cfg, logger, *inputPtr, *baselinePtr)
	default:
		fatal("unknown mode %q", *modePtr)
	}

	if n := sink.Escalated(); n > 0 {
		logger.Error("audit writes escalated", "count", n)
	}
}

func ingest(path string, cfg *config.Config) []document.Document {
	src, err := source.Open(path)
	if err != nil {
		fatal("open %s: %v", path, err)
	}
	defer src.Close()

	docs, err := source.Ingest(src, path, cfg.Limits.RenderDPI, cfg.Limits.PageTiers)
	if err != nil {
		fatal("ingest %s: %v", path, err)
	}
	return docs
}

func runAnalyze(ctx context.Context, pipeline *analyze.Pipeline, cfg *config.Config, input string) {
	docs := ingest(input, cfg)

	type pageReport struct {
		SourceID string                   `json:"source_id"`
		Error    string                   `json:"error,omitempty"`
		Results  []analyze.AnalysisResult `json:"results"`
	}

	reports := make([]pageReport, 0, len(docs))
	for _, doc := range docs {
		rep := pageReport{SourceID: doc.SourceID}
		results, err := pipeline.Analyze(ctx, doc)
		if err != nil {
			rep.Error = err.Error()
		} else {
			rep.Results = make([]analyze.AnalysisResult, 0, len(results))
			for _, rr := range results {
				rep.Results = append(rep.Results, rr.Result)
			}
		}
		reports = append(reports, rep)
	}
	printJSON(reports)
}

func runCompare(ctx context.Context, pipeline *analyze.Pipeline, cfg *config.Config, input, baseline string) {
	docs := ingest(input, cfg)
	base := ingest(baseline, cfg)

	// Compare the first page of each; multi-page comparisons go
	// through batch mode.
	res, err := pipeline.CompareDocuments(ctx, docs[0], base[0])
	if err != nil {
		fatal("compare: %v", err)
	}
	printJSON(res)
}

func runBatch(pipeline *analyze.Pipeline, cfg *config.Config, logger *slog.Logger, input, baseline string) {
	docs := ingest(input, cfg)

	bj := batch.BatchJob{Documents: docs, Mode: batch.ModeAnalyze}
	if baseline != "" {
		base := ingest(baseline, cfg)
		bj.Mode = batch.ModeCompareBaseline
		bj.Baseline = &base[0]
	}

	orch := batch.New(pipeline, cfg.Batch, logger)
	defer orch.Close()

	handle, err := orch.Submit(bj)
	if err != nil {
		fatal("submit batch: %v", err)
	}

	start := time.Now()
	if err := orch.Wait(handle); err != nil {
		fatal("wait: %v", err)
	}
	status, err := orch.Status(handle)
	if err != nil {
		fatal("status: %v", err)
	}
	logger.Info("batch complete",
		"state", string(status.State),
		"succeeded", status.Summary.Succeeded,
		"failed", status.Summary.Failed,
		"elapsed", time.Since(start))
	printJSON(status)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("encode output: %v", err)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "sigengine: "+format+"\n", args...)
	os.Exit(1)
}
