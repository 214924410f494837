// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/autofinlabs/autofinance/services/llm"
	"github.com/autofinlabs/autofinance/services/orchestrator/controller"
	"github.com/autofinlabs/autofinance/services/orchestrator/datatypes"
	"github.com/autofinlabs/autofinance/services/orchestrator/engine"
	"github.com/autofinlabs/autofinance/services/orchestrator/intent"
	"github.com/autofinlabs/autofinance/services/orchestrator/ledger"
	"github.com/autofinlabs/autofinance/services/orchestrator/routes"
	"github.com/autofinlabs/autofinance/services/orchestrator/store"
	"github.com/autofinlabs/autofinance/services/orchestrator/tools"
	policyengine "github.com/autofinlabs/autofinance/services/policy_engine"
	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "autofin-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("autofinance-orchestrator")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// newWeaviateClient connects to Weaviate, or returns nil for lightweight
// mode when the URL is absent or unusable.
func newWeaviateClient() *weaviate.Client {
	weaviateURL := strings.Trim(os.Getenv("WEAVIATE_SERVICE_URL"), "\"' ")
	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("WEAVIATE_SERVICE_URL not set or empty. Running in lightweight mode (in-memory ledger, fallback policies).")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		slog.Warn("WEAVIATE_SERVICE_URL is invalid. Running in lightweight mode.",
			"url", weaviateURL, "error", err)
		return nil
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		slog.Error("Failed to create Weaviate client", "error", err)
		return nil
	}
	datatypes.EnsureWeaviateSchema(client)
	return client
}

func main() {
	port := os.Getenv("ORCHESTRATOR_PORT")
	if port == "" {
		port = "12310"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	weaviateClient := newWeaviateClient()

	policyEngine, err := policyengine.NewPolicyEngine()
	if err != nil {
		log.Fatalf("FATAL: Could not initialize the Policy Engine %v", err)
	}

	statePath := os.Getenv("STATE_DB_PATH")
	if statePath == "" {
		slog.Warn("STATE_DB_PATH is not set, defaulting to /data/autofin-state")
		statePath = "/data/autofin-state"
	}
	stateStore, err := store.Open(statePath, logger)
	if err != nil {
		log.Fatalf("FATAL: Could not open the session state store: %v", err)
	}
	defer stateStore.Close()
	gcCtx, gcCancel := context.WithCancel(context.Background())
	defer gcCancel()
	stateStore.StartGCLoop(gcCtx, 10*time.Minute, 0.5)

	var applicationLedger ledger.Ledger
	if weaviateClient != nil {
		applicationLedger = ledger.NewWeaviateLedger(weaviateClient)
	} else {
		slog.Warn("Using the in-memory application ledger; submissions will not survive a restart")
		applicationLedger = ledger.NewMemoryLedger()
	}

	searchEndpoint := os.Getenv("SEARCH_API_URL")
	if searchEndpoint == "" {
		slog.Warn("SEARCH_API_URL is not set, defaulting to https://api.tavily.com")
		searchEndpoint = "https://api.tavily.com"
	}
	searcher := tools.NewMarketplaceSearcher(searchEndpoint, os.Getenv("SEARCH_API_KEY"), nil)

	log.Println("Configuring the LLM Client")
	var classifier intent.Classifier
	var llmClient llm.LLMClient
	switch llmBackendType := os.Getenv("LLM_BACKEND_TYPE"); llmBackendType {
	case "openai":
		llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "ollama":
		llmClient, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	default:
		slog.Warn("LLM_BACKEND_TYPE not set or invalid, using the pattern intent classifier only")
	}
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}
	if llmClient != nil {
		classifier = intent.NewLLMClassifier(llmClient)
	} else {
		classifier = intent.NewRegexClassifier()
	}

	ctrl := controller.New(stateStore, applicationLedger, searcher,
		tools.NewWeaviatePolicySource(weaviateClient), classifier, engine.New(policyEngine))

	router := gin.Default()
	router.Use(otelgin.Middleware("autofinance-orchestrator"))

	routes.SetupRoutes(router, ctrl)
	log.Println("started up the container")

	log.Println("Starting the orchestrator server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
