/*
 * Copyright (c) 2022 Serena Tiede
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"log"
	"time"

	"github.com/spf13/afero"
	flag "github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/flaurencin/partrecipe/lvmtool"
	"github.com/flaurencin/partrecipe/parttable"
	"github.com/flaurencin/partrecipe/raidtool"
	"github.com/flaurencin/partrecipe/recipe"
	"github.com/flaurencin/partrecipe/report"
	"github.com/flaurencin/partrecipe/subprocess"
	"github.com/flaurencin/partrecipe/telemetry"
	"github.com/flaurencin/partrecipe/utility"
)

func main() {
	recipePath := flag.String("recipe", "", "path to the recipe YAML document")
	commit := flag.Bool("commit", false, "commit the plan to disk and build volumes")
	renderReport := flag.Bool("report", false, "render a build report")
	archiveBucket := flag.String("archive-bucket", "", "GCS bucket to archive the report to (requires --report)")
	webhookURL := flag.String("webhook", "", "URL to POST the report to (requires --report)")
	enableTracing := flag.BoolP("trace-enabled", "t", false, "enable tracing")
	flag.Parse()

	if *recipePath == "" {
		log.Fatal("--recipe is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *enableTracing {
		tp, traceErr := telemetry.NewExporter("http://localhost:14268/api/traces")
		if traceErr != nil {
			log.Panicf("error creating tracer: %v", traceErr)
		}
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

		defer func(ctx context.Context) {
			ctx, cancel = context.WithTimeout(ctx, time.Minute*5)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				log.Panicf("could not shutdown trace provider: %v", err)
			}
		}(ctx)

		tr := tp.Tracer(telemetry.TracerName)
		var span trace.Span
		ctx, span = tr.Start(ctx, "partrecipe run")
		defer span.End()
	}

	localFS := afero.NewOsFs()

	raw, err := afero.ReadFile(localFS, *recipePath)
	if err != nil {
		log.Fatalf("reading recipe: %v", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		log.Fatalf("parsing recipe: %v", err)
	}

	r, err := cfg.toRecipe()
	if err != nil {
		log.Fatalf("building recipe: %v", err)
	}

	runner := subprocess.NewRunner()
	adapter := parttable.NewPartedAdapter(runner)

	p, err := recipe.Compile(ctx, localFS, adapter, r)
	if err != nil {
		log.Fatalf("compiling recipe: %v", err)
	}

	if err := p.Plan(ctx); err != nil {
		log.Fatalf("planning partitions: %v", err)
	}

	group := recipe.NewPartitionGroup()
	if err := group.Add(p); err != nil {
		log.Fatalf("grouping partitioner: %v", err)
	}

	if *commit {
		if !utility.ConfirmDialog("about to write partition tables to %v, continue? [y/N] ", r.DevicePaths) {
			log.Fatal("aborted by user")
		}
		if err := p.Commit(ctx); err != nil {
			log.Fatalf("committing partitions: %v", err)
		}
	}

	raidTool := raidtool.NewTool(runner)
	lvmTool := lvmtool.NewTool(runner)

	reg, err := buildRegistry(cfg.Volumes, group, raidTool, lvmTool)
	if err != nil {
		log.Fatalf("configuring volumes: %v", err)
	}

	if *commit {
		if err := reg.Build(ctx); err != nil {
			log.Fatalf("building volumes: %v", err)
		}
	}

	if *renderReport {
		full := report.Full{Devices: report.Partitioner(p)}
		volumeEntries, err := report.Volumes(reportHandles(cfg.Volumes), reg)
		if err != nil {
			log.Fatalf("rendering volume report: %v", err)
		}
		full.Volumes = volumeEntries

		rendered, err := yaml.Marshal(full)
		if err != nil {
			log.Fatalf("marshalling report: %v", err)
		}
		log.Print(string(rendered))

		if *archiveBucket != "" {
			destPath := "/tmp/partrecipe-report.yaml.zst"
			if err := report.ArchiveReport(localFS, full, destPath); err != nil {
				log.Fatalf("archiving report: %v", err)
			}
			client, err := report.NewGCSClient(ctx)
			if err != nil {
				log.Fatalf("creating storage client: %v", err)
			}
			archiver := report.NewArchiver(client, *archiveBucket)
			if err := archiver.Upload(ctx, localFS, destPath, "partrecipe-report.yaml.zst"); err != nil {
				log.Fatalf("uploading report: %v", err)
			}
		}

		if *webhookURL != "" {
			if err := report.NotifyWebhook(ctx, *webhookURL, full); err != nil {
				log.Fatalf("notifying webhook: %v", err)
			}
		}
	}

	log.Print("finished")
}
