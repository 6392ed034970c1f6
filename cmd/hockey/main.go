package main

import (
	"context"

	"github.com/arv-anshul/hockey/cmd/hockey/commands"
	"github.com/arv-anshul/hockey/lib/telemetry"
)

func main() {
	ctx := context.Background()

	// no telemetry.json5 in reach just means exporters stay unconfigured
	tel, err := telemetry.SetupFromEnv(ctx, "hockey")
	if err == nil {
		defer tel.Shutdown(ctx)
	}

	commands.ExecuteContext(ctx)
}
