package main

import (
	"fmt"
	"log/slog"
	"os"

	"pupilflow/internal/app"
	"pupilflow/pkg/contracts"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Println(contracts.GetVersionString())
		return
	}

	application, err := app.NewApplication()
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	application.Logger.Info("Starting", slog.String("version", contracts.GetVersionString()))
	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
