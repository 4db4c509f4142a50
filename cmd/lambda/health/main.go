// Health Check Lambda entry point
package main

import (
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"rental-application-engine/internal/handlers"
	"rental-application-engine/internal/utils"
)

func main() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	_ = utils.InitLogger(level)
	defer utils.Sync()

	handler, err := handlers.NewHealthHandler()
	if err != nil {
		panic("Failed to create handler: " + err.Error())
	}
	defer handler.Close()

	lambda.Start(handler.Handle)
}
