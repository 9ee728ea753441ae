package main

import (
	"ainews/cmd/handlers"
	"ainews/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
