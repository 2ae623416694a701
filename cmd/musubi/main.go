package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// Best-effort: a missing .env is the normal case.
	_ = godotenv.Load()

	Execute()
}
