package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/MeKo-Tech/feedocr/cmd/feedocr/cmd"
	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
)

func main() {
	// A .env file is optional; FEEDOCR_* variables may come from the shell.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		os.Exit(1)
	}

	if err := fang.Execute(context.Background(), cmd.GetRootCommand()); err != nil {
		os.Exit(1)
	}
}
